package notification

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/smallbiznis/streamgate/internal/observability/logger"
	"github.com/smallbiznis/streamgate/internal/providers/email"
	"github.com/smallbiznis/streamgate/internal/providers/pdf"
	provisioningdomain "github.com/smallbiznis/streamgate/internal/provisioning/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:embed templates/*
var templateFS embed.FS

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/*.html"))
	textTemplates = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/*.txt"))
)

// ErrAttachmentSkipped marks a delivered email whose credentials PDF could not
// be generated. The customer has the credentials; callers keep it as a warning.
var ErrAttachmentSkipped = errors.New("credentials_pdf_skipped")

type CredentialsNotification struct {
	Email       string
	PaymentID   string
	Amount      string
	Currency    string
	Credentials provisioningdomain.Credentials
}

// Dispatcher delivers provisioned credentials to the customer.
//
//go:generate mockgen -source=dispatcher.go -destination=./mocks/mock_dispatcher.go -package=mocks
type Dispatcher interface {
	SendCredentials(ctx context.Context, n CredentialsNotification) error
}

type Params struct {
	fx.In

	Log   *zap.Logger
	Email email.Provider
	PDF   pdf.Provider
}

type EmailDispatcher struct {
	log   *zap.Logger
	email email.Provider
	pdf   pdf.Provider
}

func NewDispatcher(p Params) Dispatcher {
	return &EmailDispatcher{
		log:   p.Log.Named("notification.dispatcher"),
		email: p.Email,
		pdf:   p.PDF,
	}
}

type templateData struct {
	Email       string
	Plan        string
	Username    string
	Password    string
	Host        string
	M3UURL      string
	XtreamURL   string
	EPGURL      string
	ExpiresAt   string
	Placeholder bool
}

func (d *EmailDispatcher) SendCredentials(ctx context.Context, n CredentialsNotification) error {
	to := strings.TrimSpace(n.Email)
	if to == "" {
		return email.ErrNoRecipients
	}
	creds := n.Credentials
	data := templateData{
		Email:       to,
		Plan:        creds.Plan,
		Username:    creds.Username,
		Password:    creds.Password,
		Host:        creds.Host,
		M3UURL:      creds.M3UURL,
		XtreamURL:   creds.XtreamURL,
		EPGURL:      creds.EPGURL,
		ExpiresAt:   creds.ExpiresAt.UTC().Format("2006-01-02"),
		Placeholder: creds.Source == provisioningdomain.SourceFallback,
	}

	var htmlBody, textBody bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&htmlBody, "credentials.html", data); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	if err := textTemplates.ExecuteTemplate(&textBody, "credentials.txt", data); err != nil {
		return fmt.Errorf("render text: %w", err)
	}

	msg := email.Message{
		To:       []string{to},
		Subject:  "Your IPTV access is ready",
		HTMLBody: htmlBody.String(),
		TextBody: textBody.String(),
	}

	sheet, err := d.pdf.GenerateCredentials(ctx, pdf.CredentialsData{
		CustomerEmail: to,
		PaymentID:     n.PaymentID,
		Plan:          creds.Plan,
		Amount:        n.Amount,
		Currency:      n.Currency,
		Username:      creds.Username,
		Password:      creds.Password,
		M3UURL:        creds.M3UURL,
		XtreamURL:     creds.XtreamURL,
		EPGURL:        creds.EPGURL,
		Host:          creds.Host,
		ExpiresAt:     creds.ExpiresAt,
		Placeholder:   data.Placeholder,
	})
	var pdfErr error
	switch {
	case err != nil:
		logger.WithContext(ctx, d.log).Warn("credentials pdf generation failed", zap.Error(err))
		pdfErr = fmt.Errorf("%w: %v", ErrAttachmentSkipped, err)
	case len(sheet) > 0:
		msg.Attachments = append(msg.Attachments, email.Attachment{
			Filename:    "streamgate-credentials.pdf",
			ContentType: "application/pdf",
			Data:        sheet,
		})
	}

	if err := d.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("send credentials email: %w", err)
	}
	return pdfErr
}
