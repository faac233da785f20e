package pdf

import (
	"context"
	"errors"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

var ErrMissingCredentials = errors.New("credentials sheet requires username and password")

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateCredentials(ctx context.Context, data CredentialsData) ([]byte, error) {
	if data.Username == "" || data.Password == "" {
		return nil, ErrMissingCredentials
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(8, "Your streaming account", props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, data.Plan, props.Text{
			Size:  11,
			Align: align.Right,
			Top:   4,
		}),
	)

	m.AddRow(18,
		col.New(6).Add(
			text.New("Payment: "+data.PaymentID, props.Text{Size: 9}),
			text.New("Amount: "+data.Amount+" "+data.Currency, props.Text{Size: 9, Top: 5}),
		),
		col.New(6).Add(
			text.New("Account: "+data.CustomerEmail, props.Text{Size: 9, Align: align.Right}),
			text.New("Valid until: "+data.ExpiresAt.UTC().Format("2006-01-02"), props.Text{Size: 9, Top: 5, Align: align.Right}),
		),
	)
	m.AddRow(4, line.NewCol(12))

	addField(m, "Username", data.Username)
	addField(m, "Password", data.Password)
	addField(m, "Server", data.Host)
	addField(m, "M3U playlist", data.M3UURL)
	addField(m, "Xtream API", data.XtreamURL)
	if data.EPGURL != "" {
		addField(m, "EPG guide", data.EPGURL)
	}

	if data.Placeholder {
		m.AddRow(16,
			text.NewCol(12, "These credentials are temporary. Support will confirm your final line details shortly.", props.Text{
				Size:  9,
				Style: fontstyle.Italic,
				Top:   6,
			}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

func addField(m core.Maroto, label, value string) {
	m.AddRow(10,
		text.NewCol(3, label, props.Text{Size: 10, Style: fontstyle.Bold}),
		text.NewCol(9, value, props.Text{Size: 10}),
	)
}
