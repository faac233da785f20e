package email

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage(t *testing.T) {
	m := buildMessage("StreamGate <no-reply@streamgate.tv>", Message{
		To:       []string{"a@b.com"},
		Subject:  "Your IPTV access",
		TextBody: "hello",
		HTMLBody: "<p>hello</p>",
		Attachments: []Attachment{{
			Filename:    "credentials.pdf",
			ContentType: "application/pdf",
			Data:        []byte("%PDF-1.3"),
		}},
	})

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)

	raw := buf.String()
	assert.Contains(t, raw, "Subject: Your IPTV access")
	assert.Contains(t, raw, "To: a@b.com")
	assert.Contains(t, raw, "text/html")
	assert.Contains(t, raw, `filename="credentials.pdf"`)
}

func TestSendRequiresRecipients(t *testing.T) {
	err := NewSMTP(Config{Host: "localhost", Port: 25}).Send(context.Background(), Message{Subject: "x"})
	assert.ErrorIs(t, err, ErrNoRecipients)
}
