package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/mailersend/mailersend-go"
)

// MailerSend delivers mail through the MailerSend API.
type MailerSend struct {
	client *mailersend.Mailersend
	from   mailersend.From
}

func NewMailerSend(apiKey, fromName, fromEmail string) *MailerSend {
	return &MailerSend{
		client: mailersend.NewMailersend(apiKey),
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}
}

func (m *MailerSend) Name() string { return "mailersend" }

func (m *MailerSend) Send(ctx context.Context, msg Message) error {
	message := m.client.Email.NewMessage()
	message.SetFrom(m.from)
	message.SetRecipients([]mailersend.Recipient{{Email: msg.To}})
	message.SetSubject(msg.Subject)

	if strings.TrimSpace(msg.Text) != "" {
		message.SetText(msg.Text)
	}
	if strings.TrimSpace(msg.HTML) != "" {
		message.SetHTML(msg.HTML)
	}

	if _, err := m.client.Email.Send(ctx, message); err != nil {
		return fmt.Errorf("mailersend send: %w", err)
	}
	return nil
}
