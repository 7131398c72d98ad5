// Package mailer sends share-notification emails.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Mailer notifies a recipient that a gallery was shared with them.  Callers
// treat failures as non-fatal: a share succeeds even if the notification
// cannot be delivered.
type Mailer interface {
	SendShareNotification(ctx context.Context, recipientEmail, galleryName string) error
}

const sharePlain = `A gallery has been shared with you: {{.GalleryName}}

Open your galleries: https://photoshelf.dev/galleries/
`

var sharePlainTemplate = template.Must(template.New("share-email").Parse(sharePlain))

// SendGridMailer delivers notifications through SendGrid.
type SendGridMailer struct {
	sendgridClient *sendgrid.Client
	fromAddress    string
}

func NewSendGridMailer(sendgridClient *sendgrid.Client, fromAddress string) *SendGridMailer {
	return &SendGridMailer{
		sendgridClient: sendgridClient,
		fromAddress:    fromAddress,
	}
}

func (m *SendGridMailer) SendShareNotification(ctx context.Context, recipientEmail, galleryName string) error {
	message := mail.NewV3Mail()
	message.From = mail.NewEmail("PhotoShelf Bot", m.fromAddress)
	message.Subject = "A gallery was shared with you"

	personalization := mail.NewPersonalization()
	personalization.To = append(personalization.To, mail.NewEmail("", recipientEmail))
	message.Personalizations = append(message.Personalizations, personalization)

	textContent := &bytes.Buffer{}
	if err := sharePlainTemplate.Execute(textContent, struct{ GalleryName string }{GalleryName: galleryName}); err != nil {
		return fmt.Errorf("while templating plain-text email content: %w", err)
	}

	message.Content = append(message.Content, mail.NewContent("text/plain", textContent.String()))

	resp, err := m.sendgridClient.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("while sending mail through SendGrid: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("non-2XX response while sending mail through SendGrid: %d %s", resp.StatusCode, resp.Body)
	}

	return nil
}

// NopMailer drops notifications.  Used when no SendGrid API key is
// configured.
type NopMailer struct{}

func (NopMailer) SendShareNotification(ctx context.Context, recipientEmail, galleryName string) error {
	return nil
}
