package main

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"
)

// Mailer sends the onboarding email once a clinic's isolated backend is ready
type Mailer struct {
	client *ses.SES
	from   string
	base   string
}

// NewMailer creates an SES-backed mailer
func NewMailer(region, from, baseDomain string) (*Mailer, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &Mailer{
		client: ses.New(sess),
		from:   from,
		base:   baseDomain,
	}, nil
}

// SendWelcome notifies the clinic's responsible contact that their
// environment is ready
func (m *Mailer) SendWelcome(to, clinicName, subdomain string) error {
	url := fmt.Sprintf("https://%s.%s", subdomain, m.base)
	subject := fmt.Sprintf("%s: seu ambiente está pronto", clinicName)
	body := fmt.Sprintf(
		"Olá,\n\nO ambiente da clínica %s foi criado com sucesso.\n\nAcesse: %s\n\nEquipe Clinigo",
		clinicName, url,
	)

	_, err := m.client.SendEmail(&ses.SendEmailInput{
		Source: aws.String(m.from),
		Destination: &ses.Destination{
			ToAddresses: []*string{aws.String(to)},
		},
		Message: &ses.Message{
			Subject: &ses.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &ses.Body{
				Text: &ses.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send welcome email: %w", err)
	}

	return nil
}
