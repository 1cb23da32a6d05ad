package mailer

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/seanlongden/lead-formatter-waitlist/config"
	"github.com/seanlongden/lead-formatter-waitlist/metrics"
)

// Message is a single transactional email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers transactional email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// New picks the providers that have credentials. SendGrid is tried first and MailerSend
// second; with neither configured mail is only logged.
func New(conf config.Mail) Mailer {
	var providers []Mailer
	if conf.SendGridAPIKey != "" {
		providers = append(providers, NewSendGrid(conf.SendGridAPIKey, conf.FromName, conf.From))
	}
	if conf.MailerSendAPIKey != "" {
		providers = append(providers, NewMailerSend(conf.MailerSendAPIKey, conf.FromName, conf.From))
	}
	switch len(providers) {
	case 0:
		zap.S().Warnw("no mail provider configured, emails will only be logged")
		return NewLogMailer()
	case 1:
		return providers[0]
	default:
		return Fallback(providers...)
	}
}

type fallback struct {
	providers []Mailer
}

// Fallback sends through each provider in turn until one succeeds.
func Fallback(providers ...Mailer) Mailer {
	return &fallback{providers: providers}
}

func (f *fallback) Name() string { return "fallback" }

func (f *fallback) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, p := range f.providers {
		err := p.Send(ctx, msg)
		metrics.EmailsSentTotal.WithLabelValues(p.Name(), metrics.Result(err)).Inc()
		if err == nil {
			return nil
		}
		zap.S().Warnw("mail provider failed, trying next", "provider", p.Name(), "error", err)
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return errors.Join(errs...)
}
