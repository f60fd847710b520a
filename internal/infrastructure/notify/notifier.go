// Package notify joins the email and SMS transports behind one notifier.
package notify

import (
	"context"
	"errors"

	"github.com/go-token-nosql/internal/infrastructure/smtp"
	"github.com/go-token-nosql/internal/infrastructure/sns"
)

var errSMSDisabled = errors.New("sms transport not configured")

type Notifier struct {
	mailer smtp.Mailer
	sms    sns.SMSSender
}

// New builds a notifier. sms may be nil, in which case SendSMS always fails.
func New(mailer smtp.Mailer, sms sns.SMSSender) *Notifier {
	return &Notifier{mailer: mailer, sms: sms}
}

func (n *Notifier) SendEmail(ctx context.Context, to, subject, html string) error {
	return n.mailer.SendEmail(ctx, to, subject, html)
}

func (n *Notifier) SendSMS(ctx context.Context, to, body string) error {
	if n.sms == nil {
		return errSMSDisabled
	}
	return n.sms.SendSMS(ctx, to, body)
}
