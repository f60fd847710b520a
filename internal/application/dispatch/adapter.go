// Package dispatch renders token messages and hands them to the outbound notifier.
package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-token-nosql/internal/domain"
)

const (
	dateLayout = "01/02/2006"
	timeLayout = "3:04:05 PM"
)

// Notifier delivers rendered messages. Implementations report transport errors synchronously.
type Notifier interface {
	SendEmail(ctx context.Context, to, subject, html string) error
	SendSMS(ctx context.Context, to, body string) error
}

// FailureRecorder is told about every failed delivery.
type FailureRecorder interface {
	DispatchFailed(ch domain.Channel)
}

// Expiry is a token expiry split for display.
type Expiry struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// Message is a rendered notification ready for transport.
type Message struct {
	Channel domain.Channel
	To      string
	Subject string
	Body    string
}

type Adapter struct {
	notifier Notifier
	baseURL  string
	loc      *time.Location
	failures FailureRecorder
}

// NewAdapter builds an adapter. baseURL prefixes confirmation links; loc is
// the display location for expiry strings (UTC when nil).
func NewAdapter(n Notifier, baseURL string, loc *time.Location, failures FailureRecorder) *Adapter {
	if loc == nil {
		loc = time.UTC
	}
	return &Adapter{notifier: n, baseURL: baseURL, loc: loc, failures: failures}
}

// FormatExpiry renders t as separate date and time strings in the display location.
func (a *Adapter) FormatExpiry(t time.Time) Expiry {
	lt := t.In(a.loc)
	return Expiry{Date: lt.Format(dateLayout), Time: lt.Format(timeLayout)}
}

// Render builds the message for t addressed to u.
func (a *Adapter) Render(u *domain.User, t *domain.Token) (*Message, error) {
	ch := t.Purpose.Channel()
	msg := &Message{Channel: ch, To: u.Email}
	if ch == domain.ChannelSMS {
		if u.PhoneNumber == "" {
			return nil, fmt.Errorf("no phone number on account: %w", domain.ErrBadRequest)
		}
		msg.To = u.PhoneNumber
	}

	exp := a.FormatExpiry(t.Expiry())
	data := templateData{Name: u.Name, Date: exp.Date, Time: exp.Time}
	if t.Purpose.IsRecovery() {
		data.Code = t.Value
	} else {
		data.Link = a.confirmationURL(ch, t.Value)
	}

	tpl, ok := templates[t.Purpose]
	if !ok {
		return nil, fmt.Errorf("no template for purpose %q", t.Purpose)
	}
	msg.Subject = tpl.subject
	var buf bytes.Buffer
	if err := tpl.execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render %s message: %w", t.Purpose, err)
	}
	msg.Body = buf.String()
	return msg, nil
}

// Dispatch renders and sends the message for t. The expiry is returned even
// when the transport fails so callers can still report it; the token itself
// is never rolled back here.
func (a *Adapter) Dispatch(ctx context.Context, u *domain.User, t *domain.Token) (Expiry, error) {
	exp := a.FormatExpiry(t.Expiry())
	msg, err := a.Render(u, t)
	if err != nil {
		return exp, err
	}

	switch msg.Channel {
	case domain.ChannelSMS:
		err = a.notifier.SendSMS(ctx, msg.To, msg.Body)
	default:
		err = a.notifier.SendEmail(ctx, msg.To, msg.Subject, msg.Body)
	}
	if err != nil {
		slog.Error("message delivery failed", "user_id", u.UserID, "channel", msg.Channel, "purpose", t.Purpose, "err", err)
		if a.failures != nil {
			a.failures.DispatchFailed(msg.Channel)
		}
		return exp, fmt.Errorf("send %s: %w", msg.Channel, domain.ErrDispatchFailed)
	}
	return exp, nil
}

func (a *Adapter) confirmationURL(ch domain.Channel, value string) string {
	return fmt.Sprintf("%s/v1/user/verify/%s/confirmation/%s", a.baseURL, ch, value)
}
