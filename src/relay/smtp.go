package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	app "silkyroad/src/app"
	cfg "silkyroad/src/configuration"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Message is an arbitrary HTML email.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// SendInfo describes an accepted message.
type SendInfo struct {
	MessageID string   `json:"messageId"`
	Accepted  []string `json:"accepted"`
	Envelope  Envelope `json:"envelope"`
}

type Envelope struct {
	From string   `json:"from"`
	To   []string `json:"to"`
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTP sends mail through an authenticated, implicitly TLS-wrapped SMTP server.
type SMTP struct {
	dialer sender
	host   string
	from   string
	ready  bool
	log    logrus.FieldLogger
}

func NewSMTP(props cfg.SMTPProperties, log logrus.FieldLogger) *SMTP {
	dialer := gomail.NewDialer(props.Host, props.Port, props.User, props.Pass)
	dialer.SSL = true
	return &SMTP{
		dialer: dialer,
		host:   props.Host,
		from:   props.From,
		ready:  props.Configured(),
		log:    log,
	}
}

func (s *SMTP) Send(ctx context.Context, msg Message) (*SendInfo, error) {
	if !s.ready {
		return nil, &app.ConfigurationError{Missing: []string{"SMTP_HOST", "SMTP_FROM"}}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	recipients := splitRecipients(msg.To)
	if len(recipients) == 0 {
		return nil, &app.RelayError{Relay: "smtp", Err: errors.New("No recipients defined")}
	}

	id := fmt.Sprintf("<%s@%s>", uuid.NewString(), s.host)
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", recipients...)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", id)
	m.SetBody("text/html", msg.HTML)

	if err := s.dialer.DialAndSend(m); err != nil {
		s.log.WithError(err).Error("smtp send failed")
		return nil, &app.RelayError{Relay: "smtp", Err: err}
	}
	s.log.WithFields(logrus.Fields{"message_id": id, "recipients": len(recipients)}).Info("email sent")
	return &SendInfo{
		MessageID: id,
		Accepted:  recipients,
		Envelope:  Envelope{From: s.from, To: recipients},
	}, nil
}

func splitRecipients(to string) []string {
	var out []string
	for _, r := range strings.Split(to, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
