package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	app "silkyroad/src/app"
	cfg "silkyroad/src/configuration"

	"github.com/sirupsen/logrus"
)

const contactSubject = "New Contact Form Message"

var contactTemplate = template.Must(template.New("contact").Parse(`
<h2>New Message from Silky Road</h2>
<p><strong>Name:</strong> {{.FirstName}} {{.LastName}}</p>
<p><strong>Email:</strong> {{.Email}}</p>
<p><strong>Message:</strong><br>{{.Message}}</p>
`))

// ContactMessage is what a visitor submits through the contact form.
type ContactMessage struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Message   string `json:"message"`
}

// Resend relays contact-form messages through the Resend HTTP API.
type Resend struct {
	apiKey     string
	baseURL    string
	from       string
	receiver   string
	httpClient *http.Client
	log        logrus.FieldLogger
}

func NewResend(props cfg.ContactProperties, timeout time.Duration, log logrus.FieldLogger) *Resend {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Resend{
		apiKey:     props.ResendAPIKey,
		baseURL:    strings.TrimRight(props.ResendBaseURL, "/"),
		from:       props.From,
		receiver:   props.Receiver,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

type resendEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Ready reports the missing settings, if any, that keep the relay from sending.
func (r *Resend) Ready() error {
	if r.apiKey == "" || r.receiver == "" {
		return &app.ConfigurationError{Missing: []string{"RESEND_API_KEY", "CONTACT_FORM_RECEIVER"}}
	}
	return nil
}

// SendContact delivers msg to the configured contact receiver.
func (r *Resend) SendContact(ctx context.Context, msg ContactMessage) error {
	if err := r.Ready(); err != nil {
		return err
	}

	var html bytes.Buffer
	if err := contactTemplate.Execute(&html, msg); err != nil {
		return fmt.Errorf("render contact email: %w", err)
	}
	body, err := json.Marshal(resendEmail{
		From:    r.from,
		To:      []string{r.receiver},
		Subject: contactSubject,
		HTML:    html.String(),
	})
	if err != nil {
		return fmt.Errorf("marshal contact email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create resend request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return &app.RelayError{Relay: "resend", Err: fmt.Errorf("send contact email: %w", err)}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var details any
		if err := json.Unmarshal(raw, &details); err != nil {
			details = string(raw)
		}
		r.log.WithFields(logrus.Fields{"status": resp.StatusCode}).Warn("resend rejected contact email")
		return &app.RelayError{Relay: "resend", Details: details, Err: errors.New("Email send failed")}
	}
	r.log.WithField("from", msg.Email).Info("contact email sent")
	return nil
}
