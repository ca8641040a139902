package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"attendance/internal/metrics"
	"attendance/internal/queue"
)

// MessageType tags email jobs on the queue.
const MessageType = "email"

// Job is one queued email: a template, its data and the recipients.
type Job struct {
	Template string          `json:"template"`
	To       []string        `json:"to"`
	Data     json.RawMessage `json:"data"`
}

// Recipient is an addressee of a bulk message.
type Recipient struct {
	Email string
	Name  string
}

// Dispatcher enqueues email jobs. Delivery is fire-and-forget: the worker
// logs failures and does not retry.
type Dispatcher struct {
	q       queue.Queue
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher publishing to q.
func NewDispatcher(q queue.Queue, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{q: q, metrics: m, logger: logger}
}

// Enqueue validates and publishes one job.
func (d *Dispatcher) Enqueue(ctx context.Context, template string, to []string, data any) error {
	if _, ok := payloads[template]; !ok {
		return fmt.Errorf("unknown email template %q", template)
	}
	to = cleanAddresses(to)
	if len(to) == 0 {
		return errors.New("mail: no recipients")
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	msg, err := queue.NewMessage(MessageType, Job{Template: template, To: to, Data: raw})
	if err != nil {
		return err
	}
	if err := d.q.Publish(ctx, msg); err != nil {
		d.metrics.EmailHandled(template, "enqueue_failed")
		return fmt.Errorf("enqueue %s email: %w", template, err)
	}
	d.metrics.EmailHandled(template, "queued")
	return nil
}

// Welcome queues the welcome email for a new account. Errors are logged.
func (d *Dispatcher) Welcome(ctx context.Context, email, name string) {
	if err := d.Enqueue(ctx, TemplateWelcome, []string{email}, WelcomeData{Name: name, Email: email}); err != nil {
		d.logger.WarnContext(ctx, "welcome email not queued", "email", email, "error", err)
	}
}

// Notice queues a plain notice to one account. Errors are logged.
func (d *Dispatcher) Notice(ctx context.Context, email, name, title, body string) {
	if err := d.Enqueue(ctx, TemplateGeneral, []string{email}, GeneralData{Title: title, Body: body, Name: name}); err != nil {
		d.logger.WarnContext(ctx, "notice email not queued", "email", email, "error", err)
	}
}

// Bulk queues one personalised copy of a message per recipient and
// returns how many were queued.
func (d *Dispatcher) Bulk(ctx context.Context, recipients []Recipient, subject, message string) (int, error) {
	queued := 0
	var errs []error
	for _, r := range recipients {
		data := BulkData{Subject: subject, Message: message, Name: r.Name}
		if err := d.Enqueue(ctx, TemplateBulk, []string{r.Email}, data); err != nil {
			errs = append(errs, err)
			continue
		}
		queued++
	}
	return queued, errors.Join(errs...)
}

// Invoice queues an invoice email.
func (d *Dispatcher) Invoice(ctx context.Context, to string, data InvoiceData) error {
	return d.Enqueue(ctx, TemplateInvoice, []string{to}, data)
}

func cleanAddresses(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, a := range in {
		a = strings.TrimSpace(a)
		key := strings.ToLower(a)
		if a == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out
}
