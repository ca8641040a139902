package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"attendance/internal/metrics"
	"attendance/internal/queue"
)

// Worker renders and delivers queued email.
type Worker struct {
	renderer *Renderer
	sender   Sender
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewWorker creates a worker.
func NewWorker(r *Renderer, s Sender, m *metrics.Metrics, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{renderer: r, sender: s, metrics: m, logger: logger}
}

// Run consumes q until ctx is done. Failed messages are logged and
// dropped.
func (w *Worker) Run(ctx context.Context, q queue.Queue) error {
	msgs, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	w.logger.InfoContext(ctx, "mail worker started")
	for msg := range msgs {
		if err := w.Handle(ctx, msg); err != nil {
			w.logger.ErrorContext(ctx, "email failed", "message_id", msg.ID, "error", err)
		}
	}
	w.logger.InfoContext(ctx, "mail worker stopped")
	return nil
}

// Handle processes one queue message.
func (w *Worker) Handle(ctx context.Context, msg queue.Message) error {
	if msg.Type != MessageType {
		return fmt.Errorf("unexpected message type %q", msg.Type)
	}
	var job Job
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		return fmt.Errorf("decode job: %w", err)
	}
	data, err := Decode(job.Template, job.Data)
	if err != nil {
		w.metrics.EmailHandled(job.Template, "failed")
		return err
	}
	subject, body, err := w.renderer.Render(job.Template, data)
	if err != nil {
		w.metrics.EmailHandled(job.Template, "failed")
		return err
	}
	if err := w.sender.Send(ctx, Email{To: job.To, Subject: subject, HTML: body}); err != nil {
		w.metrics.EmailHandled(job.Template, "failed")
		return err
	}
	w.metrics.EmailHandled(job.Template, "sent")
	w.logger.InfoContext(ctx, "email sent", "template", job.Template, "recipients", len(job.To))
	return nil
}
