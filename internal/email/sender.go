package email

import (
	"context"
	"log"

	"github.com/anantara-app/backend/internal/common"
)

// Sender is how the rest of the app dispatches mail; handlers never
// block on SMTP.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Publisher hands a persisted job id to the message queue.
type Publisher interface {
	Publish(ctx context.Context, jobID string) error
}

// QueueSender persists the job and enqueues its id for the worker. If
// the broker is down it falls back to an in-process delivery so the
// mail still goes out.
type QueueSender struct {
	Jobs *JobRepo
	Pub  Publisher
	SMTP SMTPConfig
}

func (s *QueueSender) Send(ctx context.Context, to, subject, body string) error {
	id, err := common.NewULID()
	if err != nil {
		return err
	}
	job := &Job{ID: id, To: to, Subject: subject, Body: body, Status: JobQueued}
	if err := s.Jobs.Create(ctx, job); err != nil {
		return err
	}

	if err := s.Pub.Publish(ctx, job.ID); err != nil {
		log.Printf("email: publish failed job_id=%s err=%v, sending inline", job.ID, err)
		go s.deliver(job)
	}
	return nil
}

func (s *QueueSender) deliver(job *Job) {
	err := SendText(s.SMTP, job.To, job.Subject, job.Body)
	ctx := context.Background()
	if err != nil {
		log.Printf("email: inline delivery failed job_id=%s err=%v", job.ID, err)
		_ = s.Jobs.MarkFailed(ctx, job.ID, 1, err)
		return
	}
	_ = s.Jobs.MarkSent(ctx, job.ID, 1)
}

// DirectSender delivers synchronously. Used when no broker is
// configured and in development.
type DirectSender struct {
	SMTP SMTPConfig
}

func (s *DirectSender) Send(_ context.Context, to, subject, body string) error {
	return SendText(s.SMTP, to, subject, body)
}
