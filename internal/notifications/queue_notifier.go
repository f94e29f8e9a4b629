package notifications

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/samber/oops"
)

const (
	MailQueue    = "mail"
	mailMaxRetry = 3
	mailTimeout  = 30 * time.Second
)

type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueNotifier hands the confirmation mail to the asynq worker. A send
// succeeds once the task is durably enqueued.
type QueueNotifier struct {
	client TaskEnqueuer
}

func NewQueueNotifier(client TaskEnqueuer) *QueueNotifier {
	return &QueueNotifier{client: client}
}

func (n *QueueNotifier) SendSignupConfirmation(ctx context.Context, in SignupConfirmationInput) error {
	body, err := EncodeSignupConfirmation(in)
	if err != nil {
		return err
	}

	opts := []asynq.Option{
		asynq.Queue(MailQueue),
		asynq.MaxRetry(mailMaxRetry),
		asynq.Timeout(mailTimeout),
	}
	// the link is useless once the token expires
	if !in.ExpiresAt.IsZero() {
		opts = append(opts, asynq.Deadline(in.ExpiresAt))
	}

	task := asynq.NewTask(TaskSignupConfirmation, body)

	if _, err := n.client.EnqueueContext(ctx, task, opts...); err != nil {
		return oops.With("operation", "enqueue signup confirmation").Wrap(err)
	}

	return nil
}
