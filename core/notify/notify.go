// Package notify fans release notifications out through the job queue and
// delivers them from a background worker.
package notify

import (
	"context"
	"fmt"
	"time"

	"Tunora/cache"
	"Tunora/logger"
	"Tunora/metrics"
	"Tunora/repository"

	"go.uber.org/zap"
)

// Dispatcher hands notifications to the delivery pipeline.
type Dispatcher interface {
	Notify(ctx context.Context, accountIDs []int64, kind string, payload map[string]interface{}) error
}

// Queue is the producer side of the job queue.
type Queue interface {
	EnqueueBulk(ctx context.Context, jobs []cache.NotificationJob) error
}

// QueueDispatcher enqueues one job per account.
type QueueDispatcher struct {
	queue Queue
}

// NewQueueDispatcher 创建基于队列的通知分发器
func NewQueueDispatcher(q Queue) *QueueDispatcher {
	return &QueueDispatcher{queue: q}
}

func (d *QueueDispatcher) Notify(ctx context.Context, accountIDs []int64, kind string, payload map[string]interface{}) error {
	if len(accountIDs) == 0 {
		return nil
	}
	jobs := make([]cache.NotificationJob, len(accountIDs))
	for i, id := range accountIDs {
		jobs[i] = cache.NewNotificationJob(id, kind, payload)
	}
	if err := d.queue.EnqueueBulk(ctx, jobs); err != nil {
		return fmt.Errorf("failed to enqueue %s notifications: %w", kind, err)
	}
	metrics.NotificationsEnqueued.WithLabelValues(kind).Add(float64(len(jobs)))
	return nil
}

// Source is the consumer side of the job queue. Dequeue returns nil, nil
// when nothing arrived within timeout.
type Source interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*cache.NotificationJob, error)
}

// Deliverer sends one notification (email, push, ...).
type Deliverer interface {
	Deliver(ctx context.Context, job cache.NotificationJob) error
}

// LogDeliverer resolves the recipient and logs the message instead of
// sending it.
type LogDeliverer struct {
	users repository.UserRepository
	log   *zap.Logger
}

// NewLogDeliverer 创建日志投递器
func NewLogDeliverer(users repository.UserRepository) *LogDeliverer {
	return &LogDeliverer{users: users, log: logger.Named("notify")}
}

func (d *LogDeliverer) Deliver(ctx context.Context, job cache.NotificationJob) error {
	user, err := d.users.GetUserByID(ctx, job.AccountID)
	if err != nil {
		return err
	}
	if user == nil {
		d.log.Warn("dropping notification for unknown account",
			zap.String("job", job.ID),
			zap.Int64("account", job.AccountID),
		)
		return nil
	}
	d.log.Info("notification delivered",
		zap.String("job", job.ID),
		zap.String("kind", job.Kind),
		zap.String("to", user.Email),
		zap.Any("payload", job.Payload),
	)
	return nil
}

// Worker drains the queue into a Deliverer.
type Worker struct {
	source  Source
	deliver Deliverer
	poll    time.Duration
	backoff time.Duration
	log     *zap.Logger
}

// NewWorker 创建通知消费者. poll bounds each blocking dequeue.
func NewWorker(source Source, deliver Deliverer, poll time.Duration) *Worker {
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &Worker{
		source:  source,
		deliver: deliver,
		poll:    poll,
		backoff: time.Second,
		log:     logger.Named("notify-worker"),
	}
}

// Run processes jobs until ctx is cancelled. Delivery failures are logged
// and the job is dropped.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("notification worker started", zap.Duration("poll", w.poll))
	for {
		if ctx.Err() != nil {
			w.log.Info("notification worker stopped")
			return nil
		}
		if _, err := w.ProcessOne(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.log.Error("failed to dequeue notification", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(w.backoff):
			}
		}
	}
}

// ProcessOne handles at most one job. It reports whether a job was taken;
// the error is only for queue failures.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	job, err := w.source.Dequeue(ctx, w.poll)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	if err := w.deliver.Deliver(ctx, *job); err != nil {
		metrics.NotificationsDelivered.WithLabelValues(job.Kind, "error").Inc()
		w.log.Error("failed to deliver notification",
			zap.String("job", job.ID),
			zap.Int64("account", job.AccountID),
			zap.Error(err),
		)
		return true, nil
	}
	metrics.NotificationsDelivered.WithLabelValues(job.Kind, "ok").Inc()
	return true, nil
}
