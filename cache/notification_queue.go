package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

const notificationQueueKey = "tunora:notifications" // List: LPUSH 入队, BRPOP 出队

// Notification kinds.
const (
	KindReleasePublished = "release_published"
	KindReleaseUploaded  = "release_uploaded"
)

// NotificationJob is one queued notification for one account.
type NotificationJob struct {
	ID         string                 `json:"id"`
	AccountID  int64                  `json:"accountId"`
	Kind       string                 `json:"kind"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	EnqueuedAt time.Time              `json:"enqueuedAt"`
}

// NewNotificationJob stamps a job with a fresh id and the current time.
func NewNotificationJob(accountID int64, kind string, payload map[string]interface{}) NotificationJob {
	return NotificationJob{
		ID:         uuid.NewString(),
		AccountID:  accountID,
		Kind:       kind,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
	}
}

// NotificationQueue 基于 Redis List 的通知队列
type NotificationQueue struct {
	client *redis.Client
	key    string
}

// NewNotificationQueue 创建通知队列
func NewNotificationQueue(client *redis.Client) *NotificationQueue {
	return &NotificationQueue{client: client, key: notificationQueueKey}
}

// Enqueue pushes a single job.
func (q *NotificationQueue) Enqueue(ctx context.Context, job NotificationJob) error {
	return q.EnqueueBulk(ctx, []NotificationJob{job})
}

// EnqueueBulk pushes all jobs in one pipeline round trip.
func (q *NotificationQueue) EnqueueBulk(ctx context.Context, jobs []NotificationJob) error {
	if q.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	if len(jobs) == 0 {
		return nil
	}

	pipe := q.client.Pipeline()
	for _, job := range jobs {
		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to marshal notification job: %w", err)
		}
		pipe.LPush(ctx, q.key, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue %d notification jobs: %w", len(jobs), err)
	}
	return nil
}

// Dequeue blocks up to timeout for the oldest job. It returns nil, nil when
// the queue stayed empty.
func (q *NotificationQueue) Dequeue(ctx context.Context, timeout time.Duration) (*NotificationJob, error) {
	if q.client == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}

	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	// BRPOP 返回 [key, value]
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of length %d", len(res))
	}
	return DecodeNotificationJob([]byte(res[1]))
}

// Len reports the number of pending jobs.
func (q *NotificationQueue) Len(ctx context.Context) (int64, error) {
	if q.client == nil {
		return 0, fmt.Errorf("Redis client not initialized")
	}
	return q.client.LLen(ctx, q.key).Result()
}

// DecodeNotificationJob parses a queued job and rejects entries without an
// id, account or kind.
func DecodeNotificationJob(data []byte) (*NotificationJob, error) {
	var job NotificationJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification job: %w", err)
	}
	if job.ID == "" || job.AccountID == 0 || job.Kind == "" {
		return nil, fmt.Errorf("malformed notification job %q", string(data))
	}
	return &job, nil
}
