package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/quanghuy1242/auther-sub001/internal/models"
	"github.com/quanghuy1242/auther-sub001/internal/utils/logger"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// TaskClient handles task enqueuing with improved error handling and context support
type TaskClient struct {
	client       *asynq.Client
	logger       *logger.Logger
	redisOptions *redis.Options
	redisClient  *redis.Client
}

func (c *TaskClient) GetClient() *asynq.Client {
	return c.client
}

// GetRedis exposes the shared redis client for rate limiting
func (c *TaskClient) GetRedis() *redis.Client {
	return c.redisClient
}

// NewTaskClient creates a new TaskClient with the given Redis configuration
func NewTaskClient(redisAddr, username, password string, db int) *TaskClient {
	redisOpt := asynq.RedisClientOpt{
		Addr:     redisAddr,
		Username: username,
		Password: password,
		DB:       db,
	}

	redisClient := redis.NewClient(
		&redis.Options{
			Addr:     redisAddr,
			Username: username,
			Password: password,
			DB:       db,
		},
	)

	return &TaskClient{
		client: asynq.NewClient(redisOpt),
		redisOptions: &redis.Options{
			Addr:     redisAddr,
			Username: username,
			Password: password,
			DB:       db,
		},
		redisClient: redisClient,
		logger:      logger.New("TASKS"),
	}
}

// Close closes the underlying asynq client
func (c *TaskClient) Close() error {
	return c.client.Close()
}

// EnqueuePolicyVersion queues a policy-version history write. The write is
// decoupled from the grant or model update that produced it; the caller logs
// and swallows any error returned here.
func (c *TaskClient) EnqueuePolicyVersion(ctx context.Context, version models.PolicyVersion) error {
	payload, err := json.Marshal(version)
	if err != nil {
		return fmt.Errorf("failed to marshal policy version: %w", err)
	}

	task := asynq.NewTask(TaskTypePolicyVersionSnapshot, payload)
	info, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueLow),
		asynq.MaxRetry(RetryDefault),
		asynq.Timeout(TimeoutShort),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue policy version snapshot: %w", err)
	}

	c.logger.Info("enqueued policy version snapshot task %s for %s.%s", info.ID, version.EntityType, version.PermissionName)
	return nil
}
