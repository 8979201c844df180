package tasks

import (
	"fmt"
	"time"

	"github.com/quanghuy1242/auther-sub001/internal/utils/logger"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
)

// Scheduler registers the periodic maintenance tasks with asynq.
type Scheduler struct {
	scheduler *asynq.Scheduler
	logger    *logger.Logger
}

func NewScheduler(redisAddr, username, password string, db int, logger *logger.Logger) *Scheduler {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{
			Addr:     redisAddr,
			Username: username,
			Password: password,
			DB:       db,
		},
		&asynq.SchedulerOpts{},
	)

	return &Scheduler{
		scheduler: scheduler,
		logger:    logger,
	}
}

// Start registers the periodic tasks and runs the scheduler until stopped
func (s *Scheduler) Start() error {
	if err := s.register(CleanupSchedule, TaskTypeAPIKeyCleanup, nil, asynq.Queue(QueueLow)); err != nil {
		return err
	}
	s.logger.Info("starting task scheduler")
	return s.scheduler.Run()
}

func (s *Scheduler) Stop() {
	s.scheduler.Shutdown()
	s.logger.Info("task scheduler stopped")
}

// register validates the cron spec up front so a bad schedule fails at
// startup instead of silently never firing.
func (s *Scheduler) register(spec, taskType string, payload []byte, opts ...asynq.Option) error {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("invalid cron spec %q for %s: %w", spec, taskType, err)
	}

	entryID, err := s.scheduler.Register(spec, asynq.NewTask(taskType, payload), opts...)
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", taskType, err)
	}

	s.logger.Info("registered %s as %s, next run %s",
		taskType, entryID, schedule.Next(time.Now()).Format(time.RFC3339))
	return nil
}
