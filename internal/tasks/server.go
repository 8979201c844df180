package tasks

import (
	"context"
	"fmt"

	"github.com/quanghuy1242/auther-sub001/internal/utils/logger"

	"github.com/hibiken/asynq"
)

// queueWeights drives strict-priority processing: critical tasks always run
// before default, default before low.
var queueWeights = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

// Server processes the background queues: policy version snapshots and the
// periodic API key sweep.
type Server struct {
	server  *asynq.Server
	handler *TaskHandler
	logger  *logger.Logger
}

func NewServer(redisAddr, username, password string, db int, handler *TaskHandler, log *logger.Logger) *Server {
	server := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     redisAddr,
			Username: username,
			Password: password,
			DB:       db,
		},
		asynq.Config{
			Concurrency:    10,
			Queues:         queueWeights,
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				_ = log.Error("task %s failed", err, task.Type())
			}),
		},
	)

	return &Server{
		server:  server,
		handler: handler,
		logger:  log,
	}
}

func (s *Server) Start(ctx context.Context) error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypePolicyVersionSnapshot, s.handler.HandlePolicyVersionSnapshot)
	mux.HandleFunc(TaskTypeAPIKeyCleanup, s.handler.HandleAPIKeyCleanup)

	s.logger.Info("starting task server, queues %v", queueWeights)

	if err := s.server.Start(mux); err != nil {
		return fmt.Errorf("failed to start task server: %w", err)
	}
	return nil
}

func (s *Server) Stop() {
	s.server.Stop()
	s.logger.Info("task server stopped")
}

// Shutdown waits for in-flight tasks before exiting
func (s *Server) Shutdown() {
	s.logger.Info("shutting down task server")
	s.server.Shutdown()
}
