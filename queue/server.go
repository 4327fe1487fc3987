package queue

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"golang.org/x/time/rate"
)

// ServerConfig holds the worker settings for the two queues. Concurrency
// is one pool shared by both queues (weighted, not partitioned); only the
// alerts queue has a rate limit.
type ServerConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Concurrency int // total worker goroutines across all queues

	// AlertsRateLimit caps the alert-delivery queue to roughly the
	// transport's documented rate limit (~30 messages/sec).
	AlertsRateLimit rate.Limit
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{Concurrency: 10, AlertsRateLimit: 30}
}

// Server runs the asynq worker pool and applies a rate limiter in front of
// the alerts queue's handlers via middleware, since asynq's queue weights
// control priority, not throughput.
type Server struct {
	srv         *asynq.Server
	mux         *asynq.ServeMux
	alertLimiter *rate.Limiter
}

func NewServer(cfg ServerConfig) *Server {
	opt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues: map[string]int{
			QueueSLATimers: 3,
			QueueAlerts:    5,
		},
		Logger: slogAdapter{},
	})

	limiter := rate.NewLimiter(cfg.AlertsRateLimit, 1)
	return &Server{srv: srv, mux: asynq.NewServeMux(), alertLimiter: limiter}
}

// Handle registers a handler for jobName. Handlers registered for the
// alerts queue are wrapped so dispatch never exceeds the configured rate.
func (s *Server) Handle(jobName string, queueName string, handler func(context.Context, *asynq.Task) error) {
	wrapped := handler
	if queueName == QueueAlerts {
		limiter := s.alertLimiter
		wrapped = func(ctx context.Context, t *asynq.Task) error {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
			return handler(ctx, t)
		}
	}
	s.mux.HandleFunc(jobName, wrapped)
}

func (s *Server) Run() error {
	return s.srv.Run(s.mux)
}

func (s *Server) Shutdown() {
	s.srv.Shutdown()
}

// slogAdapter routes asynq's internal logging through log/slog so worker
// diagnostics land in the same structured stream as the rest of the
// service.
type slogAdapter struct{}

func (slogAdapter) Debug(args ...interface{}) { slog.Debug(toMsg(args)) }
func (slogAdapter) Info(args ...interface{})  { slog.Info(toMsg(args)) }
func (slogAdapter) Warn(args ...interface{})  { slog.Warn(toMsg(args)) }
func (slogAdapter) Error(args ...interface{}) { slog.Error(toMsg(args)) }
func (slogAdapter) Fatal(args ...interface{}) { slog.Error(toMsg(args)) }

func toMsg(args []interface{}) string {
	if len(args) == 0 {
		return ""
	}
	if s, ok := args[0].(string); ok && len(args) == 1 {
		return s
	}
	msg := ""
	for _, a := range args {
		if s, ok := a.(string); ok {
			msg += s
		}
	}
	return msg
}
