package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/course-billing-api/internal/models"
	"github.com/noah-isme/course-billing-api/pkg/jobs"
	"github.com/noah-isme/course-billing-api/pkg/logger"
)

// Sender delivers a notification to its recipient.
type Sender interface {
	Send(ctx context.Context, n models.Notification) error
}

// LogSender writes notifications to the log. It stands in for the mail
// gateway, which lives outside this service.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender constructs a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Send implements Sender.
func (s *LogSender) Send(_ context.Context, n models.Notification) error {
	s.logger.Info("notification",
		zap.String("kind", string(n.Kind)),
		zap.String("recipient", n.RecipientID),
		zap.String("subject", n.Subject),
		zap.String("body", n.Body),
	)
	return nil
}

// NotificationConfig tunes the breaker around the sender.
type NotificationConfig struct {
	Enabled          bool
	BreakerThreshold uint32
	BreakerTimeout   time.Duration
}

type jobQueue interface {
	Enqueue(job jobs.Job) error
	Handle(jobType string, handler jobs.Handler)
}

// NotificationService dispatches notifications asynchronously. Delivery
// failures are logged and retried by the queue; they never reach the caller.
type NotificationService struct {
	queue   jobQueue
	sender  Sender
	breaker *gobreaker.CircuitBreaker[struct{}]
	metrics *MetricsService
	logger  *zap.Logger
	enabled bool
}

var notificationKinds = []models.NotificationKind{
	models.NotificationEnrollmentApproved,
	models.NotificationEnrollmentRejected,
	models.NotificationInstallmentPaid,
	models.NotificationPaymentRefunded,
}

// NewNotificationService wires the sender behind a circuit breaker and
// registers the queue handlers for every notification kind.
func NewNotificationService(queue jobQueue, sender Sender, metrics *MetricsService, logger *zap.Logger, cfg NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BreakerThreshold == 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	threshold := cfg.BreakerThreshold
	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "notification-sender",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("notification breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	svc := &NotificationService{
		queue:   queue,
		sender:  sender,
		breaker: breaker,
		metrics: metrics,
		logger:  logger,
		enabled: cfg.Enabled && queue != nil && sender != nil,
	}
	if svc.enabled {
		for _, kind := range notificationKinds {
			queue.Handle(string(kind), svc.handle)
		}
	}
	return svc
}

// Notify enqueues n for delivery. It never blocks and never fails.
func (s *NotificationService) Notify(ctx context.Context, n models.Notification) {
	if s == nil || !s.enabled {
		return
	}
	job := jobs.Job{ID: uuid.NewString(), Type: string(n.Kind), Payload: n}
	if err := s.queue.Enqueue(job); err != nil {
		s.metrics.RecordNotification(string(n.Kind), "dropped")
		logger.ForContext(ctx, s.logger).Warn("notification dropped",
			zap.String("kind", string(n.Kind)),
			zap.String("recipient", n.RecipientID),
			zap.Error(err),
		)
	}
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(models.Notification)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID), zap.String("type", fmt.Sprintf("%T", job.Payload)))
		return nil
	}
	_, err := s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.sender.Send(ctx, n)
	})
	if err != nil {
		s.metrics.RecordNotification(string(n.Kind), "failed")
		return fmt.Errorf("send %s notification: %w", n.Kind, err)
	}
	s.metrics.RecordNotification(string(n.Kind), "sent")
	return nil
}
