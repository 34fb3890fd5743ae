package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-billing-api/internal/models"
	"github.com/noah-isme/course-billing-api/pkg/jobs"
)

type recordingSender struct {
	mu    sync.Mutex
	sent  []models.Notification
	err   error
	calls int
}

func (s *recordingSender) Send(_ context.Context, n models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, n)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func TestNotificationServiceDeliversThroughQueue(t *testing.T) {
	queue := jobs.NewQueue("notifications", nil, jobs.QueueConfig{Workers: 1})
	sender := &recordingSender{}
	metrics := NewMetricsService()
	svc := NewNotificationService(queue, sender, metrics, nil, NotificationConfig{Enabled: true})
	queue.Start(context.Background())
	defer queue.Stop()

	svc.Notify(context.Background(), models.Notification{Kind: models.NotificationInstallmentPaid, RecipientID: "student-1", Subject: "Payment received"})

	assert.Eventually(t, func() bool { return sender.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.notifications.WithLabelValues(string(models.NotificationInstallmentPaid), "sent")) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestNotificationServiceDropsWhenQueueUnavailable(t *testing.T) {
	queue := jobs.NewQueue("notifications", nil, jobs.QueueConfig{Workers: 1})
	metrics := NewMetricsService()
	svc := NewNotificationService(queue, &recordingSender{}, metrics, nil, NotificationConfig{Enabled: true})

	assert.NotPanics(t, func() {
		svc.Notify(context.Background(), models.Notification{Kind: models.NotificationPaymentRefunded})
	})
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.notifications.WithLabelValues(string(models.NotificationPaymentRefunded), "dropped")))
}

func TestNotificationServiceDisabled(t *testing.T) {
	queue := jobs.NewQueue("notifications", nil, jobs.QueueConfig{Workers: 1})
	svc := NewNotificationService(queue, &recordingSender{}, nil, nil, NotificationConfig{Enabled: false})
	queue.Start(context.Background())
	defer queue.Stop()

	svc.Notify(context.Background(), models.Notification{Kind: models.NotificationEnrollmentApproved})
	assert.Zero(t, queue.Pending())

	var nilSvc *NotificationService
	assert.NotPanics(t, func() { nilSvc.Notify(context.Background(), models.Notification{}) })
}

func TestNotificationBreakerOpensAfterFailures(t *testing.T) {
	sender := &recordingSender{err: errors.New("smtp down")}
	metrics := NewMetricsService()
	svc := NewNotificationService(nil, sender, metrics, nil, NotificationConfig{BreakerThreshold: 2, BreakerTimeout: time.Minute})
	job := jobs.Job{ID: "1", Type: string(models.NotificationEnrollmentRejected), Payload: models.Notification{Kind: models.NotificationEnrollmentRejected}}

	require.Error(t, svc.handle(context.Background(), job))
	require.Error(t, svc.handle(context.Background(), job))
	err := svc.handle(context.Background(), job)
	require.Error(t, err)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, 2, sender.calls)
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.notifications.WithLabelValues(string(models.NotificationEnrollmentRejected), "failed")))
}

func TestNotificationHandleIgnoresForeignPayload(t *testing.T) {
	sender := &recordingSender{}
	svc := NewNotificationService(nil, sender, nil, nil, NotificationConfig{})

	assert.NoError(t, svc.handle(context.Background(), jobs.Job{ID: "x", Payload: "not a notification"}))
	assert.Zero(t, sender.calls)
}
