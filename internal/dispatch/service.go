package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sashimarconi/checkout-backend/pkg/db/models"
	"github.com/sashimarconi/checkout-backend/pkg/enums"
	"github.com/sashimarconi/checkout-backend/pkg/logger"
	"github.com/sashimarconi/checkout-backend/pkg/metrics"
)

// Result reports what a dispatch attempt did.
type Result struct {
	Sent    bool
	Deduped bool
	Skipped bool
}

// Service fires the conversion webhook at most once per (order, transition).
type Service interface {
	Dispatch(ctx context.Context, order *models.Order, status enums.OrderStatus) Result
}

type service struct {
	repo    Repository
	sender  Sender
	metrics *metrics.FunnelMetrics
	logg    *logger.Logger
}

// NewService builds the conversion dispatcher.
func NewService(repo Repository, sender Sender, funnelMetrics *metrics.FunnelMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("dispatch repository required")
	}
	if sender == nil {
		return nil, fmt.Errorf("sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, sender: sender, metrics: funnelMetrics, logg: logg}, nil
}

// Dispatch claims the (order, status) ledger row and, when this call wins the
// claim, performs the outbound call and patches the row with the outcome.
// Nothing here ever propagates to the caller; order persistence must not
// depend on merchant endpoint availability.
func (s *service) Dispatch(ctx context.Context, order *models.Order, status enums.OrderStatus) Result {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id": order.ID.String(),
		"owner_id": order.OwnerUserID.String(),
		"status":   status.String(),
	})

	settings, err := s.repo.FindSettings(ctx, order.OwnerUserID)
	if err != nil {
		s.logg.Error(logCtx, "conversion settings lookup failed", err)
		s.metrics.IncDispatch("failed")
		return Result{}
	}
	if settings == nil || !settings.Enabled || !transitionEnabled(settings, status) {
		s.metrics.IncDispatch("skipped")
		return Result{Skipped: true}
	}

	now := time.Now().UTC()
	payload := BuildPayload(order, status, now)
	rawPayload, err := json.Marshal(payload)
	if err != nil {
		s.logg.Error(logCtx, "conversion payload encoding failed", err)
		s.metrics.IncDispatch("failed")
		return Result{}
	}

	event := &models.ConversionEvent{
		OrderID:     order.ID,
		OwnerUserID: order.OwnerUserID,
		Status:      status,
		Delivery:    enums.DeliveryStatusPending,
		Payload:     rawPayload,
	}
	claimed, err := s.repo.ClaimTransition(ctx, event)
	if err != nil {
		s.logg.Error(logCtx, "conversion ledger claim failed", err)
		s.metrics.IncDispatch("failed")
		return Result{}
	}
	if !claimed {
		s.logg.Info(logCtx, "conversion transition already dispatched")
		s.metrics.IncDispatch("deduped")
		return Result{Deduped: true}
	}

	start := time.Now()
	responseStatus, responseBody, sendErr := s.sender.Send(ctx, settings.WebhookURL, settings.Token, payload)
	s.metrics.ObserveDispatchDuration(time.Since(start))
	sentAt := time.Now().UTC()

	if sendErr != nil || responseStatus >= 400 {
		message := fmt.Sprintf("status=%d", responseStatus)
		if sendErr != nil {
			message = sendErr.Error()
		}
		if err := s.repo.MarkFailed(ctx, event.ID, message, sentAt); err != nil {
			s.logg.Error(logCtx, "conversion ledger patch failed", err)
		}
		s.logg.Warn(s.logg.WithField(logCtx, "dispatch_error", message), "conversion dispatch failed")
		s.metrics.IncDispatch("failed")
		return Result{}
	}

	if err := s.repo.MarkDelivered(ctx, event.ID, responseStatus, responseBody, sentAt); err != nil {
		s.logg.Error(logCtx, "conversion ledger patch failed", err)
	}
	s.logg.Info(logCtx, "conversion dispatched")
	s.metrics.IncDispatch("sent")
	return Result{Sent: true}
}

// transitionEnabled consults the per-transition flags; transitions without a
// flag are never dispatched.
func transitionEnabled(settings *models.ConversionSettings, status enums.OrderStatus) bool {
	switch status {
	case enums.OrderStatusWaitingPayment:
		return settings.NotifyWaitingPayment
	case enums.OrderStatusPaid:
		return settings.NotifyPaid
	default:
		return false
	}
}
