package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sashimarconi/checkout-backend/internal/analytics"
	"github.com/sashimarconi/checkout-backend/internal/dispatch"
	"github.com/sashimarconi/checkout-backend/internal/funnel"
	"github.com/sashimarconi/checkout-backend/pkg/db/models"
	"github.com/sashimarconi/checkout-backend/pkg/enums"
	pkgerrors "github.com/sashimarconi/checkout-backend/pkg/errors"
	"github.com/sashimarconi/checkout-backend/pkg/logger"
	"github.com/sashimarconi/checkout-backend/pkg/metrics"
	"github.com/sashimarconi/checkout-backend/pkg/types"
)

type ownerResolver interface {
	ResolveOwner(ctx context.Context, host, slug string, activeOnly bool) (uuid.UUID, error)
}

type dispatcher interface {
	Dispatch(ctx context.Context, order *models.Order, status enums.OrderStatus) dispatch.Result
}

type eventPublisher interface {
	Publish(ctx context.Context, event analytics.Event) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// MaterializeInput is one order submission from the storefront.
type MaterializeInput struct {
	Host    string
	CartKey string
	Slug    string
	Status  enums.OrderStatus

	Customer *types.Customer
	Address  *types.Address
	Items    []types.CartItem
	Shipping *types.Shipping
	Summary  *types.Summary
	Pix      *types.Pix

	UTM      *types.UTM
	Source   *string
	Tracking types.Tracking
}

// Service materializes orders from carts and drives the admin order surface.
type Service interface {
	Materialize(ctx context.Context, input MaterializeInput) (uuid.UUID, error)
	ChangeStatus(ctx context.Context, ownerID, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error)
	Get(ctx context.Context, ownerID, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, filter ListFilter) ([]models.Order, error)
}

type service struct {
	repo       Repository
	carts      funnel.Repository
	resolver   ownerResolver
	dispatcher dispatcher
	publisher  eventPublisher
	tx         txRunner
	metrics    *metrics.FunnelMetrics
	logg       *logger.Logger
}

// NewService builds the order materialization service.
func NewService(repo Repository, carts funnel.Repository, resolver ownerResolver, disp dispatcher, publisher eventPublisher, tx txRunner, funnelMetrics *metrics.FunnelMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("owner resolver required")
	}
	if disp == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("event publisher required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       repo,
		carts:      carts,
		resolver:   resolver,
		dispatcher: disp,
		publisher:  publisher,
		tx:         tx,
		metrics:    funnelMetrics,
		logg:       logg,
	}, nil
}

// Materialize upserts the order for input.CartKey and, in the same
// transaction, ratchets the source cart to converted so it never looks less
// complete than the order derived from it. The conversion dispatch and the
// analytics event run after commit and cannot fail the request.
func (s *service) Materialize(ctx context.Context, input MaterializeInput) (uuid.UUID, error) {
	if input.CartKey == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "cart_id is required")
	}
	if input.Slug == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "slug is required")
	}
	if input.Customer.IsEmpty() {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "customer is required")
	}

	ownerID, err := s.resolver.ResolveOwner(ctx, input.Host, input.Slug, true)
	if err != nil {
		return uuid.Nil, err
	}

	status := input.Status
	if !status.IsValid() {
		status = enums.OrderStatusWaitingPayment
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"cart_key": input.CartKey,
		"owner_id": ownerID.String(),
		"slug":     input.Slug,
		"status":   status.String(),
	})

	order := &models.Order{
		OwnerUserID:        ownerID,
		CartKey:            input.CartKey,
		Slug:               input.Slug,
		Status:             status,
		Customer:           input.Customer,
		Address:            input.Address,
		Items:              input.Items,
		Shipping:           input.Shipping,
		Summary:            input.Summary,
		Pix:                input.Pix,
		TrackingParameters: s.deriveTracking(ctx, input),
	}

	var outcome MaterializeOutcome
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		outcome, txErr = s.repo.WithTx(tx).Materialize(ctx, order)
		if txErr != nil {
			return txErr
		}
		return s.convertCart(ctx, tx, input, ownerID)
	})
	if err != nil {
		s.logg.Error(logCtx, "order materialization failed", err)
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting order")
	}

	if order.OwnerUserID != ownerID {
		s.logg.Error(logCtx, "materialized order owner disagrees with resolved owner",
			fmt.Errorf("persisted owner %s", order.OwnerUserID))
		s.metrics.IncOwnerMismatch()
	}

	s.logg.Info(s.logg.WithField(logCtx, "outcome", string(outcome)), "order materialized")

	s.dispatcher.Dispatch(ctx, order, status)
	s.publishOrderEvent(ctx, order, enums.FunnelEventOrderCreated)
	return order.ID, nil
}

// convertCart ratchets the source cart to converted inside the order
// transaction. A cart key held by another merchant violates the ownership
// assumption; the order write stands, the disagreement is logged and counted.
func (s *service) convertCart(ctx context.Context, tx *gorm.DB, input MaterializeInput, ownerID uuid.UUID) error {
	snap := funnel.Snapshot{
		CartKey:     input.CartKey,
		OwnerUserID: &ownerID,
		Slug:        input.Slug,
		Stage:       enums.CartStagePayment,
		Status:      enums.CartStatusConverted,
	}
	if input.Summary != nil {
		snap.TotalCents = &input.Summary.TotalCents
		snap.SubtotalCents = &input.Summary.SubtotalCents
		snap.ShippingCents = &input.Summary.ShippingCents
	}

	_, err := s.carts.WithTx(tx).Merge(ctx, snap)
	if err == nil {
		return nil
	}
	if errors.Is(err, funnel.ErrOwnerConflict) {
		s.logg.Error(s.logg.WithFields(ctx, map[string]any{
			"cart_key": input.CartKey,
			"owner_id": ownerID.String(),
		}), "cart ownership disagrees with materialized order", err)
		s.metrics.IncOwnerMismatch()
		return nil
	}
	return err
}

// deriveTracking builds the order's first-touch attribution set: the cart's
// stored UTM and click identifiers when present, the submission's otherwise.
func (s *service) deriveTracking(ctx context.Context, input MaterializeInput) types.Tracking {
	utm := input.UTM
	tracking := input.Tracking
	source := input.Source

	if cart, err := s.carts.FindByCartKey(ctx, input.CartKey); err == nil && cart != nil {
		if cart.UTM != nil && !cart.UTM.IsEmpty() {
			utm = cart.UTM
		}
		if !cart.Tracking.IsEmpty() {
			tracking = cart.Tracking
		}
		if cart.Source != nil && *cart.Source != "" {
			source = cart.Source
		}
	}

	merged := types.Tracking{}
	if utm != nil {
		setIfPresent(merged, "utm_source", utm.Source)
		setIfPresent(merged, "utm_medium", utm.Medium)
		setIfPresent(merged, "utm_campaign", utm.Campaign)
		setIfPresent(merged, "utm_term", utm.Term)
		setIfPresent(merged, "utm_content", utm.Content)
	}
	if source != nil {
		setIfPresent(merged, "src", *source)
	}
	for key, value := range tracking {
		setIfPresent(merged, key, value)
	}
	if len(merged) == 0 {
		return nil
	}
	return merged
}

func setIfPresent(tracking types.Tracking, key, value string) {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" || value == "" {
		return
	}
	tracking[key] = value
}

// ChangeStatus applies an explicit status change and dispatches the new
// transition. paid_at is stamped on the first move to paid.
func (s *service) ChangeStatus(ctx context.Context, ownerID, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	order, err := s.repo.FindByID(ctx, ownerID, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}

	var paidAt *time.Time
	if status == enums.OrderStatusPaid && order.PaidAt == nil {
		now := time.Now().UTC()
		paidAt = &now
	}

	if err := s.repo.UpdateStatus(ctx, order.ID, status, paidAt); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating order status")
	}
	order.Status = status
	if paidAt != nil {
		order.PaidAt = paidAt
	}

	s.dispatcher.Dispatch(ctx, order, status)
	if status == enums.OrderStatusPaid {
		s.publishOrderEvent(ctx, order, enums.FunnelEventOrderPaid)
	}
	return order, nil
}

// Get loads one order scoped to the authenticated merchant.
func (s *service) Get(ctx context.Context, ownerID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, ownerID, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	return order, nil
}

// List returns the merchant's orders.
func (s *service) List(ctx context.Context, filter ListFilter) ([]models.Order, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50
	}
	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing orders")
	}
	return records, nil
}

// publishOrderEvent emits the analytics envelope for an order transition,
// best-effort.
func (s *service) publishOrderEvent(ctx context.Context, order *models.Order, eventType enums.FunnelEventType) {
	event := analytics.NewEvent(eventType)
	event.OwnerUserID = order.OwnerUserID.String()
	event.CartKey = order.CartKey
	event.OrderID = order.ID.String()
	event.Slug = order.Slug
	event.Status = order.Status.String()
	if order.Summary != nil {
		event.TotalCents = order.Summary.TotalCents
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("order event publish degraded: %v", err))
	}
}
