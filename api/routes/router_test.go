package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	funnelsvc "github.com/sashimarconi/checkout-backend/internal/funnel"
	"github.com/sashimarconi/checkout-backend/internal/orders"
	pkgauth "github.com/sashimarconi/checkout-backend/pkg/auth"
	"github.com/sashimarconi/checkout-backend/pkg/config"
	"github.com/sashimarconi/checkout-backend/pkg/db/models"
	"github.com/sashimarconi/checkout-backend/pkg/enums"
	pkgerrors "github.com/sashimarconi/checkout-backend/pkg/errors"
	"github.com/sashimarconi/checkout-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubFunnelService struct {
	calls int
}

func (s *stubFunnelService) UpsertSnapshot(ctx context.Context, input funnelsvc.SnapshotInput) error {
	s.calls++
	return nil
}

type stubOrderService struct {
	orderID uuid.UUID
}

func (s *stubOrderService) Materialize(ctx context.Context, input orders.MaterializeInput) (uuid.UUID, error) {
	return s.orderID, nil
}

func (s *stubOrderService) ChangeStatus(ctx context.Context, ownerID, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	return &models.Order{ID: orderID, OwnerUserID: ownerID, Status: status}, nil
}

func (s *stubOrderService) Get(ctx context.Context, ownerID, orderID uuid.UUID) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (s *stubOrderService) List(ctx context.Context, filter orders.ListFilter) ([]models.Order, error) {
	return []models.Order{}, nil
}

type stubCartRepo struct{}

func (stubCartRepo) WithTx(tx *gorm.DB) funnelsvc.Repository { return stubCartRepo{} }

func (stubCartRepo) Merge(ctx context.Context, snap funnelsvc.Snapshot) (funnelsvc.MergeOutcome, error) {
	return funnelsvc.OutcomeMerged, nil
}

func (stubCartRepo) FindByCartKey(ctx context.Context, cartKey string) (*models.Cart, error) {
	return nil, gorm.ErrRecordNotFound
}

func (stubCartRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Cart, error) {
	return []models.Cart{}, nil
}

func testRouter(t *testing.T) (http.Handler, *stubFunnelService, config.AdminJWTConfig) {
	t.Helper()

	adminJWT := config.AdminJWTConfig{Secret: "router-test-secret", Issuer: "checkout-auth"}
	cfg := &config.Config{
		App:      config.AppConfig{Env: "dev", Port: "8080"},
		AdminJWT: adminJWT,
	}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	funnelService := &stubFunnelService{}

	router := NewRouter(Deps{
		Config:        cfg,
		Logger:        logg,
		DB:            stubPinger{},
		PubSub:        stubPinger{},
		FunnelService: funnelService,
		OrderService:  &stubOrderService{orderID: uuid.New()},
		CartRepo:      stubCartRepo{},
		Metrics:       prometheus.NewRegistry(),
	})
	return router, funnelService, adminJWT
}

func TestRouterHealthLive(t *testing.T) {
	router, _, _ := testRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRouterHealthReady(t *testing.T) {
	router, _, _ := testRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router, _, _ := testRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRouterFunnelCartAcceptsSnapshot(t *testing.T) {
	router, funnelService, _ := testRouter(t)

	body := strings.NewReader(`{"cart_id":"ck_router","slug":"oferta","stage":"contact"}`)
	req := httptest.NewRequest(http.MethodPost, "/funnel/cart", body)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if funnelService.calls != 1 {
		t.Fatalf("expected one snapshot call, got %d", funnelService.calls)
	}
}

func TestRouterFunnelCartRejectsMissingCartID(t *testing.T) {
	router, _, _ := testRouter(t)

	body := strings.NewReader(`{"slug":"oferta"}`)
	req := httptest.NewRequest(http.MethodPost, "/funnel/cart", body)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestRouterFunnelOrderReturnsOrderID(t *testing.T) {
	router, _, _ := testRouter(t)

	body := strings.NewReader(`{"cart_id":"ck_router","slug":"oferta","customer":{"name":"Ana"}}`)
	req := httptest.NewRequest(http.MethodPost, "/funnel/order", body)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var envelope struct {
		Data map[string]string `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if envelope.Data["order_id"] == "" {
		t.Fatal("expected order_id in response")
	}
}

func TestRouterAdminRequiresToken(t *testing.T) {
	router, _, _ := testRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/v1/orders", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRouterAdminAcceptsValidToken(t *testing.T) {
	router, _, adminJWT := testRouter(t)

	token, err := pkgauth.MintAdminToken(adminJWT, uuid.New(), time.Now(), time.Hour)
	if err != nil {
		t.Fatalf("minting token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}
