package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sashimarconi/checkout-backend/api/responses"
	"github.com/sashimarconi/checkout-backend/pkg/config"
	pkgerrors "github.com/sashimarconi/checkout-backend/pkg/errors"
	"github.com/sashimarconi/checkout-backend/pkg/logger"
)

type rateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// FunnelRateLimit throttles the public funnel endpoints per client IP.
// The storefront has no credentials, so the IP window is the only lever.
func FunnelRateLimit(cfg config.RateLimitConfig, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if cfg.FunnelWindow <= 0 || cfg.FunnelIPLimit <= 0 || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			ip := clientIP(r)
			if ip == "" {
				next.ServeHTTP(w, r)
				return
			}

			scope := fmt.Sprintf("funnel:ip:%s", ip)
			allowed, count, err := store.FixedWindowAllow(ctx, scope, int64(cfg.FunnelIPLimit), cfg.FunnelWindow)
			if err != nil {
				// Degraded limiter must not take the funnel down with it.
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "ip", ip), "rate limiter unavailable, letting request through")
				}
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				if logg != nil {
					ctx = logg.WithFields(ctx, map[string]any{
						"ip":             ip,
						"attempts":       count,
						"limit":          cfg.FunnelIPLimit,
						"window_seconds": int(cfg.FunnelWindow.Seconds()),
					})
					logg.Warn(ctx, "funnel request rate limited")
				}
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many requests"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
