package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/practicas-ubb/practicas/core/user"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "practicas_http_requests_total",
		Help: "HTTP requests served, by method, route and status code.",
	}, []string{"method", "route", "code"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "practicas_http_request_duration_seconds",
		Help:    "HTTP request latencies, by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// rolesMiddleware only lets through active users currently holding one of the roles.
// Must run after the JWT middleware.
func rolesMiddleware(svc user.Service, roles ...user.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, svc)
			if err != nil {
				return err
			}
			if !usr.CanLogin() {
				return errAccountDeactivated
			}
			for _, role := range roles {
				if usr.Role == role {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

// metricsMiddleware records the request count & latency of every route.
func metricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		start := time.Now()
		if err := next(ctx); err != nil {
			ctx.Error(err)
		}

		route := ctx.Path()
		if route == "" {
			route = "unmatched"
		}
		method := ctx.Request().Method
		code := strconv.Itoa(ctx.Response().Status)

		httpRequests.WithLabelValues(method, route, code).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		return nil
	}
}
