// Package rpcapi exposes the admin surface described by the SLA, Chat,
// Alert, Analytics, and Settings routers as JSON-over-HTTP endpoints under
// /api/v1, plus the transport webhook and the /metrics and /healthz
// endpoints.
package rpcapi

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/avito-tech/accountant-sla/alert"
	"github.com/avito-tech/accountant-sla/chatapp"
	"github.com/avito-tech/accountant-sla/classify"
	"github.com/avito-tech/accountant-sla/delivery"
	"github.com/avito-tech/accountant-sla/ingest"
	"github.com/avito-tech/accountant-sla/metrics"
	"github.com/avito-tech/accountant-sla/store"
	"github.com/avito-tech/accountant-sla/timer"
)

// Server wires the composition root's services onto an echo.Echo instance.
type Server struct {
	Store    *store.Store
	Timer    *timer.Manager
	Alerts   *alert.Service
	Classify *classify.Service
	Ingest   *ingest.Service
	Callback *delivery.CallbackHandler
	Channel  chatapp.Channel
	Metrics  *metrics.Registry
}

// New builds the echo app: public health/metrics/webhook routes, and the
// authorization-gated /api/v1 routers.
func (s *Server) New() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	e.GET("/metrics", echo.WrapHandler(s.Metrics.Handler()))
	e.GET("/healthz", echo.WrapHandler(metrics.HealthzHandler(s.Store)))
	e.POST("/webhook/telegram", s.handleWebhook)

	api := e.Group("/api/v1")
	s.registerSLARoutes(api)
	s.registerChatRoutes(api)
	s.registerAlertRoutes(api)
	s.registerAnalyticsRoutes(api)
	s.registerSettingsRoutes(api)

	return e
}
