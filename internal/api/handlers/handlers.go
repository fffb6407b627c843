package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"

	"github.com/acme/sales-dialer/internal/domain"
	"github.com/acme/sales-dialer/internal/repository"
	"github.com/acme/sales-dialer/internal/service/followup"
	"github.com/acme/sales-dialer/internal/service/session"
	"github.com/acme/sales-dialer/pkg/logger"
)

// Dialer is the session surface the handlers drive.
type Dialer interface {
	Start(ctx context.Context, input session.StartInput) (session.RunInfo, error)
	Pause() domain.StatusSnapshot
	Resume() domain.StatusSnapshot
	Skip() domain.StatusSnapshot
	Stop(ctx context.Context) (domain.StatusSnapshot, error)
	Status() session.Snapshot
	Results() []domain.DialTarget
	Attempts(ctx context.Context, targetID int64, limit int, pageToken string) ([]domain.DialAttempt, string, error)
}

// FollowUps is the follow-up surface the handlers drive.
type FollowUps interface {
	Record(ctx context.Context, input followup.RecordInput) (domain.FollowUp, error)
	List(ctx context.Context, customerID int64, limit int) ([]domain.FollowUp, error)
	SetCustomerStatus(ctx context.Context, customerID int64, status string) error
}

// HealthCheck probes one dependency.
type HealthCheck = func(ctx context.Context) error

// Deps groups what the handlers need.
type Deps struct {
	Dialer    Dialer
	FollowUps FollowUps
	Statuses  repository.StatusCache
	Checks    map[string]HealthCheck
	Metrics   http.Handler
	Logger    *logger.Logger
}

// HandlerSet bundles all HTTP handlers.
type HandlerSet struct {
	dialer    Dialer
	followUps FollowUps
	statuses  repository.StatusCache
	checks    map[string]HealthCheck
	metrics   http.Handler
	log       *logger.Logger
}

// NewHandlerSet creates a new handler bundle.
func NewHandlerSet(deps Deps) *HandlerSet {
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &HandlerSet{
		dialer:    deps.Dialer,
		followUps: deps.FollowUps,
		statuses:  deps.Statuses,
		checks:    deps.Checks,
		metrics:   deps.Metrics,
		log:       log.Named("http"),
	}
}

// Register wires all routes onto the fiber app.
func (h *HandlerSet) Register(app *fiber.App) {
	app.Get("/healthz", h.health)
	if h.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(h.metrics))
	}

	api := app.Group("/api")
	v1 := api.Group("/v1")

	d := v1.Group("/dialer")
	d.Post("/start", h.startRun)
	d.Post("/pause", h.pauseRun)
	d.Post("/resume", h.resumeRun)
	d.Post("/stop", h.stopRun)
	d.Post("/skip", h.skipTarget)
	d.Get("/status", h.runStatus)
	d.Get("/results", h.runResults)

	v1.Get("/runs/:id/status", h.cachedRunStatus)

	t := v1.Group("/targets")
	t.Get("/:id/attempts", h.targetAttempts)
	t.Post("/:id/follow-ups", h.createFollowUp)
	t.Get("/:id/follow-ups", h.listFollowUps)
	t.Put("/:id/status", h.updateTargetStatus)
}

// ErrorHandler provides centralized error responses.
func (h *HandlerSet) ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()

	if fiberErr, ok := err.(*fiber.Error); ok {
		code = fiberErr.Code
		message = fiberErr.Message
	}

	if code == fiber.StatusInternalServerError {
		h.log.Error("request failed", zap.Error(err), zap.String("path", ctx.Path()))
	}

	return ctx.Status(code).JSON(fiber.Map{
		"error":    message,
		"trace_id": ctx.GetRespHeader("Trace-Id"),
	})
}

func (h *HandlerSet) health(ctx *fiber.Ctx) error {
	healthCtx, cancel := context.WithTimeout(ctx.Context(), 2*time.Second)
	defer cancel()

	errs := make(map[string]string)
	for name, check := range h.checks {
		if err := check(healthCtx); err != nil {
			errs[name] = err.Error()
		}
	}

	status := fiber.StatusOK
	state := "ok"
	if len(errs) > 0 {
		status = fiber.StatusServiceUnavailable
		state = "degraded"
	}

	return ctx.Status(status).JSON(fiber.Map{"status": state, "errors": errs})
}
