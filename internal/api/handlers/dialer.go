package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/acme/sales-dialer/internal/domain"
	"github.com/acme/sales-dialer/internal/service/session"
)

type startRunRequest struct {
	OwnerID    int64  `json:"owner_id"`
	Strategy   string `json:"strategy"`
	IntervalMs *int64 `json:"interval_ms"`
	Limit      int    `json:"limit"`
}

type runResponse struct {
	RunID      uuid.UUID `json:"run_id"`
	OwnerID    int64     `json:"owner_id"`
	Total      int       `json:"total"`
	Strategy   string    `json:"strategy"`
	IntervalMs int64     `json:"interval_ms"`
}

type statusResponse struct {
	RunID    uuid.UUID             `json:"run_id"`
	State    string                `json:"state"`
	Progress string                `json:"progress"`
	Status   domain.StatusSnapshot `json:"status"`
	Current  *targetResponse       `json:"current,omitempty"`
}

type targetResponse struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Phone        string     `json:"phone"`
	Level        string     `json:"level"`
	LevelLabel   string     `json:"level_label"`
	Priority     int        `json:"priority"`
	LastContact  *time.Time `json:"last_contact,omitempty"`
	ContactCount int        `json:"contact_count"`
}

type attemptResponse struct {
	ID         uuid.UUID `json:"id"`
	RunID      uuid.UUID `json:"run_id"`
	Phone      string    `json:"phone"`
	Succeeded  bool      `json:"succeeded"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (h *HandlerSet) startRun(ctx *fiber.Ctx) error {
	var req startRunRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	input := session.StartInput{
		OwnerID:  req.OwnerID,
		Strategy: req.Strategy,
		Limit:    req.Limit,
	}
	if req.IntervalMs != nil {
		if *req.IntervalMs < 0 {
			return fiber.NewError(http.StatusBadRequest, "interval_ms must not be negative")
		}
		interval := time.Duration(*req.IntervalMs) * time.Millisecond
		input.Interval = &interval
	}

	info, err := h.dialer.Start(ctx.UserContext(), input)
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusAccepted).JSON(runResponse{
		RunID:      info.RunID,
		OwnerID:    info.OwnerID,
		Total:      info.Total,
		Strategy:   string(info.Strategy),
		IntervalMs: info.Interval.Milliseconds(),
	})
}

func (h *HandlerSet) pauseRun(ctx *fiber.Ctx) error {
	h.dialer.Pause()
	return ctx.Status(http.StatusOK).JSON(h.statusBody())
}

func (h *HandlerSet) resumeRun(ctx *fiber.Ctx) error {
	h.dialer.Resume()
	return ctx.Status(http.StatusOK).JSON(h.statusBody())
}

func (h *HandlerSet) skipTarget(ctx *fiber.Ctx) error {
	h.dialer.Skip()
	return ctx.Status(http.StatusOK).JSON(h.statusBody())
}

func (h *HandlerSet) stopRun(ctx *fiber.Ctx) error {
	if _, err := h.dialer.Stop(ctx.UserContext()); err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(h.statusBody())
}

func (h *HandlerSet) runStatus(ctx *fiber.Ctx) error {
	return ctx.Status(http.StatusOK).JSON(h.statusBody())
}

func (h *HandlerSet) runResults(ctx *fiber.Ctx) error {
	results := h.dialer.Results()
	out := make([]targetResponse, 0, len(results))
	for _, t := range results {
		out = append(out, toTargetResponse(t))
	}
	return ctx.Status(http.StatusOK).JSON(fiber.Map{
		"run_id":  h.dialer.Status().RunID,
		"results": out,
	})
}

func (h *HandlerSet) cachedRunStatus(ctx *fiber.Ctx) error {
	if h.statuses == nil {
		return fiber.NewError(http.StatusServiceUnavailable, "status cache not configured")
	}
	runID, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid run id")
	}

	status, err := h.statuses.GetStatus(ctx.UserContext(), runID)
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(statusResponse{
		RunID:    runID,
		State:    status.State(),
		Progress: status.Progress(),
		Status:   status,
	})
}

func (h *HandlerSet) targetAttempts(ctx *fiber.Ctx) error {
	targetID, err := strconv.ParseInt(ctx.Params("id"), 10, 64)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid target id")
	}
	limit := ctx.QueryInt("limit", 50)

	attempts, next, err := h.dialer.Attempts(ctx.UserContext(), targetID, limit, ctx.Query("page_token"))
	if err != nil {
		return translateError(err)
	}

	out := make([]attemptResponse, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, attemptResponse{
			ID:         a.ID,
			RunID:      a.RunID,
			Phone:      a.Phone,
			Succeeded:  a.Succeeded,
			Error:      a.Error,
			OccurredAt: a.OccurredAt,
		})
	}
	return ctx.Status(http.StatusOK).JSON(fiber.Map{
		"attempts":        out,
		"next_page_token": next,
	})
}

func (h *HandlerSet) statusBody() statusResponse {
	snap := h.dialer.Status()
	resp := statusResponse{
		RunID:    snap.RunID,
		State:    snap.Status.State(),
		Progress: snap.Status.Progress(),
		Status:   snap.Status,
	}
	if snap.Current != nil {
		current := toTargetResponse(*snap.Current)
		resp.Current = &current
	}
	return resp
}

func toTargetResponse(t domain.DialTarget) targetResponse {
	resp := targetResponse{
		ID:           t.ID,
		Name:         t.Name,
		Phone:        t.Phone,
		Level:        string(t.Level),
		LevelLabel:   t.Level.Label(),
		Priority:     t.Priority(),
		ContactCount: t.ContactCount,
	}
	if at := t.LastContactTime(); !at.IsZero() {
		resp.LastContact = &at
	}
	return resp
}
