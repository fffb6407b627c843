package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/acme/sales-dialer/internal/domain"
	"github.com/acme/sales-dialer/internal/service/followup"
)

type createFollowUpRequest struct {
	FollowerID          int64      `json:"follower_id"`
	Content             string     `json:"content"`
	Result              string     `json:"result"`
	NextFollowAt        *time.Time `json:"next_follow_at"`
	CallDurationSeconds int64      `json:"call_duration_seconds"`
}

type followUpResponse struct {
	ID                  int64      `json:"id"`
	CustomerID          int64      `json:"customer_id"`
	FollowerID          int64      `json:"follower_id"`
	Content             string     `json:"content"`
	Result              string     `json:"result"`
	ResultLabel         string     `json:"result_label"`
	FollowedAt          time.Time  `json:"followed_at"`
	NextFollowAt        *time.Time `json:"next_follow_at,omitempty"`
	CallDurationSeconds int64      `json:"call_duration_seconds"`
	CallDuration        string     `json:"call_duration"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *HandlerSet) createFollowUp(ctx *fiber.Ctx) error {
	if h.followUps == nil {
		return fiber.NewError(http.StatusServiceUnavailable, "follow-ups not configured")
	}
	customerID, err := strconv.ParseInt(ctx.Params("id"), 10, 64)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid target id")
	}

	var req createFollowUpRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	f, err := h.followUps.Record(ctx.UserContext(), followup.RecordInput{
		CustomerID:   customerID,
		FollowerID:   req.FollowerID,
		Content:      req.Content,
		Result:       req.Result,
		NextFollowAt: req.NextFollowAt,
		CallDuration: time.Duration(req.CallDurationSeconds) * time.Second,
	})
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusCreated).JSON(toFollowUpResponse(f))
}

func (h *HandlerSet) listFollowUps(ctx *fiber.Ctx) error {
	if h.followUps == nil {
		return fiber.NewError(http.StatusServiceUnavailable, "follow-ups not configured")
	}
	customerID, err := strconv.ParseInt(ctx.Params("id"), 10, 64)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid target id")
	}

	items, err := h.followUps.List(ctx.UserContext(), customerID, ctx.QueryInt("limit", 50))
	if err != nil {
		return translateError(err)
	}

	out := make([]followUpResponse, 0, len(items))
	for _, f := range items {
		out = append(out, toFollowUpResponse(f))
	}
	return ctx.Status(http.StatusOK).JSON(fiber.Map{"follow_ups": out})
}

func (h *HandlerSet) updateTargetStatus(ctx *fiber.Ctx) error {
	if h.followUps == nil {
		return fiber.NewError(http.StatusServiceUnavailable, "follow-ups not configured")
	}
	customerID, err := strconv.ParseInt(ctx.Params("id"), 10, 64)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid target id")
	}

	var req updateStatusRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	if err := h.followUps.SetCustomerStatus(ctx.UserContext(), customerID, req.Status); err != nil {
		return translateError(err)
	}

	status := domain.CustomerStatus(req.Status)
	return ctx.Status(http.StatusOK).JSON(fiber.Map{
		"id":       customerID,
		"status":   status,
		"dialable": status.Dialable(),
	})
}

func toFollowUpResponse(f domain.FollowUp) followUpResponse {
	return followUpResponse{
		ID:                  f.ID,
		CustomerID:          f.CustomerID,
		FollowerID:          f.FollowerID,
		Content:             f.Content,
		Result:              string(f.Result),
		ResultLabel:         f.Result.Label(),
		FollowedAt:          f.FollowedAt,
		NextFollowAt:        f.NextFollowAt,
		CallDurationSeconds: int64(f.CallDuration / time.Second),
		CallDuration:        f.CallDurationText(),
	}
}
