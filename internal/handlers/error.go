package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/reop/addressfinder/internal/agent"
	"github.com/reop/addressfinder/internal/finder"
	"github.com/reop/addressfinder/internal/logger"
	"github.com/reop/addressfinder/internal/places"
	"github.com/reop/addressfinder/internal/session"
	"github.com/reop/addressfinder/internal/telemetry"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error       string             `json:"error"`
	Details     string             `json:"details,omitempty"`
	RequestedID string             `json:"requestedId,omitempty"`
	Available   []places.Candidate `json:"available,omitempty"`
}

// ErrorHandler is the custom error handler for Fiber. Domain sentinel
// errors are mapped to status codes here so handlers can just return them.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	resp := ErrorResponse{Error: "Internal Server Error"}

	var fe *fiber.Error
	var nf *finder.NotFoundError
	var verr *finder.ValidationError

	switch {
	case errors.As(err, &fe):
		code = fe.Code
		resp.Error = fe.Message
	case errors.As(err, &nf):
		code = fiber.StatusNotFound
		resp.Error = "Candidate not found in current results"
		resp.RequestedID = nf.RequestedID
		resp.Available = nf.Available
	case errors.As(err, &verr):
		code = fiber.StatusUnprocessableEntity
		resp.Error = verr.Message
		if verr.Err != nil {
			resp.Details = verr.Err.Error()
		}
	case errors.Is(err, session.ErrNotFound):
		code = fiber.StatusNotFound
		resp.Error = "Session not found"
	case errors.Is(err, agent.ErrUnknownTool):
		code = fiber.StatusNotFound
		resp.Error = err.Error()
	case errors.Is(err, finder.ErrEmptyQuery), errors.Is(err, session.ErrHistoryIndex):
		code = fiber.StatusBadRequest
		resp.Error = err.Error()
	case errors.Is(err, finder.ErrStaleAttempt), errors.Is(err, finder.ErrNoPendingRural), errors.Is(err, finder.ErrNoSelection):
		code = fiber.StatusConflict
		resp.Error = err.Error()
	case errors.Is(err, finder.ErrSearchFailed):
		code = fiber.StatusBadGateway
		resp.Error = "Search failed. Please try again."
		resp.Details = err.Error()
	}

	if span := telemetry.SpanFromContext(c); span != nil {
		span.SetAttributes(attribute.String("error.message", resp.Error))
	}
	if code >= fiber.StatusInternalServerError {
		logger.GetLogger("http").Errorf("%s %s 실패: %v", c.Method(), c.Path(), err)
	}
	return c.Status(code).JSON(resp)
}
