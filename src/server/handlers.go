package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"gerrit-verifier/src/contracts"
	"gerrit-verifier/src/review"
	"gerrit-verifier/src/store"
)

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func toErrorResponse(code, message string) errorResponse {
	return errorResponse{Error: errorBody{Code: code, Message: message}}
}

type acceptedResponse struct {
	EventID       string `json:"event_id"`
	PlanResultKey string `json:"plan_result_key"`
}

type eligibilityResponse struct {
	PlanKey  string `json:"plan_key"`
	Eligible bool   `json:"eligible"`
}

type changeResponse struct {
	PlanResultKey string        `json:"plan_result_key"`
	Found         bool          `json:"found"`
	Change        review.Change `json:"change"`
}

// PostBuild accepts a completed build and queues it for verification.
func (s *Server) PostBuild(c echo.Context) error {
	var event contracts.BuildCompleted
	if err := c.Bind(&event); err != nil {
		return c.JSON(http.StatusBadRequest, toErrorResponse("INVALID_REQUEST", err.Error()))
	}
	if event.PlanKey == "" || event.PlanResultKey == "" {
		return c.JSON(http.StatusBadRequest, toErrorResponse("INVALID_REQUEST", "plan_key and plan_result_key are required"))
	}

	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, toErrorResponse("INTERNAL_ERROR", err.Error()))
	}

	ctx := c.Request().Context()
	if err := s.broker.Publish(ctx, contracts.TopicBuildsCompleted, event.PlanResultKey, data); err != nil {
		s.logger.WithError(err).WithField("plan_result_key", event.PlanResultKey).Error("Failed to publish build")
		return c.JSON(http.StatusServiceUnavailable, toErrorResponse("PUBLISH_FAILED", err.Error()))
	}

	return c.JSON(http.StatusAccepted, acceptedResponse{EventID: event.EventID, PlanResultKey: event.PlanResultKey})
}

// GetPlanEligible reports whether a plan's results pages show Gerrit changes.
func (s *Server) GetPlanEligible(c echo.Context) error {
	planKey := c.Param("planKey")
	eligible := s.eligibility.IsEligible(c.Request().Context(), planKey)
	return c.JSON(http.StatusOK, eligibilityResponse{PlanKey: planKey, Eligible: eligible})
}

// GetResultChange returns the Gerrit change a build result was built from.
func (s *Server) GetResultChange(c echo.Context) error {
	key := c.Param("planResultKey")
	ctx := c.Request().Context()

	build, err := s.store.GetBuild(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, toErrorResponse("NOT_FOUND", "unknown build result "+key))
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, toErrorResponse("INTERNAL_ERROR", err.Error()))
	}

	change := s.resolver.ResolveForDisplay(ctx, build.Summary())
	return c.JSON(http.StatusOK, changeResponse{
		PlanResultKey: key,
		Found:         !change.IsEmpty(),
		Change:        change,
	})
}

// GetResultVerification returns the stored verification report for a build result.
func (s *Server) GetResultVerification(c echo.Context) error {
	key := c.Param("planResultKey")

	report, err := s.store.GetReport(c.Request().Context(), key)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, toErrorResponse("NOT_FOUND", "no verification report for "+key))
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, toErrorResponse("INTERNAL_ERROR", err.Error()))
	}

	return c.JSON(http.StatusOK, report)
}
