package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/runner"
)

// StatusFor maps an engine error to its HTTP status code.
func StatusFor(err error) int {
	var planErr *domain.PlanError
	var stepErr *domain.StepError
	var resumeErr *domain.ResumeError

	switch {
	case errors.Is(err, domain.ErrEmptyInput),
		errors.Is(err, domain.ErrStepRequired),
		errors.Is(err, runner.ErrInputTooLarge),
		errors.Is(err, runner.ErrInvalidUTF8):
		return http.StatusBadRequest
	case errors.As(err, &planErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &resumeErr):
		if errors.Is(err, domain.ErrSessionNotFound) {
			return http.StatusNotFound
		}
		return http.StatusConflict
	case errors.As(err, &stepErr):
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSessionActive):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
