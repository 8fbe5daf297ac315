package handlers

import (
	"errors"
	"net/http"

	"github.com/dimitrije/raidroom-api/internal/services"
	"github.com/dimitrije/raidroom-api/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/sirupsen/logrus"
)

const (
	CodeCapacityExceeded = "capacity_exceeded"
	CodeAlreadyMember    = "already_member"
	CodeAlreadyReviewed  = "already_reviewed"
	CodeInvalidState     = "invalid_state"
	CodeNotReady         = "not_ready"
	CodeNotFound         = "not_found"
	CodePermissionDenied = "permission_denied"
	CodeInvalidInput     = "invalid_input"
	CodeUnavailable      = "unavailable"
)

func respond(c *drift.Context, status int, code, message string) {
	_ = c.JSON(status, dto.ErrorResponse{Code: code, Message: message})
}

// respondError maps a service error onto the wire taxonomy. Anything that is
// not a domain error is reported as unavailable so clients retry on their
// next poll.
func respondError(c *drift.Context, log logrus.FieldLogger, err error) {
	switch {
	case errors.Is(err, services.ErrRoomFull):
		respond(c, http.StatusConflict, CodeCapacityExceeded, err.Error())
	case errors.Is(err, services.ErrAlreadyMember):
		respond(c, http.StatusConflict, CodeAlreadyMember, err.Error())
	case errors.Is(err, services.ErrAlreadyReviewed):
		respond(c, http.StatusConflict, CodeAlreadyReviewed, err.Error())
	case errors.Is(err, services.ErrInvalidState):
		respond(c, http.StatusConflict, CodeInvalidState, err.Error())
	case errors.Is(err, services.ErrNotReady):
		respond(c, http.StatusConflict, CodeNotReady, err.Error())
	case errors.Is(err, services.ErrRoomNotFound), errors.Is(err, services.ErrMembershipNotFound):
		respond(c, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, services.ErrPermissionDenied):
		respond(c, http.StatusForbidden, CodePermissionDenied, err.Error())
	case errors.Is(err, services.ErrInvalidInput):
		respond(c, http.StatusBadRequest, CodeInvalidInput, err.Error())
	default:
		log.WithError(err).WithField("path", c.Request.URL.Path).Error("room operation failed")
		respond(c, http.StatusServiceUnavailable, CodeUnavailable, "service temporarily unavailable, retry on next poll")
	}
}
