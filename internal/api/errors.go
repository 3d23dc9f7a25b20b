package api

import (
	"errors"
	"net/http"

	"audioscribe/internal/engine"
	"audioscribe/internal/model"
	"audioscribe/internal/persist"
	"audioscribe/internal/remote"
	"audioscribe/internal/repository"
	"audioscribe/internal/storage"
	"audioscribe/internal/utils"

	"github.com/gin-gonic/gin"
)

// statusFor maps domain errors to an HTTP status and a stable reason.
func statusFor(err error) (int, string) {
	var storageErr *persist.StorageError
	var remoteErr *remote.RemoteFailure
	switch {
	case errors.Is(err, engine.ErrCredentialMissing):
		return http.StatusUnauthorized, "credential_missing"
	case errors.Is(err, engine.ErrNeedsDecision):
		return http.StatusConflict, "needs_decision"
	case errors.Is(err, engine.ErrAlreadyRunning):
		return http.StatusConflict, "already_running"
	case errors.Is(err, engine.ErrAlreadyCompleted):
		return http.StatusConflict, "already_completed"
	case errors.Is(err, engine.ErrNotProcessing), errors.Is(err, model.ErrInvalidTransition):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, engine.ErrSourceUnavailable):
		return http.StatusUnprocessableEntity, "source_unavailable"
	case errors.Is(err, engine.ErrInvalidStage):
		return http.StatusBadRequest, "invalid_stage"
	case errors.Is(err, repository.ErrPolicyBlocked):
		return http.StatusForbidden, "policy_blocked"
	case errors.Is(err, engine.ErrItemNotFound),
		errors.Is(err, storage.ErrItemNotFound),
		errors.Is(err, repository.ErrNotFound),
		errors.Is(err, model.ErrVersionNotFound):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &storageErr):
		return http.StatusBadGateway, "storage_failure"
	case errors.As(err, &remoteErr):
		return http.StatusBadGateway, "remote_failure"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	code, reason := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
	} else {
		s.logger.Debug("request rejected", "path", c.FullPath(), "reason", reason, "error", err)
	}
	utils.ErrorWithCode(c, code, reason, err.Error())
}
