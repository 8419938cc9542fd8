package server

import (
	"errors"
	"net/http"

	"trading-journal/internal/journal"
	"trading-journal/internal/remote"
	"trading-journal/internal/tracker"

	"github.com/gin-gonic/gin"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.AbortWithStatusJSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// fail reports a tracker error with a status matching its kind.
func fail(c *gin.Context, err error) {
	var (
		verrs journal.ValidationErrors
		rerr  *remote.Error
		meta  map[string]any
	)
	status := http.StatusInternalServerError

	switch {
	case errors.As(err, &verrs):
		status = http.StatusBadRequest
		meta = map[string]any{"fields": verrs}
	case errors.Is(err, tracker.ErrNotSignedIn), errors.Is(err, remote.ErrNoSession):
		status = http.StatusUnauthorized
	case errors.Is(err, tracker.ErrUserNotFound):
		status = http.StatusUnauthorized
	case errors.Is(err, tracker.ErrNoValidRows):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &rerr):
		status = http.StatusBadGateway
		if rerr.Status >= 400 && rerr.Status < 500 {
			status = rerr.Status
		}
	}
	Error(c, status, tracker.Message(err), meta)
}
