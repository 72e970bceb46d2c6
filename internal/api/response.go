package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/speakquest/internal/conversation"
	"github.com/abhisek/speakquest/internal/gateway"
	"github.com/abhisek/speakquest/internal/llm"
	"github.com/abhisek/speakquest/internal/practice"
	"github.com/abhisek/speakquest/internal/progression"
	"github.com/abhisek/speakquest/internal/store"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func respondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{Error: APIError{Message: msg, Code: code}})
}

// fail maps a domain error to its HTTP status and writes the envelope.
// Internal failures are logged by RequestLogger and reported generically.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)

	var invalid *llm.ErrInvalidResponse
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, conversation.ErrNotOwner):
		respondError(c, http.StatusForbidden, "forbidden", err)
	case errors.Is(err, conversation.ErrNotActive):
		respondError(c, http.StatusConflict, "invalid_state", err)
	case errors.Is(err, conversation.ErrEmptyMessage), errors.Is(err, progression.ErrInvalidInput):
		respondError(c, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, gateway.ErrChatFailed),
		errors.Is(err, gateway.ErrGenerationFailed),
		errors.Is(err, llm.ErrNoJSON),
		errors.Is(err, practice.ErrIncompleteContent),
		errors.As(err, &invalid):
		respondError(c, http.StatusBadGateway, "upstream_failed", err)
	default:
		respondError(c, http.StatusInternalServerError, "internal", errors.New("internal server error"))
	}
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	respondError(c, http.StatusBadRequest, "bad_request", err)
}
