package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/bissquit/leavedesk/internal/pkg/ctxlog"
	"github.com/bissquit/leavedesk/internal/platform"
)

// MsgServiceUnavailable is the 503 detail. Driver errors can carry connection
// details, so they are only logged.
const MsgServiceUnavailable = "Service unavailable"

// ErrorMapping defines how a domain error maps to an HTTP response.
type ErrorMapping struct {
	Error   error
	Status  int
	Message string // if empty, uses err.Error()
}

// HandleError maps a domain error to an HTTP response using provided mappings.
// An unreachable or misconfigured platform is logged and reported as 503 with
// a fixed message. Anything else is logged and returned as 500 with the
// underlying message.
func HandleError(ctx context.Context, w http.ResponseWriter, err error, mappings []ErrorMapping) {
	for _, m := range mappings {
		if errors.Is(err, m.Error) {
			msg := m.Message
			if msg == "" {
				msg = err.Error()
			}
			Error(w, m.Status, msg)
			return
		}
	}

	logger := ctxlog.FromContext(ctx)
	if errors.Is(err, platform.ErrUnavailable) {
		logger.Error("platform unavailable", "error", err)
		Error(w, http.StatusServiceUnavailable, MsgServiceUnavailable)
		return
	}

	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, err.Error())
}
