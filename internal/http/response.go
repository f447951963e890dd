package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"

	"tally/internal/core"
	"tally/internal/log"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Path      string    `json:"path"`
	Details   []string  `json:"details"`
}

const internalErrorMessage = "an unexpected error occurred"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a service error to its HTTP status. Anything that is not a
// domain error is a 500.
func statusFor(err error) int {
	switch core.KindOf(err) {
	case core.KindNotFound, core.KindBudgetNotFound:
		return http.StatusNotFound
	case core.KindConflict, core.KindBudgetExceeded:
		return http.StatusConflict
	case core.KindInvalidInput, core.KindInvalidRange:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError renders err as an ErrorResponse. Unexpected faults are logged,
// reported to Sentry and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		ctx := r.Context()
		if errors.Is(err, context.Canceled) {
			log.FromContext(ctx).InfoContext(ctx, "Request cancelled", log.FieldPath, r.URL.Path)
		} else {
			log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Request failed", err,
				log.ComponentHTTP, r.Method+" "+r.URL.Path, log.NewFields().WithErrorType(log.ErrorTypeInternal))
			captureException(ctx, err)
		}
		writeErrorStatus(w, r, status, internalErrorMessage, nil)
		return
	}

	var details []string
	for _, f := range core.FieldsOf(err) {
		details = append(details, f.String())
	}
	var de *core.Error
	msg := err.Error()
	if errors.As(err, &de) && de.Message != "" {
		msg = de.Message
	}
	writeErrorStatus(w, r, status, msg, details)
}

func writeErrorStatus(w http.ResponseWriter, r *http.Request, status int, msg string, details []string) {
	if details == nil {
		details = []string{}
	}
	writeJSON(w, status, ErrorResponse{
		Timestamp: time.Now().UTC(),
		Status:    status,
		Error:     http.StatusText(status),
		Message:   msg,
		Path:      r.URL.Path,
		Details:   details,
	})
}

func captureException(ctx context.Context, err error) {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}

// withSentry binds a Sentry hub to each request and reports panics before
// passing them on to recoverer.
func withSentry(next http.Handler) http.Handler {
	return sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle(next)
}

// recoverer turns a handler panic into a 500 error body.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			ctx := r.Context()
			log.FromContext(ctx).ErrorContext(ctx, "Handler panic recovered",
				log.FieldError, fmt.Sprint(rec),
				log.FieldErrorType, log.ErrorTypeInternal,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				"stack", string(debug.Stack()))
			writeErrorStatus(w, r, http.StatusInternalServerError, internalErrorMessage, nil)
		}()
		next.ServeHTTP(w, r)
	})
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
