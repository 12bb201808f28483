package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/giftvouchers-backend/api/responses"
	"github.com/angelmondragon/giftvouchers-backend/internal/lookupguard"
	pkgerrors "github.com/angelmondragon/giftvouchers-backend/pkg/errors"
	"github.com/angelmondragon/giftvouchers-backend/pkg/logger"
)

const maxPeekBody = 64 << 10

type lookupGuard interface {
	Allow(ctx context.Context, source, number string) (lookupguard.Decision, error)
}

// NumberExtractor pulls the voucher number a request is asking about.
type NumberExtractor func(r *http.Request) string

// NumberFromURLParam reads a chi route parameter.
func NumberFromURLParam(name string) NumberExtractor {
	return func(r *http.Request) string {
		return strings.TrimSpace(chi.URLParam(r, name))
	}
}

// NumberFromQuery reads the first non-empty query parameter of the given names.
func NumberFromQuery(names ...string) NumberExtractor {
	return func(r *http.Request) string {
		q := r.URL.Query()
		for _, name := range names {
			if v := strings.TrimSpace(q.Get(name)); v != "" {
				return v
			}
		}
		return ""
	}
}

// NumberFromJSONBody peeks at a top-level string field and restores the body.
func NumberFromJSONBody(field string) NumberExtractor {
	return func(r *http.Request) string {
		if r.Body == nil {
			return ""
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBody))
		if err != nil {
			return ""
		}
		rest := r.Body
		r.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(body), rest), rest}

		var payload map[string]json.RawMessage
		if err := json.Unmarshal(body, &payload); err != nil {
			return ""
		}
		raw, ok := payload[field]
		if !ok {
			return ""
		}
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			return strings.Trim(string(raw), `" `)
		}
		return strings.TrimSpace(value)
	}
}

// LookupGuard throttles clients that try many distinct voucher numbers.
// Requests without a number pass through so the handler can reject them.
// A failing guard store lets the request through.
func LookupGuard(guard lookupGuard, extract NumberExtractor, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if guard == nil || extract == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			number := extract(r)
			if number == "" {
				next.ServeHTTP(w, r)
				return
			}

			source := clientIP(r)
			decision, err := guard.Allow(ctx, source, number)
			if err != nil {
				if logg != nil {
					logg.Error(logg.WithField(ctx, "source", source), "lookup_guard.store_failed", err)
				}
				next.ServeHTTP(w, r)
				return
			}
			if !decision.Allowed {
				seconds := decision.RetryAfterSeconds()
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{
						"source":              source,
						"retry_after_seconds": seconds,
					}), "lookup_guard.blocked")
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many lookups, try again later").
					WithDetails(map[string]any{"retry_after_seconds": seconds}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterHeader(d time.Duration) string {
	seconds := int((d + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}
