// Package errreport sends failed requests to Sentry.
//
// Levels follow the HTTP status: 5xx is an error, 401/403/404/422 are warnings,
// other client errors (bad input, duplicates, rate limits) are not reported.
package errreport

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"

	"github.com/omnibus-tickets/omnibus-api/internal/platform/config"
)

// NewHub returns a hub bound to a Sentry client, or a hub without a client
// (every capture is dropped) when cfg has no DSN.
func NewHub(cfg config.SentryConfig, app string) (*sentry.Hub, error) {
	return newHub(cfg, app, nil)
}

func newHub(cfg config.SentryConfig, app string, transport sentry.Transport) (*sentry.Hub, error) {
	if !cfg.Enabled() {
		return sentry.NewHub(nil, sentry.NewScope()), nil
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       cfg.SampleRate,
		AttachStacktrace: true,
		Transport:        transport,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			if event.Tags == nil {
				event.Tags = map[string]string{}
			}
			event.Tags["application"] = app
			return event
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sentry client: %w", err)
	}
	return sentry.NewHub(client, sentry.NewScope()), nil
}

// Level maps a response status to a Sentry level. ok is false for statuses
// that are not reported.
func Level(status int) (level sentry.Level, ok bool) {
	switch {
	case status >= 500:
		return sentry.LevelError, true
	case status == http.StatusUnauthorized, status == http.StatusForbidden,
		status == http.StatusNotFound, status == http.StatusUnprocessableEntity:
		return sentry.LevelWarning, true
	default:
		return "", false
	}
}

// Capture reports err for a request that failed with status and code. The hub
// is the per-request hub installed by Middleware; nil drops the report.
func Capture(hub *sentry.Hub, r *http.Request, status int, code string, err error) {
	level, ok := Level(status)
	if hub == nil || !ok || err == nil {
		return
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(level)
		scope.SetTag("http.status", strconv.Itoa(status))
		scope.SetTag("error.code", code)
		scope.SetContext("request", sentry.Context{
			"method": r.Method,
			"path":   r.URL.Path,
		})
		hub.CaptureException(err)
	})
}

// Middleware gives every request its own clone of hub with a request
// breadcrumb, then hands off to sentryhttp, which reports panics and re-panics.
func Middleware(hub *sentry.Hub) func(http.Handler) http.Handler {
	sh := sentryhttp.New(sentryhttp.Options{Repanic: true})
	return func(next http.Handler) http.Handler {
		inner := sh.Handle(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rh := hub.Clone()
			rh.AddBreadcrumb(&sentry.Breadcrumb{
				Type:     "http",
				Category: "http.request",
				Message:  r.Method + " " + r.URL.Path,
				Level:    sentry.LevelInfo,
			}, nil)
			inner.ServeHTTP(w, r.WithContext(sentry.SetHubOnContext(r.Context(), rh)))
		})
	}
}
