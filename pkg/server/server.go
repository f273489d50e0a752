package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/ca-risken/common/pkg/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ca-risken/secretops/pkg/detector"
	"github.com/ca-risken/secretops/pkg/event"
)

const (
	// GitHub caps webhook payloads at 25MB.
	maxBodyBytes      = 25 << 20
	readHeaderTimeout = 10 * time.Second
	requestBudget     = 5 * time.Minute
)

type EventHandler interface {
	Handle(ctx context.Context, req *event.Request) *detector.Response
}

// NewRouter serves the webhook endpoint. Every webhook request is answered with 200
// so that senders never retry; the outcome is carried by the status token.
func NewRouter(h EventHandler, l logging.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})
	r.Post("/webhook", webhookHandler(h, l))
	return r
}

func NewServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func webhookHandler(h EventHandler, l logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Remediation and alerting must outlive a sender that hangs up.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), requestBudget)
		defer cancel()
		defer func() {
			if rec := recover(); rec != nil {
				l.Errorf(ctx, "Recovered from panic in webhook handler: panic=%v, stack=%s", rec, string(debug.Stack()))
				writeJSON(w, &detector.Response{Status: detector.StatusError, Message: "internal error"})
			}
		}()

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			l.Warnf(ctx, "Failed to read webhook body: request_id=%s, err=%+v", middleware.GetReqID(ctx), err)
			writeJSON(w, &detector.Response{Status: detector.StatusInvalidPayload, Message: "failed to read body"})
			return
		}
		headers := make(map[string]string, len(r.Header))
		for k := range r.Header {
			headers[k] = r.Header.Get(k)
		}
		resp := h.Handle(ctx, &event.Request{Headers: headers, Body: string(body)})
		writeJSON(w, resp)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
