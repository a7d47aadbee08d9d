package webhook

import (
	"crypto/subtle"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"idmanager/internal/issuance/metrics"
)

// MaxBodyBytes caps the size of a callback body.
const MaxBodyBytes = 1 << 20

// Handler receives agent callbacks on /webhooks/{api_key}/topic/{topic}/.
// It always answers 200 with an empty body; outcomes only show in logs and
// metrics.
type Handler struct {
	dispatcher *Dispatcher
	apiKey     string
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func NewHandler(dispatcher *Dispatcher, apiKey string, logger *slog.Logger, m *metrics.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{dispatcher: dispatcher, apiKey: apiKey, logger: logger, metrics: m}
}

// Register mounts the callback route for every method, with and without the
// trailing slash.
func (h *Handler) Register(r chi.Router) {
	r.HandleFunc("/webhooks/{api_key}/topic/{topic}", h.HandleWebhook)
	r.HandleFunc("/webhooks/{api_key}/topic/{topic}/", h.HandleWebhook)
}

func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	topic := chi.URLParam(r, "topic")
	state := ""

	defer w.WriteHeader(http.StatusOK)
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.ErrorContext(ctx, "webhook: panic while processing", "topic", topic, "panic", rec)
			h.count(topic, state, metrics.OutcomeFailed)
		}
	}()

	if !h.authorized(chi.URLParam(r, "api_key")) {
		h.logger.InfoContext(ctx, "webhook: unauthorized request - invalid api key supplied", "topic", topic)
		h.count(topic, state, metrics.OutcomeRejected)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		h.logger.ErrorContext(ctx, "webhook: failed to read body", "topic", topic, "error", err)
		h.count(topic, state, metrics.OutcomeRejected)
		return
	}
	ev, err := ParseEvent(body)
	if err != nil {
		h.logger.ErrorContext(ctx, "webhook: malformed body", "topic", topic, "error", err)
		h.count(topic, state, metrics.OutcomeRejected)
		return
	}
	state = ev.State

	h.logger.InfoContext(ctx, "webhook: received",
		"topic", topic,
		"state", ev.State,
		"connection_id", ev.ConnectionID,
	)
	outcome, err := h.dispatcher.Dispatch(ctx, topic, ev)
	if err != nil {
		h.logger.ErrorContext(ctx, "webhook: processing failed",
			"topic", topic,
			"state", ev.State,
			"connection_id", ev.ConnectionID,
			"error", err,
		)
	}
	h.count(topic, state, outcome)
}

// authorized compares in constant time. An unset key rejects everything.
func (h *Handler) authorized(supplied string) bool {
	if h.apiKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(h.apiKey)) == 1
}

// count labels unknown topics and states as "other" to bound cardinality.
func (h *Handler) count(topic, state, outcome string) {
	if h.metrics == nil {
		return
	}
	if topic != TopicConnections && topic != TopicIssueCredential {
		topic = "other"
	}
	if state != StateResponse && state != StateCredentialIssued {
		state = "other"
	}
	h.metrics.IncrementWebhook(topic, state, outcome)
}
