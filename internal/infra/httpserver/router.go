package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/bryanwahyu/judgeproxy/internal/application/adapters"
	appwebhooks "github.com/bryanwahyu/judgeproxy/internal/application/webhooks"
	"github.com/bryanwahyu/judgeproxy/internal/domain/ai"
	"github.com/bryanwahyu/judgeproxy/internal/domain/analysis"
	"github.com/bryanwahyu/judgeproxy/internal/domain/judges"
	"github.com/bryanwahyu/judgeproxy/internal/domain/webhooks"
	"github.com/bryanwahyu/judgeproxy/internal/logging"
	"github.com/bryanwahyu/judgeproxy/internal/middleware"
)

const maxBodyBytes = 1 << 20

// Deps is everything the router serves. Comments, Limiter and Checkers
// are optional.
type Deps struct {
	Adapters   *adapters.Set
	Judges     judges.Resolver
	Dispatcher adapters.Dispatcher
	Webhooks   *appwebhooks.Service
	Comments   analysis.CommentRepository

	Metrics     *middleware.Metrics
	Limiter     *middleware.RateLimiter
	APIKeys     map[string]string
	CORSOrigins []string
	Checkers    map[string]middleware.HealthChecker

	PublicURL  string
	// WebhookURL is the callback address configured on the workflow platform.
	WebhookURL string
	Log        logging.Logger
}

type Router struct {
	Deps
}

func NewRouter(d Deps) http.Handler {
	r := &Router{Deps: d}
	mux := chi.NewRouter()

	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.Logging(d.Log))
	if d.Metrics != nil {
		mux.Use(d.Metrics.Middleware)
	}
	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Dify-Signature"},
		MaxAge:         300,
	}))
	mux.Use(middleware.APIKeyAuth(d.APIKeys))
	if d.Limiter != nil {
		mux.Use(middleware.RateLimit(d.Limiter))
	}

	mux.Get("/health", middleware.LivenessHandler)
	mux.Get("/health/ready", middleware.HealthHandler(d.Checkers))
	if d.Metrics != nil {
		mux.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	mux.Route("/api", func(rt chi.Router) {
		rt.Post("/dify-proxy", r.wrap(r.handleProxy))
		rt.Get("/dify-proxy", r.wrap(r.handleProxyInfo))

		rt.Post("/webhook/dify", r.wrap(r.handleWebhook))
		rt.Get("/webhook/dify", r.wrap(r.handleWebhookGet))
		rt.Get("/webhook/dify/debug", r.wrap(r.handleWebhookDebug))

		rt.Get("/comments", r.wrap(r.handleLatestComment))

		rt.Post("/{judge}", r.wrap(r.handleSubmit))
		rt.Get("/{judge}", r.wrap(r.handleQuery))
		rt.Put("/{judge}", r.wrap(r.handleUpdate))
		rt.Get("/{judge}/debug", r.wrap(r.handleDebug))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequest is a client error found by a handler before reaching the
// application layer.
type badRequest struct {
	msg     string
	details string
}

func (e *badRequest) Error() string { return e.msg }

func invalid(msg string, err error) error {
	b := &badRequest{msg: msg}
	if err != nil {
		b.details = err.Error()
	}
	return b
}

type failureEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// wrap turns handler errors into the failure envelope. Nothing escapes
// to the transport as a raw error.
func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		status, body := r.classify(err)
		if status >= http.StatusInternalServerError {
			r.Log.Error(req.Context(), "request failed",
				logging.String("path", req.URL.Path), logging.Int("status", status), logging.Err(err))
		}
		writeJSON(w, status, body)
	}
}

func (r *Router) classify(err error) (int, any) {
	var (
		br *badRequest
		fe *analysis.FieldError
		ue *ai.UpstreamError
		te *ai.TransportError
		mb *http.MaxBytesError
	)
	switch {
	case errors.As(err, &mb):
		return http.StatusRequestEntityTooLarge, failureEnvelope{Error: "Request body too large", Details: fmt.Sprintf("limit is %d bytes", mb.Limit)}
	case errors.As(err, &br):
		return http.StatusBadRequest, failureEnvelope{Error: br.msg, Details: br.details}
	case errors.As(err, &fe):
		return http.StatusBadRequest, failureEnvelope{Error: fe.Error()}
	case errors.Is(err, analysis.ErrUnknownJudge):
		return http.StatusBadRequest, failureEnvelope{Error: "Unknown judge", Details: err.Error()}
	case errors.Is(err, analysis.ErrNotFound):
		return http.StatusNotFound, map[string]string{"error": "Data not found"}
	case errors.Is(err, webhooks.ErrInvalidSignature):
		return http.StatusUnauthorized, failureEnvelope{Error: "Invalid signature"}
	case errors.Is(err, webhooks.ErrMalformedEvent):
		return http.StatusBadRequest, failureEnvelope{Error: "Failed to process webhook", Details: err.Error()}
	case errors.As(err, &ue):
		status := ue.Status
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		return status, failureEnvelope{Error: fmt.Sprintf("Upstream error: %d", ue.Status), Details: ue.Body}
	case errors.As(err, &te):
		return http.StatusInternalServerError, failureEnvelope{Error: "Failed to reach analysis service", Details: "upstream unreachable"}
	default:
		return http.StatusInternalServerError, failureEnvelope{Error: "Internal server error"}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeBody reads a JSON object into a generic map.
func decodeBody(w http.ResponseWriter, req *http.Request) (map[string]any, error) {
	var body map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		var mb *http.MaxBytesError
		if errors.As(err, &mb) {
			return nil, err
		}
		return nil, invalid("Invalid JSON payload", err)
	}
	if body == nil {
		return nil, invalid("Invalid JSON payload", errors.New("body must be a JSON object"))
	}
	return body, nil
}

func stringField(body map[string]any, key string) (string, error) {
	v, ok := body[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", invalid(key+" must be a string", nil)
	}
	return middleware.SanitizeString(s), nil
}

// judgeParam accepts both receive-data and receive_data.
func judgeParam(req *http.Request) judges.ID {
	return judges.ID(strings.ReplaceAll(strings.ToLower(chi.URLParam(req, "judge")), "-", "_"))
}

func (r *Router) adapter(req *http.Request) (*adapters.Adapter, error) {
	id := judgeParam(req)
	if err := middleware.ValidateJudgeID(string(id)); err != nil {
		return nil, fmt.Errorf("%w: %s", analysis.ErrUnknownJudge, err)
	}
	a, ok := r.Adapters.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", analysis.ErrUnknownJudge, id)
	}
	return a, nil
}
