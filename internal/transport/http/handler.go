package http

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"survey-quiz-service/internal/app"
	"survey-quiz-service/internal/domain"
	"survey-quiz-service/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// Options configures the HTTP boundary.
type Options struct {
	CookieSecure bool
	// CookieTTL bounds the session cookie lifetime; zero keeps it for the browser session.
	CookieTTL time.Duration
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	// NewSessionKey overrides the uuid generator in tests.
	NewSessionKey func() string
}

// Handler serves the survey pages, the tab event API and the event stream.
type Handler struct {
	service      *app.QuizService
	views        *template.Template
	log          *zap.Logger
	metrics      *metrics.Metrics
	cookieSecure bool
	cookieTTL    time.Duration
	newKey       func() string
	ws           *WSHandler
}

func NewHandler(service *app.QuizService, opts Options) (*Handler, error) {
	views, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	h := &Handler{
		service:      service,
		views:        views,
		log:          opts.Logger,
		metrics:      opts.Metrics,
		cookieSecure: opts.CookieSecure,
		cookieTTL:    opts.CookieTTL,
		newKey:       opts.NewSessionKey,
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	if h.newKey == nil {
		h.newKey = newSessionKey
	}
	h.ws = NewWSHandler(service, h.log)
	return h, nil
}

// Routes builds the router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, h.instrument, h.recoverer)

	r.Get("/", h.entry)
	r.Post("/start", h.start)
	r.Get("/question", h.question)
	r.Post("/question", h.submit)
	r.Get("/result", h.result)
	r.Post("/abandon", h.abandon)
	r.Post("/api/tab-events", h.tabEvent)
	r.Get("/ws/events", h.ws.ServeWS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	return r
}

func (h *Handler) entry(w http.ResponseWriter, r *http.Request) {
	if key := sessionKey(r); key != "" {
		session, err := h.service.Lookup(r.Context(), key)
		if err == nil {
			if session.State() == app.StateCompleted {
				redirect(w, r, "/result")
			} else {
				redirect(w, r, "/question")
			}
			return
		}
	}
	h.render(w, http.StatusOK, "entry", domain.EntryView{})
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, http.StatusBadRequest, "entry", domain.EntryView{Error: "Could not read the form, please try again."})
		return
	}
	form := domain.StartForm{
		Nickname:       r.PostFormValue("nickname"),
		Goal:           r.PostFormValue("goal"),
		TimeCommitment: r.PostFormValue("time_commitment"),
	}
	key := h.bindSession(w, r)
	session, err := h.service.Start(r.Context(), key, form)
	if err != nil {
		entry := &domain.EntryView{
			Nickname:       form.Nickname,
			Goal:           form.Goal,
			TimeCommitment: form.TimeCommitment,
		}
		if errors.Is(err, domain.ErrAttemptInProgress) && session != nil {
			entry.ActiveNickname = session.Nickname
		}
		h.fail(w, r, err, entry)
		return
	}
	redirect(w, r, "/question")
}

func (h *Handler) question(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.CurrentQuestion(r.Context(), sessionKey(r))
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	h.render(w, http.StatusOK, "question", view)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		redirect(w, r, "/question")
		return
	}
	// A missing or malformed number disables the replay check.
	number, _ := strconv.Atoi(r.PostFormValue("number"))
	err := h.service.SubmitAnswer(r.Context(), sessionKey(r), number, r.PostFormValue("answer"))
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	redirect(w, r, "/question")
}

func (h *Handler) result(w http.ResponseWriter, r *http.Request) {
	view, _, err := h.service.Finish(r.Context(), sessionKey(r))
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	h.render(w, http.StatusOK, "result", view)
}

func (h *Handler) abandon(w http.ResponseWriter, r *http.Request) {
	err := h.service.Abandon(r.Context(), sessionKey(r))
	if err != nil && !isNotFound(err) {
		h.fail(w, r, err, nil)
		return
	}
	http.SetCookie(w, h.deleteCookie(r))
	redirect(w, r, "/")
}

func (h *Handler) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.views.ExecuteTemplate(w, name, data); err != nil {
		h.log.Error("render view", zap.String("view", name), zap.Error(err))
	}
}

func redirect(w http.ResponseWriter, r *http.Request, to string) {
	http.Redirect(w, r, to, http.StatusSeeOther)
}
