package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"survey-quiz-service/internal/app"
	"survey-quiz-service/internal/domain"
	"survey-quiz-service/internal/infra/memory"
	"survey-quiz-service/internal/metrics"
	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"
)

const testKey = "7d444840-9dc0-11d1-b245-5ffdce74fad2"

type recordingNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (n *recordingNotifier) Send(_ context.Context, text string) []domain.DeliveryResult {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
	return []domain.DeliveryResult{{Chunk: 0, Length: len(text), Delivered: true}}
}

func (n *recordingNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.texts...)
}

type testEnv struct {
	server   *httptest.Server
	service  *app.QuizService
	records  *memory.RecordStore
	notifier *recordingNotifier
	now      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	bank, err := app.NewQuestionBankWithRand([]domain.Question{
		{Text: "Why are you here?"},
		{Text: "What will you build?"},
	}, rand.New(rand.NewPCG(1, 2)))
	if err != nil {
		t.Fatalf("bank: %v", err)
	}
	env := &testEnv{
		records:  memory.NewRecordStore(),
		notifier: &recordingNotifier{},
		now:      time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC),
	}
	env.service = app.NewQuizService(bank, memory.NewSessionStore(time.Hour), env.records, env.notifier,
		app.WithClock(func() time.Time { return env.now }),
		app.WithLogger(zaptest.NewLogger(t)),
	)
	handler, err := NewHandler(env.service, Options{
		Logger:        zaptest.NewLogger(t),
		Metrics:       metrics.New(),
		NewSessionKey: func() string { return testKey },
	})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	env.server = httptest.NewServer(handler.Routes())
	t.Cleanup(env.server.Close)
	return env
}

func (e *testEnv) settle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.service.Wait(ctx); err != nil {
		t.Fatalf("pending deliveries: %v", err)
	}
}

// client keeps cookies but does not follow redirects, so tests see each hop.
func (e *testEnv) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("jar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func do(t *testing.T, c *http.Client, method, target string, form url.Values) (*http.Response, string) {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, target, body)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, string(data)
}

func expectRedirect(t *testing.T, resp *http.Response, to string) {
	t.Helper()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303 to %s, got %d", to, resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != to {
		t.Fatalf("expected redirect to %s, got %s", to, loc)
	}
}

func startForm(nickname string) url.Values {
	return url.Values{
		"nickname":        {nickname},
		"goal":            {"learn Go"},
		"time_commitment": {"5h a week"},
	}
}

func TestSurveyFlow(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	base := env.server.URL

	resp, body := do(t, c, http.MethodGet, base+"/", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `name="nickname"`) {
		t.Fatalf("expected entry form, got %d", resp.StatusCode)
	}

	resp, _ = do(t, c, http.MethodPost, base+"/start", startForm("alice"))
	expectRedirect(t, resp, "/question")

	resp, body = do(t, c, http.MethodGet, base+"/question", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "question 1 of 2") {
		t.Fatalf("expected first question, got %d: %s", resp.StatusCode, body)
	}

	resp, _ = do(t, c, http.MethodPost, base+"/question", url.Values{"number": {"1"}, "answer": {"to learn"}})
	expectRedirect(t, resp, "/question")

	// Replaying the first submit must not record a second answer.
	resp, _ = do(t, c, http.MethodPost, base+"/question", url.Values{"number": {"1"}, "answer": {"again"}})
	expectRedirect(t, resp, "/question")

	_, body = do(t, c, http.MethodGet, base+"/question", nil)
	if !strings.Contains(body, "question 2 of 2") {
		t.Fatalf("expected second question after stale replay, got %s", body)
	}

	resp, _ = do(t, c, http.MethodPost, base+"/question", url.Values{"number": {"2"}, "answer": {"   "}})
	expectRedirect(t, resp, "/question")

	resp, _ = do(t, c, http.MethodGet, base+"/question", nil)
	expectRedirect(t, resp, "/result")

	resp, body = do(t, c, http.MethodGet, base+"/result", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Thank you, alice!") {
		t.Fatalf("expected result page, got %d: %s", resp.StatusCode, body)
	}

	// Reloads show the result again without a second notification.
	do(t, c, http.MethodGet, base+"/result", nil)
	env.settle(t)
	sent := env.notifier.sent()
	if len(sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(sent))
	}
	if !strings.Contains(sent[0], "to learn") || !strings.Contains(sent[0], domain.EmptyAnswer) {
		t.Fatalf("report missing answers: %s", sent[0])
	}
	if _, ok, _ := env.records.Get(context.Background(), "alice"); !ok {
		t.Fatalf("expected completion record for alice")
	}

	resp, _ = do(t, c, http.MethodGet, base+"/", nil)
	expectRedirect(t, resp, "/result")
	resp, _ = do(t, c, http.MethodPost, base+"/start", startForm("alice"))
	expectRedirect(t, resp, "/result")
}

func TestStartValidationError(t *testing.T) {
	env := newTestEnv(t)
	form := startForm("bob")
	form.Set("goal", "  ")

	resp, body := do(t, env.client(t), http.MethodPost, env.server.URL+"/start", form)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Please fill in your goal.") || !strings.Contains(body, `value="bob"`) {
		t.Fatalf("expected message and preserved nickname, got %s", body)
	}
}

func TestStartCooldown(t *testing.T) {
	env := newTestEnv(t)
	if err := env.records.Put(context.Background(), "carol", env.now.Add(-10*time.Hour)); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	resp, body := do(t, env.client(t), http.MethodPost, env.server.URL+"/start", startForm("carol"))
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Next attempt available in 38h 0m 0s.") {
		t.Fatalf("expected remaining time, got %s", body)
	}
}

func TestStartWithOtherNicknameOffersAbandon(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	base := env.server.URL

	resp, _ := do(t, c, http.MethodPost, base+"/start", startForm("alice"))
	expectRedirect(t, resp, "/question")

	resp, body := do(t, c, http.MethodPost, base+"/start", startForm("bob"))
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	for _, want := range []string{
		"Another survey is already in progress in this browser.",
		"Continue as alice",
		`action="/abandon"`,
		`value="bob"`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("entry view missing %q: %s", want, body)
		}
	}

	// Same nickname resumes the attempt.
	resp, _ = do(t, c, http.MethodPost, base+"/start", startForm("alice"))
	expectRedirect(t, resp, "/question")

	resp, _ = do(t, c, http.MethodPost, base+"/abandon", nil)
	expectRedirect(t, resp, "/")
	resp, _ = do(t, c, http.MethodPost, base+"/start", startForm("bob"))
	expectRedirect(t, resp, "/question")
	_, body = do(t, c, http.MethodGet, base+"/question", nil)
	if !strings.Contains(body, "bob") {
		t.Fatalf("expected bob's attempt after abandon, got %s", body)
	}
}

func TestQuestionWithoutSessionRedirectsToEntry(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := do(t, env.client(t), http.MethodGet, env.server.URL+"/question", nil)
	expectRedirect(t, resp, "/")
	resp, _ = do(t, env.client(t), http.MethodGet, env.server.URL+"/result", nil)
	expectRedirect(t, resp, "/")
}

func TestResultBeforeCompletionRedirectsToQuestion(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	do(t, c, http.MethodPost, env.server.URL+"/start", startForm("dave"))

	resp, _ := do(t, c, http.MethodGet, env.server.URL+"/result", nil)
	expectRedirect(t, resp, "/question")
	if len(env.notifier.sent()) != 0 {
		t.Fatalf("expected no notification before completion")
	}
}

func TestAbandonClearsSession(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	do(t, c, http.MethodPost, env.server.URL+"/start", startForm("erin"))

	resp, _ := do(t, c, http.MethodPost, env.server.URL+"/abandon", url.Values{})
	expectRedirect(t, resp, "/")
	if _, err := env.service.Lookup(context.Background(), testKey); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session removed, got %v", err)
	}

	resp, _ = do(t, c, http.MethodGet, env.server.URL+"/", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected entry form after abandon, got %d", resp.StatusCode)
	}
}

func postTabEvent(t *testing.T, c *http.Client, target, body string) (int, tabEventResponse) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, target, strings.NewReader(body))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("post tab event: %v", err)
	}
	defer resp.Body.Close()
	var out tabEventResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode, out
}

func TestTabEventsAPI(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	target := env.server.URL + "/api/tab-events"

	status, out := postTabEvent(t, c, target, `{"kind":"blur"}`)
	if status != http.StatusNotFound || out.OK {
		t.Fatalf("expected 404 without session, got %d %+v", status, out)
	}

	do(t, c, http.MethodPost, env.server.URL+"/start", startForm("frank"))

	cases := []struct {
		name   string
		body   string
		status int
		ok     bool
	}{
		{"blur", `{"kind":"blur","clientTimestamp":"2026-10-16T11:59:58Z"}`, http.StatusOK, true},
		{"focus without timestamp", `{"kind":"focus"}`, http.StatusOK, true},
		{"unreadable timestamp kept server side", `{"kind":"blur","clientTimestamp":"yesterday"}`, http.StatusOK, true},
		{"unknown kind", `{"kind":"scroll"}`, http.StatusBadRequest, false},
		{"malformed json", `{"kind":`, http.StatusBadRequest, false},
	}
	for _, tc := range cases {
		status, out := postTabEvent(t, c, target, tc.body)
		if status != tc.status || out.OK != tc.ok {
			t.Fatalf("%s: expected %d ok=%v, got %d %+v", tc.name, tc.status, tc.ok, status, out)
		}
		if !tc.ok && out.Error == "" {
			t.Fatalf("%s: expected error message", tc.name)
		}
	}

	session, err := env.service.Lookup(context.Background(), testKey)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(session.TabEvents) != 3 {
		t.Fatalf("expected 3 tab events, got %d", len(session.TabEvents))
	}
	if session.TabEvents[0].ClientAt == nil || session.TabEvents[2].ClientAt != nil {
		t.Fatalf("unexpected client timestamps: %+v", session.TabEvents)
	}
	if session.CurrentIndex != 0 {
		t.Fatalf("tab events must not move the question index")
	}
}

func TestWebSocketTabEvents(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	do(t, c, http.MethodPost, env.server.URL+"/start", startForm("grace"))

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/events"
	if _, resp, err := websocket.DefaultDialer.Dial(wsURL, nil); err == nil || resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 handshake without cookie, got err=%v", err)
	}

	header := http.Header{"Cookie": {sessionCookieName + "=" + testKey}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readNext(t, conn, "ready")

	if err := conn.WriteJSON(map[string]any{"type": "tab", "payload": map[string]any{"kind": "blur"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	readNext(t, conn, "ack")

	if err := conn.WriteJSON(map[string]any{"type": "tab", "payload": map[string]any{"kind": "hover"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	readNext(t, conn, "error")

	if err := conn.WriteJSON(map[string]any{"type": "answer"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	readNext(t, conn, "error")

	session, err := env.service.Lookup(context.Background(), testKey)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(session.TabEvents) != 1 || session.TabEvents[0].Kind != domain.TabBlur {
		t.Fatalf("expected one blur event, got %+v", session.TabEvents)
	}
}

func readNext(t *testing.T, conn *websocket.Conn, expect string) map[string]any {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if msg.Type != expect {
		t.Fatalf("expected type %s, got %s (%v)", expect, msg.Type, msg.Payload)
	}
	return msg.Payload
}

func TestRecovererRendersFailurePage(t *testing.T) {
	h, err := NewHandler(nil, Options{Logger: zaptest.NewLogger(t)})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	boom := h.recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	boom.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/question", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Something went wrong") {
		t.Fatalf("expected failure page, got %s", rec.Body.String())
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	resp, body := do(t, c, http.MethodGet, env.server.URL+"/healthz", nil)
	if resp.StatusCode != http.StatusOK || body != "ok" {
		t.Fatalf("unexpected health response %d %q", resp.StatusCode, body)
	}
	_, body = do(t, c, http.MethodGet, env.server.URL+"/metrics", nil)
	if !strings.Contains(body, `http_requests_total{method="GET",route="/healthz",status="200"} 1`) {
		t.Fatalf("expected request counter in metrics output, got %s", body)
	}
}
