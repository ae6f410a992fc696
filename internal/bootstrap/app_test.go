package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobboard-backend/internal/interview"
	"jobboard-backend/internal/llm"
	"jobboard-backend/internal/queue"
	"jobboard-backend/internal/shared/config"
	"jobboard-backend/internal/shared/server/middleware"
)

type captureMailer struct {
	mu     sync.Mutex
	bodies []string
}

func (m *captureMailer) Send(_ context.Context, _, _, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bodies = append(m.bodies, body)
	return nil
}

func (m *captureMailer) lastToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.bodies)
	body := m.bodies[len(m.bodies)-1]
	idx := strings.Index(body, "token=")
	require.GreaterOrEqual(t, idx, 0)
	return strings.TrimSpace(body[idx+len("token="):])
}

type stubEvaluator struct{}

func (stubEvaluator) Evaluate(_ context.Context, in llm.EvaluateInput) (string, error) {
	return "Разбор ответа на вопрос.\nОценка: 7/10", nil
}

type recordingQueue struct {
	mu   sync.Mutex
	sent []queue.Message
}

func (q *recordingQueue) Send(_ context.Context, msg queue.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sent = append(q.sent, msg)
	return nil
}

func (q *recordingQueue) Receive(context.Context, int) ([]queue.Delivery, error) { return nil, nil }
func (q *recordingQueue) Ack(context.Context, queue.Delivery) error               { return nil }
func (q *recordingQueue) Release(context.Context, queue.Delivery) error           { return nil }

type testApp struct {
	*App
	mailer *captureMailer
}

func newTestApp(t *testing.T, mode string, opts ...Option) testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Config{
		Env:               "dev",
		LogLevel:          "error",
		SecretKey:         "test-secret",
		AccessTokenTTL:    time.Minute,
		RefreshTokenTTL:   time.Hour,
		RecoveryTokenTTL:  time.Hour,
		FrontURL:          "http://front.test",
		LocalStoreDir:     t.TempDir(),
		EvaluationMode:    mode,
		EvaluationTimeout: 5 * time.Second,
		EvaluationWorkers: 2,
	}
	mailer := &captureMailer{}
	opts = append([]Option{
		WithEvaluator(stubEvaluator{}),
		WithMailer(mailer),
		WithRateRules(map[string]middleware.RateLimitRule{}),
	}, opts...)
	app, err := Build(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(app.Close)

	_, err = app.Interview.ImportQuestions(context.Background(), []byte(`[
		{"text": "What does the go statement do?", "technology": "go", "complexity": "easy"},
		{"text": "How is a map implemented?", "technology": "go", "complexity": "easy"}
	]`))
	require.NoError(t, err)
	return testApp{App: app, mailer: mailer}
}

func (a testApp) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// signUp registers, verifies and logs in a user, returning the access token.
func (a testApp) signUp(t *testing.T, email string) string {
	t.Helper()
	creds := map[string]string{"email": email, "password": "s3cret"}
	rec := a.do(t, http.MethodPost, "/api/v1/user/", "", creds)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/api/v1/user/verify-email/", "", map[string]string{"token": a.mailer.lastToken(t)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/api/v1/auth/login/", "", creds)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[map[string]string](t, rec)["access_token"]
}

func (a testApp) startChat(t *testing.T, token string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/v1/interview/chat/", token, map[string]any{
		"title":  "Go warmup",
		"config": map[string]any{"technologies": []map[string]string{{"technology": "go", "complexity": "easy"}}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[interview.ChatOutput](t, rec).ID
}

func TestHealthAndMetrics(t *testing.T) {
	a := newTestApp(t, interview.ModeInline)

	rec := a.do(t, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/api/v1/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	a := newTestApp(t, interview.ModeInline)

	rec := a.do(t, http.MethodGet, "/api/v1/nowhere/", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode[map[string]map[string]any](t, rec)
	assert.Equal(t, "not_found", body["error"]["code"])
}

func TestInterviewRequiresVerifiedEmail(t *testing.T) {
	a := newTestApp(t, interview.ModeInline)
	creds := map[string]string{"email": "new@example.com", "password": "s3cret"}
	require.Equal(t, http.StatusCreated, a.do(t, http.MethodPost, "/api/v1/user/", "", creds).Code)

	rec := a.do(t, http.MethodPost, "/api/v1/auth/login/", "", creds)
	require.Equal(t, http.StatusOK, rec.Code)
	token := decode[map[string]string](t, rec)["access_token"]

	rec = a.do(t, http.MethodGet, "/api/v1/interview/chat/", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/v1/interview/chat/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInlineInterviewFlow(t *testing.T) {
	a := newTestApp(t, interview.ModeInline)
	token := a.signUp(t, "candidate@example.com")
	chatID := a.startChat(t, token)

	// Trailing slash is optional.
	rec := a.do(t, http.MethodGet, "/api/v1/interview/q/"+chatID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	question := decode[interview.QuestionOutput](t, rec)

	rec = a.do(t, http.MethodPost, "/api/v1/interview/a/"+chatID+"/", token, map[string]string{
		"question_id": question.ID,
		"text":        "It starts a goroutine.",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 7, decode[interview.AnswerOutput](t, rec).Score)

	rec = a.do(t, http.MethodGet, "/api/v1/interview/chat/"+chatID+"/", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	chat := decode[interview.ChatOutput](t, rec)
	require.Len(t, chat.Messages, 3)
	assert.Equal(t, interview.MessageEvaluation, chat.Messages[2].Type)

	other := a.signUp(t, "other@example.com")
	rec = a.do(t, http.MethodGet, "/api/v1/interview/chat/"+chatID+"/", other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAsyncEvaluation(t *testing.T) {
	a := newTestApp(t, interview.ModeAsync)
	require.NotNil(t, a.Pool)
	token := a.signUp(t, "async@example.com")
	chatID := a.startChat(t, token)

	rec := a.do(t, http.MethodGet, "/api/v1/interview/q/"+chatID+"/", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	question := decode[interview.QuestionOutput](t, rec)

	rec = a.do(t, http.MethodPost, "/api/v1/interview/a/"+chatID+"/", token, map[string]string{
		"question_id": question.ID,
		"text":        "It starts a goroutine.",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	answerID := decode[interview.AnswerOutput](t, rec).ID

	require.Eventually(t, func() bool {
		answer, err := a.Interview.Answers.Get(context.Background(), answerID)
		return err == nil && answer.Score == 7
	}, 2*time.Second, 10*time.Millisecond)
}

func TestQueueModeEnqueuesEvaluation(t *testing.T) {
	q := &recordingQueue{}
	a := newTestApp(t, interview.ModeQueue, WithQueue(q))
	token := a.signUp(t, "queued@example.com")
	chatID := a.startChat(t, token)

	rec := a.do(t, http.MethodGet, "/api/v1/interview/q/"+chatID+"/", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	question := decode[interview.QuestionOutput](t, rec)

	rec = a.do(t, http.MethodPost, "/api/v1/interview/a/"+chatID+"/", token, map[string]string{
		"question_id": question.ID,
		"text":        "It starts a goroutine.",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	answer := decode[interview.AnswerOutput](t, rec)
	assert.Equal(t, 0, answer.Score)

	q.mu.Lock()
	defer q.mu.Unlock()
	require.Len(t, q.sent, 1)
	assert.Equal(t, answer.ID, q.sent[0].AnswerID)
	assert.Equal(t, chatID, q.sent[0].ChatID)
	assert.NotEmpty(t, q.sent[0].RequestID)
}

func TestBuildQueueRedisRequiresClient(t *testing.T) {
	_, err := BuildQueue(context.Background(), config.Config{QueueBackend: "redis"}, nil)
	assert.Error(t, err)
}

func TestBuildEvaluatorPlaceholder(t *testing.T) {
	e, err := BuildEvaluator(context.Background(), config.Config{LLMProvider: "none"})
	require.NoError(t, err)
	_, err = e.Evaluate(context.Background(), llm.EvaluateInput{})
	assert.ErrorIs(t, err, llm.ErrNotImplemented)

	_, err = BuildEvaluator(context.Background(), config.Config{LLMProvider: "openai"})
	assert.Error(t, err, "openai requires a model")
}
