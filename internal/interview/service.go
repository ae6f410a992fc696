package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"

	"jobboard-backend/internal/llm"
	"jobboard-backend/internal/shared/metrics"
	"jobboard-backend/internal/shared/sanitize"
	"jobboard-backend/internal/shared/storage/repo"
	"jobboard-backend/internal/shared/telemetry"
	"jobboard-backend/internal/shared/validation"
)

const (
	QuestionListLimit = 20

	defaultEvaluationTimeout = 90 * time.Second
	maxScore                 = 10
)

func init() {
	validation.RegisterEnum("complexity", Complexities)
}

var scorePattern = regexp.MustCompile(`(?i)(?:оценка|score)\s*:\s*(\d+)\s*/\s*(\d+)`)

type ChatInput struct {
	Title  string          `json:"title" binding:"required,min=1,max=64"`
	Config json.RawMessage `json:"config" binding:"required"`
}

// UpdateChatInput changes only the fields that are present.
type UpdateChatInput struct {
	Title  *string         `json:"title" binding:"omitempty,min=1,max=64"`
	Config json.RawMessage `json:"config"`
}

type AnswerInput struct {
	QuestionID string `json:"question_id" binding:"required,uuid"`
	Text       string `json:"text" binding:"required,max=8192"`
}

type QuestionInput struct {
	Text       string `json:"text" binding:"required"`
	Technology string `json:"technology" binding:"required,max=32"`
	Complexity string `json:"complexity" binding:"required,complexity"`
}

// ImportResult reports what a question bank import changed.
type ImportResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

type Service struct {
	Stores
	Evaluator llm.Evaluator

	dispatcher Dispatcher
	timeout    time.Duration
	intn       func(n int) int
}

// NewService evaluates inline until SetDispatcher picks another mode.
func NewService(stores Stores, evaluator llm.Evaluator) *Service {
	if evaluator == nil {
		evaluator = llm.Placeholder{}
	}
	s := &Service{
		Stores:    stores,
		Evaluator: evaluator,
		timeout:   defaultEvaluationTimeout,
		intn:      rand.IntN,
	}
	s.dispatcher = InlineDispatcher{Evaluate: s.Evaluate}
	return s
}

func (s *Service) SetDispatcher(d Dispatcher) {
	if d == nil {
		d = InlineDispatcher{Evaluate: s.Evaluate}
	}
	s.dispatcher = d
}

// SetEvaluationTimeout bounds a single evaluator call.
func (s *Service) SetEvaluationTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

func (s *Service) CreateChat(ctx context.Context, userID string, in ChatInput) (ChatOutput, error) {
	title, err := chatTitle(in.Title)
	if err != nil {
		return ChatOutput{}, err
	}
	cfg, err := ParseConfig(in.Config)
	if err != nil {
		return ChatOutput{}, err
	}
	chat := Chat{UserID: userID, Title: title, Config: cfg}
	if err := s.Chats.Create(ctx, &chat); err != nil {
		return ChatOutput{}, err
	}
	telemetry.Info("interview.chat.created", map[string]any{"chat_id": chat.ID, "user_id": userID})
	return chat.Output(), nil
}

// ListChats returns the caller's chats, newest first.
func (s *Service) ListChats(ctx context.Context, userID string) ([]ChatOutput, error) {
	chats, err := s.Chats.Fetch(ctx, repo.Query{
		Filters: repo.Filters{"user_id": userID},
		Order:   []repo.Order{{Column: "created_at", Desc: true}},
	})
	if err != nil {
		return nil, err
	}
	out := make([]ChatOutput, 0, len(chats))
	for _, c := range chats {
		out = append(out, c.Output())
	}
	return out, nil
}

// Chat returns one chat with its messages in the order they were written.
func (s *Service) Chat(ctx context.Context, userID, id string) (ChatOutput, error) {
	chat, err := s.owned(ctx, userID, id)
	if err != nil {
		return ChatOutput{}, err
	}
	msgs, err := s.Messages.Fetch(ctx, repo.Query{
		Filters: repo.Filters{"chat_id": chat.ID},
		Order:   []repo.Order{{Column: "created_at"}},
	})
	if err != nil {
		return ChatOutput{}, err
	}
	out := chat.Output()
	out.Messages = make([]MessageOutput, 0, len(msgs))
	for _, m := range msgs {
		out.Messages = append(out.Messages, m.Output())
	}
	return out, nil
}

func (s *Service) UpdateChat(ctx context.Context, userID, id string, in UpdateChatInput) (ChatOutput, error) {
	chat, err := s.owned(ctx, userID, id)
	if err != nil {
		return ChatOutput{}, err
	}
	if in.Title != nil {
		if chat.Title, err = chatTitle(*in.Title); err != nil {
			return ChatOutput{}, err
		}
	}
	if len(in.Config) > 0 {
		if chat.Config, err = ParseConfig(in.Config); err != nil {
			return ChatOutput{}, err
		}
	}
	if err := s.Chats.Update(ctx, &chat); err != nil {
		return ChatOutput{}, err
	}
	return chat.Output(), nil
}

func (s *Service) DeleteChat(ctx context.Context, userID, id string) error {
	chat, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	if _, err := s.Messages.DeleteWhere(ctx, repo.Filters{"chat_id": chat.ID}); err != nil {
		return err
	}
	if err := s.Chats.Delete(ctx, chat.ID); err != nil {
		return err
	}
	telemetry.Info("interview.chat.deleted", map[string]any{"chat_id": chat.ID, "user_id": userID})
	return nil
}

// NextQuestion picks a question for the chat config and records it as a
// message. Questions the user never answered win (at random); otherwise the
// one whose latest answer is the oldest.
func (s *Service) NextQuestion(ctx context.Context, userID, chatID string) (QuestionOutput, error) {
	chat, err := s.owned(ctx, userID, chatID)
	if err != nil {
		return QuestionOutput{}, err
	}
	candidates, err := s.candidates(ctx, chat.Config)
	if err != nil {
		return QuestionOutput{}, err
	}
	if len(candidates) == 0 {
		return QuestionOutput{}, ErrNoQuestions
	}

	ids := make([]string, len(candidates))
	for i, q := range candidates {
		ids[i] = q.ID
	}
	answers, err := s.Answers.Fetch(ctx, repo.Query{
		Filters: repo.Filters{"user_id": userID, "question_id": repo.In(ids)},
	})
	if err != nil {
		return QuestionOutput{}, err
	}
	latest := make(map[string]time.Time, len(answers))
	for _, a := range answers {
		if a.CreatedAt.After(latest[a.QuestionID]) {
			latest[a.QuestionID] = a.CreatedAt
		}
	}

	pick := selectQuestion(candidates, latest, s.intn)

	msg := Message{ChatID: chat.ID, Text: pick.Text, Type: MessageQuestion, QuestionID: &pick.ID}
	if err := s.Messages.Create(ctx, &msg); err != nil {
		return QuestionOutput{}, err
	}
	metrics.IncQuestionServed()
	telemetry.Info("interview.question.served", map[string]any{
		"chat_id":     chat.ID,
		"question_id": pick.ID,
		"fresh":       latest[pick.ID].IsZero(),
	})
	return pick.Output(), nil
}

func (s *Service) candidates(ctx context.Context, cfg ChatConfig) ([]Question, error) {
	var out []Question
	seen := map[string]bool{}
	for _, t := range cfg.Technologies {
		qs, err := s.Questions.Fetch(ctx, repo.Query{
			Filters: repo.Filters{"technology": t.Technology, "complexity": t.Complexity},
			Order:   []repo.Order{{Column: "created_at"}},
		})
		if err != nil {
			return nil, err
		}
		for _, q := range qs {
			if !seen[q.ID] {
				seen[q.ID] = true
				out = append(out, q)
			}
		}
	}
	return out, nil
}

func selectQuestion(candidates []Question, latest map[string]time.Time, intn func(int) int) Question {
	var fresh []Question
	for _, q := range candidates {
		if _, ok := latest[q.ID]; !ok {
			fresh = append(fresh, q)
		}
	}
	if len(fresh) > 0 {
		return fresh[intn(len(fresh))]
	}
	pick := candidates[0]
	for _, q := range candidates[1:] {
		if latest[q.ID].Before(latest[pick.ID]) {
			pick = q
		}
	}
	return pick
}

// Answer stores the user's answer, records it in the chat and hands it to
// the dispatcher for evaluation.
func (s *Service) Answer(ctx context.Context, userID, chatID string, in AnswerInput) (AnswerOutput, error) {
	chat, err := s.owned(ctx, userID, chatID)
	if err != nil {
		return AnswerOutput{}, err
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return AnswerOutput{}, &ValidationError{Err: ErrInvalidInput, Details: map[string]string{"text": "required"}}
	}
	question, err := s.Questions.Get(ctx, in.QuestionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return AnswerOutput{}, ErrQuestionNotFound
		}
		return AnswerOutput{}, err
	}

	if !chat.Config.matches(question.Technology, question.Complexity) {
		telemetry.Info("interview.answer.off_config", map[string]any{"chat_id": chat.ID, "question_id": question.ID})
	}

	answer := Answer{QuestionID: question.ID, UserID: userID, Text: text}
	if err := s.Answers.Create(ctx, &answer); err != nil {
		return AnswerOutput{}, err
	}
	msg := Message{ChatID: chat.ID, Text: text, Type: MessageAnswer, QuestionID: &question.ID, AnswerID: &answer.ID}
	if err := s.Messages.Create(ctx, &msg); err != nil {
		return AnswerOutput{}, err
	}
	telemetry.Info("interview.answer.created", map[string]any{"chat_id": chat.ID, "answer_id": answer.ID, "question_id": question.ID})

	s.dispatcher.Dispatch(ctx, answer.ID, chat.ID)

	// Inline evaluation has already scored the answer.
	if fresh, err := s.Answers.Get(ctx, answer.ID); err == nil {
		answer = fresh
	}
	return answer.Output(), nil
}

// Evaluate grades a stored answer. An evaluation that already exists is not
// requested again; the score and the chat message are completed from it, so a
// redelivery after a partial failure finishes the job.
func (s *Service) Evaluate(ctx context.Context, answerID, chatID string) error {
	fields := map[string]any{"answer_id": answerID, "chat_id": chatID, "request_id": telemetry.RequestID(ctx)}

	answer, err := s.Answers.Get(ctx, answerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrAnswerNotFound
		}
		return err
	}

	graded := false
	ev, err := repo.First(ctx, s.Evaluations, repo.Filters{"answer_id": answer.ID})
	switch {
	case err == nil:
	case errors.Is(err, repo.ErrNotFound):
		ev, err = s.grade(ctx, answer, fields)
		if err != nil {
			return err
		}
		graded = true
	default:
		return err
	}
	fields["evaluation_id"] = ev.ID

	changed, err := s.record(ctx, answer, ev, chatID, fields)
	if err != nil {
		return err
	}
	if !graded && !changed {
		telemetry.Info("interview.evaluation.skipped", fields)
		return nil
	}
	metrics.IncEvaluationCompleted()
	telemetry.Info("interview.evaluation.completed", fields)
	return nil
}

// grade asks the evaluator and stores the result. When another worker stored
// an evaluation for the same answer first, that one is returned.
func (s *Service) grade(ctx context.Context, answer Answer, fields map[string]any) (Evaluation, error) {
	question, err := s.Questions.Get(ctx, answer.QuestionID)
	if err != nil {
		return Evaluation{}, fmt.Errorf("load question %s: %w", answer.QuestionID, err)
	}

	metrics.IncEvaluationStarted()
	telemetry.Info("interview.evaluation.started", fields)
	start := time.Now()

	evalCtx, cancel := context.WithTimeout(ctx, s.timeout)
	text, err := s.Evaluator.Evaluate(evalCtx, llm.EvaluateInput{
		Question:   question.Text,
		Technology: question.Technology,
		Complexity: question.Complexity,
		Answer:     answer.Text,
	})
	cancel()
	elapsed := time.Since(start)
	metrics.ObserveEvaluationDuration(elapsed)
	fields["duration_ms"] = elapsed.Milliseconds()

	if err != nil {
		metrics.IncEvaluationFailed(failureReason(err))
		fields["error"] = err
		telemetry.Error("interview.evaluation.failed", fields)
		return Evaluation{}, fmt.Errorf("evaluate answer %s: %w", answer.ID, err)
	}

	ev := Evaluation{AnswerID: answer.ID, Text: text}
	if err := s.Evaluations.Create(ctx, &ev); err != nil {
		if !errors.Is(err, repo.ErrConflict) {
			return Evaluation{}, err
		}
		return repo.First(ctx, s.Evaluations, repo.Filters{"answer_id": answer.ID})
	}
	return ev, nil
}

// record applies an evaluation: the answer score and the chat message. Steps
// already done are left alone. It reports whether anything was written.
func (s *Service) record(ctx context.Context, answer Answer, ev Evaluation, chatID string, fields map[string]any) (bool, error) {
	changed := false
	if score, ok := ParseScore(ev.Text); ok {
		fields["score"] = score
		if answer.Score != score {
			answer.Score = score
			if err := s.Answers.Update(ctx, &answer); err != nil {
				return changed, err
			}
			changed = true
		}
	} else {
		telemetry.Warn("interview.evaluation.no_score", fields)
	}

	if chatID == "" {
		return changed, nil
	}
	posted, err := repo.Exists(ctx, s.Messages, repo.Filters{"evaluation_id": ev.ID})
	if err != nil || posted {
		return changed, err
	}
	if _, err := s.Chats.Get(ctx, chatID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return changed, nil
		}
		return changed, err
	}
	msg := Message{
		ChatID:       chatID,
		Text:         ev.Text,
		Type:         MessageEvaluation,
		QuestionID:   &answer.QuestionID,
		AnswerID:     &answer.ID,
		EvaluationID: &ev.ID,
	}
	if err := s.Messages.Create(ctx, &msg); err != nil {
		return changed, err
	}
	return true, nil
}

// ParseScore extracts the last "Оценка: N/M" (or "Score: N/M") from an
// evaluation and scales it to 0..10.
func ParseScore(text string) (int, bool) {
	matches := scorePattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return 0, false
	}
	m := matches[len(matches)-1]
	n, err1 := strconv.Atoi(m[1])
	d, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil || d <= 0 {
		return 0, false
	}
	if d != maxScore {
		n = int(math.Round(float64(n) * maxScore / float64(d)))
	}
	return min(max(n, 0), maxScore), true
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, llm.ErrNotImplemented):
		return "not_configured"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "provider"
	}
}

func (s *Service) ListQuestions(ctx context.Context, filters repo.Filters, page int) ([]QuestionOutput, repo.Pagination, error) {
	items, pag, err := repo.FetchPage(ctx, s.Questions, repo.Query{
		Filters: filters,
		Page:    &repo.Page{Current: page, Limit: QuestionListLimit},
	})
	if err != nil {
		return nil, repo.Pagination{}, err
	}
	out := make([]QuestionOutput, 0, len(items))
	for _, q := range items {
		out = append(out, q.Output())
	}
	return out, pag, nil
}

func (s *Service) CreateQuestion(ctx context.Context, in QuestionInput) (QuestionOutput, error) {
	q, err := buildQuestion(in)
	if err != nil {
		return QuestionOutput{}, err
	}
	if err := s.Questions.Create(ctx, &q); err != nil {
		return QuestionOutput{}, err
	}
	return q.Output(), nil
}

// ImportQuestions loads a question bank document. Questions whose text is
// already known are skipped.
func (s *Service) ImportQuestions(ctx context.Context, raw []byte) (ImportResult, error) {
	inputs, err := ParseQuestions(raw)
	if err != nil {
		return ImportResult{}, err
	}
	var res ImportResult
	for i, in := range inputs {
		q, err := buildQuestion(in)
		if err != nil {
			return res, fmt.Errorf("question %d: %w", i, err)
		}
		_, created, err := repo.GetOrCreate(ctx, s.Questions, repo.Filters{"text": q.Text}, func() Question { return q })
		if err != nil {
			return res, fmt.Errorf("question %d: %w", i, err)
		}
		if created {
			res.Created++
		} else {
			res.Skipped++
		}
	}
	telemetry.Info("interview.questions.imported", map[string]any{"created": res.Created, "skipped": res.Skipped})
	return res, nil
}

func buildQuestion(in QuestionInput) (Question, error) {
	q := Question{
		Text:       strings.TrimSpace(in.Text),
		Technology: strings.TrimSpace(in.Technology),
		Complexity: in.Complexity,
	}
	details := map[string]string{}
	if q.Text == "" {
		details["text"] = "required"
	}
	if q.Technology == "" {
		details["technology"] = "required"
	}
	if !validation.OneOf(q.Complexity, Complexities) {
		details["complexity"] = "must be one of " + strings.Join(Complexities, " ")
	}
	if len(details) > 0 {
		return Question{}, &ValidationError{Err: ErrInvalidInput, Details: details}
	}
	return q, nil
}

func (s *Service) owned(ctx context.Context, userID, id string) (Chat, error) {
	chat, err := s.Chats.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Chat{}, ErrNotFound
		}
		return Chat{}, err
	}
	if chat.UserID != userID {
		return Chat{}, ErrForbidden
	}
	return chat, nil
}

func chatTitle(raw string) (string, error) {
	title := sanitize.Plain(raw)
	if title == "" {
		return "", &ValidationError{Err: ErrInvalidInput, Details: map[string]string{"title": "required"}}
	}
	return title, nil
}
