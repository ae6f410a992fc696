package interview

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"jobboard-backend/internal/shared/storage/repo"
)

const (
	ComplexityEasy   = "easy"
	ComplexityMedium = "medium"
	ComplexityHard   = "hard"
)

var Complexities = []string{ComplexityEasy, ComplexityMedium, ComplexityHard}

// MessageType tags a chat message with the step of the interview it records.
type MessageType string

const (
	MessageQuestion   MessageType = "question"
	MessageAnswer     MessageType = "answer"
	MessageEvaluation MessageType = "evaluation"
)

type Technology struct {
	Technology string `json:"technology"`
	Complexity string `json:"complexity"`
}

// ChatConfig is stored as JSONB in chats.config.
type ChatConfig struct {
	Technologies []Technology `json:"technologies"`
}

func (c ChatConfig) Value() (driver.Value, error) {
	if c.Technologies == nil {
		c.Technologies = []Technology{}
	}
	return json.Marshal(c)
}

func (c *ChatConfig) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*c = ChatConfig{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("chat config: unsupported type %T", src)
	}
	return json.Unmarshal(raw, c)
}

// matches reports whether a question of this technology and complexity is
// one the chat asks for.
func (c ChatConfig) matches(technology, complexity string) bool {
	for _, t := range c.Technologies {
		if t.Technology == technology && t.Complexity == complexity {
			return true
		}
	}
	return false
}

type Chat struct {
	repo.Base
	UserID string
	Title  string
	Config ChatConfig
}

type Message struct {
	repo.Base
	ChatID       string
	Text         string
	Type         MessageType
	QuestionID   *string
	AnswerID     *string
	EvaluationID *string
}

type Question struct {
	repo.Base
	Text       string
	Technology string
	Complexity string
}

type Answer struct {
	repo.Base
	QuestionID string
	UserID     string
	Text       string
	Score      int
}

type Evaluation struct {
	repo.Base
	AnswerID string
	Text     string
}

var ChatTable = repo.Table[Chat]{
	Name:    "chats",
	Columns: []string{"user_id", "title", "config"},
	Fields:  func(c *Chat) []any { return []any{&c.UserID, &c.Title, &c.Config} },
	Meta:    func(c *Chat) *repo.Base { return &c.Base },
}

var MessageTable = repo.Table[Message]{
	Name:    "messages",
	Columns: []string{"chat_id", "text", "type", "question_id", "answer_id", "evaluation_id"},
	Fields: func(m *Message) []any {
		return []any{&m.ChatID, &m.Text, &m.Type, &m.QuestionID, &m.AnswerID, &m.EvaluationID}
	},
	Meta: func(m *Message) *repo.Base { return &m.Base },
}

var QuestionTable = repo.Table[Question]{
	Name:    "questions",
	Columns: []string{"text", "technology", "complexity"},
	Fields:  func(q *Question) []any { return []any{&q.Text, &q.Technology, &q.Complexity} },
	Meta:    func(q *Question) *repo.Base { return &q.Base },
	Unique:  [][]string{{"text"}},
}

var AnswerTable = repo.Table[Answer]{
	Name:    "answers",
	Columns: []string{"question_id", "user_id", "text", "score"},
	Fields:  func(a *Answer) []any { return []any{&a.QuestionID, &a.UserID, &a.Text, &a.Score} },
	Meta:    func(a *Answer) *repo.Base { return &a.Base },
}

var EvaluationTable = repo.Table[Evaluation]{
	Name:    "evaluations",
	Columns: []string{"answer_id", "text"},
	Fields:  func(e *Evaluation) []any { return []any{&e.AnswerID, &e.Text} },
	Meta:    func(e *Evaluation) *repo.Base { return &e.Base },
	Unique:  [][]string{{"answer_id"}},
}

type Stores struct {
	Chats       repo.Store[Chat]
	Messages    repo.Store[Message]
	Questions   repo.Store[Question]
	Answers     repo.Store[Answer]
	Evaluations repo.Store[Evaluation]
}

func NewMemoryStores() Stores {
	return Stores{
		Chats:       repo.NewMemory(ChatTable),
		Messages:    repo.NewMemory(MessageTable),
		Questions:   repo.NewMemory(QuestionTable),
		Answers:     repo.NewMemory(AnswerTable),
		Evaluations: repo.NewMemory(EvaluationTable),
	}
}

func NewPGStores(db repo.DBTX) Stores {
	return Stores{
		Chats:       repo.NewPG(db, ChatTable),
		Messages:    repo.NewPG(db, MessageTable),
		Questions:   repo.NewPG(db, QuestionTable),
		Answers:     repo.NewPG(db, AnswerTable),
		Evaluations: repo.NewPG(db, EvaluationTable),
	}
}

type MessageOutput struct {
	ID           string      `json:"id"`
	Text         string      `json:"text"`
	Type         MessageType `json:"type"`
	QuestionID   *string     `json:"question_id"`
	AnswerID     *string     `json:"answer_id"`
	EvaluationID *string     `json:"evaluation_id"`
	CreatedAt    time.Time   `json:"created_at"`
}

func (m Message) Output() MessageOutput {
	return MessageOutput{
		ID:           m.ID,
		Text:         m.Text,
		Type:         m.Type,
		QuestionID:   m.QuestionID,
		AnswerID:     m.AnswerID,
		EvaluationID: m.EvaluationID,
		CreatedAt:    m.CreatedAt,
	}
}

type ChatOutput struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Title     string          `json:"title"`
	Config    ChatConfig      `json:"config"`
	Messages  []MessageOutput `json:"messages,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (c Chat) Output() ChatOutput {
	cfg := c.Config
	if cfg.Technologies == nil {
		cfg.Technologies = []Technology{}
	}
	return ChatOutput{
		ID:        c.ID,
		UserID:    c.UserID,
		Title:     c.Title,
		Config:    cfg,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

type QuestionOutput struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Technology string    `json:"technology"`
	Complexity string    `json:"complexity"`
	CreatedAt  time.Time `json:"created_at"`
}

func (q Question) Output() QuestionOutput {
	return QuestionOutput{
		ID:         q.ID,
		Text:       q.Text,
		Technology: q.Technology,
		Complexity: q.Complexity,
		CreatedAt:  q.CreatedAt,
	}
}

type AnswerOutput struct {
	ID         string    `json:"id"`
	QuestionID string    `json:"question_id"`
	UserID     string    `json:"user_id"`
	Text       string    `json:"text"`
	Score      int       `json:"score"`
	CreatedAt  time.Time `json:"created_at"`
}

func (a Answer) Output() AnswerOutput {
	return AnswerOutput{
		ID:         a.ID,
		QuestionID: a.QuestionID,
		UserID:     a.UserID,
		Text:       a.Text,
		Score:      a.Score,
		CreatedAt:  a.CreatedAt,
	}
}
