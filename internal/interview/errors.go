package interview

import "errors"

var (
	ErrNotFound         = errors.New("chat not found")
	ErrForbidden        = errors.New("chat belongs to another user")
	ErrQuestionNotFound = errors.New("question not found")
	ErrNoQuestions      = errors.New("no questions match the chat config")
	ErrAnswerNotFound   = errors.New("answer not found")
	ErrInvalidConfig    = errors.New("invalid chat config")
	ErrInvalidInput     = errors.New("invalid input")
)

const (
	msgForbidden   = "Доступ запрещен"
	msgNoQuestions = "Нет вопросов для выбранных технологий"
)

// ValidationError carries per-field details from JSON schema validation.
type ValidationError struct {
	Err     error
	Details map[string]string
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }
