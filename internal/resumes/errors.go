package resumes

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrNoEmployee      = errors.New("employee profile required")
	ErrCompanyNotFound = errors.New("company not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNoFile          = errors.New("resume has no file")
	ErrUnsupportedFile = errors.New("unsupported file type")
)

const (
	msgNoEmployee  = "Необходимо заполнить профиль соискателя"
	msgForbidden   = "Доступ запрещен"
	msgUnsupported = "Поддерживаются только файлы PDF и DOCX"
)
