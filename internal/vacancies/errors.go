package vacancies

import "errors"

var (
	ErrNotFound = errors.New("vacancy not found")
	ErrConflict = errors.New("vacancy already exists for this company")
)

const msgCreateFailed = "Ошибка создания объекта"
