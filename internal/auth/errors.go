package auth

import "errors"

var (
	ErrUnknownUser  = errors.New("unknown user")
	ErrInvalidToken = errors.New("invalid token")
)

const (
	msgBadCredentials = "Некорректные имя пользователя или пароль"
	msgInvalidToken   = "Невалидный токен"
)
