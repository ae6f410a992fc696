package users

import "errors"

var (
	ErrNotFound       = errors.New("user not found")
	ErrCreate         = errors.New("user could not be created")
	ErrInvalidInput   = errors.New("invalid user input")
	ErrTokenNotFound  = errors.New("recovery token not found")
	ErrTokenExhausted = errors.New("recovery token used or expired")
)

const (
	MsgCreateFailed   = "Ошибка создания объекта"
	MsgTokenNotFound  = "Токен не найден"
	MsgTokenExhausted = "Токен использован или срок использования истек"
)
