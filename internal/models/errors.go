package models

import (
	"errors"
	"fmt"
)

// Application-wide standard errors
var (
	// Common Resource/DB Errors
	ErrNotFound     = errors.New("resource not found") // General not found
	ErrPostNotFound = errors.New("post not found")

	// User & Authentication Errors
	ErrUnauthorized = errors.New("unauthorized") // Authentication required or failed

	// Token Errors
	ErrTokenInvalid   = errors.New("token is invalid")
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token has expired")

	// Engagement State Errors
	ErrLikeAlreadyExists   = errors.New("post is already liked by this user")
	ErrLikeNotFound        = errors.New("post is not liked by this user")
	ErrRepostAlreadyExists = errors.New("post is already reposted by this user")
	ErrRepostNotFound      = errors.New("post is not reposted by this user")

	// Mutation Transport Errors
	ErrNetwork     = errors.New("network failure")
	ErrRateLimited = errors.New("rate limited")

	// General Request/Server Errors
	ErrBadRequest   = errors.New("bad request")
	ErrInvalidInput = errors.New("invalid input data")
)

// ServerError описывает ошибку 5xx со стороны сервиса вовлечённости.
// Сообщение сервера сохраняется, чтобы вызывающий код мог показать его
// пользователю после отката оптимистичного изменения.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: %s", e.Message)
}
