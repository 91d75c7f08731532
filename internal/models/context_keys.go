package models

import "context"

// contextKey - приватный тип ключей контекста, защищает от коллизий
// с ключами чужих пакетов.
type contextKey string

// UserContextKey хранит UserID аутентифицированного пользователя в контексте запроса.
const UserContextKey contextKey = "userID"

// GetUserIDFromContext достает UserID из контекста запроса.
// Второе значение false означает, что аутентификация не проводилась
// или значение имеет неожиданный тип.
func GetUserIDFromContext(ctx context.Context) (uint64, bool) {
	userID, ok := ctx.Value(UserContextKey).(uint64)
	return userID, ok
}
