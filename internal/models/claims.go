package models

import "github.com/golang-jwt/jwt/v5"

// Claims - полезная нагрузка JWT, с которой работают API и шлюз.
// Кроме стандартных полей токен несет идентификатор пользователя,
// от имени которого ставятся отметки и открываются подписки.
type Claims struct {
	UserID               uint64 `json:"user_id"`
	jwt.RegisteredClaims        // Issuer, Subject, ExpiresAt, IssuedAt, ID (JTI) и прочие стандартные поля
}
