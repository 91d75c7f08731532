package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"feed-server/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TokenVerifier определяет функцию, которая проверяет строку токена и возвращает claims.
// Ошибки могут быть models.ErrTokenInvalid, models.ErrTokenExpired, models.ErrTokenMalformed и т.д.
type TokenVerifier func(ctx context.Context, tokenString string) (*models.Claims, error)

// GinAuthMiddleware создает Gin middleware для проверки JWT.
// Оно извлекает Bearer-токен, верифицирует его с помощью предоставленного verifier
// и добавляет UserID в контекст запроса.
func GinAuthMiddleware(verifier TokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.With(zap.String("path", c.Request.URL.Path))

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Warn("Authorization header missing")
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Unauthorized: Missing token"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			log.Warn("Malformed Authorization header", zap.String("header", authHeader))
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Unauthorized: Malformed token header"})
			return
		}
		tokenString := parts[1]

		claims, err := verifier(c.Request.Context(), tokenString)
		if err != nil {
			status := http.StatusUnauthorized
			msg := "Unauthorized: Invalid token"
			if errors.Is(err, models.ErrTokenExpired) {
				msg = "Unauthorized: Token expired"
			} else if errors.Is(err, models.ErrTokenMalformed) || errors.Is(err, models.ErrTokenInvalid) {
				// Используем одинаковое сообщение для невалидного и некорректного формата
			} else {
				// Для неожиданных ошибок верификации
				log.Error("Unexpected token verification error", zap.Error(err))
				status = http.StatusInternalServerError
				msg = "Internal server error during token verification"
			}
			// Логгируем начало токена для отладки, не весь токен
			tokenSnippet := tokenString
			if len(tokenString) > 10 {
				tokenSnippet = tokenString[:10] + "..."
			}
			log.Warn("Token verification failed", zap.Error(err), zap.String("tokenSnippet", tokenSnippet))
			c.AbortWithStatusJSON(status, models.ErrorResponse{Error: msg})
			return
		}

		// Добавляем пользователя в контекст запроса и контекст Gin
		ctx := context.WithValue(c.Request.Context(), models.UserContextKey, claims.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Set("user_id", claims.UserID)

		log.Debug("User authorized", zap.Uint64("userID", claims.UserID))
		c.Next()
	}
}

// GetUserID извлекает UserID текущего пользователя из контекста Gin.
// Возвращает 0 и false, если middleware аутентификации не отработало.
func GetUserID(c *gin.Context) (uint64, bool) {
	if value, exists := c.Get("user_id"); exists {
		if userID, ok := value.(uint64); ok {
			return userID, true
		}
	}
	return models.GetUserIDFromContext(c.Request.Context())
}
