package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"feed-server/internal/middleware"
	"feed-server/internal/models"
	"feed-server/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EngagementHandler обрабатывает HTTP-запросы ленты и вовлеченности.
type EngagementHandler struct {
	service service.EngagementService
	logger  *zap.Logger
}

// NewEngagementHandler создает новый экземпляр обработчика.
func NewEngagementHandler(svc service.EngagementService, logger *zap.Logger) *EngagementHandler {
	return &EngagementHandler{
		service: svc,
		logger:  logger.Named("EngagementHandler"),
	}
}

// RegisterRoutes регистрирует маршруты API. Все маршруты требуют аутентификации;
// toggle-эндпоинты дополнительно ограничиваются rate limiter'ом (если он передан).
func (h *EngagementHandler) RegisterRoutes(router *gin.Engine, authMiddleware gin.HandlerFunc, toggleRateLimit gin.HandlerFunc) {
	apiGroup := router.Group("/api")
	apiGroup.Use(authMiddleware)
	{
		apiGroup.GET("/feed", h.getFeed)
		apiGroup.GET("/posts/:id", h.getPost)
		apiGroup.GET("/posts/:id/engagement", h.getEngagement)

		toggles := apiGroup.Group("/posts/:id")
		if toggleRateLimit != nil {
			toggles.Use(toggleRateLimit)
		}
		{
			toggles.POST("/like/toggle", h.toggleLike)
			toggles.POST("/repost/toggle", h.toggleRepost)
		}
	}
}

// toggleLike обрабатывает запрос на переключение лайка поста.
func (h *EngagementHandler) toggleLike(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		// getUserIDFromContext уже вызвал Abort
		return
	}

	id, err := parsePostID(c, h.logger, "toggleLike")
	if err != nil {
		return
	}

	log := h.logger.With(
		zap.String("postID", id.String()),
		zap.Uint64("userID", userID),
	)
	log.Info("Toggling like")

	result, err := h.service.ToggleLike(c.Request.Context(), userID, id)
	if err != nil {
		if !errors.Is(err, models.ErrPostNotFound) {
			log.Error("Error toggling like", zap.Error(err))
		}
		handleServiceError(c, err)
		return
	}

	log.Info("Like toggled successfully", zap.Bool("isLiked", result.IsLiked), zap.Int64("revision", result.Revision))
	c.JSON(http.StatusOK, result)
}

// toggleRepost обрабатывает запрос на переключение репоста поста.
func (h *EngagementHandler) toggleRepost(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return
	}

	id, err := parsePostID(c, h.logger, "toggleRepost")
	if err != nil {
		return
	}

	log := h.logger.With(
		zap.String("postID", id.String()),
		zap.Uint64("userID", userID),
	)
	log.Info("Toggling repost")

	result, err := h.service.ToggleRepost(c.Request.Context(), userID, id)
	if err != nil {
		if !errors.Is(err, models.ErrPostNotFound) {
			log.Error("Error toggling repost", zap.Error(err))
		}
		handleServiceError(c, err)
		return
	}

	log.Info("Repost toggled successfully", zap.Bool("isReposted", result.IsReposted), zap.Int64("revision", result.Revision))
	c.JSON(http.StatusOK, result)
}

// getFeed возвращает страницу ленты с курсорной пагинацией.
func (h *EngagementHandler) getFeed(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return
	}

	cursor := c.Query("cursor")
	limit := 0 // репозиторий применит дефолтный лимит
	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			h.logger.Warn("Invalid limit parameter in getFeed", zap.String("limit", limitStr))
			handleServiceError(c, fmt.Errorf("%w: invalid limit parameter", models.ErrBadRequest))
			return
		}
	}

	page, err := h.service.GetFeed(c.Request.Context(), userID, cursor, limit)
	if err != nil {
		if !errors.Is(err, models.ErrInvalidInput) {
			h.logger.Error("Error listing feed", zap.Uint64("userID", userID), zap.Error(err))
		}
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// getPost возвращает один пост с флагами текущего пользователя.
func (h *EngagementHandler) getPost(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return
	}

	id, err := parsePostID(c, h.logger, "getPost")
	if err != nil {
		return
	}

	post, err := h.service.GetPost(c.Request.Context(), userID, id)
	if err != nil {
		if !errors.Is(err, models.ErrPostNotFound) {
			h.logger.Error("Error getting post", zap.String("postID", id.String()), zap.Error(err))
		}
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, post)
}

// getEngagement возвращает счетчики и ревизию поста.
func (h *EngagementHandler) getEngagement(c *gin.Context) {
	if _, err := getUserIDFromContext(c); err != nil {
		return
	}

	id, err := parsePostID(c, h.logger, "getEngagement")
	if err != nil {
		return
	}

	engagement, err := h.service.GetEngagement(c.Request.Context(), id)
	if err != nil {
		if !errors.Is(err, models.ErrPostNotFound) {
			h.logger.Error("Error getting engagement", zap.String("postID", id.String()), zap.Error(err))
		}
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, engagement)
}

// parsePostID извлекает и валидирует UUID поста из path-параметра.
// При ошибке сам отвечает 400 и возвращает ошибку вызывающему.
func parsePostID(c *gin.Context, logger *zap.Logger, handlerName string) (uuid.UUID, error) {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		logger.Warn("Invalid post ID format", zap.String("handler", handlerName), zap.String("id", idStr), zap.Error(err))
		handleServiceError(c, fmt.Errorf("%w: invalid post ID format", models.ErrBadRequest))
		return uuid.Nil, err
	}
	return id, nil
}

// getUserIDFromContext достает UserID, положенный auth middleware.
// При отсутствии сам отвечает 401 и возвращает ошибку вызывающему.
func getUserIDFromContext(c *gin.Context) (uint64, error) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Unauthorized: user ID missing in context"})
		return 0, models.ErrUnauthorized
	}
	return userID, nil
}

// handleServiceError транслирует ошибки сервисного слоя в HTTP-статусы.
func handleServiceError(c *gin.Context, err error) {
	var statusCode int
	var apiErr models.ErrorResponse

	switch {
	case errors.Is(err, models.ErrBadRequest), errors.Is(err, models.ErrInvalidInput):
		statusCode = http.StatusBadRequest
		apiErr = models.ErrorResponse{Error: err.Error()}
	case errors.Is(err, models.ErrUnauthorized):
		statusCode = http.StatusUnauthorized
		apiErr = models.ErrorResponse{Error: "Unauthorized"}
	case errors.Is(err, models.ErrPostNotFound), errors.Is(err, models.ErrNotFound):
		statusCode = http.StatusNotFound
		apiErr = models.ErrorResponse{Error: "Post not found"}
	default:
		statusCode = http.StatusInternalServerError
		apiErr = models.ErrorResponse{Error: "Internal server error"}
	}
	c.AbortWithStatusJSON(statusCode, apiErr)
}
