package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"feed-server/internal/engagement"
	"feed-server/internal/models"
)

// Compile-time check to ensure implementation satisfies the interface.
var _ engagement.Service = (*EngagementAPIClient)(nil)

const (
	defaultHTTPTimeout = 10 * time.Second
	maxErrorBodySize   = 4 << 10
)

// EngagementAPIClient - HTTP-клиент REST API вовлечённости. Ошибки
// транслируются в типизированные ошибки пакета models, чтобы движок
// оптимистичных мутаций мог различать сетевые сбои, пропавшие посты
// и ограничение частоты.
type EngagementAPIClient struct {
	baseURL    string // Base URL of the engagement API (e.g., "http://localhost:8080")
	token      string // Bearer token identifying the current user
	httpClient *http.Client
	logger     *zap.Logger
}

// NewEngagementAPIClient creates a new HTTP client for the engagement API.
func NewEngagementAPIClient(baseURL string, token string, logger *zap.Logger) *EngagementAPIClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	// Ensure base URL doesn't have a trailing slash
	baseURL = strings.TrimSuffix(baseURL, "/")
	return &EngagementAPIClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: defaultHTTPTimeout,
		},
		logger: logger.Named("EngagementAPIClient"),
	}
}

// ToggleLike implements engagement.Service via POST /api/posts/{id}/like/toggle.
func (c *EngagementAPIClient) ToggleLike(ctx context.Context, postID uuid.UUID) (models.LikeResult, error) {
	log := c.logger.With(zap.String("postId", postID.String()))
	log.Debug("Toggling like via engagement API")

	var result models.LikeResult
	path := fmt.Sprintf("/api/posts/%s/like/toggle", postID)
	if err := c.doJSON(ctx, http.MethodPost, path, &result); err != nil {
		log.Warn("Like toggle request failed", zap.Error(err))
		return models.LikeResult{}, err
	}
	return result, nil
}

// ToggleRepost implements engagement.Service via POST /api/posts/{id}/repost/toggle.
func (c *EngagementAPIClient) ToggleRepost(ctx context.Context, postID uuid.UUID) (models.RepostResult, error) {
	log := c.logger.With(zap.String("postId", postID.String()))
	log.Debug("Toggling repost via engagement API")

	var result models.RepostResult
	path := fmt.Sprintf("/api/posts/%s/repost/toggle", postID)
	if err := c.doJSON(ctx, http.MethodPost, path, &result); err != nil {
		log.Warn("Repost toggle request failed", zap.Error(err))
		return models.RepostResult{}, err
	}
	return result, nil
}

// Feed загружает страницу ленты. Нулевой limit и пустой cursor не
// передаются, сервер подставит значения по умолчанию.
func (c *EngagementAPIClient) Feed(ctx context.Context, limit int, cursor string) (models.FeedPage, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	path := "/api/feed"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var page models.FeedPage
	if err := c.doJSON(ctx, http.MethodGet, path, &page); err != nil {
		c.logger.Warn("Feed request failed", zap.Error(err))
		return models.FeedPage{}, err
	}
	return page, nil
}

// Engagement возвращает актуальные счётчики поста. Используется для
// точечного освежения состояния без перезагрузки всей ленты.
func (c *EngagementAPIClient) Engagement(ctx context.Context, postID uuid.UUID) (models.EngagementUpdate, error) {
	var update models.EngagementUpdate
	path := fmt.Sprintf("/api/posts/%s/engagement", postID)
	if err := c.doJSON(ctx, http.MethodGet, path, &update); err != nil {
		c.logger.Warn("Engagement request failed",
			zap.String("postId", postID.String()),
			zap.Error(err))
		return models.EngagementUpdate{}, err
	}
	return update, nil
}

// doJSON выполняет запрос и декодирует успешный ответ в out.
// Все запросы API идут без тела, параметры передаются в пути и query.
func (c *EngagementAPIClient) doJSON(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Обрыв соединения, таймаут, DNS: всё считаем сетевым сбоем
		return fmt.Errorf("%w: %v", models.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", models.ErrNetwork, err)
		}
	}
	return nil
}

// statusError переводит неуспешный HTTP-статус в типизированную ошибку.
func (c *EngagementAPIClient) statusError(resp *http.Response) error {
	message := readErrorMessage(resp)
	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", models.ErrBadRequest, message)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return models.ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return models.ErrPostNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return models.ErrRateLimited
	case resp.StatusCode >= 500:
		// Сообщение сервера сохраняем, его покажут после отката
		return &models.ServerError{Message: message}
	default:
		return fmt.Errorf("engagement api returned unexpected status %d: %s", resp.StatusCode, message)
	}
}

// readErrorMessage достает сообщение из стандартного тела ошибки.
func readErrorMessage(resp *http.Response) string {
	var payload models.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBodySize)).Decode(&payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return http.StatusText(resp.StatusCode)
}
