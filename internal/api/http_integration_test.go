package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"feed-server/internal/api"
	"feed-server/internal/authutils"
	"feed-server/internal/middleware"
	"feed-server/internal/models"
	"feed-server/internal/repository"
	"feed-server/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

const (
	jwtTestSecret = "test-secret-for-integration" // Тестовый JWT секрет
	testUserA     = uint64(101)
	testUserB     = uint64(102)
)

// APIIntegrationSuite гоняет HTTP API поверх реального сервисного слоя
// с in-memory хранилищем: полный путь middleware -> handler -> service -> store
// без внешних контейнеров.
type APIIntegrationSuite struct {
	suite.Suite
	store      *repository.MemoryStore
	server     *httptest.Server
	serviceURL string
	client     *http.Client
	tokenA     string
	tokenB     string
}

// SetupTest собирает свежий стек перед каждым тестом, чтобы тесты
// не видели посты и отметки друг друга.
func (s *APIIntegrationSuite) SetupTest() {
	nopLogger := zap.NewNop()
	s.store = repository.NewMemoryStore(nopLogger)

	// Publisher и кэш снимков nil - dev-режим сервиса без RabbitMQ/Redis
	engagementService := service.NewEngagementService(s.store, s.store, nil, nil, nopLogger)

	verifier, err := authutils.NewJWTVerifier(jwtTestSecret, nopLogger)
	require.NoError(s.T(), err)
	authMiddleware := middleware.GinAuthMiddleware(verifier.VerifyToken, nopLogger)

	engagementHandler := api.NewEngagementHandler(engagementService, nopLogger)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	engagementHandler.RegisterRoutes(router, authMiddleware, nil)

	s.server = httptest.NewServer(router)
	s.serviceURL = s.server.URL
	s.client = &http.Client{Timeout: 5 * time.Second}

	s.tokenA, err = authutils.NewDevToken(jwtTestSecret, testUserA, 5*time.Minute)
	require.NoError(s.T(), err)
	s.tokenB, err = authutils.NewDevToken(jwtTestSecret, testUserB, 5*time.Minute)
	require.NoError(s.T(), err)
}

func (s *APIIntegrationSuite) TearDownTest() {
	if s.server != nil {
		s.server.Close()
	}
}

// seedPost кладет пост в хранилище напрямую, минуя API.
func (s *APIIntegrationSuite) seedPost(text string, likeCount, repostCount int64, createdAt time.Time) models.Post {
	post := models.Post{
		AuthorID:    7,
		Author:      "seed_author",
		Text:        text,
		LikeCount:   likeCount,
		RepostCount: repostCount,
		ReplyCount:  2,
		CreatedAt:   createdAt,
	}
	require.NoError(s.T(), s.store.Create(context.Background(), &post))
	return post
}

// doRequest выполняет запрос к тестовому серверу. Пустой token - запрос без авторизации.
func (s *APIIntegrationSuite) doRequest(method, path, token string) *http.Response {
	req, err := http.NewRequest(method, s.serviceURL+path, nil)
	require.NoError(s.T(), err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.client.Do(req)
	require.NoError(s.T(), err)
	return resp
}

// decodeBody читает и закрывает тело ответа.
func (s *APIIntegrationSuite) decodeBody(resp *http.Response, out interface{}) {
	defer resp.Body.Close()
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(out))
}

func (s *APIIntegrationSuite) TestLikeToggleLifecycle() {
	post := s.seedPost("Пост для лайков", 4, 0, time.Now())
	togglePath := fmt.Sprintf("/api/posts/%s/like/toggle", post.ID)

	// Первый toggle ставит лайк и поднимает счетчик и ревизию
	resp := s.doRequest(http.MethodPost, togglePath, s.tokenA)
	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)
	var liked models.LikeResult
	s.decodeBody(resp, &liked)
	assert.True(s.T(), liked.IsLiked)
	assert.Equal(s.T(), int64(5), liked.LikeCount)
	assert.Equal(s.T(), int64(1), liked.Revision)

	// Пост виден пользователю как лайкнутый
	resp = s.doRequest(http.MethodGet, "/api/posts/"+post.ID.String(), s.tokenA)
	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)
	var fetched models.Post
	s.decodeBody(resp, &fetched)
	assert.True(s.T(), fetched.IsLiked)
	assert.Equal(s.T(), int64(5), fetched.LikeCount)

	// Второй toggle снимает лайк, счетчик возвращается, ревизия растет дальше
	resp = s.doRequest(http.MethodPost, togglePath, s.tokenA)
	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)
	var unliked models.LikeResult
	s.decodeBody(resp, &unliked)
	assert.False(s.T(), unliked.IsLiked)
	assert.Equal(s.T(), int64(4), unliked.LikeCount)
	assert.Equal(s.T(), int64(2), unliked.Revision)

	// Счетчики через engagement-эндпоинт согласованы с результатом toggle
	resp = s.doRequest(http.MethodGet, fmt.Sprintf("/api/posts/%s/engagement", post.ID), s.tokenA)
	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)
	var engagement models.EngagementUpdate
	s.decodeBody(resp, &engagement)
	assert.Equal(s.T(), post.ID, engagement.PostID)
	assert.Equal(s.T(), int64(4), engagement.LikeCount)
	assert.Equal(s.T(), int64(2), engagement.Revision)
}

func (s *APIIntegrationSuite) TestRepostToggleLifecycle() {
	post := s.seedPost("Пост для репостов", 0, 9, time.Now())
	togglePath := fmt.Sprintf("/api/posts/%s/repost/toggle", post.ID)

	resp := s.doRequest(http.MethodPost, togglePath, s.tokenA)
	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)
	var reposted models.RepostResult
	s.decodeBody(resp, &reposted)
	assert.True(s.T(), reposted.IsReposted)
	assert.Equal(s.T(), int64(10), reposted.RepostCount)
	assert.Equal(s.T(), int64(1), reposted.Revision)

	resp = s.doRequest(http.MethodPost, togglePath, s.tokenA)
	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)
	var undone models.RepostResult
	s.decodeBody(resp, &undone)
	assert.False(s.T(), undone.IsReposted)
	assert.Equal(s.T(), int64(9), undone.RepostCount)
	assert.Equal(s.T(), int64(2), undone.Revision)
}

func (s *APIIntegrationSuite) TestViewerFlagsArePerUser() {
	post := s.seedPost("Флаги индивидуальны", 0, 0, time.Now())

	// Пользователь A лайкает пост
	resp := s.doRequest(http.MethodPost, fmt.Sprintf("/api/posts/%s/like/toggle", post.ID), s.tokenA)
	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Пользователь B видит счетчик, но не флаг
	resp = s.doRequest(http.MethodGet, "/api/posts/"+post.ID.String(), s.tokenB)
	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)
	var viewB models.Post
	s.decodeBody(resp, &viewB)
	assert.False(s.T(), viewB.IsLiked)
	assert.Equal(s.T(), int64(1), viewB.LikeCount)

	// Пользователь A видит свой флаг
	resp = s.doRequest(http.MethodGet, "/api/posts/"+post.ID.String(), s.tokenA)
	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)
	var viewA models.Post
	s.decodeBody(resp, &viewA)
	assert.True(s.T(), viewA.IsLiked)
	assert.Equal(s.T(), int64(1), viewA.LikeCount)
}

func (s *APIIntegrationSuite) TestToggleUnknownPostReturnsNotFound() {
	resp := s.doRequest(http.MethodPost, fmt.Sprintf("/api/posts/%s/like/toggle", uuid.New()), s.tokenA)
	assert.Equal(s.T(), http.StatusNotFound, resp.StatusCode)
	var apiErr models.ErrorResponse
	s.decodeBody(resp, &apiErr)
	assert.Equal(s.T(), "Post not found", apiErr.Error)
}

func (s *APIIntegrationSuite) TestFeedPaginationWalk() {
	// Сидируем пять постов с убывающим created_at: порядок ленты известен заранее
	base := time.Now().Truncate(time.Second)
	seeded := make([]models.Post, 0, 5)
	for i := 0; i < 5; i++ {
		post := s.seedPost(fmt.Sprintf("Пост %d", i), int64(i), 0, base.Add(-time.Duration(i)*time.Minute))
		seeded = append(seeded, post)
	}

	// Пользователь лайкает третий пост, флаг должен быть виден в ленте
	resp := s.doRequest(http.MethodPost, fmt.Sprintf("/api/posts/%s/like/toggle", seeded[2].ID), s.tokenA)
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Обходим ленту страницами по два поста
	collected := make([]models.Post, 0, 5)
	cursor := ""
	pages := 0
	for {
		path := "/api/feed?limit=2"
		if cursor != "" {
			path += "&cursor=" + cursor
		}
		resp := s.doRequest(http.MethodGet, path, s.tokenA)
		require.Equal(s.T(), http.StatusOK, resp.StatusCode)
		var page models.FeedPage
		s.decodeBody(resp, &page)

		collected = append(collected, page.Posts...)
		pages++
		require.LessOrEqual(s.T(), pages, 5, "feed cursor walk did not terminate")

		if page.NextCursor == "" {
			break
		}
		assert.Len(s.T(), page.Posts, 2)
		cursor = page.NextCursor
	}

	// 5 постов по 2 на страницу: 2 + 2 + 1
	assert.Equal(s.T(), 3, pages)
	require.Len(s.T(), collected, 5)

	// Порядок ленты совпадает с порядком сидирования (новые сверху), без дублей
	seen := make(map[uuid.UUID]bool)
	for i, post := range collected {
		assert.Equal(s.T(), seeded[i].ID, post.ID, "post order mismatch at index %d", i)
		assert.False(s.T(), seen[post.ID], "duplicate post %s in feed walk", post.ID)
		seen[post.ID] = true
	}
	assert.True(s.T(), collected[2].IsLiked)
	assert.Equal(s.T(), int64(3), collected[2].LikeCount)
	assert.False(s.T(), collected[0].IsLiked)
}

func (s *APIIntegrationSuite) TestAuthRequired() {
	post := s.seedPost("Закрытый пост", 0, 0, time.Now())

	// Без токена
	resp := s.doRequest(http.MethodGet, "/api/feed", "")
	assert.Equal(s.T(), http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// С мусорным токеном
	resp = s.doRequest(http.MethodPost, fmt.Sprintf("/api/posts/%s/like/toggle", post.ID), "not-a-jwt")
	assert.Equal(s.T(), http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// С токеном, подписанным другим секретом
	badToken, err := authutils.NewDevToken("another-secret", testUserA, time.Minute)
	require.NoError(s.T(), err)
	resp = s.doRequest(http.MethodGet, "/api/feed", badToken)
	assert.Equal(s.T(), http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Пост при этом не изменился
	resp = s.doRequest(http.MethodGet, fmt.Sprintf("/api/posts/%s/engagement", post.ID), s.tokenA)
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)
	var engagement models.EngagementUpdate
	s.decodeBody(resp, &engagement)
	assert.Equal(s.T(), int64(0), engagement.LikeCount)
	assert.Equal(s.T(), int64(0), engagement.Revision)
}

func (s *APIIntegrationSuite) TestRequestValidation() {
	s.T().Run("Невалидный UUID поста", func(t *testing.T) {
		resp := s.doRequest(http.MethodPost, "/api/posts/not-a-uuid/like/toggle", s.tokenA)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})

	s.T().Run("Невалидный limit", func(t *testing.T) {
		resp := s.doRequest(http.MethodGet, "/api/feed?limit=abc", s.tokenA)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})

	s.T().Run("Отрицательный limit", func(t *testing.T) {
		resp := s.doRequest(http.MethodGet, "/api/feed?limit=-1", s.tokenA)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})

	s.T().Run("Битый курсор", func(t *testing.T) {
		resp := s.doRequest(http.MethodGet, "/api/feed?cursor=%21%21broken", s.tokenA)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestAPIIntegrationSuite(t *testing.T) {
	suite.Run(t, new(APIIntegrationSuite))
}
