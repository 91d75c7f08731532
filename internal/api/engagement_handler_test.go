package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"feed-server/internal/api"
	"feed-server/internal/middleware"
	"feed-server/internal/models"
	serviceMocks "feed-server/internal/service/mocks"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testUserID     = uint64(42)
	testValidToken = "valid-token"
)

// setupRouter поднимает gin-роутер с обработчиком и стаб-верификатором токенов.
func setupRouter(svc *serviceMocks.EngagementService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	verifier := func(ctx context.Context, tokenString string) (*models.Claims, error) {
		if tokenString == testValidToken {
			return &models.Claims{UserID: testUserID}, nil
		}
		return nil, models.ErrTokenInvalid
	}

	h := api.NewEngagementHandler(svc, zap.NewNop())
	h.RegisterRoutes(router, middleware.GinAuthMiddleware(verifier, zap.NewNop()), nil)
	return router
}

func doRequest(router *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// TestToggleLikeEndpoint tests POST /api/posts/:id/like/toggle
func TestToggleLikeEndpoint(t *testing.T) {
	postID := uuid.New()

	t.Run("Successful toggle", func(t *testing.T) {
		svc := new(serviceMocks.EngagementService)
		router := setupRouter(svc)

		svc.On("ToggleLike", mock.Anything, testUserID, postID).
			Return(models.LikeResult{IsLiked: true, LikeCount: 6, Revision: 11}, nil).Once()

		rec := doRequest(router, http.MethodPost, "/api/posts/"+postID.String()+"/like/toggle", testValidToken)

		require.Equal(t, http.StatusOK, rec.Code)
		var result models.LikeResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.True(t, result.IsLiked)
		assert.Equal(t, int64(6), result.LikeCount)
		assert.Equal(t, int64(11), result.Revision)
		svc.AssertExpectations(t)
	})

	t.Run("Post not found", func(t *testing.T) {
		svc := new(serviceMocks.EngagementService)
		router := setupRouter(svc)

		svc.On("ToggleLike", mock.Anything, testUserID, postID).
			Return(models.LikeResult{}, models.ErrPostNotFound).Once()

		rec := doRequest(router, http.MethodPost, "/api/posts/"+postID.String()+"/like/toggle", testValidToken)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("Invalid post ID", func(t *testing.T) {
		svc := new(serviceMocks.EngagementService)
		router := setupRouter(svc)

		rec := doRequest(router, http.MethodPost, "/api/posts/not-a-uuid/like/toggle", testValidToken)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "ToggleLike", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Missing token", func(t *testing.T) {
		svc := new(serviceMocks.EngagementService)
		router := setupRouter(svc)

		rec := doRequest(router, http.MethodPost, "/api/posts/"+postID.String()+"/like/toggle", "")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		svc.AssertNotCalled(t, "ToggleLike", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Invalid token", func(t *testing.T) {
		svc := new(serviceMocks.EngagementService)
		router := setupRouter(svc)

		rec := doRequest(router, http.MethodPost, "/api/posts/"+postID.String()+"/like/toggle", "garbage")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Internal error", func(t *testing.T) {
		svc := new(serviceMocks.EngagementService)
		router := setupRouter(svc)

		svc.On("ToggleLike", mock.Anything, testUserID, postID).
			Return(models.LikeResult{}, assert.AnError).Once()

		rec := doRequest(router, http.MethodPost, "/api/posts/"+postID.String()+"/like/toggle", testValidToken)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		svc.AssertExpectations(t)
	})
}

// TestToggleRepostEndpoint tests POST /api/posts/:id/repost/toggle
func TestToggleRepostEndpoint(t *testing.T) {
	postID := uuid.New()

	t.Run("Successful toggle", func(t *testing.T) {
		svc := new(serviceMocks.EngagementService)
		router := setupRouter(svc)

		svc.On("ToggleRepost", mock.Anything, testUserID, postID).
			Return(models.RepostResult{IsReposted: true, RepostCount: 2, Revision: 5}, nil).Once()

		rec := doRequest(router, http.MethodPost, "/api/posts/"+postID.String()+"/repost/toggle", testValidToken)

		require.Equal(t, http.StatusOK, rec.Code)
		var result models.RepostResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.True(t, result.IsReposted)
		assert.Equal(t, int64(2), result.RepostCount)
		svc.AssertExpectations(t)
	})

	t.Run("Post not found", func(t *testing.T) {
		svc := new(serviceMocks.EngagementService)
		router := setupRouter(svc)

		svc.On("ToggleRepost", mock.Anything, testUserID, postID).
			Return(models.RepostResult{}, models.ErrPostNotFound).Once()

		rec := doRequest(router, http.MethodPost, "/api/posts/"+postID.String()+"/repost/toggle", testValidToken)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		svc.AssertExpectations(t)
	})
}

// TestGetFeedEndpoint tests GET /api/feed
func TestGetFeedEndpoint(t *testing.T) {
	t.Run("Successful page with params", func(t *testing.T) {
		svc := new(serviceMocks.EngagementService)
		router := setupRouter(svc)
		page := models.FeedPage{
			Posts: []models.Post{
				{ID: uuid.New(), Author: "alice", Text: "hello", LikeCount: 3, IsLiked: true},
			},
			NextCursor: "next",
		}

		svc.On("GetFeed", mock.Anything, testUserID, "abc", 5).Return(page, nil).Once()

		rec := doRequest(router, http.MethodGet, "/api/feed?limit=5&cursor=abc", testValidToken)

		require.Equal(t, http.StatusOK, rec.Code)
		var got models.FeedPage
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Len(t, got.Posts, 1)
		assert.Equal(t, "next", got.NextCursor)
		assert.True(t, got.Posts[0].IsLiked)
		svc.AssertExpectations(t)
	})

	t.Run("Defaults applied when params absent", func(t *testing.T) {
		svc := new(serviceMocks.EngagementService)
		router := setupRouter(svc)

		// Нулевой limit отдаём сервису как есть, дефолт применяет репозиторий
		svc.On("GetFeed", mock.Anything, testUserID, "", 0).
			Return(models.FeedPage{Posts: []models.Post{}}, nil).Once()

		rec := doRequest(router, http.MethodGet, "/api/feed", testValidToken)

		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("Invalid limit", func(t *testing.T) {
		svc := new(serviceMocks.EngagementService)
		router := setupRouter(svc)

		rec := doRequest(router, http.MethodGet, "/api/feed?limit=abc", testValidToken)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "GetFeed", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Invalid cursor from service", func(t *testing.T) {
		svc := new(serviceMocks.EngagementService)
		router := setupRouter(svc)

		svc.On("GetFeed", mock.Anything, testUserID, "broken", 0).
			Return(models.FeedPage{}, models.ErrInvalidInput).Once()

		rec := doRequest(router, http.MethodGet, "/api/feed?cursor=broken", testValidToken)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertExpectations(t)
	})
}

// TestGetPostEndpoint tests GET /api/posts/:id
func TestGetPostEndpoint(t *testing.T) {
	postID := uuid.New()

	t.Run("Found", func(t *testing.T) {
		svc := new(serviceMocks.EngagementService)
		router := setupRouter(svc)
		post := &models.Post{ID: postID, Author: "bob", Text: "post body", RepostCount: 4}

		svc.On("GetPost", mock.Anything, testUserID, postID).Return(post, nil).Once()

		rec := doRequest(router, http.MethodGet, "/api/posts/"+postID.String(), testValidToken)

		require.Equal(t, http.StatusOK, rec.Code)
		var got models.Post
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, postID, got.ID)
		assert.Equal(t, int64(4), got.RepostCount)
		svc.AssertExpectations(t)
	})

	t.Run("Not found", func(t *testing.T) {
		svc := new(serviceMocks.EngagementService)
		router := setupRouter(svc)

		svc.On("GetPost", mock.Anything, testUserID, postID).Return(nil, models.ErrPostNotFound).Once()

		rec := doRequest(router, http.MethodGet, "/api/posts/"+postID.String(), testValidToken)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		svc.AssertExpectations(t)
	})
}

// TestGetEngagementEndpoint tests GET /api/posts/:id/engagement
func TestGetEngagementEndpoint(t *testing.T) {
	postID := uuid.New()

	t.Run("Successful read", func(t *testing.T) {
		svc := new(serviceMocks.EngagementService)
		router := setupRouter(svc)
		engagement := models.EngagementUpdate{PostID: postID, LikeCount: 12, RepostCount: 3, Revision: 40}

		svc.On("GetEngagement", mock.Anything, postID).Return(engagement, nil).Once()

		rec := doRequest(router, http.MethodGet, "/api/posts/"+postID.String()+"/engagement", testValidToken)

		require.Equal(t, http.StatusOK, rec.Code)
		var got models.EngagementUpdate
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, engagement, got)
		svc.AssertExpectations(t)
	})

	t.Run("Not found", func(t *testing.T) {
		svc := new(serviceMocks.EngagementService)
		router := setupRouter(svc)

		svc.On("GetEngagement", mock.Anything, postID).
			Return(models.EngagementUpdate{}, models.ErrPostNotFound).Once()

		rec := doRequest(router, http.MethodGet, "/api/posts/"+postID.String()+"/engagement", testValidToken)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		svc.AssertExpectations(t)
	})
}
