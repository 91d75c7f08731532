package models

import (
	"time"

	"github.com/google/uuid"
)

// Post - публикация в ленте вместе со счётчиками вовлечённости и
// отметками зрителя, от имени которого выполнялся запрос.
type Post struct {
	ID          uuid.UUID `json:"id"`
	AuthorID    uint64    `json:"author_id"`
	Author      string    `json:"author"`
	Text        string    `json:"text"`
	LikeCount   int64     `json:"like_count"`
	RepostCount int64     `json:"repost_count"`
	ReplyCount  int64     `json:"reply_count"`
	Revision    int64     `json:"revision"`
	IsLiked     bool      `json:"is_liked"`
	IsReposted  bool      `json:"is_reposted"`
	CreatedAt   time.Time `json:"created_at"`
}

// EngagementSnapshot возвращает снимок вовлечённости поста.
func (p Post) EngagementSnapshot() EngagementSnapshot {
	return EngagementSnapshot{
		PostID:      p.ID,
		LikeCount:   p.LikeCount,
		RepostCount: p.RepostCount,
		ReplyCount:  p.ReplyCount,
		Revision:    p.Revision,
		IsLiked:     p.IsLiked,
		IsReposted:  p.IsReposted,
	}
}

// FeedPage - страница ленты с курсором для следующего запроса.
// Пустой NextCursor означает конец ленты.
type FeedPage struct {
	Posts      []Post `json:"posts"`
	NextCursor string `json:"next_cursor,omitempty"`
}
