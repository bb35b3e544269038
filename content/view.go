package content

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/gorm"

	"inkwell/common"
	"inkwell/models"
)

// PostView is a post joined with its author, categories and approved comments.
type PostView struct {
	ID             uint          `json:"id"`
	Title          string        `json:"title"`
	Content        string        `json:"content"`
	AuthorUsername string        `json:"author_username"`
	CreatedAt      time.Time     `json:"created_at"`
	Categories     []string      `json:"categories"`
	Comments       []CommentView `json:"comments"`
}

type postRow struct {
	ID             uint
	Title          string
	Content        string
	AuthorUsername string
	CreatedAt      time.Time
}

// GetPostView assembles the read view of a post from one consistent snapshot.
// Pending comments never appear.
func (r *Repository) GetPostView(ctx context.Context, postID uint) (*PostView, error) {
	var view PostView
	err := r.readTx(ctx, func(tx *gorm.DB) error {
		var row postRow
		res := tx.Table("posts AS p").
			Select("p.post_id AS id, p.title AS title, p.content AS content, u.username AS author_username, p.created_at AS created_at").
			Joins("JOIN users AS u ON u.user_id = p.author_id").
			Where("p.post_id = ?", postID).
			Limit(1).
			Scan(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: post %d", common.ErrNotFound, postID)
		}
		view = PostView{
			ID:             row.ID,
			Title:          row.Title,
			Content:        row.Content,
			AuthorUsername: row.AuthorUsername,
			CreatedAt:      row.CreatedAt,
		}

		categories := []string{}
		err := tx.Table("categories AS c").
			Joins("JOIN post_categories AS pc ON pc.category_id = c.category_id").
			Where("pc.post_id = ?", postID).
			Order("c.category_name").
			Pluck("c.category_name", &categories).Error
		if err != nil {
			return err
		}
		view.Categories = categories

		view.Comments, err = commentsWithStatus(tx, postID, models.CommentApproved)
		return err
	})
	if err != nil {
		return nil, common.Fail("view", "post", postID, err)
	}

	if view.Categories == nil {
		view.Categories = []string{}
	}
	if view.Comments == nil {
		view.Comments = []CommentView{}
	}
	return &view, nil
}

// readTx runs fn in a read-only transaction. Postgres is asked for a
// repeatable-read snapshot; sqlite transactions are already serialized.
func (r *Repository) readTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	db := r.db.WithContext(ctx)
	if db.Dialector.Name() == "postgres" {
		return db.Transaction(fn, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	}
	return db.Transaction(fn)
}
