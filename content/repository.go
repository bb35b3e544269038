// Package content owns posts, categories and comments and keeps the relations
// between them consistent. Every mutation runs in a single transaction.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"inkwell/authz"
	"inkwell/common"
	"inkwell/models"
	"inkwell/session"
)

type Repository struct {
	db  *gorm.DB
	now func() time.Time
	log *slog.Logger
}

type Option func(*Repository)

// WithClock overrides the source of created_at timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(r *Repository) {
		r.log = log
	}
}

func NewRepository(db *gorm.DB, opts ...Option) *Repository {
	r := &Repository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PostUpdate holds the fields to change. A nil field is left untouched.
type PostUpdate struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

func (u PostUpdate) Empty() bool {
	return u.Title == nil && u.Content == nil
}

type PostSummary struct {
	ID             uint      `json:"id"`
	Title          string    `json:"title"`
	AuthorUsername string    `json:"author_username"`
	CreatedAt      time.Time `json:"created_at"`
}

func (r *Repository) CreatePost(ctx context.Context, s session.Session, title, body string) (uint, error) {
	if err := requireSession(s); err != nil {
		return 0, common.Fail("create", "post", 0, err)
	}
	if err := required("title", title); err != nil {
		return 0, common.Fail("create", "post", 0, err)
	}
	if err := required("content", body); err != nil {
		return 0, common.Fail("create", "post", 0, err)
	}

	post := models.Post{
		AuthorID:  s.UserID,
		Title:     title,
		Content:   body,
		CreatedAt: r.now(),
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := userExists(tx, s.UserID); err != nil {
			return err
		}
		return tx.Create(&post).Error
	})
	if err != nil {
		return 0, common.Fail("create", "post", 0, err)
	}

	r.log.Info("post created", "post_id", post.ID, "author_id", s.UserID)
	return post.ID, nil
}

func (r *Repository) EditPost(ctx context.Context, s session.Session, postID uint, update PostUpdate) error {
	if err := requireSession(s); err != nil {
		return common.Fail("edit", "post", postID, err)
	}

	changes := map[string]interface{}{}
	if update.Title != nil {
		if err := required("title", *update.Title); err != nil {
			return common.Fail("edit", "post", postID, err)
		}
		changes["title"] = *update.Title
	}
	if update.Content != nil {
		if err := required("content", *update.Content); err != nil {
			return common.Fail("edit", "post", postID, err)
		}
		changes["content"] = *update.Content
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := ownedPost(tx, s, postID)
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			return nil
		}
		return tx.Model(post).Updates(changes).Error
	})
	if err != nil {
		return common.Fail("edit", "post", postID, err)
	}

	if len(changes) > 0 {
		r.log.Info("post edited", "post_id", postID, "fields", len(changes))
	}
	return nil
}

// DeletePost removes the post together with its comments and category
// associations. Either all of them go or none do.
func (r *Repository) DeletePost(ctx context.Context, s session.Session, postID uint) error {
	if err := requireSession(s); err != nil {
		return common.Fail("delete", "post", postID, err)
	}

	var comments, tags int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := ownedPost(tx, s, postID)
		if err != nil {
			return err
		}

		res := tx.Where("post_id = ?", postID).Delete(&models.Comment{})
		if res.Error != nil {
			return res.Error
		}
		comments = res.RowsAffected

		res = tx.Where("post_id = ?", postID).Delete(&models.PostCategory{})
		if res.Error != nil {
			return res.Error
		}
		tags = res.RowsAffected

		return tx.Delete(post).Error
	})
	if err != nil {
		return common.Fail("delete", "post", postID, err)
	}

	r.log.Info("post deleted", "post_id", postID, "comments", comments, "categories", tags)
	return nil
}

// ListPosts returns every post, newest first. Posts created at the same
// instant keep their insertion order.
func (r *Repository) ListPosts(ctx context.Context) ([]PostSummary, error) {
	summaries := []PostSummary{}
	err := r.db.WithContext(ctx).
		Table("posts AS p").
		Select("p.post_id AS id, p.title AS title, u.username AS author_username, p.created_at AS created_at").
		Joins("JOIN users AS u ON u.user_id = p.author_id").
		Order("p.created_at DESC").
		Order("p.post_id ASC").
		Scan(&summaries).Error
	if err != nil {
		return nil, common.Fail("list", "posts", 0, err)
	}
	return summaries, nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories := []models.Category{}
	if err := r.db.WithContext(ctx).Order("category_id").Find(&categories).Error; err != nil {
		return nil, common.Fail("list", "categories", 0, err)
	}
	return categories, nil
}

// AddCategoryToPost tags a post. Any authenticated user may tag any post.
func (r *Repository) AddCategoryToPost(ctx context.Context, s session.Session, postID, categoryID uint) error {
	if err := requireSession(s); err != nil {
		return common.Fail("tag", "post", postID, err)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := userExists(tx, s.UserID); err != nil {
			return err
		}
		if _, err := findPost(tx, postID); err != nil {
			return err
		}

		var category models.Category
		if err := tx.First(&category, categoryID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: category %d", common.ErrNotFound, categoryID)
			}
			return err
		}

		var count int64
		err := tx.Model(&models.PostCategory{}).
			Where("post_id = ? AND category_id = ?", postID, categoryID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: post already tagged with %q", common.ErrConflict, category.Name)
		}

		return tx.Create(&models.PostCategory{PostID: postID, CategoryID: categoryID}).Error
	})
	if err != nil {
		return common.Fail("tag", "post", postID, err)
	}

	r.log.Info("post tagged", "post_id", postID, "category_id", categoryID, "by", s.UserID)
	return nil
}

func requireSession(s session.Session) error {
	if !s.Authenticated() {
		return fmt.Errorf("%w: login required", common.ErrForbidden)
	}
	return nil
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s must not be empty", common.ErrInvalidInput, field)
	}
	return nil
}

func userExists(tx *gorm.DB, userID uint) error {
	var count int64
	if err := tx.Model(&models.User{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: user %d", common.ErrNotFound, userID)
	}
	return nil
}

func findPost(tx *gorm.DB, postID uint) (*models.Post, error) {
	var post models.Post
	if err := tx.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: post %d", common.ErrNotFound, postID)
		}
		return nil, err
	}
	return &post, nil
}

// ownedPost loads the post and checks it belongs to the acting user.
func ownedPost(tx *gorm.DB, s session.Session, postID uint) (*models.Post, error) {
	post, err := findPost(tx, postID)
	if err != nil {
		return nil, err
	}
	if !authz.Authorize(s.UserID, post.AuthorID) {
		return nil, fmt.Errorf("%w: post %d belongs to another user", common.ErrForbidden, postID)
	}
	return post, nil
}
