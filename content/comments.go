package content

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"inkwell/common"
	"inkwell/models"
	"inkwell/session"
)

type CommentView struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Text     string `json:"text"`
}

// AddComment leaves a pending comment on any existing post. It stays out of
// read views until the post's author approves it.
func (r *Repository) AddComment(ctx context.Context, s session.Session, postID uint, text string) (uint, error) {
	if err := requireSession(s); err != nil {
		return 0, common.Fail("comment", "post", postID, err)
	}
	if err := required("comment", text); err != nil {
		return 0, common.Fail("comment", "post", postID, err)
	}

	comment := models.Comment{
		PostID: postID,
		UserID: s.UserID,
		Text:   text,
		Status: models.CommentPending,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findPost(tx, postID); err != nil {
			return err
		}
		if err := userExists(tx, s.UserID); err != nil {
			return err
		}
		return tx.Create(&comment).Error
	})
	if err != nil {
		return 0, common.Fail("comment", "post", postID, err)
	}

	r.log.Info("comment added", "comment_id", comment.ID, "post_id", postID, "user_id", s.UserID)
	return comment.ID, nil
}

// ApproveComment moves a comment from pending to approved. Only the author of
// the commented post may approve; approving twice is a no-op.
func (r *Repository) ApproveComment(ctx context.Context, s session.Session, commentID uint) error {
	if err := requireSession(s); err != nil {
		return common.Fail("approve", "comment", commentID, err)
	}

	approved := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment models.Comment
		if err := tx.First(&comment, commentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: comment %d", common.ErrNotFound, commentID)
			}
			return err
		}

		if _, err := ownedPost(tx, s, comment.PostID); err != nil {
			return err
		}
		if comment.Status == models.CommentApproved {
			return nil
		}

		approved = true
		return tx.Model(&models.Comment{}).
			Where("comment_id = ? AND status = ?", commentID, models.CommentPending).
			Update("status", models.CommentApproved).Error
	})
	if err != nil {
		return common.Fail("approve", "comment", commentID, err)
	}

	if approved {
		r.log.Info("comment approved", "comment_id", commentID, "by", s.UserID)
	}
	return nil
}

// ListPendingComments shows the post's author what is waiting for approval.
func (r *Repository) ListPendingComments(ctx context.Context, s session.Session, postID uint) ([]CommentView, error) {
	if err := requireSession(s); err != nil {
		return nil, common.Fail("list pending", "post", postID, err)
	}

	var pending []CommentView
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ownedPost(tx, s, postID); err != nil {
			return err
		}
		var err error
		pending, err = commentsWithStatus(tx, postID, models.CommentPending)
		return err
	})
	if err != nil {
		return nil, common.Fail("list pending", "post", postID, err)
	}
	return pending, nil
}

// commentsWithStatus returns the post's comments in insertion order.
func commentsWithStatus(tx *gorm.DB, postID uint, status models.CommentStatus) ([]CommentView, error) {
	comments := []CommentView{}
	err := tx.Table("comments AS c").
		Select("c.comment_id AS id, u.username AS username, c.comment_text AS text").
		Joins("JOIN users AS u ON u.user_id = c.user_id").
		Where("c.post_id = ? AND c.status = ?", postID, status).
		Order("c.comment_id ASC").
		Scan(&comments).Error
	if err != nil {
		return nil, err
	}
	return comments, nil
}
