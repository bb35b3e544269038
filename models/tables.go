package models

import "time"

type CommentStatus string

const (
	CommentPending  CommentStatus = "pending"
	CommentApproved CommentStatus = "approved"
)

type User struct {
	ID           uint   `gorm:"column:user_id;primaryKey;autoIncrement" json:"id"`
	Username     string `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string `gorm:"not null" json:"-"` // json:"-" keeps the hash out of API responses
}

type Post struct {
	ID        uint      `gorm:"column:post_id;primaryKey;autoIncrement" json:"id"`
	AuthorID  uint      `gorm:"not null;index" json:"author_id"`
	Title     string    `gorm:"not null" json:"title"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

type Category struct {
	ID   uint   `gorm:"column:category_id;primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"column:category_name;uniqueIndex;not null" json:"name"`
}

// PostCategory is the post <-> category association. The composite primary
// key keeps each pair unique.
type PostCategory struct {
	PostID     uint `gorm:"primaryKey;autoIncrement:false" json:"post_id"`
	CategoryID uint `gorm:"primaryKey;autoIncrement:false;index" json:"category_id"`
}

type Comment struct {
	ID     uint          `gorm:"column:comment_id;primaryKey;autoIncrement" json:"id"`
	PostID uint          `gorm:"not null;index" json:"post_id"`
	UserID uint          `gorm:"not null;index" json:"user_id"`
	Text   string        `gorm:"column:comment_text;type:text;not null" json:"text"`
	Status CommentStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
}

func (User) TableName() string         { return "users" }
func (Post) TableName() string         { return "posts" }
func (Category) TableName() string     { return "categories" }
func (PostCategory) TableName() string { return "post_categories" }
func (Comment) TableName() string      { return "comments" }

// All lists every table in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Post{},
		&Category{},
		&PostCategory{},
		&Comment{},
	}
}
