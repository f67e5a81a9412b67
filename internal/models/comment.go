package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

var ErrCommentEmpty = errors.New("a comment must have a body")

// EntityRef is a reference to any entity comments, tags and receipts can
// be attached to.
type EntityRef struct {
	Type string
	ID   string
}

func (r EntityRef) String() string {
	return fmt.Sprintf("%s:%s", r.Type, r.ID)
}

// EntityRef makes references usable where a Commentable is expected.
func (r EntityRef) EntityRef() EntityRef {
	return r
}

func ref(t string, id uint) EntityRef {
	return EntityRef{Type: t, ID: strconv.FormatUint(uint64(id), 10)}
}

// Commentable is implemented by everything comments can be attached to.
type Commentable interface {
	EntityRef() EntityRef
}

type Comment struct {
	DefaultModel
	CommentableType string `json:"commentableType" gorm:"index:idx_comment_commentable"`
	CommentableID   string `json:"commentableId" gorm:"index:idx_comment_commentable"`
	Body            string `json:"body"`
}

func (c *Comment) BeforeSave(_ *gorm.DB) error {
	c.Body = strings.TrimSpace(c.Body)
	if c.Body == "" {
		return ErrCommentEmpty
	}
	return nil
}

// AddComment attaches a comment to target.
func AddComment(db *gorm.DB, target Commentable, body string) (Comment, error) {
	r := target.EntityRef()
	c := Comment{
		CommentableType: r.Type,
		CommentableID:   r.ID,
		Body:            body,
	}

	err := db.Create(&c).Error
	return c, err
}

// Comments returns the comments of target, oldest first.
func Comments(db *gorm.DB, target Commentable) ([]Comment, error) {
	r := target.EntityRef()

	var comments []Comment
	err := db.Where("commentable_type = ? AND commentable_id = ?", r.Type, r.ID).Order("id ASC").Find(&comments).Error
	return comments, err
}
