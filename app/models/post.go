package models

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrInvalidID is returned by ParseID for anything that is not a 24 character hex ObjectID.
var ErrInvalidID = errors.New("invalid post id")

// ParseID parses a hex post id.
func ParseID(s string) (bson.ObjectID, error) {
	id, err := bson.ObjectIDFromHex(s)
	if err != nil {
		return bson.NilObjectID, ErrInvalidID
	}
	return id, nil
}

// Validate checks the client supplied fields.
func (f *PostFields) Validate() error {
	return validate.Struct(f)
}

// Validate checks if the post meets all validation requirements
func (p *Post) Validate() error {
	if err := validate.Struct(p); err != nil {
		return err
	}

	if p.CreatedAt.IsZero() {
		return errors.New("createdAt cannot be zero")
	}

	return nil
}

// NewPost builds an unsaved post from client fields.
func NewPost(fields PostFields, creator string) *Post {
	p := &Post{Creator: creator}
	p.Apply(fields)
	p.BeforeCreate()
	return p
}

// BeforeCreate sets up any necessary fields before creation
func (p *Post) BeforeCreate() {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.Normalize()
}

// Normalize replaces nil slices with empty ones so they encode as [] rather than null.
func (p *Post) Normalize() {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Likes == nil {
		p.Likes = []string{}
	}
	if p.Comments == nil {
		p.Comments = []string{}
	}
}

// Apply overwrites the client editable fields. Identity, ownership,
// creation time, likes and comments are left alone.
func (p *Post) Apply(fields PostFields) {
	p.Title = fields.Title
	p.Message = fields.Message
	p.Name = fields.Name
	p.Tags = append([]string(nil), fields.Tags...)
	p.SelectedFile = fields.SelectedFile
	p.Normalize()
}

// LikedBy reports whether userID is in the post's likes.
func (p *Post) LikedBy(userID string) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// ToggleLike adds userID to likes if absent and removes it otherwise.
func (p *Post) ToggleLike(userID string) {
	if !p.LikedBy(userID) {
		p.Likes = append(p.Likes, userID)
		return
	}
	likes := make([]string, 0, len(p.Likes))
	for _, id := range p.Likes {
		if id != userID {
			likes = append(likes, id)
		}
	}
	p.Likes = likes
}

// AddComment appends a comment to the post
func (p *Post) AddComment(value string) {
	p.Comments = append(p.Comments, value)
}

// HasAnyTag reports whether the post carries at least one of tags.
func (p *Post) HasAnyTag(tags []string) bool {
	for _, want := range tags {
		for _, have := range p.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}
