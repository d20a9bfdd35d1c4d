package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Post is a single feed entry. Likes holds the ids of users who liked the
// post and never contains the same id twice; Comments is append-only.
type Post struct {
	ID           bson.ObjectID `json:"_id" bson:"_id"`
	Title        string        `json:"title" bson:"title" validate:"max=200"`
	Message      string        `json:"message" bson:"message" validate:"max=10000"`
	Name         string        `json:"name" bson:"name" validate:"max=100"`
	Creator      string        `json:"creator" bson:"creator"`
	Tags         []string      `json:"tags" bson:"tags" validate:"max=20,dive,max=50"`
	SelectedFile string        `json:"selectedFile" bson:"selectedFile"`
	Likes        []string      `json:"likes" bson:"likes"`
	Comments     []string      `json:"comments" bson:"comments"`
	CreatedAt    time.Time     `json:"createdAt" bson:"createdAt"`
}

// PostFields are the fields a client may set on create and update.
type PostFields struct {
	Title        string   `json:"title" validate:"max=200"`
	Message      string   `json:"message" validate:"max=10000"`
	Name         string   `json:"name" validate:"max=100"`
	Tags         []string `json:"tags" validate:"max=20,dive,max=50"`
	SelectedFile string   `json:"selectedFile"`
}

// Page is one page of the feed.
type Page struct {
	Posts         []*Post
	CurrentPage   int
	NumberOfPages int
}
