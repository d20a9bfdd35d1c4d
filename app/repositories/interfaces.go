package repositories

import (
	"context"

	"memories/app/models"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// PostRepository defines the interface for post data access.
// List, Search and ListByName return posts newest first.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id bson.ObjectID) (*models.Post, error)
	List(ctx context.Context, limit, offset int) ([]*models.Post, error)
	Count(ctx context.Context) (int64, error)
	Search(ctx context.Context, query string, tags []string) ([]*models.Post, error)
	ListByName(ctx context.Context, name string) ([]*models.Post, error)
	Update(ctx context.Context, id bson.ObjectID, fields models.PostFields) (*models.Post, error)
	Delete(ctx context.Context, id bson.ObjectID) error
	ToggleLike(ctx context.Context, id bson.ObjectID, userID string) (*models.Post, error)
	AppendComment(ctx context.Context, id bson.ObjectID, value string) (*models.Post, error)
	Ping(ctx context.Context) error
	Close() error
}
