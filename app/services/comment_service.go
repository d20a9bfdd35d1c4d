package services

import (
	"context"
	"log/slog"

	"memories/app/events"
	"memories/app/models"
	"memories/app/repositories"
)

// CommentService handles comments on posts. Comments are plain text
// appended to the post; they carry no author and are never removed.
type CommentService struct {
	postRepo  repositories.PostRepository
	publisher events.Publisher
	logger    *slog.Logger
}

// NewCommentService creates a new CommentService
func NewCommentService(postRepo repositories.PostRepository, publisher events.Publisher, logger *slog.Logger) *CommentService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CommentService{
		postRepo:  postRepo,
		publisher: publisher,
		logger:    logger.With("service", "comments"),
	}
}

// AddComment appends value to the comments of the post with the given id
// and returns the updated post.
func (s *CommentService) AddComment(ctx context.Context, id, value string) (*models.Post, error) {
	oid, err := models.ParseID(id)
	if err != nil {
		return nil, noPostWithID(id, err)
	}

	post, err := s.postRepo.AppendComment(ctx, oid, value)
	if err != nil {
		if serr := noPostWithIDIfMissing(id, err); serr != nil {
			return nil, serr
		}
		s.logger.ErrorContext(ctx, "store operation failed",
			slog.String("operation", "comment post"),
			slog.String("post_id", id),
			slog.String("error", err.Error()),
		)
		return nil, notFound(err)
	}

	event := events.NewPostEvent(events.PostCommented, post, "")
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish post event",
			slog.String("subject", event.Subject()),
			slog.String("post_id", event.ID),
			slog.String("error", err.Error()),
		)
	}
	return post, nil
}
