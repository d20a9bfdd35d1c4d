package services

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"memories/app/events"
	"memories/app/models"
	"memories/app/repositories"
)

// DefaultPageSize is the number of posts on one feed page.
const DefaultPageSize = 8

// DeletedMessage is the confirmation returned after a delete.
const DeletedMessage = "Post deleted successfully."

// PostService handles business logic for posts. It keeps no state of its
// own, so any number of instances may share one repository.
type PostService struct {
	postRepo  repositories.PostRepository
	publisher events.Publisher
	logger    *slog.Logger
	pageSize  int
}

// NewPostService creates a new PostService. A nil publisher drops events.
func NewPostService(postRepo repositories.PostRepository, publisher events.Publisher, logger *slog.Logger) *PostService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostService{
		postRepo:  postRepo,
		publisher: publisher,
		logger:    logger.With("service", "posts"),
		pageSize:  DefaultPageSize,
	}
}

// ListPosts returns one page of the feed, newest first. Pages start at 1;
// anything lower is treated as the first page. A page past the end is empty.
func (s *PostService) ListPosts(ctx context.Context, page int) (*models.Page, error) {
	if page < 1 {
		page = 1
	}

	total, err := s.postRepo.Count(ctx)
	if err != nil {
		return nil, s.fail(ctx, "count posts", notFound(err))
	}

	result := &models.Page{
		Posts:         []*models.Post{},
		CurrentPage:   page,
		NumberOfPages: int((total + int64(s.pageSize) - 1) / int64(s.pageSize)),
	}
	// Offsets that would overflow int are past any real feed.
	if page-1 > math.MaxInt/s.pageSize {
		return result, nil
	}

	posts, err := s.postRepo.List(ctx, s.pageSize, (page-1)*s.pageSize)
	if err != nil {
		return nil, s.fail(ctx, "list posts", notFound(err))
	}
	result.Posts = posts
	return result, nil
}

// SearchPosts returns posts whose title contains searchQuery, ignoring case,
// or that carry one of the comma separated tags.
func (s *PostService) SearchPosts(ctx context.Context, searchQuery, tags string) ([]*models.Post, error) {
	posts, err := s.postRepo.Search(ctx, searchQuery, SplitTags(tags))
	if err != nil {
		return nil, s.fail(ctx, "search posts", notFound(err))
	}
	return posts, nil
}

// ListPostsByCreator returns posts whose display name is exactly name.
func (s *PostService) ListPostsByCreator(ctx context.Context, name string) ([]*models.Post, error) {
	posts, err := s.postRepo.ListByName(ctx, name)
	if err != nil {
		return nil, s.fail(ctx, "list posts by creator", notFound(err))
	}
	return posts, nil
}

// GetPost retrieves a post by its hex id.
func (s *PostService) GetPost(ctx context.Context, id string) (*models.Post, error) {
	oid, err := models.ParseID(id)
	if err != nil {
		return nil, noPostWithID(id, err)
	}

	post, err := s.postRepo.GetByID(ctx, oid)
	if err != nil {
		return nil, s.storeFailure(ctx, "get post", id, err)
	}
	return post, nil
}

// CreatePost stores a new post owned by callerID, which may be empty.
func (s *PostService) CreatePost(ctx context.Context, fields models.PostFields, callerID string) (*models.Post, error) {
	if err := fields.Validate(); err != nil {
		return nil, conflict(err)
	}

	post := models.NewPost(fields, callerID)
	if err := post.Validate(); err != nil {
		return nil, conflict(err)
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, s.fail(ctx, "create post", conflict(err))
	}

	s.publish(ctx, events.PostCreated, post, callerID)
	return post, nil
}

// UpdatePost overwrites the editable fields of a post. Likes, comments,
// the creator and the creation time are kept.
func (s *PostService) UpdatePost(ctx context.Context, id string, fields models.PostFields) (*models.Post, error) {
	oid, err := models.ParseID(id)
	if err != nil {
		return nil, &Error{Kind: KindNotFound, Message: "No post with that id", Err: err}
	}
	if err := fields.Validate(); err != nil {
		return nil, notFound(err)
	}

	post, err := s.postRepo.Update(ctx, oid, fields)
	if err != nil {
		return nil, s.storeFailure(ctx, "update post", id, err)
	}

	s.publish(ctx, events.PostUpdated, post, "")
	return post, nil
}

// DeletePost permanently removes a post. Removing a post that does not
// exist succeeds.
func (s *PostService) DeletePost(ctx context.Context, id string) error {
	oid, err := models.ParseID(id)
	if err != nil {
		return noPostWithID(id, err)
	}

	if err := s.postRepo.Delete(ctx, oid); err != nil {
		return s.fail(ctx, "delete post", notFound(err))
	}

	s.publish(ctx, events.PostDeleted, &models.Post{ID: oid}, "")
	return nil
}

// LikePost toggles callerID in the post's likes.
func (s *PostService) LikePost(ctx context.Context, id, callerID string) (*models.Post, error) {
	if callerID == "" {
		return nil, ErrUnauthenticated
	}
	oid, err := models.ParseID(id)
	if err != nil {
		return nil, noPostWithID(id, err)
	}

	post, err := s.postRepo.ToggleLike(ctx, oid, callerID)
	if err != nil {
		return nil, s.storeFailure(ctx, "like post", id, err)
	}

	s.publish(ctx, events.PostLiked, post, callerID)
	return post, nil
}

// storeFailure maps a repository error for the post with the given id.
func (s *PostService) storeFailure(ctx context.Context, op, id string, err error) error {
	if serr := noPostWithIDIfMissing(id, err); serr != nil {
		return serr
	}
	return s.fail(ctx, op, notFound(err))
}

func (s *PostService) fail(ctx context.Context, op string, err *Error) error {
	s.logger.ErrorContext(ctx, "store operation failed",
		slog.String("operation", op),
		slog.String("kind", err.Kind.String()),
		slog.String("error", err.Message),
	)
	return err
}

func (s *PostService) publish(ctx context.Context, eventType string, post *models.Post, actor string) {
	event := events.NewPostEvent(eventType, post, actor)
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish post event",
			slog.String("subject", event.Subject()),
			slog.String("post_id", event.ID),
			slog.String("error", err.Error()),
		)
	}
}

// SplitTags parses a comma separated tag list, dropping blank entries.
func SplitTags(csv string) []string {
	tags := []string{}
	for _, tag := range strings.Split(csv, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
