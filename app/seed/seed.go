// Package seed fills a store with demo posts for development.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"memories/app/models"
	"memories/app/services"

	"github.com/brianvoe/gofakeit/v6"
)

// Factory builds fake post payloads.
type Factory struct {
	faker *gofakeit.Faker
}

// NewFactory returns a factory. A zero seed picks a random one.
func NewFactory(seed int64) *Factory {
	return &Factory{faker: gofakeit.New(seed)}
}

// BuildFields returns post fields populated with fake content.
func (f *Factory) BuildFields() models.PostFields {
	tags := make([]string, 0, 3)
	for i := f.faker.Number(1, 3); i > 0; i-- {
		tags = append(tags, strings.ToLower(f.faker.Word()))
	}
	return models.PostFields{
		Title:        strings.TrimSuffix(f.faker.Sentence(4), "."),
		Message:      f.faker.Paragraph(1, 3, 8, " "),
		Name:         f.faker.FirstName() + " " + f.faker.LastName(),
		Tags:         tags,
		SelectedFile: fmt.Sprintf("https://picsum.photos/seed/%s/800/600", f.faker.UUID()),
	}
}

// Options control a seed run.
type Options struct {
	Posts       int
	MaxLikes    int
	MaxComments int
}

// Run creates opts.Posts posts through the services with random likes and comments.
// It returns the number of posts created.
func Run(ctx context.Context, f *Factory, posts *services.PostService, comments *services.CommentService, opts Options, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	created := 0
	for i := 0; i < opts.Posts; i++ {
		fields := f.BuildFields()
		post, err := posts.CreatePost(ctx, fields, f.faker.UUID())
		if err != nil {
			return created, fmt.Errorf("seed post %d: %w", i, err)
		}
		created++
		id := post.ID.Hex()

		if opts.MaxLikes > 0 {
			for n := f.faker.Number(0, opts.MaxLikes); n > 0; n-- {
				if _, err := posts.LikePost(ctx, id, f.faker.UUID()); err != nil {
					return created, fmt.Errorf("seed like on %s: %w", id, err)
				}
			}
		}
		if opts.MaxComments > 0 {
			for n := f.faker.Number(0, opts.MaxComments); n > 0; n-- {
				value := f.faker.FirstName() + ": " + f.faker.Sentence(6)
				if _, err := comments.AddComment(ctx, id, value); err != nil {
					return created, fmt.Errorf("seed comment on %s: %w", id, err)
				}
			}
		}
		logger.DebugContext(ctx, "seeded post", slog.String("id", id), slog.String("title", post.Title))
	}

	logger.InfoContext(ctx, "seed complete", slog.Int("posts", created))
	return created, nil
}
