package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"memories/app/models"

	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	ErrNotFound = errors.New("record not found")
)

const (
	// PostKeyPrefix prefixes every post document key.
	PostKeyPrefix = "post:"
)

func postKey(id bson.ObjectID) []byte {
	return []byte(PostKeyPrefix + id.Hex())
}

// marshalEntity marshals an entity to JSON
func marshalEntity(entity interface{}) ([]byte, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity: %v", err)
	}
	return data, nil
}

// unmarshalEntity unmarshals JSON data into an entity
func unmarshalEntity(data []byte, entity interface{}) error {
	if err := json.Unmarshal(data, entity); err != nil {
		return fmt.Errorf("failed to unmarshal entity: %v", err)
	}
	return nil
}

// MatchesSearch is the predicate used by stores that filter in process:
// a case-insensitive literal substring match on the title, or any tag in common.
func MatchesSearch(post *models.Post, query string, tags []string) bool {
	if strings.Contains(strings.ToLower(post.Title), strings.ToLower(query)) {
		return true
	}
	return post.HasAnyTag(tags)
}
