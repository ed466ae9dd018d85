package topics

import (
	"context"

	id "attesta/pkg/domain"
)

// Store persists topic definitions. Read-mostly reference data with
// administrative writes only; there is deliberately no delete.
type Store interface {
	Create(ctx context.Context, def *Definition) error
	Get(ctx context.Context, topicID id.TopicID) (*Definition, error)
	List(ctx context.Context) ([]*Definition, error)
	ListRequired(ctx context.Context) ([]*Definition, error)
	// Execute applies validate-then-mutate under the store's lock.
	Execute(ctx context.Context, topicID id.TopicID, validate func(*Definition) error, mutate func(*Definition)) (*Definition, error)
}
