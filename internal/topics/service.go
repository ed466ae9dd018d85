package topics

import (
	"context"
	"errors"
	"log/slog"

	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
	"attesta/pkg/platform/audit"
	"attesta/pkg/platform/sentinel"
	"attesta/pkg/requestcontext"
)

// Registry is the claim topic catalog service. It owns topic policy
// (required flag, expiry days, renewability) so call sites never hardcode
// it.
type Registry struct {
	store Store

	logger         *slog.Logger
	auditPublisher audit.Publisher
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

func WithAuditPublisher(p audit.Publisher) Option {
	return func(r *Registry) { r.auditPublisher = p }
}

func New(store Store, opts ...Option) (*Registry, error) {
	if store == nil {
		return nil, errors.New("topic store is required")
	}
	r := &Registry{store: store}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// DefineTopic registers a new topic definition.
func (r *Registry) DefineTopic(ctx context.Context, def *Definition) (*Definition, error) {
	if def == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "topic definition is required")
	}
	validated, err := NewDefinition(def.ID, def.Name, def.Category, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	validated.Description = def.Description
	validated.Required = def.Required
	validated.Renewable = def.Renewable
	if def.DefaultExpiryDays < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "default expiry days cannot be negative")
	}
	validated.DefaultExpiryDays = def.DefaultExpiryDays

	if err := r.store.Create(ctx, validated); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Newf(dErrors.CodeValidation, "topic %s already defined", def.ID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create topic")
	}

	r.emit(ctx, audit.Event{
		Operation: audit.OpTopicDefine,
		Timestamp: validated.CreatedAt,
		Topic:     validated.ID,
		Operator:  requestcontext.Operator(ctx),
	})
	return validated, nil
}

// GetTopic returns a topic definition by id.
func (r *Registry) GetTopic(ctx context.Context, topicID id.TopicID) (*Definition, error) {
	def, err := r.store.Get(ctx, topicID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "topic %s not found", topicID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to get topic")
	}
	return def, nil
}

// ListTopics returns the full catalog.
func (r *Registry) ListTopics(ctx context.Context) ([]*Definition, error) {
	defs, err := r.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list topics")
	}
	return defs, nil
}

// ListRequiredTopics returns every topic with the required flag set. The
// verification engine uses this as the default compliance baseline.
func (r *Registry) ListRequiredTopics(ctx context.Context) ([]*Definition, error) {
	defs, err := r.store.ListRequired(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list required topics")
	}
	return defs, nil
}

// UpdateTopic applies an administrative patch. Policy changes affect future
// issuance only; existing claims keep the expiry they were issued with.
func (r *Registry) UpdateTopic(ctx context.Context, topicID id.TopicID, patch Patch) (*Definition, error) {
	now := requestcontext.Now(ctx)
	var applyErr error
	def, err := r.store.Execute(ctx, topicID,
		func(d *Definition) error {
			// Validate on a copy so a failed patch leaves the record intact.
			cp := *d
			applyErr = patch.Apply(&cp, now)
			return applyErr
		},
		func(d *Definition) {
			_ = patch.Apply(d, now)
		},
	)
	if err != nil {
		if applyErr != nil {
			return nil, applyErr
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "topic %s not found", topicID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update topic")
	}

	r.emit(ctx, audit.Event{
		Operation: audit.OpTopicUpdate,
		Timestamp: now,
		Topic:     topicID,
		Operator:  requestcontext.Operator(ctx),
	})
	return def, nil
}

// Seed installs the built-in catalog, skipping topics that already exist.
func (r *Registry) Seed(ctx context.Context) error {
	for _, def := range Defaults(requestcontext.Now(ctx)) {
		if err := r.store.Create(ctx, def); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				continue
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to seed topics")
		}
	}
	return nil
}

func (r *Registry) emit(ctx context.Context, event audit.Event) {
	if r.auditPublisher == nil {
		return
	}
	if err := r.auditPublisher.Emit(ctx, event); err != nil && r.logger != nil {
		r.logger.WarnContext(ctx, "topic audit emit failed", "operation", event.Operation, "error", err)
	}
}
