package settings

import (
	"context"

	"github.com/goliatone/go-settings/pkg/activity"
)

// Validator checks a complete settings container, typically before save.
type Validator interface {
	Validate(ctx context.Context, root map[string]any) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context, root map[string]any) error

// Validate implements Validator.
func (f ValidatorFunc) Validate(ctx context.Context, root map[string]any) error {
	if f == nil {
		return nil
	}
	return f(ctx, root)
}

// Option configures a Document.
type Option func(*documentConfig)

type documentConfig struct {
	id         string
	actorID    string
	tenantID   string
	autoCreate bool
	logger     AccessLogger
	validator  Validator
	emitter    *activity.Emitter
}

func applyOptions(opts []Option) documentConfig {
	cfg := documentConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = noopAccessLogger{}
	}
	return cfg
}

// WithDocumentID sets the identifier reported in logs and activity events,
// usually the storage key of the settings being edited.
func WithDocumentID(id string) Option {
	return func(cfg *documentConfig) {
		cfg.id = id
	}
}

// WithActor records who is editing the document for activity events.
func WithActor(actorID, tenantID string) Option {
	return func(cfg *documentConfig) {
		cfg.actorID = actorID
		cfg.tenantID = tenantID
	}
}

// WithAutoCreate controls whether Set creates missing intermediate
// containers. Disabled by default.
func WithAutoCreate(enabled bool) Option {
	return func(cfg *documentConfig) {
		cfg.autoCreate = enabled
	}
}

// WithAccessLogger attaches a logger that receives every Get/Set/Delete.
func WithAccessLogger(logger AccessLogger) Option {
	return func(cfg *documentConfig) {
		if logger == nil {
			cfg.logger = noopAccessLogger{}
			return
		}
		cfg.logger = logger
	}
}

// WithValidator configures the validator used by Document.Validate.
func WithValidator(validator Validator) Option {
	return func(cfg *documentConfig) {
		cfg.validator = validator
	}
}

// WithActivityHooks emits field change events to hooks.
func WithActivityHooks(hooks activity.Hooks) Option {
	return func(cfg *documentConfig) {
		cfg.emitter = activity.NewEmitter(hooks, activity.Config{Enabled: true})
	}
}

// WithActivityEmitter reuses an existing emitter for field change events.
func WithActivityEmitter(emitter *activity.Emitter) Option {
	return func(cfg *documentConfig) {
		cfg.emitter = emitter
	}
}
