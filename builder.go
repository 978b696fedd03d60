package tendergate

import (
	"errors"

	"github.com/procurity/tendergate/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. Instances are configured during
// initialization and discarded after Build.
type Builder struct {
	config Config
	redis  *redis.Client

	remote    RemoteAPI
	auditSink AuditSink

	built bool
}

// New returns a Builder carrying the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client for durable session and cooldown state.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithRemoteAPI sets the backend the engine drives.
func (b *Builder) WithRemoteAPI(remote RemoteAPI) *Builder {
	b.remote = remote
	return b
}

// WithAuditSink sets the sink receiving audit events. Events are only
// emitted when Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.remote == nil {
		return nil, errors.New("remote API required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	engine := &Engine{
		config: cfg,
		remote: b.remote,
		store:  session.NewStore(b.redis, cfg.Session.StorageNamespace),
	}
	engine.cooldowns = newCooldownTimer(b.redis, cfg.Session.StorageNamespace)
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}
