package settings

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultCacheTTL is how long a fetched value is served without I/O
	DefaultCacheTTL = 60 * time.Second
	// DefaultFetchTimeout bounds a single store lookup
	DefaultFetchTimeout = 3 * time.Second
)

// Resolver resolves configuration keys through cache, store and static defaults.
// It never returns an error: any store failure degrades to a default.
type Resolver struct {
	repo         Repository
	cache        Cache
	fetchTimeout time.Duration
	logger       *zap.Logger
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithCache replaces the default in-memory cache
func WithCache(c Cache) ResolverOption {
	return func(r *Resolver) {
		r.cache = c
	}
}

// WithFetchTimeout bounds every store lookup
func WithFetchTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.fetchTimeout = d
	}
}

// WithLogger sets the logger used to report absorbed failures
func WithLogger(l *zap.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a resolver over repo
func NewResolver(repo Repository, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		repo:         repo,
		fetchTimeout: DefaultFetchTimeout,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = NewMemoryCache(DefaultCacheTTL)
	}
	return r
}

// Resolve returns the value for key, falling back to the static default.
// Unknown keys resolve to nil.
func (r *Resolver) Resolve(ctx context.Context, key Key) any {
	v, _ := r.resolve(ctx, key, nil, false)
	return v
}

// ResolveOr is Resolve with a caller-supplied default that takes
// precedence over the static one.
func (r *Resolver) ResolveOr(ctx context.Context, key Key, def any) any {
	v, _ := r.resolve(ctx, key, def, true)
	return v
}

func (r *Resolver) resolve(ctx context.Context, key Key, def any, hasDef bool) (any, Source) {
	k, err := ParseKey(string(key))
	if err != nil {
		r.logger.Debug("Unknown setting key requested", zap.String("key", string(key)))
		if hasDef {
			return def, SourceDefault
		}
		return nil, SourceDefault
	}
	key = k

	if v, ok := r.cache.Get(key); ok {
		return clone(v), SourceCache
	}

	v, err := r.fetch(ctx, key)
	if err == nil {
		r.cache.Set(key, v)
		return clone(v), SourceStore
	}

	r.logger.Warn("Setting lookup failed, using fallback",
		zap.String("key", string(key)),
		zap.Bool("caller_default", hasDef),
		zap.Error(err))

	if hasDef {
		return def, SourceDefault
	}
	return defaultValue(key), SourceDefault
}

func (r *Resolver) fetch(ctx context.Context, key Key) (any, error) {
	if r.repo == nil {
		return nil, fmt.Errorf("no settings store configured")
	}

	fetchCtx := ctx
	if r.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, r.fetchTimeout)
		defer cancel()
	}

	row, err := r.repo.Get(fetchCtx, key)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrNotFound
	}

	v, dropped, err := decode(key, row.Value)
	if err != nil {
		return nil, err
	}
	if len(dropped) > 0 {
		r.logger.Warn("Ignoring invalid setting entries",
			zap.String("key", string(key)),
			zap.Strings("entries", dropped))
	}
	return v, nil
}

// CommissionRates returns the canonical role rate table
func (r *Resolver) CommissionRates(ctx context.Context) RateTable {
	if t, ok := r.Resolve(ctx, KeyCommissionRates).(RateTable); ok {
		return t
	}
	return RateTable{}
}

// MilestoneShares returns the canonical installment milestone table
func (r *Resolver) MilestoneShares(ctx context.Context) MilestoneTable {
	if t, ok := r.Resolve(ctx, KeySequraMilestones).(MilestoneTable); ok {
		return t
	}
	return MilestoneTable{}
}

func (r *Resolver) StripeConfig(ctx context.Context) StripeConfig {
	v, _ := r.Resolve(ctx, KeyStripeConfig).(StripeConfig)
	return v
}

func (r *Resolver) HotmartConfig(ctx context.Context) HotmartConfig {
	v, _ := r.Resolve(ctx, KeyHotmartConfig).(HotmartConfig)
	return v
}

func (r *Resolver) SequraConfig(ctx context.Context) SequraConfig {
	v, _ := r.Resolve(ctx, KeySequraConfig).(SequraConfig)
	return v
}

func (r *Resolver) CompanyInfo(ctx context.Context) CompanyInfo {
	v, _ := r.Resolve(ctx, KeyCompanyInfo).(CompanyInfo)
	return v
}

// clone keeps cached maps private to the cache
func clone(v any) any {
	switch t := v.(type) {
	case RateTable:
		return t.Clone()
	case MilestoneTable:
		return t.Clone()
	}
	return v
}
