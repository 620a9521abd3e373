package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// ErrInvalidValue is returned when an update would not decode cleanly
var ErrInvalidValue = errors.New("invalid setting value")

type Service struct {
	repo     Repository
	resolver *Resolver
	logger   *zap.Logger
}

func NewService(repo Repository, resolver *Resolver, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, resolver: resolver, logger: logger}
}

// Get resolves a single key and reports where the value came from
func (s *Service) Get(ctx context.Context, key Key) (*ResolvedSetting, error) {
	key, err := ParseKey(string(key))
	if err != nil {
		return nil, err
	}
	v, src := s.resolver.resolve(ctx, key, nil, false)
	return &ResolvedSetting{Key: key, Value: v, Source: src}, nil
}

// List resolves every recognized key and attaches the description and
// update time of its stored row. A failed store listing only drops that
// metadata.
func (s *Service) List(ctx context.Context) []ResolvedSetting {
	rows := map[Key]Setting{}
	if stored, err := s.repo.List(ctx); err != nil {
		s.logger.Warn("Failed to list stored settings", zap.Error(err))
	} else {
		for _, row := range stored {
			rows[row.Key] = row
		}
	}

	out := make([]ResolvedSetting, 0, len(Keys()))
	for _, key := range Keys() {
		v, src := s.resolver.resolve(ctx, key, nil, false)
		item := ResolvedSetting{Key: key, Value: v, Source: src}
		if row, ok := rows[key]; ok {
			updated := row.UpdatedAt
			item.Description = row.Description
			item.UpdatedAt = &updated
		}
		out = append(out, item)
	}
	return out
}

// Update validates and stores a new value. The resolver cache is not
// touched, so the change becomes visible once the cached entry expires.
func (s *Service) Update(ctx context.Context, key Key, raw json.RawMessage, description string) (*Setting, error) {
	key, err := ParseKey(string(key))
	if err != nil {
		return nil, err
	}

	_, dropped, err := decode(key, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	if len(dropped) > 0 {
		return nil, fmt.Errorf("%w: invalid entries %s", ErrInvalidValue, strings.Join(dropped, ", "))
	}

	setting := &Setting{
		Key:         key,
		Value:       datatypes.JSON(raw),
		Description: description,
	}
	if err := s.repo.Upsert(ctx, setting); err != nil {
		return nil, fmt.Errorf("failed to store setting: %w", err)
	}

	s.logger.Info("Setting updated", zap.String("key", string(key)))
	return setting, nil
}
