// Package redis persists trackers in Redis, for deployments where
// conversations must survive process restarts and be shared across
// engine replicas.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/espalier-ai/espalier/pkg/domain"
	"github.com/espalier-ai/espalier/pkg/ports"
)

// Store implements ports.TrackerStore on Redis.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

var _ ports.TrackerStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithTTL sets an expiration on stored conversations.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a store with its own client.
func New(address, password string, db int, opts ...Option) *Store {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a store on an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: "espalier:tracker:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(senderID string) string {
	return s.prefix + senderID
}

func (s *Store) Save(ctx context.Context, senderID string, tracker *domain.Tracker) error {
	data, err := json.Marshal(tracker)
	if err != nil {
		return fmt.Errorf("marshal tracker: %w", err)
	}
	if err := s.client.Set(ctx, s.key(senderID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save tracker: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, senderID string) (*domain.Tracker, error) {
	data, err := s.client.Get(ctx, s.key(senderID)).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load tracker: %w", err)
	}
	var tracker domain.Tracker
	if err := json.Unmarshal(data, &tracker); err != nil {
		return nil, fmt.Errorf("decode tracker: %w", err)
	}
	return &tracker, nil
}

func (s *Store) Delete(ctx context.Context, senderID string) error {
	if err := s.client.Del(ctx, s.key(senderID)).Err(); err != nil {
		return fmt.Errorf("delete tracker: %w", err)
	}
	return nil
}
