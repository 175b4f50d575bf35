// Package credential keeps the tokens a browser client would hold in local storage.
package credential

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL = 24 * time.Hour

	fieldAdmin = "admin"
	fieldUser  = "user"
)

// Static is a fixed token.
type Static string

func (s Static) GetToken(context.Context) (string, error) { return string(s), nil }

type Config struct {
	Redis  redis.UniversalClient
	Prefix string
	TTL    time.Duration
}

// Store keeps the admin and user token of every browser client in a redis hash.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewStore(c Config) *Store {
	ttl := c.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &Store{
		redis:  c.Redis,
		prefix: c.Prefix,
		ttl:    ttl,
	}
}

func (s *Store) SetAdminToken(ctx context.Context, clientID, token string) error {
	return s.set(ctx, clientID, fieldAdmin, token)
}

func (s *Store) SetUserToken(ctx context.Context, clientID, token string) error {
	return s.set(ctx, clientID, fieldUser, token)
}

// ClearAdminToken logs the client's admin out, its user token is kept.
func (s *Store) ClearAdminToken(ctx context.Context, clientID string) error {
	if err := s.redis.HDel(ctx, s.getClientKey(clientID), fieldAdmin).Err(); err != nil {
		return fmt.Errorf("credential: clear admin token: %w", err)
	}

	return nil
}

func (s *Store) HasAdminToken(ctx context.Context, clientID string) (bool, error) {
	ok, err := s.redis.HExists(ctx, s.getClientKey(clientID), fieldAdmin).Result()
	if err != nil {
		return false, fmt.Errorf("credential: check admin token: %w", err)
	}

	return ok, nil
}

// Token returns the admin token if present, else the user token, else "".
func (s *Store) Token(ctx context.Context, clientID string) (string, error) {
	if clientID == "" {
		return "", nil
	}

	vals, err := s.redis.HMGet(ctx, s.getClientKey(clientID), fieldAdmin, fieldUser).Result()
	if err != nil {
		return "", fmt.Errorf("credential: get token: %w", err)
	}

	for _, v := range vals {
		if tok, ok := v.(string); ok && tok != "" {
			return tok, nil
		}
	}

	return "", nil
}

// Provider binds the store to one client.
func (s *Store) Provider(clientID string) Provider {
	return Provider{store: s, clientID: clientID}
}

func (s *Store) set(ctx context.Context, clientID, field, token string) error {
	if clientID == "" {
		return fmt.Errorf("credential: set %s token: empty client ID", field)
	}

	key := s.getClientKey(clientID)
	_, err := s.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, field, token)
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("credential: set %s token: %w", field, err)
	}

	return nil
}

func (s *Store) getClientKey(clientID string) string {
	return fmt.Sprintf("%s:client:%s", s.prefix, clientID)
}

type Provider struct {
	store    *Store
	clientID string
}

func (p Provider) GetToken(ctx context.Context) (string, error) {
	return p.store.Token(ctx, p.clientID)
}
