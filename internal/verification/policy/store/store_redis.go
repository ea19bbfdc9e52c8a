package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"docverify/internal/verification/policy"
	"docverify/pkg/platform/sentinel"
)

const (
	// Redis key prefix for policy documents: docverify:policy:<id>:<version>
	policyKeyPrefix = "docverify:policy:"
	// Set of stored versions per id: docverify:policy_versions:<id>
	versionsKeyPrefix = "docverify:policy_versions:"
)

// RedisStore shares published policies between instances through Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed policy store.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// saveScript writes the version index before the document, in one atomic
// step, so a stored document is always listed by Latest. An error raised by
// SADD aborts before the document exists.
var saveScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('SADD', KEYS[2], ARGV[2])
redis.call('SET', KEYS[1], ARGV[1])
return 1
`)

func policyKey(id, version string) string {
	return policyKeyPrefix + id + ":" + version
}

// Save stores a new version. Versions are immutable; an existing one is a
// conflict.
func (s *RedisStore) Save(ctx context.Context, p *policy.Policy) error {
	if err := prepare(p); err != nil {
		return err
	}
	doc, err := policy.Encode(p, policy.FormatJSON)
	if err != nil {
		return fmt.Errorf("encode policy: %w", err)
	}
	keys := []string{policyKey(p.ID, p.Version), versionsKeyPrefix + p.ID}
	created, err := saveScript.Run(ctx, s.client, keys, doc, p.Version).Int()
	if err != nil {
		return fmt.Errorf("store policy: %w: %w", sentinel.ErrUnavailable, err)
	}
	if created == 0 {
		return fmt.Errorf("policy %s: %w", p.Ref(), sentinel.ErrConflict)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id, version string) (*policy.Policy, error) {
	doc, err := s.client.Get(ctx, policyKey(id, version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("policy %s@%s: %w", id, version, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get policy: %w: %w", sentinel.ErrUnavailable, err)
	}
	return decodeStored(doc)
}

func (s *RedisStore) Latest(ctx context.Context, id string) (*policy.Policy, error) {
	versions, err := s.client.SMembers(ctx, versionsKeyPrefix+id).Result()
	if err != nil {
		return nil, fmt.Errorf("list policy versions: %w: %w", sentinel.ErrUnavailable, err)
	}
	latest, ok := policy.Latest(versions)
	if !ok {
		return nil, fmt.Errorf("policy %s: %w", id, sentinel.ErrNotFound)
	}
	return s.Get(ctx, id, latest)
}
