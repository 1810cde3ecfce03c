// Package store ships UserRepository implementations: a Redis store with
// optimistic-transaction compare-and-swap and a Postgres store with
// row-level locking. Both enforce the per-user version check Persist
// requires.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	unitecms "github.com/svirmi/unite-cms"
)

const userKeyPrefix = "ucms"

// userRecord is the wire form of a user in Redis. Version is the
// compare-and-swap fence.
type userRecord struct {
	ID      string            `json:"id"`
	Type    string            `json:"type"`
	Fields  map[string]any    `json:"fields,omitempty"`
	Tokens  map[string]string `json:"tokens,omitempty"`
	Version uint64            `json:"version"`
}

// RedisUserStore keeps users as JSON values and maintains a secondary
// index from an identifier field (e.g. "email") to the user ID so
// credential checks can load by identifier.
type RedisUserStore struct {
	redis           *redis.Client
	identifierField string
}

func NewRedisUserStore(client *redis.Client, identifierField string) (*RedisUserStore, error) {
	if client == nil {
		return nil, fmt.Errorf("store: redis client is required")
	}
	if identifierField == "" {
		return nil, fmt.Errorf("store: identifier field is required")
	}
	return &RedisUserStore{
		redis:           client,
		identifierField: identifierField,
	}, nil
}

func (s *RedisUserStore) userKey(typeName, id string) string {
	return userKeyPrefix + ":user:" + typeName + ":" + id
}

func (s *RedisUserStore) identKey(typeName, identifier string) string {
	return userKeyPrefix + ":ident:" + typeName + ":" + identifier
}

// LoadCurrent resolves the authenticated user from the context reference
// set via unitecms.WithCurrentUser. Anonymous contexts yield (nil, nil).
func (s *RedisUserStore) LoadCurrent(ctx context.Context) (*unitecms.User, error) {
	typeName, id, ok := unitecms.CurrentUserFromContext(ctx)
	if !ok {
		return nil, nil
	}
	return s.loadByID(ctx, typeName, id)
}

// Load fetches a user by type and identifier through the secondary index.
func (s *RedisUserStore) Load(ctx context.Context, typeName, identifier string) (*unitecms.User, error) {
	id, err := s.redis.Get(ctx, s.identKey(typeName, identifier)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", unitecms.ErrStoreUnavailable, err)
	}
	return s.loadByID(ctx, typeName, id)
}

func (s *RedisUserStore) loadByID(ctx context.Context, typeName, id string) (*unitecms.User, error) {
	data, err := s.redis.Get(ctx, s.userKey(typeName, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", unitecms.ErrStoreUnavailable, err)
	}

	var rec userRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("store: decode user %s/%s: %w", typeName, id, err)
	}
	return recordToUser(&rec), nil
}

// Persist writes the user inside a WATCH transaction. The stored version
// must still equal user.Version; otherwise the caller lost a race and gets
// ErrPersistConflict. On success the version is bumped both in Redis and on
// the passed user.
func (s *RedisUserStore) Persist(ctx context.Context, user *unitecms.User, kind unitecms.ChangeKind) error {
	if user == nil || user.Type == "" || user.ID == "" {
		return fmt.Errorf("store: user type and ID are required")
	}
	key := s.userKey(user.Type, user.ID)

	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		var prevIdent string

		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			if kind != unitecms.ChangeCreate {
				return unitecms.ErrUserNotFound
			}
		case err != nil:
			return fmt.Errorf("%w: %v", unitecms.ErrStoreUnavailable, err)
		default:
			if kind == unitecms.ChangeCreate {
				return unitecms.ErrPersistConflict
			}
			var stored userRecord
			if err := json.Unmarshal(data, &stored); err != nil {
				return fmt.Errorf("store: decode user %s/%s: %w", user.Type, user.ID, err)
			}
			if stored.Version != user.Version {
				return unitecms.ErrPersistConflict
			}
			prevIdent, _ = stored.Fields[s.identifierField].(string)
		}

		rec := userToRecord(user)
		rec.Version = user.Version + 1
		encoded, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("store: encode user %s/%s: %w", user.Type, user.ID, err)
		}

		ident := user.StringField(s.identifierField)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			// keep the identifier index in step: drop the retired entry
			// before writing the current one
			if prevIdent != "" && prevIdent != ident {
				pipe.Del(ctx, s.identKey(user.Type, prevIdent))
			}
			if ident != "" {
				pipe.Set(ctx, s.identKey(user.Type, ident), user.ID, 0)
			}
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		// the watched key changed under us; same outcome as a version
		// mismatch
		return unitecms.ErrPersistConflict
	}
	if err != nil {
		return err
	}

	user.Version++
	return nil
}

func recordToUser(rec *userRecord) *unitecms.User {
	return &unitecms.User{
		Type:    rec.Type,
		ID:      rec.ID,
		Fields:  rec.Fields,
		Tokens:  rec.Tokens,
		Version: rec.Version,
	}
}

func userToRecord(u *unitecms.User) *userRecord {
	return &userRecord{
		ID:      u.ID,
		Type:    u.Type,
		Fields:  u.Fields,
		Tokens:  u.Tokens,
		Version: u.Version,
	}
}
