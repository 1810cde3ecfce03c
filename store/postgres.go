package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	unitecms "github.com/svirmi/unite-cms"
)

const pgUniqueViolation = "23505"

// PostgresUserStore keeps users in a single table with jsonb field and
// token columns. Persist takes a row lock and checks the version column,
// so concurrent writers to the same user serialize and the loser gets
// ErrPersistConflict.
//
// Expected schema:
//
//	CREATE TABLE cms_users (
//	    user_type text    NOT NULL,
//	    id        text    NOT NULL,
//	    fields    jsonb   NOT NULL DEFAULT '{}',
//	    tokens    jsonb   NOT NULL DEFAULT '{}',
//	    version   bigint  NOT NULL DEFAULT 0,
//	    PRIMARY KEY (user_type, id)
//	);
type PostgresUserStore struct {
	db              *sql.DB
	identifierField string
}

func OpenPostgres(dsn, identifierField string) (*PostgresUserStore, error) {
	if identifierField == "" {
		return nil, fmt.Errorf("store: identifier field is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	return &PostgresUserStore{db: db, identifierField: identifierField}, nil
}

// NewPostgresUserStore wraps an existing handle, e.g. one shared with the
// host application.
func NewPostgresUserStore(db *sql.DB, identifierField string) (*PostgresUserStore, error) {
	if db == nil {
		return nil, fmt.Errorf("store: db handle is required")
	}
	if identifierField == "" {
		return nil, fmt.Errorf("store: identifier field is required")
	}
	return &PostgresUserStore{db: db, identifierField: identifierField}, nil
}

func (s *PostgresUserStore) Close() error { return s.db.Close() }

func (s *PostgresUserStore) LoadCurrent(ctx context.Context) (*unitecms.User, error) {
	typeName, id, ok := unitecms.CurrentUserFromContext(ctx)
	if !ok {
		return nil, nil
	}
	return s.scanUser(s.db.QueryRowContext(ctx, `
		select user_type, id, fields, tokens, version
		from cms_users
		where user_type = $1 and id = $2
	`, typeName, id))
}

func (s *PostgresUserStore) Load(ctx context.Context, typeName, identifier string) (*unitecms.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		select user_type, id, fields, tokens, version
		from cms_users
		where user_type = $1 and fields->>$2 = $3
	`, typeName, s.identifierField, identifier))
}

func (s *PostgresUserStore) scanUser(row *sql.Row) (*unitecms.User, error) {
	var (
		u      unitecms.User
		fields []byte
		tokens []byte
	)
	err := row.Scan(&u.Type, &u.ID, &fields, &tokens, &u.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", unitecms.ErrStoreUnavailable, err)
	}
	if err := json.Unmarshal(fields, &u.Fields); err != nil {
		return nil, fmt.Errorf("store: decode fields for %s/%s: %w", u.Type, u.ID, err)
	}
	if err := json.Unmarshal(tokens, &u.Tokens); err != nil {
		return nil, fmt.Errorf("store: decode tokens for %s/%s: %w", u.Type, u.ID, err)
	}
	return &u, nil
}

func (s *PostgresUserStore) Persist(ctx context.Context, user *unitecms.User, kind unitecms.ChangeKind) error {
	if user == nil || user.Type == "" || user.ID == "" {
		return fmt.Errorf("store: user type and ID are required")
	}

	fields, err := json.Marshal(orEmptyAny(user.Fields))
	if err != nil {
		return fmt.Errorf("store: encode fields for %s/%s: %w", user.Type, user.ID, err)
	}
	tokens, err := json.Marshal(orEmptyString(user.Tokens))
	if err != nil {
		return fmt.Errorf("store: encode tokens for %s/%s: %w", user.Type, user.ID, err)
	}

	if kind == unitecms.ChangeCreate {
		_, err := s.db.ExecContext(ctx, `
			insert into cms_users (user_type, id, fields, tokens, version)
			values ($1, $2, $3, $4, 1)
		`, user.Type, user.ID, fields, tokens)
		if isUniqueViolation(err) {
			return unitecms.ErrPersistConflict
		}
		if err != nil {
			return fmt.Errorf("%w: %v", unitecms.ErrStoreUnavailable, err)
		}
		user.Version = 1
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", unitecms.ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	var version uint64
	err = tx.QueryRowContext(ctx, `
		select version from cms_users
		where user_type = $1 and id = $2
		for update
	`, user.Type, user.ID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return unitecms.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", unitecms.ErrStoreUnavailable, err)
	}
	if version != user.Version {
		return unitecms.ErrPersistConflict
	}

	if _, err := tx.ExecContext(ctx, `
		update cms_users
		set fields = $3, tokens = $4, version = version + 1
		where user_type = $1 and id = $2
	`, user.Type, user.ID, fields, tokens); err != nil {
		return fmt.Errorf("%w: %v", unitecms.ErrStoreUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", unitecms.ErrStoreUnavailable, err)
	}

	user.Version++
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func orEmptyAny(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func orEmptyString(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
