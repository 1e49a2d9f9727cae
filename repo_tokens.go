package accounts

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TokenStore is the narrow persistence surface the token service
// consumes. Lookups never surface "not found" as an error: a missing or
// expired row comes back as a nil record.
type TokenStore interface {
	Store(ctx context.Context, record *Token) (*Token, error)
	StoreTx(ctx context.Context, tx bun.IDB, record *Token) (*Token, error)
	FindValid(ctx context.Context, value string, now time.Time) (*Token, error)
	FindValidTx(ctx context.Context, tx bun.IDB, value string, now time.Time) (*Token, error)
	FindValidForAccount(ctx context.Context, value string, accountID uuid.UUID, now time.Time) (*Token, error)
	FindValidForAccountTx(ctx context.Context, tx bun.IDB, value string, accountID uuid.UUID, now time.Time) (*Token, error)
	DeleteByValue(ctx context.Context, value string) error
	DeleteByValueTx(ctx context.Context, tx bun.IDB, value string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	DeleteExpiredTx(ctx context.Context, tx bun.IDB, now time.Time) (int, error)
}

// Tokens exposes the full repository surface plus the store methods.
type Tokens interface {
	repository.Repository[*Token]
	TokenStore
}

type tokensRepo struct {
	repository.Repository[*Token]
	db *bun.DB
}

var (
	_ Tokens                        = (*tokensRepo)(nil)
	_ repository.Repository[*Token] = (*tokensRepo)(nil)
)

func NewTokensRepository(db *bun.DB) Tokens {
	repo := repository.NewRepository[*Token](db, repository.ModelHandlers[*Token]{
		NewRecord: func() *Token { return &Token{} },
		GetID: func(t *Token) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *Token, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "value"
		},
	})

	return &tokensRepo{
		Repository: repo,
		db:         db,
	}
}

func (r *tokensRepo) Store(ctx context.Context, record *Token) (*Token, error) {
	return r.StoreTx(ctx, r.db, record)
}

func (r *tokensRepo) StoreTx(ctx context.Context, tx bun.IDB, record *Token) (*Token, error) {
	if record != nil && record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return r.Repository.CreateTx(ctx, tx, record)
}

func (r *tokensRepo) FindValid(ctx context.Context, value string, now time.Time) (*Token, error) {
	return r.FindValidTx(ctx, r.db, value, now)
}

// FindValidTx loads an unexpired token by value with its owner relation,
// regardless of which account it belongs to. Expiry is a strict
// comparison: a row expiring exactly now does not validate.
func (r *tokensRepo) FindValidTx(ctx context.Context, tx bun.IDB, value string, now time.Time) (*Token, error) {
	if value == "" {
		return nil, nil
	}

	record := &Token{}
	err := tx.NewSelect().
		Model(record).
		Relation("Account").
		Where("?TableAlias.value = ?", value).
		Where("?TableAlias.expires_at > ?", now).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func (r *tokensRepo) FindValidForAccount(ctx context.Context, value string, accountID uuid.UUID, now time.Time) (*Token, error) {
	return r.FindValidForAccountTx(ctx, r.db, value, accountID, now)
}

func (r *tokensRepo) FindValidForAccountTx(ctx context.Context, tx bun.IDB, value string, accountID uuid.UUID, now time.Time) (*Token, error) {
	if value == "" {
		return nil, nil
	}

	record := &Token{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.value = ?", value).
		Where("?TableAlias.account_id = ?", accountID).
		Where("?TableAlias.expires_at > ?", now).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func (r *tokensRepo) DeleteByValue(ctx context.Context, value string) error {
	return r.DeleteByValueTx(ctx, r.db, value)
}

// DeleteByValueTx is the idempotent single use consumption: deleting an
// absent or empty value is a no-op, never an error.
func (r *tokensRepo) DeleteByValueTx(ctx context.Context, tx bun.IDB, value string) error {
	if value == "" {
		return nil
	}

	_, err := tx.NewDelete().
		Model((*Token)(nil)).
		Where("?TableAlias.value = ?", value).
		Exec(ctx)
	return err
}

func (r *tokensRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return r.DeleteExpiredTx(ctx, r.db, now)
}

// DeleteExpiredTx removes every token at or past its expiry in one
// pass. The boundary is inclusive, unlike lookup validation.
func (r *tokensRepo) DeleteExpiredTx(ctx context.Context, tx bun.IDB, now time.Time) (int, error) {
	res, err := tx.NewDelete().
		Model((*Token)(nil)).
		Where("?TableAlias.expires_at <= ?", now).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(affected), nil
}
