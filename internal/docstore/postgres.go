package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection text NOT NULL,
	id         text NOT NULL,
	doc        jsonb NOT NULL,
	version    bigint NOT NULL DEFAULT 1,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
)`

// Postgres keeps each document as a jsonb row. Transactions run at
// SERIALIZABLE; serialization failures are retried by RunTransaction.
type Postgres struct {
	pool *pgxpool.Pool
}

func Connect(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.ParseConfig: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pool.Ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (s *Postgres) Get(ctx context.Context, collection, id string) (Document, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM documents WHERE collection=$1 AND id=$2`,
		collection, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("select doc: %w", err)
	}
	return Document{ID: id, Data: data}, nil
}

func (s *Postgres) List(ctx context.Context, collection string) ([]Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, doc FROM documents WHERE collection=$1 ORDER BY created_at`,
		collection)
	if err != nil {
		return nil, fmt.Errorf("select docs: %w", err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func (s *Postgres) Query(ctx context.Context, collection string, where ...Where) ([]Document, error) {
	match := make(map[string]any, len(where))
	for _, w := range where {
		match[w.Field] = w.Value
	}
	filter, err := json.Marshal(match)
	if err != nil {
		return nil, fmt.Errorf("json.Marshal filter: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, doc FROM documents WHERE collection=$1 AND doc @> $2::jsonb ORDER BY created_at`,
		collection, filter)
	if err != nil {
		return nil, fmt.Errorf("select docs: %w", err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func (s *Postgres) Add(ctx context.Context, collection string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("json.Marshal: %w", err)
	}

	id := uuid.NewString()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents(collection, id, doc) VALUES ($1, $2, $3)`,
		collection, id, data)
	if err != nil {
		return "", fmt.Errorf("insert doc: %w", err)
	}
	return id, nil
}

func (s *Postgres) Update(ctx context.Context, collection, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	ct, err := s.pool.Exec(ctx,
		`UPDATE documents SET doc=$3, version=version+1, updated_at=now()
		 WHERE collection=$1 AND id=$2`,
		collection, id, data)
	if err != nil {
		return fmt.Errorf("update doc: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := s.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if isSerializationFailure(err) {
			continue
		}
		return err
	}
	return ErrTxConflict
}

func (s *Postgres) runOnce(ctx context.Context, fn func(tx Tx) error) (txErr error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if txErr != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := fn(&pgTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

type pgTx struct {
	ctx context.Context
	tx  pgx.Tx
}

func (t *pgTx) Get(collection, id string) (Document, error) {
	var data []byte
	err := t.tx.QueryRow(t.ctx,
		`SELECT doc FROM documents WHERE collection=$1 AND id=$2`,
		collection, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("select doc: %w", err)
	}
	return Document{ID: id, Data: data}, nil
}

func (t *pgTx) Update(collection, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	ct, err := t.tx.Exec(t.ctx,
		`UPDATE documents SET doc=$3, version=version+1, updated_at=now()
		 WHERE collection=$1 AND id=$2`,
		collection, id, data)
	if err != nil {
		return fmt.Errorf("update doc: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDocuments(rows pgx.Rows) ([]Document, error) {
	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Data); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// 40001 serialization_failure, 40P01 deadlock_detected
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
