package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps jobs in the queue_jobs table. Claims lease rows with
// FOR UPDATE SKIP LOCKED so concurrent workers never share an attempt.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Push(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	query := `INSERT INTO queue_jobs (id, body, priority, run_at, enqueued_at, leased_until)
		VALUES ($1, $2, $3, $4, $5, NULL)
		ON CONFLICT (id) DO UPDATE
		SET body = EXCLUDED.body,
			priority = EXCLUDED.priority,
			run_at = EXCLUDED.run_at,
			leased_until = NULL`
	_, err = s.pool.Exec(ctx, query, env.ID, body, env.Priority, env.RunAt, env.EnqueuedAt)
	return err
}

func (s *PostgresStore) Claim(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]Envelope, error) {
	query := `WITH ready AS (
			SELECT id FROM queue_jobs
			WHERE run_at <= $1 AND (leased_until IS NULL OR leased_until <= $1)
			ORDER BY (priority = 0), priority, run_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE queue_jobs q SET leased_until = $3
		FROM ready WHERE q.id = ready.id
		RETURNING q.body`

	rows, err := s.pool.Query(ctx, query, now, limit, now.Add(lease))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var envs []Envelope
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var env Envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("decode envelope: %w", err)
		}
		envs = append(envs, env)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortEnvelopes(envs)
	return envs, nil
}

func (s *PostgresStore) Ack(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM queue_jobs WHERE id = $1`, id)
	return err
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
