package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	appErr "github.com/samims/taskpulse/internal/errors"
)

type pgUserDirectory struct {
	pool *pgxpool.Pool
}

// NewUserDirectory reads channel ids from the shared users table.
func NewUserDirectory(pool *pgxpool.Pool) UserDirectory {
	return &pgUserDirectory{pool: pool}
}

func (d *pgUserDirectory) ChannelID(ctx context.Context, userID string) (string, error) {
	var channelID *string
	err := d.pool.QueryRow(ctx, `SELECT tg_id::text FROM users WHERE id::text = $1`, userID).Scan(&channelID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("user %s: %w", userID, appErr.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("lookup channel for user %s: %w", userID, err)
	}
	if channelID == nil || *channelID == "" {
		return "", fmt.Errorf("user %s: %w", userID, appErr.ErrNoRecipient)
	}
	return *channelID, nil
}
