package storage

import "context"

// UserDirectory resolves an internal user id to the messaging channel id
// (the Telegram chat id) owned by the identity service.
type UserDirectory interface {
	ChannelID(ctx context.Context, userID string) (string, error)
}
