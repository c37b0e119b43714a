package sender

import "context"

// Sender delivers a text message to an opaque channel id.
type Sender interface {
	Send(ctx context.Context, channelID, text string) error
}
