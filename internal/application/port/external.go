package port

import "context"

// MessageSender delivers a plain text message to a user
type MessageSender interface {
	SendMessage(ctx context.Context, openID string, content string) error
}
