package lark

import (
	"context"
	"encoding/json"
	"fmt"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/flow-forge/internal/application/port"
)

// Messenger implements port.MessageSender on top of the IM API
type Messenger struct {
	client *SDKClient
	logger *zap.Logger
}

// NewMessenger creates a new Lark message sender adapter
func NewMessenger(client *SDKClient, logger *zap.Logger) *Messenger {
	return &Messenger{
		client: client,
		logger: logger,
	}
}

// SendMessage sends a text message to the user with the given open_id
func (m *Messenger) SendMessage(ctx context.Context, openID string, content string) error {
	if openID == "" {
		return fmt.Errorf("openID cannot be empty")
	}
	if content == "" {
		return fmt.Errorf("content cannot be empty")
	}

	textContent, err := json.Marshal(map[string]string{"text": content})
	if err != nil {
		return fmt.Errorf("failed to encode message content: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType("open_id").
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(openID).
			MsgType("text").
			Content(string(textContent)).
			Build()).
		Build()

	resp, err := m.client.GetClient().Im.Message.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.String("receive_id", openID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("receive_id", openID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}

	m.logger.Info("Message sent successfully",
		zap.String("message_id", messageID),
		zap.String("receive_id", openID))
	return nil
}

var _ port.MessageSender = (*Messenger)(nil)
