package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type MessageID string

func NewMessageID() MessageID {
	return MessageID(uuid.New().String())
}

type Message struct {
	ID         MessageID `json:"id"`
	SenderID   UserID    `json:"senderId"`
	ReceiverID UserID    `json:"receiverId"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewMessage builds a message stamped with a fresh id and the current time.
// A message must carry text, an image, or both.
func NewMessage(sender, receiver UserID, text, image string) (*Message, error) {
	text = strings.TrimSpace(text)
	if text == "" && image == "" {
		return nil, ErrEmptyMessage
	}
	return &Message{
		ID:         NewMessageID(),
		SenderID:   sender,
		ReceiverID: receiver,
		Text:       text,
		Image:      image,
		CreatedAt:  time.Now().UTC(),
	}, nil
}
