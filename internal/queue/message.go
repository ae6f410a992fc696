package queue

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// MessageVersion is bumped when the payload layout changes.
const MessageVersion = 1

var ErrUnsupportedVersion = errors.New("unsupported message version")

// Message asks a worker to evaluate one answer.
type Message struct {
	AnswerID   string `json:"answer_id"`
	ChatID     string `json:"chat_id"`
	RequestID  string `json:"request_id,omitempty"`
	EnqueuedAt string `json:"enqueued_at"`
	Version    int    `json:"version"`
	// Attempt counts redeliveries on backends without a native receive count.
	Attempt int `json:"attempt,omitempty"`
}

// NewMessage stamps a message with the current version and time.
func NewMessage(answerID, chatID, requestID string) Message {
	return Message{
		AnswerID:   answerID,
		ChatID:     chatID,
		RequestID:  requestID,
		EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
		Version:    MessageVersion,
	}
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message. Messages from a newer
// producer are rejected.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.Version > MessageVersion {
		return msg, ErrUnsupportedVersion
	}
	msg.AnswerID = strings.TrimSpace(msg.AnswerID)
	return msg, nil
}
