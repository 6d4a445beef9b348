// Package feed consumes the chat-platform gateway's event stream: new,
// edited, and deleted messages from the subscribed channels.
package feed

import (
	"strconv"
	"strings"
)

// EventKind distinguishes the three message events the gateway emits.
type EventKind int

// Event kinds.
const (
	EventNew EventKind = iota
	EventEdited
	EventDeleted
)

// String names the kind for logs.
func (k EventKind) String() string {
	switch k {
	case EventNew:
		return "new"
	case EventEdited:
		return "edited"
	case EventDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Message is one chat message as delivered by the gateway. ChatID is
// already normalized.
type Message struct {
	ID           int64  `json:"id"`
	ChatID       int64  `json:"chat_id"`
	ChannelTitle string `json:"channel_title"`
	Text         string `json:"text"`
	// ReplyToID is the id of the message this one replies to, zero when it
	// replies to nothing.
	ReplyToID int64 `json:"reply_to_id"`
}

// Event pairs a message with what happened to it.
type Event struct {
	Kind    EventKind `json:"kind"`
	Message Message   `json:"message"`
}

// NormalizeChatID strips the platform's "-100" channel prefix and sign, so
// ids compare equal across the event stream, reply targets, and the store.
func NormalizeChatID(id int64) int64 {
	s := strconv.FormatInt(id, 10)
	if strings.HasPrefix(s, "-100") {
		if v, err := strconv.ParseInt(s[4:], 10, 64); err == nil {
			return v
		}
	}
	if id < 0 {
		return -id
	}
	return id
}
