package timeline

import (
	"context"

	"github.com/creatorlink/chatsync/chat"
)

//go:generate mockgen -destination mock/api.go -package mock github.com/creatorlink/chatsync/timeline IHistory,ILiveChannel

// IHistory is the pull side of the sync engine: the request/response
// contract for conversation lists and per-peer message history.
// Implemented by api.Client.
type IHistory interface {
	// ListConversations fetches the conversation list ordered by recency.
	ListConversations(ctx context.Context) ([]chat.Conversation, error)

	// LoadTimeline fetches the full history with one peer, oldest first.
	// Returns api.NotFoundError for an unknown peer.
	LoadTimeline(ctx context.Context, peerID int64) ([]chat.Message, error)

	// Send performs the durable write and returns the server message with
	// its assigned identifier and authoritative timestamp.
	Send(ctx context.Context, receiverID int64, content string) (*chat.Message, error)

	// SearchUsers looks up directory candidates; empty query means empty
	// result.
	SearchUsers(ctx context.Context, query string) ([]chat.User, error)

	// MarkRead acknowledges a conversation as read. Fired without
	// blocking the selection path.
	MarkRead(ctx context.Context, peerID int64) error
}

// ILiveChannel is the push side: one connected event stream. Implemented
// by live.Channel.
type ILiveChannel interface {
	Events() <-chan chat.MessageEvent
	Publish(receiverID int64, content string) error
	Err() error
	Close()
}

// DialFunc opens a new live channel. The engine owns reconnection policy,
// the dialer owns transport details.
type DialFunc func(ctx context.Context) (ILiveChannel, error)
