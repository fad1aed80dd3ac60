package chat

import (
	"time"
)

// Session is the local authenticated identity. Established externally
// (login is out of scope) and handed to the api/live clients as-is.
type Session struct {
	UserID int64  `json:"userId"`
	Name   string `json:"name"`
	Token  string `json:"-"`
}

// User is a search candidate from the user directory.
type User struct {
	UserID   int64  `json:"userId"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	UserType string `json:"userType"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
}

// Conversation is the aggregated list entry for one peer relationship.
// Keyed by PeerID, unique per peer per session.
type Conversation struct {
	PeerID          int64     `json:"otherUserId"`
	PeerName        string    `json:"otherUserName"`
	PeerType        string    `json:"otherUserType"`
	LastMessage     string    `json:"lastMessage"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	Unread          int       `json:"unreadCount"`
}

// Message is one timeline entry. ID is the server-assigned identifier and
// is zero until the durable write confirms; LocalID is a client-local uuid
// that identifies optimistic and live-appended entries before (or without)
// confirmation.
type Message struct {
	ID           int64     `json:"id"`
	SenderID     int64     `json:"senderId"`
	ReceiverID   int64     `json:"receiverId"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"createdAt"`
	Read         bool      `json:"read"`
	SenderName   string    `json:"senderName"`
	ReceiverName string    `json:"receiverName"`

	LocalID string `json:"-"`
	Pending bool   `json:"-"`
	Failed  bool   `json:"-"`
}

// MessageEvent is the push-side notification of a new message. It carries
// no identifier: the durable write is the only source of server ids.
type MessageEvent struct {
	SenderID   int64     `json:"senderId"`
	ReceiverID int64     `json:"receiverId"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// PeerOf resolves the conversation key: the non-local side of the
// {sender, receiver} pair. Returns 0 if the local user is on neither side.
func (e *MessageEvent) PeerOf(selfID int64) int64 {
	switch selfID {
	case e.SenderID:
		return e.ReceiverID
	case e.ReceiverID:
		return e.SenderID
	}
	return 0
}

// DedupWindow is the tolerance applied when matching a live event against
// an already-materialized message on {sender, receiver, content, createdAt}.
// The same logical message can arrive twice: once via the durable HTTP
// write and once via the advisory push notification.
const DedupWindow = 2 * time.Second

// SameIdentity reports whether m and the event describe the same logical
// message within DedupWindow.
func (m *Message) SameIdentity(e *MessageEvent) bool {
	if m.SenderID != e.SenderID || m.ReceiverID != e.ReceiverID || m.Content != e.Content {
		return false
	}
	d := m.CreatedAt.Sub(e.CreatedAt)
	if d < 0 {
		d = -d
	}
	return d <= DedupWindow
}
