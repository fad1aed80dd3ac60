package auth

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/creatorlink/chatsync/chat"
)

// MockClient accepts bearer tokens of the form "<uid>:<name>". Development
// only; it performs no verification at all.
type MockClient struct {
	Client
}

func (c *MockClient) Auth(r *http.Request) (chat.Session, error) {
	token := tokenFrom(r)
	if token == "" {
		return chat.Session{}, fmt.Errorf("missing bearer token")
	}

	parts := strings.SplitN(token, ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return chat.Session{}, fmt.Errorf("malformed token")
	}
	uid, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return chat.Session{}, fmt.Errorf("error parse uid from token: %v", err)
	}
	return chat.Session{UserID: uid, Name: parts[1], Token: token}, nil
}

// MakeToken builds the mock token for a user. The inverse of Auth.
func MakeToken(uid int64, name string) string {
	return fmt.Sprintf("%d:%s", uid, name)
}

func tokenFrom(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, prefix) {
		return h[len(prefix):]
	}
	// Websocket handshakes from browsers cannot set headers.
	return r.URL.Query().Get("token")
}
