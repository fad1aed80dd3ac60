package auth

import (
	"net/http"

	"github.com/creatorlink/chatsync/chat"
)

// Client authenticates an incoming request against the session credential.
// Used by the demo backend; production deployments plug their own.
type Client interface {
	// Auth authenticates the request, returning the session identity.
	Auth(r *http.Request) (chat.Session, error)
}
