package identity

import (
	"context"
	"time"
)

type Event string

const (
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
	EventUserUpdated    Event = "USER_UPDATED"
)

// Session is the identity provider's view of a signed-in user.
type Session struct {
	AccessToken string            `json:"access_token"`
	UserID      string            `json:"user_id"`
	Email       string            `json:"email"`
	Provider    string            `json:"provider"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	ExpiresAt   time.Time         `json:"expires_at"`
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.Metadata != nil {
		c.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// Result reports the outcome of a sign-in or sign-out. Failures are carried in Error.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func failure(err error) Result {
	return Result{Success: false, Error: err.Error()}
}

type Listener func(Event, *Session)

// Provider is an external identity provider.
type Provider interface {
	GetSession(ctx context.Context) (*Session, error)
	SignInWithGoogle(ctx context.Context, credential string) Result
	SignOut(ctx context.Context) Result
	// OnAuthStateChange registers fn for session changes and returns a function that cancels it.
	OnAuthStateChange(fn Listener) (unsubscribe func())
}

// SessionManager is implemented by providers that can refresh the current session's
// token and update its user metadata.
type SessionManager interface {
	Refresh(ctx context.Context, credential string) Result
	UpdateMetadata(ctx context.Context, metadata map[string]string) Result
}
