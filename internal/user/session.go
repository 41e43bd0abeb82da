package user

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/thisisprabalapndey/pathpooja/internal/identity"
)

var (
	errNotInitialized = errors.New("identity provider not initialized")
	errUnsupported    = errors.New("identity provider does not manage sessions")
)

// Initialize installs the provider's current session and subscribes to its auth events.
// It returns a teardown that cancels the subscription. While a subscription is active,
// further calls return the same teardown without subscribing again.
func (s *Store) Initialize(ctx context.Context, provider identity.Provider) (func(), error) {
	if provider == nil {
		return nil, ErrNilProvider
	}

	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.teardown != nil {
		return s.teardown, nil
	}

	current, err := provider.GetSession(ctx)
	if err != nil {
		log.Printf("user: get session failed: %v", err)
	} else if current != nil {
		s.SetSession(current)
	}

	unsubscribe := provider.OnAuthStateChange(s.handleAuthEvent)
	var once sync.Once
	teardown := func() {
		once.Do(func() {
			unsubscribe()
			s.initMu.Lock()
			s.teardown = nil
			s.initMu.Unlock()
		})
	}
	s.provider = provider
	s.teardown = teardown
	return teardown, nil
}

func (s *Store) handleAuthEvent(event identity.Event, session *identity.Session) {
	switch event {
	case identity.EventSignedIn, identity.EventTokenRefreshed, identity.EventUserUpdated:
		s.SetSession(session)
	case identity.EventSignedOut:
		s.ClearSession()
	default:
		log.Printf("user: ignoring auth event %q", event)
	}
}

// SignInWithGoogle exchanges credential through the provider and installs the resulting session.
func (s *Store) SignInWithGoogle(ctx context.Context, credential string) (res identity.Result) {
	provider := s.currentProvider()
	if provider == nil {
		return identity.Result{Error: errNotInitialized.Error()}
	}
	defer recoverResult("sign in", &res)

	res = provider.SignInWithGoogle(ctx, credential)
	if !res.Success {
		log.Printf("user: sign in failed: %s", res.Error)
		return res
	}

	session, err := provider.GetSession(ctx)
	if err != nil {
		log.Printf("user: get session after sign in failed: %v", err)
		return res
	}
	s.SetSession(session)
	return res
}

func (s *Store) SignOut(ctx context.Context) (res identity.Result) {
	provider := s.currentProvider()
	if provider == nil {
		return identity.Result{Error: errNotInitialized.Error()}
	}
	defer recoverResult("sign out", &res)

	res = provider.SignOut(ctx)
	if !res.Success {
		log.Printf("user: sign out failed: %s", res.Error)
		return res
	}
	s.ClearSession()
	return res
}

// RefreshSession swaps the current session's access token for credential.
func (s *Store) RefreshSession(ctx context.Context, credential string) (res identity.Result) {
	provider, manager, errRes := s.sessionManager()
	if manager == nil {
		return errRes
	}
	defer recoverResult("refresh", &res)

	res = manager.Refresh(ctx, credential)
	if !res.Success {
		log.Printf("user: refresh failed: %s", res.Error)
		return res
	}
	s.syncSession(ctx, provider)
	return res
}

// UpdateProfile merges metadata into the signed-in user's profile.
func (s *Store) UpdateProfile(ctx context.Context, metadata map[string]string) (res identity.Result) {
	provider, manager, errRes := s.sessionManager()
	if manager == nil {
		return errRes
	}
	defer recoverResult("update profile", &res)

	res = manager.UpdateMetadata(ctx, metadata)
	if !res.Success {
		log.Printf("user: update profile failed: %s", res.Error)
		return res
	}
	s.syncSession(ctx, provider)
	return res
}

func (s *Store) sessionManager() (identity.Provider, identity.SessionManager, identity.Result) {
	provider := s.currentProvider()
	if provider == nil {
		return nil, nil, identity.Result{Error: errNotInitialized.Error()}
	}
	manager, ok := provider.(identity.SessionManager)
	if !ok {
		return nil, nil, identity.Result{Error: errUnsupported.Error()}
	}
	return provider, manager, identity.Result{}
}

func (s *Store) syncSession(ctx context.Context, provider identity.Provider) {
	session, err := provider.GetSession(ctx)
	if err != nil {
		log.Printf("user: get session failed: %v", err)
		return
	}
	s.SetSession(session)
}

func (s *Store) currentProvider() identity.Provider {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	return s.provider
}

func recoverResult(op string, res *identity.Result) {
	if r := recover(); r != nil {
		log.Printf("user: %s recovered: %v", op, r)
		*res = identity.Result{Error: fmt.Sprintf("%s failed", op)}
	}
}
