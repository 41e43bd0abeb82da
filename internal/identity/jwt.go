package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrEmptyCredential   = errors.New("credential is required")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrUserMismatch      = errors.New("token belongs to a different user")
	ErrNoSession         = errors.New("no active session")
)

// Claims are the id token claims the provider understands.
type Claims struct {
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	FullName  string `json:"full_name,omitempty"`
	Picture   string `json:"picture,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Provider  string `json:"provider,omitempty"`
	jwt.RegisteredClaims
}

// Issue signs claims with HS256.
func Issue(secret []byte, claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// JWTProvider verifies HS256 id tokens and keeps the resulting session in memory.
// Each subscriber receives events asynchronously and in order.
type JWTProvider struct {
	secret []byte
	now    func() time.Time

	mu      sync.Mutex
	session *Session
	subs    map[int]*subscriber
	nextID  int
}

var (
	_ Provider       = (*JWTProvider)(nil)
	_ SessionManager = (*JWTProvider)(nil)
)

type ProviderOption func(*JWTProvider)

func WithProviderClock(now func() time.Time) ProviderOption {
	return func(p *JWTProvider) {
		if now != nil {
			p.now = now
		}
	}
}

func NewJWTProvider(secret []byte, opts ...ProviderOption) *JWTProvider {
	p := &JWTProvider{
		secret: secret,
		now:    time.Now,
		subs:   make(map[int]*subscriber),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetSession returns the current session, or nil when signed out or expired.
func (p *JWTProvider) GetSession(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return nil, nil
	}
	if !p.session.ExpiresAt.IsZero() && !p.now().Before(p.session.ExpiresAt) {
		p.session = nil
		return nil, nil
	}
	return p.session.Clone(), nil
}

func (p *JWTProvider) SignInWithGoogle(ctx context.Context, credential string) Result {
	if err := ctx.Err(); err != nil {
		return failure(err)
	}
	session, err := p.verify(credential)
	if err != nil {
		return failure(err)
	}
	if session.Provider == "" {
		session.Provider = "google"
	}

	p.mu.Lock()
	p.session = session
	p.publishLocked(EventSignedIn, session)
	p.mu.Unlock()
	return Result{Success: true}
}

// Refresh replaces the access token of the current session with credential,
// which must belong to the same user.
func (p *JWTProvider) Refresh(ctx context.Context, credential string) Result {
	if err := ctx.Err(); err != nil {
		return failure(err)
	}
	fresh, err := p.verify(credential)
	if err != nil {
		return failure(err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return failure(ErrNoSession)
	}
	if p.session.UserID != fresh.UserID {
		return failure(ErrUserMismatch)
	}
	p.session.AccessToken = fresh.AccessToken
	p.session.ExpiresAt = fresh.ExpiresAt
	p.publishLocked(EventTokenRefreshed, p.session)
	return Result{Success: true}
}

// UpdateMetadata merges metadata into the current session's user metadata.
func (p *JWTProvider) UpdateMetadata(ctx context.Context, metadata map[string]string) Result {
	if err := ctx.Err(); err != nil {
		return failure(err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return failure(ErrNoSession)
	}
	if p.session.Metadata == nil {
		p.session.Metadata = make(map[string]string, len(metadata))
	}
	for k, v := range metadata {
		p.session.Metadata[k] = v
	}
	p.publishLocked(EventUserUpdated, p.session)
	return Result{Success: true}
}

func (p *JWTProvider) SignOut(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return failure(err)
	}

	p.mu.Lock()
	p.session = nil
	p.publishLocked(EventSignedOut, nil)
	p.mu.Unlock()
	return Result{Success: true}
}

func (p *JWTProvider) OnAuthStateChange(fn Listener) func() {
	if fn == nil {
		return func() {}
	}
	sub := newSubscriber(fn)

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = sub
	p.mu.Unlock()

	go sub.run()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
		sub.close()
	}
}

func (p *JWTProvider) verify(credential string) (*Session, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, ErrEmptyCredential
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(credential, claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(p.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidCredential)
	}

	session := &Session{
		AccessToken: credential,
		UserID:      claims.Subject,
		Email:       claims.Email,
		Provider:    claims.Provider,
		Metadata:    metadataFrom(claims),
		CreatedAt:   p.now(),
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

func metadataFrom(c *Claims) map[string]string {
	md := make(map[string]string, 4)
	for k, v := range map[string]string{
		"name":       c.Name,
		"full_name":  c.FullName,
		"picture":    c.Picture,
		"avatar_url": c.AvatarURL,
	} {
		if v != "" {
			md[k] = v
		}
	}
	return md
}

// publishLocked must be called with p.mu held so events keep their order.
func (p *JWTProvider) publishLocked(event Event, session *Session) {
	for _, sub := range p.subs {
		sub.push(event, session.Clone())
	}
}

type delivery struct {
	event   Event
	session *Session
}

type subscriber struct {
	fn Listener

	mu    sync.Mutex
	queue []delivery

	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

func newSubscriber(fn Listener) *subscriber {
	return &subscriber{
		fn:   fn,
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
}

func (s *subscriber) push(event Event, session *Session) {
	s.mu.Lock()
	s.queue = append(s.queue, delivery{event: event, session: session})
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.stop:
			return
		case <-s.wake:
		}

		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			d := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case <-s.stop:
				return
			default:
			}
			s.fn(d.event, d.session)
		}
	}
}

func (s *subscriber) close() {
	s.stopOnce.Do(func() { close(s.stop) })
}
