package identity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

type recorder struct {
	m      sync.Mutex
	events []Event
	last   *Session
}

func (r *recorder) listen(e Event, s *Session) {
	r.m.Lock()
	defer r.m.Unlock()
	r.events = append(r.events, e)
	r.last = s
}

func (r *recorder) snapshot() []Event {
	r.m.Lock()
	defer r.m.Unlock()
	return append([]Event(nil), r.events...)
}

type fakeClock struct {
	m   sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.m.Lock()
	defer c.m.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.m.Lock()
	defer c.m.Unlock()
	c.now = c.now.Add(d)
}

func issue(t *testing.T, secret []byte, sub string, exp time.Time) string {
	t.Helper()
	token, err := Issue(secret, Claims{
		Email:   "meera@example.com",
		Name:    "Meera",
		Picture: "https://img.example.com/meera.png",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(exp.Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	require.NoError(t, err)
	return token
}

func newTestProvider() (*JWTProvider, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	return NewJWTProvider(testSecret, WithProviderClock(clock.Now)), clock
}

func TestSignInWithGoogle_Success(t *testing.T) {
	p, clock := newTestProvider()
	exp := clock.Now().Add(time.Hour)
	token := issue(t, testSecret, "user-1", exp)

	res := p.SignInWithGoogle(context.Background(), token)
	require.True(t, res.Success, res.Error)

	s, err := p.GetSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "user-1", s.UserID)
	assert.Equal(t, "meera@example.com", s.Email)
	assert.Equal(t, "google", s.Provider)
	assert.Equal(t, "Meera", s.Metadata["name"])
	assert.Equal(t, "https://img.example.com/meera.png", s.Metadata["picture"])
	assert.Equal(t, clock.Now(), s.CreatedAt)
	assert.True(t, exp.Equal(s.ExpiresAt))
}

func TestSignInWithGoogle_Failures(t *testing.T) {
	p, clock := newTestProvider()

	tests := []struct {
		name       string
		credential string
		wantErr    string
	}{
		{"empty", "  ", ErrEmptyCredential.Error()},
		{"garbage", "not-a-token", ErrInvalidCredential.Error()},
		{"wrong secret", issue(t, []byte("other"), "user-1", clock.Now().Add(time.Hour)), ErrInvalidCredential.Error()},
		{"expired", issue(t, testSecret, "user-1", clock.Now().Add(-time.Minute)), ErrInvalidCredential.Error()},
		{"no subject", issue(t, testSecret, "", clock.Now().Add(time.Hour)), "missing subject"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := p.SignInWithGoogle(context.Background(), tt.credential)

			assert.False(t, res.Success)
			assert.Contains(t, res.Error, tt.wantErr)
		})
	}

	s, err := p.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestSignInWithGoogle_CancelledContext(t *testing.T) {
	p, clock := newTestProvider()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := p.SignInWithGoogle(ctx, issue(t, testSecret, "user-1", clock.Now().Add(time.Hour)))

	assert.False(t, res.Success)
	assert.Equal(t, context.Canceled.Error(), res.Error)
}

func TestGetSession_DropsExpired(t *testing.T) {
	p, clock := newTestProvider()
	require.True(t, p.SignInWithGoogle(context.Background(), issue(t, testSecret, "user-1", clock.Now().Add(time.Minute))).Success)

	clock.Advance(2 * time.Minute)

	s, err := p.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestGetSession_ReturnsCopy(t *testing.T) {
	p, clock := newTestProvider()
	require.True(t, p.SignInWithGoogle(context.Background(), issue(t, testSecret, "user-1", clock.Now().Add(time.Hour))).Success)

	s, err := p.GetSession(context.Background())
	require.NoError(t, err)
	s.Metadata["name"] = "changed"

	again, err := p.GetSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Meera", again.Metadata["name"])
}

func TestOnAuthStateChange_DeliversInOrder(t *testing.T) {
	p, clock := newTestProvider()
	rec := &recorder{}
	unsubscribe := p.OnAuthStateChange(rec.listen)
	defer unsubscribe()
	ctx := context.Background()

	require.True(t, p.SignInWithGoogle(ctx, issue(t, testSecret, "user-1", clock.Now().Add(time.Hour))).Success)
	require.True(t, p.Refresh(ctx, issue(t, testSecret, "user-1", clock.Now().Add(2*time.Hour))).Success)
	require.True(t, p.UpdateMetadata(ctx, map[string]string{"full_name": "Meera Iyer"}).Success)
	require.True(t, p.SignOut(ctx).Success)

	want := []Event{EventSignedIn, EventTokenRefreshed, EventUserUpdated, EventSignedOut}
	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == len(want)
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, want, rec.snapshot())

	rec.m.Lock()
	defer rec.m.Unlock()
	assert.Nil(t, rec.last)
}

func TestOnAuthStateChange_Unsubscribe(t *testing.T) {
	p, clock := newTestProvider()
	rec := &recorder{}
	unsubscribe := p.OnAuthStateChange(rec.listen)

	unsubscribe()
	unsubscribe()
	require.True(t, p.SignInWithGoogle(context.Background(), issue(t, testSecret, "user-1", clock.Now().Add(time.Hour))).Success)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}

func TestRefresh_Failures(t *testing.T) {
	p, clock := newTestProvider()
	ctx := context.Background()

	res := p.Refresh(ctx, issue(t, testSecret, "user-1", clock.Now().Add(time.Hour)))
	assert.False(t, res.Success)
	assert.Equal(t, ErrNoSession.Error(), res.Error)

	require.True(t, p.SignInWithGoogle(ctx, issue(t, testSecret, "user-1", clock.Now().Add(time.Hour))).Success)
	res = p.Refresh(ctx, issue(t, testSecret, "user-2", clock.Now().Add(time.Hour)))
	assert.False(t, res.Success)
	assert.Equal(t, ErrUserMismatch.Error(), res.Error)
}

func TestUpdateMetadata_RequiresSession(t *testing.T) {
	p, _ := newTestProvider()

	res := p.UpdateMetadata(context.Background(), map[string]string{"name": "x"})

	assert.False(t, res.Success)
	assert.Equal(t, ErrNoSession.Error(), res.Error)
}

func TestSignOut_WithoutSession(t *testing.T) {
	p, _ := newTestProvider()

	res := p.SignOut(context.Background())

	assert.True(t, res.Success)
	assert.Empty(t, res.Error)
}
