package visitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thisisprabalapndey/pathpooja/internal/cart"
	"github.com/thisisprabalapndey/pathpooja/internal/domain"
	"github.com/thisisprabalapndey/pathpooja/internal/identity"
	"github.com/thisisprabalapndey/pathpooja/internal/persist"
	"github.com/thisisprabalapndey/pathpooja/internal/storage"
	"github.com/thisisprabalapndey/pathpooja/internal/user"
	"golang.org/x/sync/singleflight"
)

var (
	ErrEmptyVisitorID = errors.New("visitor id is required")
	ErrClosed         = errors.New("visitor registry is closed")
)

const (
	defaultOrderTTL      = 30 * time.Minute
	defaultSweepInterval = time.Minute
)

func CartKey(visitorID string) string  { return "cart:" + visitorID }
func UserKey(visitorID string) string  { return "user:" + visitorID }
func OrderKey(visitorID string) string { return "order:" + visitorID }

// ProviderFactory returns the identity provider for one visitor. It may return nil
// when sign-in is not available.
type ProviderFactory func(visitorID string) identity.Provider

// Visitor holds the stores of one storefront visitor.
type Visitor struct {
	ID       string
	Cart     *cart.Store
	User     *user.Store
	Provider identity.Provider

	cartBinding *persist.Binding
	userBinding *persist.Binding
	teardown    func()
	lastSeen    atomic.Int64
}

func (v *Visitor) touch(now time.Time) {
	v.lastSeen.Store(now.UnixNano())
}

func (v *Visitor) LastSeen() time.Time {
	return time.Unix(0, v.lastSeen.Load())
}

// Flush waits for both stores' pending writes.
func (v *Visitor) Flush(ctx context.Context) error {
	return errors.Join(v.cartBinding.Flush(ctx), v.userBinding.Flush(ctx))
}

func (v *Visitor) close(ctx context.Context) error {
	if v.teardown != nil {
		v.teardown()
	}
	return errors.Join(v.cartBinding.Close(ctx), v.userBinding.Close(ctx))
}

type Config struct {
	OrderTTL      time.Duration // lifetime of the stashed order copy
	IdleTTL       time.Duration // zero disables eviction
	SweepInterval time.Duration
}

type Option func(*Registry)

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// Registry creates visitors on first use and keeps them in memory until they go idle.
type Registry struct {
	store     storage.Storage
	providers ProviderFactory
	cfg       Config
	now       func() time.Time

	mu       sync.RWMutex
	visitors map[string]*Visitor
	closed   bool
	sfg      singleflight.Group

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewRegistry(store storage.Storage, providers ProviderFactory, cfg Config, opts ...Option) (*Registry, error) {
	if store == nil {
		return nil, storage.ErrNilStorage
	}
	if cfg.OrderTTL <= 0 {
		cfg.OrderTTL = defaultOrderTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}

	r := &Registry{
		store:     store,
		providers: providers,
		cfg:       cfg,
		now:       time.Now,
		visitors:  make(map[string]*Visitor),
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	if cfg.IdleTTL > 0 {
		r.wg.Add(1)
		go r.sweepLoop()
	}
	return r, nil
}

// Get returns the visitor, loading its stores from storage on first use.
// Concurrent first requests for the same visitor share one load.
func (r *Registry) Get(ctx context.Context, visitorID string) (*Visitor, error) {
	id := strings.TrimSpace(visitorID)
	if id == "" {
		return nil, ErrEmptyVisitorID
	}

	if v, ok := r.lookup(id); ok {
		v.touch(r.now())
		return v, nil
	}

	res, err, _ := r.sfg.Do(id, func() (interface{}, error) {
		if v, ok := r.lookup(id); ok { // loaded while we waited
			return v, nil
		}
		// hydration outlives the request that triggered it
		return r.load(context.WithoutCancel(ctx), id)
	})
	if err != nil {
		return nil, err
	}

	v := res.(*Visitor)
	v.touch(r.now())
	return v, nil
}

func (r *Registry) lookup(id string) (*Visitor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.visitors[id]
	return v, ok
}

func (r *Registry) load(ctx context.Context, id string) (*Visitor, error) {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	stash := &orderStash{store: r.store, key: OrderKey(id), ttl: r.cfg.OrderTTL}
	v := &Visitor{
		ID:   id,
		Cart: cart.New(cart.WithOrderStash(stash), cart.WithClock(r.now)),
		User: user.New(),
	}

	var err error
	v.cartBinding, err = persist.Bind(ctx, r.store, CartKey(id), v.Cart)
	if err != nil {
		return nil, fmt.Errorf("bind cart: %w", err)
	}
	v.userBinding, err = persist.Bind(ctx, r.store, UserKey(id), v.User)
	if err != nil {
		_ = v.cartBinding.Close(ctx)
		return nil, fmt.Errorf("bind user: %w", err)
	}

	if r.providers != nil {
		if provider := r.providers(id); provider != nil {
			teardown, err := v.User.Initialize(ctx, provider)
			if err != nil {
				log.Printf("visitor %s: initialize identity failed: %v \n", id, err)
			} else {
				v.Provider = provider
				v.teardown = teardown
			}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		_ = v.close(ctx)
		return nil, ErrClosed
	}
	r.visitors[id] = v
	return v, nil
}

// LastOrder returns the visitor's last order, falling back to the stashed copy.
// It returns nil without error when there is none.
func (r *Registry) LastOrder(ctx context.Context, visitorID string) (*domain.Order, error) {
	v, err := r.Get(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	if order := v.Cart.LastOrder(); order != nil {
		return order, nil
	}

	data, err := r.store.Get(ctx, OrderKey(v.ID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load stashed order: %w", err)
	}

	var order domain.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("decode stashed order: %w", err)
	}
	return &order, nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.visitors)
}

// Evict drops the visitor from memory after writing its pending changes.
func (r *Registry) Evict(ctx context.Context, visitorID string) error {
	r.mu.Lock()
	v, ok := r.visitors[visitorID]
	delete(r.visitors, visitorID)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return v.close(ctx)
}

// Forget evicts the visitor and deletes everything stored for it: cart, user profile
// and stashed order.
func (r *Registry) Forget(ctx context.Context, visitorID string) error {
	id := strings.TrimSpace(visitorID)
	if id == "" {
		return ErrEmptyVisitorID
	}
	if err := r.Evict(ctx, id); err != nil {
		return fmt.Errorf("evict visitor: %w", err)
	}

	var errs []error
	for _, key := range []string{CartKey(id), UserKey(id), OrderKey(id)} {
		if err := r.store.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) sweepLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.evictIdle(context.Background())
		case <-r.stop:
			return
		}
	}
}

func (r *Registry) evictIdle(ctx context.Context) {
	cutoff := r.now().Add(-r.cfg.IdleTTL)

	r.mu.Lock()
	var idle []*Visitor
	for id, v := range r.visitors {
		if v.LastSeen().Before(cutoff) {
			idle = append(idle, v)
			delete(r.visitors, id)
		}
	}
	r.mu.Unlock()

	for _, v := range idle {
		if err := v.close(ctx); err != nil {
			log.Printf("visitor %s: evict failed: %v \n", v.ID, err)
		}
	}
	if len(idle) > 0 {
		log.Printf("evicted %d idle visitors", len(idle))
	}
}

// Close stops eviction and writes every visitor's pending changes.
func (r *Registry) Close(ctx context.Context) error {
	r.stopOnce.Do(func() { close(r.stop) })
	r.wg.Wait()

	r.mu.Lock()
	r.closed = true
	visitors := r.visitors
	r.visitors = make(map[string]*Visitor)
	r.mu.Unlock()

	var errs []error
	for _, v := range visitors {
		if err := v.close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("visitor %s: %w", v.ID, err))
		}
	}
	return errors.Join(errs...)
}

type orderStash struct {
	store storage.Storage
	key   string
	ttl   time.Duration
}

func (s *orderStash) StashOrder(ctx context.Context, order *domain.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	return s.store.Set(ctx, s.key, data, s.ttl)
}
