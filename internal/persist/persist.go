package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thisisprabalapndey/pathpooja/internal/storage"
)

// Version of the snapshot envelope. Snapshots written with another version are ignored on load.
const Version = 1

const defaultWriteTimeout = 5 * time.Second

// Snapshotter is a store whose partial state can be written to and restored from storage.
type Snapshotter interface {
	ToPersisted() ([]byte, error)
	FromPersisted(data []byte) error
	MarkHydrated()
	OnChange(fn func())
}

type envelope struct {
	Version int             `json:"version"`
	State   json.RawMessage `json:"state"`
}

// Binding ties a Snapshotter to one storage key. Change notifications are coalesced
// and written by a single goroutine, so writes reach storage in call order.
type Binding struct {
	store        storage.Storage
	key          string
	target       Snapshotter
	writeTimeout time.Duration

	pending  chan struct{}
	flushReq chan chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	closed  atomic.Bool
	writeMu sync.Mutex // serializes snapshot and write
}

type Option func(*Binding)

// WithWriteTimeout bounds every storage write
func WithWriteTimeout(d time.Duration) Option {
	return func(b *Binding) {
		if d > 0 {
			b.writeTimeout = d
		}
	}
}

// Bind rehydrates target from storage, marks it hydrated and starts persisting its changes.
// Load failures are logged and leave target with its initial state; Bind only fails on
// invalid arguments.
func Bind(ctx context.Context, store storage.Storage, key string, target Snapshotter, opts ...Option) (*Binding, error) {
	if store == nil {
		return nil, storage.ErrNilStorage
	}
	if key == "" {
		return nil, storage.ErrEmptyKey
	}
	if target == nil {
		return nil, errors.New("persist: nil snapshotter")
	}

	b := &Binding{
		store:        store,
		key:          key,
		target:       target,
		writeTimeout: defaultWriteTimeout,
		pending:      make(chan struct{}, 1),
		flushReq:     make(chan chan struct{}),
		stop:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	if err := b.rehydrate(ctx); err != nil {
		log.Printf("persist: rehydrate %s failed, starting empty: %v", key, err)
	}
	target.MarkHydrated()

	b.wg.Add(1)
	go b.writeLoop()
	target.OnChange(b.schedule)

	return b, nil
}

func (b *Binding) Key() string {
	return b.key
}

func (b *Binding) rehydrate(ctx context.Context) error {
	data, err := b.store.Get(ctx, b.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version != Version {
		return fmt.Errorf("unsupported snapshot version %d", env.Version)
	}
	if len(env.State) == 0 {
		return nil
	}
	if err := b.target.FromPersisted(env.State); err != nil {
		return fmt.Errorf("restore state: %w", err)
	}
	return nil
}

// schedule never blocks: at most one write is queued, and it snapshots the latest state.
// Once the binding is closed the writer is gone, so late changes are written inline.
func (b *Binding) schedule() {
	if b.closed.Load() {
		b.write()
		return
	}
	select {
	case b.pending <- struct{}{}:
	default:
	}
}

func (b *Binding) writeLoop() {
	defer b.wg.Done()

	for {
		select {
		case <-b.pending:
			b.write()
		case done := <-b.flushReq:
			b.drain()
			close(done)
		case <-b.stop:
			b.drain()
			return
		}
	}
}

func (b *Binding) drain() {
	select {
	case <-b.pending:
		b.write()
	default:
	}
}

func (b *Binding) write() {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	state, err := b.target.ToPersisted()
	if err != nil {
		log.Printf("persist: snapshot %s failed: %v", b.key, err)
		return
	}
	data, err := json.Marshal(envelope{Version: Version, State: state})
	if err != nil {
		log.Printf("persist: encode %s failed: %v", b.key, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.writeTimeout)
	defer cancel()
	if err := b.store.Set(ctx, b.key, data, 0); err != nil {
		log.Printf("persist: write %s failed: %v", b.key, err)
	}
}

// Flush waits until every change scheduled before the call has been written.
func (b *Binding) Flush(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case b.flushReq <- done:
	case <-b.stop:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close writes any pending change and stops the writer.
func (b *Binding) Close(ctx context.Context) error {
	b.stopOnce.Do(func() {
		b.closed.Store(true)
		close(b.stop)
	})

	stopped := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
