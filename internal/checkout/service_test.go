package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thisisprabalapndey/pathpooja/internal/cart"
	"github.com/thisisprabalapndey/pathpooja/internal/domain"
	"github.com/thisisprabalapndey/pathpooja/internal/identity"
	"github.com/thisisprabalapndey/pathpooja/internal/user"
	"github.com/thisisprabalapndey/pathpooja/internal/visitor"
)

type mockWriter struct {
	m        sync.Mutex
	messages []kafka.Message
	err      error
	calls    int
	closed   bool
}

func (w *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.m.Lock()
	defer w.m.Unlock()
	w.calls++
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *mockWriter) Close() error {
	w.m.Lock()
	defer w.m.Unlock()
	w.closed = true
	return nil
}

func (w *mockWriter) written() []kafka.Message {
	w.m.Lock()
	defer w.m.Unlock()
	return append([]kafka.Message(nil), w.messages...)
}

type mockPublisher struct {
	m      sync.Mutex
	events []OrderCompleted
	err    error
}

func (p *mockPublisher) Publish(_ context.Context, e OrderCompleted) error {
	p.m.Lock()
	defer p.m.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *mockPublisher) Close() error { return nil }

func (p *mockPublisher) published() []OrderCompleted {
	p.m.Lock()
	defer p.m.Unlock()
	return append([]OrderCompleted(nil), p.events...)
}

func newVisitor(t *testing.T) *visitor.Visitor {
	t.Helper()
	v := &visitor.Visitor{ID: "v1", Cart: cart.New(), User: user.New()}
	return v
}

func addItem(t *testing.T, v *visitor.Visitor, id string, price int64, qty int) {
	t.Helper()
	require.NoError(t, v.Cart.AddToCart(domain.Product{ID: id, Name: "Item " + id, Price: decimal.NewFromInt(price)}, qty))
}

func TestCheckout_EmptyCart(t *testing.T) {
	pub := &mockPublisher{}
	s := NewService(pub, 0)

	order, err := s.Checkout(context.Background(), newVisitor(t), domain.OrderRequest{})

	assert.Nil(t, order)
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Empty(t, pub.published())
}

func TestCheckout_CompletesAndPublishes(t *testing.T) {
	pub := &mockPublisher{}
	s := NewService(pub, time.Millisecond)
	v := newVisitor(t)
	addItem(t, v, "p1", 300, 2)
	v.Cart.OpenCart()

	order, err := s.Checkout(context.Background(), v, domain.OrderRequest{OrderNumber: "PP-1", Email: "a@example.com", PaymentMethod: "upi"})
	require.NoError(t, err)

	assert.Equal(t, "PP-1", order.OrderNumber)
	assert.True(t, decimal.NewFromInt(600).Equal(order.Total))
	assert.Equal(t, 0, v.Cart.Len())
	assert.False(t, v.Cart.IsOpen())

	require.NoError(t, s.Close(context.Background()))
	events := pub.published()
	require.Len(t, events, 1)
	assert.Equal(t, EventOrderCompleted, events[0].EventType)
	assert.Equal(t, "v1", events[0].VisitorID)
	assert.Equal(t, "PP-1", events[0].Order.OrderNumber)
}

func TestCheckout_FillsFromUserStore(t *testing.T) {
	s := NewService(&mockPublisher{}, 0)
	v := newVisitor(t)
	addItem(t, v, "p1", 10, 1)
	v.User.SetSession(&identity.Session{UserID: "u1", Email: "devi@example.com"})
	_, err := v.User.AddAddress(domain.Address{FullName: "Devi", Line1: "1 Ghat Rd", City: "Haridwar", PostalCode: "249401"})
	require.NoError(t, err)

	order, err := s.Checkout(context.Background(), v, domain.OrderRequest{})
	require.NoError(t, err)

	assert.Equal(t, "devi@example.com", order.Email)
	require.NotNil(t, order.ShippingAddress)
	assert.Equal(t, "Haridwar", order.ShippingAddress.City)
	require.NoError(t, s.Close(context.Background()))
}

func TestCheckout_PublishFailureDoesNotFail(t *testing.T) {
	pub := &mockPublisher{err: errors.New("broker down")}
	s := NewService(pub, 0)
	v := newVisitor(t)
	addItem(t, v, "p1", 10, 1)

	order, err := s.Checkout(context.Background(), v, domain.OrderRequest{})

	require.NoError(t, err)
	assert.NotNil(t, order)
	require.NoError(t, s.Close(context.Background()))
	assert.Len(t, pub.published(), 1)
}

func TestCheckout_DelayIsCancellable(t *testing.T) {
	s := NewService(&mockPublisher{}, time.Hour)
	v := newVisitor(t)
	addItem(t, v, "p1", 10, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	order, err := s.Checkout(ctx, v, domain.OrderRequest{})

	assert.Nil(t, order)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, v.Cart.Len())
}

func TestCheckout_CartEmptiedDuringDelay(t *testing.T) {
	s := NewService(&mockPublisher{}, 50*time.Millisecond)
	v := newVisitor(t)
	addItem(t, v, "p1", 10, 1)

	go func() {
		time.Sleep(10 * time.Millisecond)
		v.Cart.ClearCart(nil)
	}()
	_, err := s.Checkout(context.Background(), v, domain.OrderRequest{})

	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckout_DoubleSubmitPublishesOnce(t *testing.T) {
	pub := &mockPublisher{}
	s := NewService(pub, 0)
	v := newVisitor(t)
	addItem(t, v, "p1", 10, 2)

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Checkout(context.Background(), v, domain.OrderRequest{})
		}(i)
	}
	wg.Wait()
	require.NoError(t, s.Close(context.Background()))

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrEmptyCart)
	}
	assert.Equal(t, 1, succeeded)
	require.Len(t, pub.published(), 1)
	assert.Equal(t, 2, pub.published()[0].Order.ItemCount)
}

func TestKafkaPublisher_WritesKeyedMessage(t *testing.T) {
	w := &mockWriter{}
	p := newKafkaPublisher(w)
	order := &domain.Order{OrderSnapshot: domain.OrderSnapshot{OrderNumber: "PP-9", ItemCount: 1, Total: decimal.NewFromInt(99)}}

	err := p.Publish(context.Background(), OrderCompleted{EventType: EventOrderCompleted, VisitorID: "v1", Order: order})
	require.NoError(t, err)

	msgs := w.written()
	require.Len(t, msgs, 1)
	assert.Equal(t, "PP-9", string(msgs[0].Key))
	assert.Equal(t, "event_type", msgs[0].Headers[0].Key)
	assert.Equal(t, EventOrderCompleted, string(msgs[0].Headers[0].Value))

	var decoded OrderCompleted
	require.NoError(t, json.Unmarshal(msgs[0].Value, &decoded))
	assert.Equal(t, "v1", decoded.VisitorID)
	assert.Equal(t, "PP-9", decoded.Order.OrderNumber)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_MissingOrder(t *testing.T) {
	w := &mockWriter{}
	p := newKafkaPublisher(w)

	err := p.Publish(context.Background(), OrderCompleted{EventType: EventOrderCompleted})

	assert.Error(t, err)
	assert.Equal(t, 0, w.calls)
}

func TestKafkaPublisher_BreakerOpensAfterFailures(t *testing.T) {
	w := &mockWriter{err: errors.New("connection refused")}
	p := newKafkaPublisher(w)
	event := OrderCompleted{EventType: EventOrderCompleted, Order: &domain.Order{}}

	for i := 0; i < 3; i++ {
		assert.Error(t, p.Publish(context.Background(), event))
	}
	err := p.Publish(context.Background(), event)

	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, w.calls)
}
