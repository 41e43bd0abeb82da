package checkout

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/thisisprabalapndey/pathpooja/internal/cart"
	"github.com/thisisprabalapndey/pathpooja/internal/domain"
	"github.com/thisisprabalapndey/pathpooja/internal/visitor"
)

var ErrEmptyCart = cart.ErrEmptyCart

const publishTimeout = 10 * time.Second

type Service struct {
	publisher Publisher
	delay     time.Duration
	now       func() time.Time
	wg        sync.WaitGroup
}

// NewService returns a checkout service that waits delay before completing each order,
// standing in for the payment round trip.
func NewService(publisher Publisher, delay time.Duration) *Service {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Service{publisher: publisher, delay: delay, now: time.Now}
}

// Checkout completes the visitor's cart as an order. Missing customer details are filled
// from the signed-in session and the default saved address.
func (s *Service) Checkout(ctx context.Context, v *visitor.Visitor, req domain.OrderRequest) (*domain.Order, error) {
	if v.Cart.Len() == 0 {
		return nil, ErrEmptyCart
	}

	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	// the cart may have been emptied while we waited
	req = s.fillRequest(v, req)
	order, err := v.Cart.CompleteOrder(ctx, req)
	if err != nil {
		return nil, err
	}

	event := OrderCompleted{
		EventType:  EventOrderCompleted,
		VisitorID:  v.ID,
		Order:      order,
		OccurredAt: s.now(),
	}
	if session := v.User.Session(); session != nil {
		event.UserID = session.ID
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := s.publisher.Publish(pubCtx, event); err != nil {
			log.Printf("checkout: publish order %s failed: %v \n", order.OrderNumber, err)
		}
	}()

	return order, nil
}

func (s *Service) fillRequest(v *visitor.Visitor, req domain.OrderRequest) domain.OrderRequest {
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		if session := v.User.Session(); session != nil {
			req.Email = session.Email
		}
	}
	if req.ShippingAddress == nil {
		if addr, ok := v.User.DefaultAddress(); ok {
			req.ShippingAddress = &addr
		}
	}
	return req
}

// Close waits for in-flight publishes and closes the publisher.
func (s *Service) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.publisher.Close()
}
