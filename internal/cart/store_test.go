package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thisisprabalapndey/pathpooja/internal/domain"
)

type mockStash struct {
	m      sync.Mutex
	orders []*domain.Order
	err    error
}

func (m *mockStash) StashOrder(_ context.Context, order *domain.Order) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.orders = append(m.orders, order)
	return nil
}

func (m *mockStash) stashed() []*domain.Order {
	m.m.Lock()
	defer m.m.Unlock()
	return append([]*domain.Order(nil), m.orders...)
}

var fixedNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func newTestStore(opts ...Option) *Store {
	base := []Option{WithClock(func() time.Time { return fixedNow })}
	return New(append(base, opts...)...)
}

func newProduct(id string, price, original int64) domain.Product {
	return domain.Product{
		ID:            id,
		Name:          "Product " + id,
		Price:         decimal.NewFromInt(price),
		OriginalPrice: decimal.NewFromInt(original),
		Category:      "pooja-items",
	}
}

func TestAddToCart_NewLine(t *testing.T) {
	s := newTestStore()

	require.NoError(t, s.AddToCart(newProduct("1", 250, 0), 2))

	items := s.Items()
	require.Len(t, items, 1)
	assert.NotEmpty(t, items[0].ID)
	assert.Equal(t, "1", items[0].Product.ID)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Nil(t, items[0].SelectedColor)
	assert.Nil(t, items[0].SelectedSize)
}

func TestAddToCart_MergeScenario(t *testing.T) {
	s := newTestStore()

	require.NoError(t, s.AddToCart(newProduct("7", 100, 150), 2))
	require.NoError(t, s.AddToCart(newProduct("7", 100, 150), 1))

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
	assert.True(t, decimal.NewFromInt(300).Equal(s.TotalPrice()))
	assert.True(t, decimal.NewFromInt(150).Equal(s.Summary().Savings))
}

func TestAddToCart_KeepsOneLinePerProduct(t *testing.T) {
	s := newTestStore()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AddToCart(newProduct(fmt.Sprint(i%2), 10, 0), 1))
	}

	seen := make(map[string]bool)
	for _, line := range s.Items() {
		assert.False(t, seen[line.Product.ID], "duplicate line for product %s", line.Product.ID)
		seen[line.Product.ID] = true
	}
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 5, s.TotalItems())
}

func TestAddToCart_Variants(t *testing.T) {
	s := newTestStore()

	require.NoError(t, s.AddToCart(newProduct("shawl", 900, 0), 1, WithColor(" saffron "), WithSize("")))

	items := s.Items()
	require.Len(t, items, 1)
	require.NotNil(t, items[0].SelectedColor)
	assert.Equal(t, "saffron", *items[0].SelectedColor)
	assert.Nil(t, items[0].SelectedSize)
}

func TestAddToCart_InvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		product  domain.Product
		quantity int
		wantErr  error
	}{
		{"missing id", domain.Product{Name: "Diya", Price: decimal.NewFromInt(10)}, 1, ErrInvalidProduct},
		{"blank id", domain.Product{ID: "   ", Price: decimal.NewFromInt(10)}, 1, ErrInvalidProduct},
		{"negative price", newProduct("1", -5, 0), 1, ErrInvalidProduct},
		{"zero quantity", newProduct("1", 10, 0), 0, ErrInvalidQuantity},
		{"negative quantity", newProduct("1", 10, 0), -3, ErrInvalidQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore()
			notified := 0
			s.OnChange(func() { notified++ })

			err := s.AddToCart(tt.product, tt.quantity)

			assert.True(t, errors.Is(err, tt.wantErr))
			assert.Equal(t, 0, s.Len())
			assert.Equal(t, 0, notified)
		})
	}
}

func TestAddToCart_SanitizesProduct(t *testing.T) {
	s := newTestStore()

	p := domain.Product{
		ID:            " 42 ",
		Price:         decimal.NewFromInt(80),
		OriginalPrice: decimal.NewFromInt(-1),
		Image:         " /img/diya.png ",
	}
	require.NoError(t, s.AddToCart(p, 1))

	got := s.Items()[0].Product
	assert.Equal(t, "42", got.ID)
	assert.Equal(t, "42", got.Name)
	assert.Equal(t, "/img/diya.png", got.Image)
	assert.True(t, got.OriginalPrice.IsZero())
}

func TestRemoveItem(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.AddToCart(newProduct("1", 10, 0), 1))
	require.NoError(t, s.AddToCart(newProduct("2", 20, 0), 1))
	lineID := s.Items()[0].ID

	assert.True(t, s.RemoveItem(lineID))
	assert.Equal(t, 1, s.Len())

	assert.True(t, s.RemoveFromCart("2"))
	assert.Equal(t, 0, s.Len())

	// idempotent
	assert.False(t, s.RemoveItem(lineID))
	assert.False(t, s.RemoveFromCart("missing"))
}

func TestUpdateQuantity(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.AddToCart(newProduct("1", 10, 0), 1))
	lineID := s.Items()[0].ID

	assert.True(t, s.UpdateQuantity(lineID, 4))
	assert.Equal(t, 4, s.TotalItems())

	assert.True(t, s.UpdateQuantity("1", 2))
	assert.Equal(t, 2, s.TotalItems())

	assert.False(t, s.UpdateQuantity("unknown", 9))
	assert.Equal(t, 2, s.TotalItems())
}

func TestUpdateQuantity_NonPositiveRemoves(t *testing.T) {
	for _, q := range []int{0, -1} {
		t.Run(fmt.Sprintf("quantity %d", q), func(t *testing.T) {
			s := newTestStore()
			require.NoError(t, s.AddToCart(newProduct("1", 10, 0), 3))
			lineID := s.Items()[0].ID

			s.UpdateQuantity(lineID, q)

			assert.Empty(t, s.Items())
		})
	}
}

func TestTotals_PriceSnapshotIsStable(t *testing.T) {
	s := newTestStore()
	p := newProduct("1", 100, 0)
	require.NoError(t, s.AddToCart(p, 2))

	// a later catalog price change does not reprice the existing line
	p.Price = decimal.NewFromInt(500)
	require.NoError(t, s.AddToCart(p, 1))

	assert.True(t, decimal.NewFromInt(300).Equal(s.TotalPrice()))
}

func TestSummary(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.AddToCart(newProduct("1", 100, 150), 2))
	require.NoError(t, s.AddToCart(newProduct("2", 50, 0), 1))

	sum := s.Summary()

	assert.Equal(t, 3, sum.TotalItems)
	assert.True(t, decimal.NewFromInt(250).Equal(sum.TotalPrice))
	assert.True(t, decimal.NewFromInt(350).Equal(sum.OriginalTotal))
	assert.True(t, decimal.NewFromInt(100).Equal(sum.Savings))
	assert.False(t, sum.IsEmpty)
}

func TestSummary_SavingsNeverNegative(t *testing.T) {
	s := newTestStore()
	// original lower than price
	require.NoError(t, s.AddToCart(newProduct("1", 200, 150), 1))

	sum := s.Summary()

	assert.True(t, sum.Savings.IsZero())
	assert.True(t, decimal.NewFromInt(150).Equal(sum.OriginalTotal))
}

func TestSummary_Empty(t *testing.T) {
	sum := newTestStore().Summary()

	assert.True(t, sum.IsEmpty)
	assert.Equal(t, 0, sum.TotalItems)
	assert.True(t, sum.TotalPrice.IsZero())
	assert.True(t, sum.Savings.IsZero())
}

func TestCartFlags(t *testing.T) {
	s := newTestStore()
	assert.False(t, s.IsOpen())

	s.ToggleCart()
	assert.True(t, s.IsOpen())
	s.ToggleCart()
	assert.False(t, s.IsOpen())

	s.OpenCart()
	s.OpenCart()
	assert.True(t, s.IsOpen())
	s.CloseCart()
	assert.False(t, s.IsOpen())
}

func TestClearCart_WithOrderScenario(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.AddToCart(newProduct("1", 200, 0), 2))
	require.NoError(t, s.AddToCart(newProduct("2", 100, 0), 1))

	order := s.ClearCart(&domain.OrderRequest{OrderNumber: "X1"})

	require.NotNil(t, order)
	assert.Equal(t, "X1", order.OrderNumber)
	assert.Equal(t, 3, order.ItemCount)
	assert.True(t, decimal.NewFromInt(500).Equal(order.Total))
	assert.Equal(t, fixedNow, order.CompletedAt)
	assert.Empty(t, order.Items)
	assert.Empty(t, s.Items())
	assert.Equal(t, order, s.LastOrder())
}

func TestClearCart_GeneratesOrderNumber(t *testing.T) {
	s := newTestStore(WithOrderNumbers(func(time.Time) string { return "PP-TEST" }))
	require.NoError(t, s.AddToCart(newProduct("1", 10, 0), 1))

	order := s.ClearCart(&domain.OrderRequest{})

	require.NotNil(t, order)
	assert.Equal(t, "PP-TEST", order.OrderNumber)
}

func TestClearCart_NilKeepsLastOrder(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.AddToCart(newProduct("1", 10, 0), 1))
	first := s.ClearCart(&domain.OrderRequest{OrderNumber: "A1"})

	require.NoError(t, s.AddToCart(newProduct("2", 10, 0), 1))
	assert.Nil(t, s.ClearCart(nil))

	assert.Empty(t, s.Items())
	assert.Equal(t, first, s.LastOrder())
}

func TestClearCart_Idempotent(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.AddToCart(newProduct("1", 10, 0), 1))

	s.ClearCart(nil)
	s.ClearCart(nil)

	assert.Empty(t, s.Items())
	assert.Nil(t, s.LastOrder())
}

func TestCompleteOrder(t *testing.T) {
	stash := &mockStash{}
	s := newTestStore(WithOrderStash(stash))
	require.NoError(t, s.AddToCart(newProduct("1", 120, 0), 2))
	s.OpenCart()
	addr := &domain.Address{FullName: "Asha Rao", City: "Pune"}

	order, err := s.CompleteOrder(context.Background(), domain.OrderRequest{
		OrderNumber:     "PP-1",
		Email:           " asha@example.com ",
		ShippingAddress: addr,
		PaymentMethod:   "upi",
	})

	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, "PP-1", order.OrderNumber)
	assert.Equal(t, 2, order.ItemCount)
	assert.True(t, decimal.NewFromInt(240).Equal(order.Total))
	require.Len(t, order.Items, 1)
	assert.Equal(t, domain.OrderLine{Name: "Product 1", Quantity: 2, Price: decimal.NewFromInt(120)}, order.Items[0])
	assert.Equal(t, "asha@example.com", order.Email)
	assert.Equal(t, "Pune", order.ShippingAddress.City)
	assert.Equal(t, "upi", order.PaymentMethod)

	assert.Empty(t, s.Items())
	assert.False(t, s.IsOpen())
	assert.Equal(t, order, s.LastOrder())

	stashed := stash.stashed()
	require.Len(t, stashed, 1)
	assert.Equal(t, order, stashed[0])
}

func TestCompleteOrder_StashFailureIsSwallowed(t *testing.T) {
	s := newTestStore(WithOrderStash(&mockStash{err: errors.New("redis down")}))
	require.NoError(t, s.AddToCart(newProduct("1", 10, 0), 1))

	order, err := s.CompleteOrder(context.Background(), domain.OrderRequest{})

	require.NoError(t, err)
	require.NotNil(t, order)
	assert.NotEmpty(t, order.OrderNumber)
	assert.Equal(t, order, s.LastOrder())
}

func TestCompleteOrder_EmptyCart(t *testing.T) {
	stash := &mockStash{}
	s := newTestStore(WithOrderStash(stash))
	require.NoError(t, s.AddToCart(newProduct("1", 10, 0), 1))
	first, err := s.CompleteOrder(context.Background(), domain.OrderRequest{OrderNumber: "A"})
	require.NoError(t, err)

	order, err := s.CompleteOrder(context.Background(), domain.OrderRequest{OrderNumber: "B"})

	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Nil(t, order)
	assert.Equal(t, first, s.LastOrder())
	assert.Len(t, stash.stashed(), 1)
}

func TestCompleteOrder_ConcurrentCallsBuildOneOrder(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.AddToCart(newProduct("1", 10, 0), 3))

	var (
		wg        sync.WaitGroup
		m         sync.Mutex
		completed int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.CompleteOrder(context.Background(), domain.OrderRequest{}); err == nil {
				m.Lock()
				completed++
				m.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, completed)
	assert.Equal(t, 3, s.LastOrder().ItemCount)
}

func TestLastOrder_ReturnsCopy(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.AddToCart(newProduct("1", 10, 0), 1))
	_, err := s.CompleteOrder(context.Background(), domain.OrderRequest{OrderNumber: "A"})
	require.NoError(t, err)

	got := s.LastOrder()
	got.Items[0].Name = "changed"

	assert.Equal(t, "Product 1", s.LastOrder().Items[0].Name)
}

func TestOnChange_NotifiesMutationsOnly(t *testing.T) {
	s := newTestStore()
	calls := 0
	s.OnChange(func() { calls++ })

	require.NoError(t, s.AddToCart(newProduct("1", 10, 0), 1))
	s.UpdateQuantity("1", 2)
	s.ToggleCart()
	s.RemoveItem("1")
	s.ClearCart(nil)

	assert.Equal(t, 4, calls)
}

func TestMarkHydrated_Once(t *testing.T) {
	s := newTestStore()
	assert.False(t, s.IsHydrated())

	s.MarkHydrated()
	s.MarkHydrated()

	assert.True(t, s.IsHydrated())
}

func TestPersistRoundTrip_ExcludesUIFlags(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.AddToCart(newProduct("1", 100, 150), 2, WithSize("M")))
	s.ClearCart(&domain.OrderRequest{OrderNumber: "X9"})
	require.NoError(t, s.AddToCart(newProduct("2", 50, 0), 1))
	s.OpenCart()
	s.MarkHydrated()

	data, err := s.ToPersisted()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "is_open")
	assert.NotContains(t, string(data), "is_hydrated")

	restored := newTestStore()
	require.NoError(t, restored.FromPersisted(data))

	want, got := s.Items(), restored.Items()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.Equal(t, want[i].Quantity, got[i].Quantity)
		assert.Equal(t, want[i].SelectedSize, got[i].SelectedSize)
		assert.True(t, want[i].Product.Price.Equal(got[i].Product.Price))
	}
	assert.True(t, s.Summary().Savings.Equal(restored.Summary().Savings))
	assert.Equal(t, "X9", restored.LastOrder().OrderNumber)
	assert.False(t, restored.IsOpen())
	assert.False(t, restored.IsHydrated())
}

func TestFromPersisted_RepairsLines(t *testing.T) {
	data := []byte(`{"items":[
		{"id":"a","product":{"id":"1","name":"Diya","price":"10"},"quantity":2},
		{"id":"b","product":{"id":"1","name":"Diya","price":"10"},"quantity":3},
		{"id":"c","product":{"id":"","price":"10"},"quantity":1},
		{"id":"d","product":{"id":"2","price":"5"},"quantity":0},
		{"id":"","product":{"id":"3","price":"7"},"quantity":1}
	]}`)
	s := newTestStore(WithLineIDs(func() string { return "generated" }))

	require.NoError(t, s.FromPersisted(data))

	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, 5, items[0].Quantity)
	assert.Equal(t, "generated", items[1].ID)
	assert.Equal(t, "3", items[1].Product.Name)
}

func TestFromPersisted_CorruptPayload(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.AddToCart(newProduct("1", 10, 0), 1))

	err := s.FromPersisted([]byte("{not json"))

	assert.Error(t, err)
	assert.Equal(t, 1, s.Len())
}

func TestNewOrderNumber(t *testing.T) {
	n := NewOrderNumber(fixedNow)

	assert.Regexp(t, `^PP-[0-9A-Z]+-[0-9A-F]{4}$`, n)
	assert.NotEqual(t, n, NewOrderNumber(fixedNow))
}

func TestConcurrentMutations(t *testing.T) {
	s := newTestStore()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.AddToCart(newProduct("1", 10, 0), 1)
			_ = s.Summary()
		}()
	}
	wg.Wait()

	require.Equal(t, 1, s.Len())
	assert.Equal(t, 50, s.TotalItems())
}
