package cart

import "errors"

// Errors returned by cart mutations. The cart state is unchanged whenever one is returned.
var (
	ErrInvalidProduct  = errors.New("invalid product")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrEmptyCart       = errors.New("cart is empty, nothing to checkout")
)
