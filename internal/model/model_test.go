package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseOrderStatus(t *testing.T) {
	for _, s := range []string{"PENDING", "PAID", "SENT", "DELIVERED", "CANCELED"} {
		got, ok := ParseOrderStatus(s)
		assert.True(t, ok, s)
		assert.Equal(t, OrderStatus(s), got)
	}

	for _, s := range []string{"", "pending", "CANCELLED", "SHIPPED", " PAID"} {
		_, ok := ParseOrderStatus(s)
		assert.False(t, ok, s)
	}

	assert.True(t, OrderStatusCanceled.IsTerminal())
	assert.False(t, OrderStatusDelivered.IsTerminal())
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole("ADMIN")
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, r)

	_, ok = ParseRole("admin")
	assert.False(t, ok)
}

func TestOrderTotal(t *testing.T) {
	o := Order{Items: []LineItem{
		{ProductID: 1, Quantity: 3, UnitPrice: decimal.RequireFromString("0.10")},
		{ProductID: 2, Quantity: 1, UnitPrice: decimal.RequireFromString("199.99")},
	}}
	assert.Equal(t, "200.29", o.Total().StringFixed(2))

	assert.True(t, (&Order{}).Total().IsZero())
}

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Forbidden("you can only view your own orders"))

	assert.ErrorIs(t, err, ErrForbidden)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, KindForbidden, KindOf(err))
	assert.Equal(t, "wrapped: you can only view your own orders", err.Error())

	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, "conflict", ErrConflict.Error())
	assert.Equal(t, "item 2: bad", Validation("item %d: bad", 2).Error())
}
