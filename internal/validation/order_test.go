package validation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcastroea/sapatariacapacita-backend/internal/model"
)

func TestNormalizePostalCode(t *testing.T) {
	tests := []struct {
		name  string
		cep   string
		want  string
		valid bool
	}{
		{name: "digits only", cep: "50030230", want: "50030230", valid: true},
		{name: "with dash", cep: "50030-230", want: "50030230", valid: true},
		{name: "surrounding spaces", cep: " 50030-230 ", want: "50030230", valid: true},
		{name: "too short", cep: "5003023", valid: false},
		{name: "dash in wrong place", cep: "5003-0230", valid: false},
		{name: "contains letters", cep: "5003a230", valid: false},
		{name: "empty string", cep: "", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizePostalCode(tt.cep)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	got, ok := NormalizeEmail("  Ana@Example.COM ")
	assert.True(t, ok)
	assert.Equal(t, "ana@example.com", got)

	for _, bad := range []string{"", "ana", "Ana <ana@example.com>", "@example.com"} {
		_, ok := NormalizeEmail(bad)
		assert.False(t, ok, bad)
	}
}

func TestLineItems(t *testing.T) {
	valid := model.LineItem{ProductID: 1, Quantity: 2, UnitPrice: decimal.NewFromFloat(50)}

	tests := []struct {
		name    string
		items   []model.LineItem
		wantErr bool
	}{
		{name: "valid", items: []model.LineItem{valid}},
		{name: "free item", items: []model.LineItem{{ProductID: 1, Quantity: 1, UnitPrice: decimal.Zero}}},
		{name: "empty", items: nil, wantErr: true},
		{name: "zero quantity", items: []model.LineItem{{ProductID: 1, Quantity: 0, UnitPrice: decimal.NewFromInt(1)}}, wantErr: true},
		{name: "bad product", items: []model.LineItem{valid, {ProductID: 0, Quantity: 1}}, wantErr: true},
		{name: "negative price", items: []model.LineItem{{ProductID: 1, Quantity: 1, UnitPrice: decimal.NewFromInt(-1)}}, wantErr: true},
		{name: "cents", items: []model.LineItem{{ProductID: 1, Quantity: 3, UnitPrice: decimal.RequireFromString("50.55")}}},
		{name: "trailing zero beyond cents", items: []model.LineItem{{ProductID: 1, Quantity: 1, UnitPrice: decimal.RequireFromString("50.500")}}},
		{name: "fraction of a cent", items: []model.LineItem{{ProductID: 1, Quantity: 3, UnitPrice: decimal.RequireFromString("50.555")}}, wantErr: true},
		{name: "largest price", items: []model.LineItem{{ProductID: 1, Quantity: 1, UnitPrice: decimal.RequireFromString("9999999999.99")}}},
		{name: "price overflows column", items: []model.LineItem{{ProductID: 1, Quantity: 1, UnitPrice: decimal.RequireFromString("10000000000")}}, wantErr: true},
		{name: "huge price", items: []model.LineItem{{ProductID: 1, Quantity: 1, UnitPrice: decimal.RequireFromString("1e15")}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := LineItems(tt.items)
			if tt.wantErr {
				assert.ErrorIs(t, err, model.ErrValidation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestShippingAddress(t *testing.T) {
	addr, err := ShippingAddress(model.ShippingAddress{
		Street: " Rua da Aurora ", Number: "100", City: "Recife", State: "pe", PostalCode: "50050-000",
	})
	require.NoError(t, err)
	assert.Equal(t, "Rua da Aurora", addr.Street)
	assert.Equal(t, "PE", addr.State)
	assert.Equal(t, "50050000", addr.PostalCode)

	_, err = ShippingAddress(model.ShippingAddress{Street: "Rua", City: "Recife", State: "PE", PostalCode: "x"})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = ShippingAddress(model.ShippingAddress{City: "Recife", State: "PE", PostalCode: "50050000"})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestPassword(t *testing.T) {
	assert.NoError(t, Password("secret"))
	assert.ErrorIs(t, Password("12345"), model.ErrValidation)
	assert.ErrorIs(t, Password(string(make([]byte, MaxPasswordLength+1))), model.ErrValidation)
}
