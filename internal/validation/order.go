// Package validation содержит функции валидации входных данных.
package validation

import (
	"net/mail"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/bcastroea/sapatariacapacita-backend/internal/model"
)

// Ограничения длины пароля; bcrypt не принимает пароли длиннее 72 байт.
const (
	MinPasswordLength = 6
	MaxPasswordLength = 72
)

// Password проверяет длину пароля.
func Password(password string) error {
	if len(password) < MinPasswordLength {
		return model.Validation("password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return model.Validation("password must be at most %d bytes", MaxPasswordLength)
	}
	return nil
}

// NormalizePostalCode приводит CEP к восьми цифрам. Допускаются форматы
// NNNNNNNN и NNNNN-NNN.
func NormalizePostalCode(cep string) (string, bool) {
	cep = strings.TrimSpace(cep)
	if len(cep) == 9 && cep[5] == '-' {
		cep = cep[:5] + cep[6:]
	}
	if len(cep) != 8 {
		return "", false
	}
	for _, ch := range cep {
		if !unicode.IsDigit(ch) {
			return "", false
		}
	}
	return cep, true
}

// NormalizeEmail обрезает пробелы, приводит email к нижнему регистру и проверяет формат.
func NormalizeEmail(email string) (string, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", false
	}
	return email, true
}

// MaxUnitPrice ограничивает цену позиции сверху: колонка unit_price имеет тип NUMERIC(12,2).
var MaxUnitPrice = decimal.New(1, 10)

// LineItems проверяет позиции заказа. Цена задаётся не точнее чем до сотых.
func LineItems(items []model.LineItem) error {
	if len(items) == 0 {
		return model.Validation("order must contain at least one item")
	}
	for i, it := range items {
		if it.ProductID <= 0 {
			return model.Validation("item %d: product id must be positive", i)
		}
		if it.Quantity <= 0 {
			return model.Validation("item %d: quantity must be positive", i)
		}
		if it.UnitPrice.IsNegative() {
			return model.Validation("item %d: unit price must be non-negative", i)
		}
		if !it.UnitPrice.Equal(it.UnitPrice.Round(2)) {
			return model.Validation("item %d: unit price must have at most 2 decimal places", i)
		}
		if it.UnitPrice.GreaterThanOrEqual(MaxUnitPrice) {
			return model.Validation("item %d: unit price is too large", i)
		}
	}
	return nil
}

// ShippingAddress проверяет адрес доставки и возвращает его нормализованную копию.
func ShippingAddress(addr model.ShippingAddress) (model.ShippingAddress, error) {
	addr.Street = strings.TrimSpace(addr.Street)
	addr.Number = strings.TrimSpace(addr.Number)
	addr.City = strings.TrimSpace(addr.City)
	addr.State = strings.ToUpper(strings.TrimSpace(addr.State))

	switch {
	case addr.Street == "":
		return model.ShippingAddress{}, model.Validation("shipping address: street is required")
	case addr.City == "":
		return model.ShippingAddress{}, model.Validation("shipping address: city is required")
	case addr.State == "":
		return model.ShippingAddress{}, model.Validation("shipping address: state is required")
	}

	cep, ok := NormalizePostalCode(addr.PostalCode)
	if !ok {
		return model.ShippingAddress{}, model.Validation("shipping address: invalid postal code")
	}
	addr.PostalCode = cep

	return addr, nil
}
