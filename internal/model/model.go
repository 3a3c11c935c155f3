// Package model содержит доменные сущности сервиса сапатарии.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role описывает роль учётной записи. Набор значений закрыт.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleAdmin    Role = "ADMIN"
)

// ParseRole переводит строковое представление роли в Role.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleCustomer:
		return RoleCustomer, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// Identity представляет зарегистрированную учётную запись (клиента или администратора).
type Identity struct {
	ID           int64
	Name         string
	Email        string
	Role         Role
	PasswordHash []byte
	CreatedAt    time.Time
}

// IdentityContext содержит проверенные данные вызывающего, извлечённые из токена.
type IdentityContext struct {
	SubjectID int64
	Role      Role
	ExpiresAt time.Time
}

// OrderStatus описывает статус заказа.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusSent      OrderStatus = "SENT"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCanceled  OrderStatus = "CANCELED"
)

// ParseOrderStatus принимает только канонические значения статуса.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch OrderStatus(s) {
	case OrderStatusPending, OrderStatusPaid, OrderStatusSent, OrderStatusDelivered, OrderStatusCanceled:
		return OrderStatus(s), true
	default:
		return "", false
	}
}

// IsTerminal сообщает, что из статуса нет переходов.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCanceled
}

// LineItem описывает позицию заказа.
type LineItem struct {
	ProductID int64
	Quantity  int64
	UnitPrice decimal.Decimal
}

// ShippingAddress хранит снимок адреса доставки на момент оформления заказа.
type ShippingAddress struct {
	Street     string
	Number     string
	City       string
	State      string
	PostalCode string
}

// Order описывает заказ (compra) клиента.
type Order struct {
	ID              int64
	OwnerID         int64
	Items           []LineItem
	ShippingAddress ShippingAddress
	PaymentMethod   string
	Status          OrderStatus
	CreatedAt       time.Time
}

// Total возвращает сумму заказа по позициям.
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(it.Quantity)))
	}
	return total
}
