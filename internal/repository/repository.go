// Package repository содержит реализации хранилищ учётных записей и заказов.
package repository

import "errors"

var (
	// ErrNotFound возвращается, если запись не найдена.
	ErrNotFound = errors.New("not found")
	// ErrIdentityExists возвращается при попытке создать учётную запись с уже занятым email.
	ErrIdentityExists = errors.New("identity already exists")
	// ErrStatusMismatch возвращается условным обновлением, если текущий статус заказа
	// отличается от ожидаемого.
	ErrStatusMismatch = errors.New("order status mismatch")
)
