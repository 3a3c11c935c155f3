package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bcastroea/sapatariacapacita-backend/internal/access"
	"github.com/bcastroea/sapatariacapacita-backend/internal/events"
	"github.com/bcastroea/sapatariacapacita-backend/internal/model"
	"github.com/bcastroea/sapatariacapacita-backend/internal/repository"
	"github.com/bcastroea/sapatariacapacita-backend/internal/validation"
)

// NewOrder — данные для оформления заказа.
type NewOrder struct {
	Items           []model.LineItem
	ShippingAddress model.ShippingAddress
	PaymentMethod   string
}

// CreateOrder оформляет заказ от имени caller со статусом PENDING.
func (s *Service) CreateOrder(ctx context.Context, caller *model.IdentityContext, in NewOrder) (*model.Order, error) {
	if err := access.Require(caller, access.Authenticated...); err != nil {
		return nil, err
	}

	if err := validation.LineItems(in.Items); err != nil {
		return nil, err
	}

	addr, err := validation.ShippingAddress(in.ShippingAddress)
	if err != nil {
		return nil, err
	}

	payment := strings.TrimSpace(in.PaymentMethod)
	if payment == "" {
		return nil, model.Validation("payment method is required")
	}

	o := &model.Order{
		OwnerID:         caller.SubjectID,
		Items:           append([]model.LineItem(nil), in.Items...),
		ShippingAddress: addr,
		PaymentMethod:   payment,
		Status:          model.OrderStatusPending,
	}

	if err := s.repo.CreateOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.recorder.OrderCreated()
	s.publish(ctx, events.NewOrderEvent(events.EventTypeOrderCreated, o, caller.SubjectID, "", s.now()))

	return o, nil
}

// ListOrders возвращает заказы самого caller.
func (s *Service) ListOrders(ctx context.Context, caller *model.IdentityContext) ([]model.Order, error) {
	if err := access.Require(caller, access.Authenticated...); err != nil {
		return nil, err
	}

	orders, err := s.repo.ListOrdersByOwner(ctx, caller.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *Service) loadOrder(ctx context.Context, id int64) (*model.Order, error) {
	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NotFound("order not found")
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// GetOrder возвращает заказ владельцу или администратору.
func (s *Service) GetOrder(ctx context.Context, caller *model.IdentityContext, id int64) (*model.Order, error) {
	if err := access.Require(caller, access.Authenticated...); err != nil {
		return nil, err
	}

	o, err := s.loadOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	if !access.OwnsOrMayBypass(caller, o.OwnerID) {
		return nil, model.Forbidden("you can only view your own orders")
	}

	return o, nil
}

// CancelOrder отменяет заказ. Повторная отмена возвращает конфликт.
// Запись выполняется условным обновлением от прочитанного статуса, поэтому из
// нескольких одновременных отмен успешна только одна.
func (s *Service) CancelOrder(ctx context.Context, caller *model.IdentityContext, id int64) (*model.Order, error) {
	if err := access.Require(caller, access.Authenticated...); err != nil {
		return nil, err
	}

	current, err := s.loadOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	if !access.OwnsOrMayBypass(caller, current.OwnerID) {
		return nil, model.Forbidden("you can only cancel your own orders")
	}

	if current.Status.IsTerminal() {
		return nil, model.Conflict("order is already canceled")
	}

	updated, err := s.repo.CompareAndSetStatus(ctx, id, current.Status, model.OrderStatusCanceled)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrStatusMismatch):
			return nil, s.cancelConflict(ctx, id)
		case errors.Is(err, repository.ErrNotFound):
			return nil, model.NotFound("order not found")
		default:
			return nil, fmt.Errorf("cancel order: %w", err)
		}
	}

	s.recorder.OrderTransition(current.Status, model.OrderStatusCanceled)
	s.publish(ctx, events.NewOrderEvent(events.EventTypeOrderCanceled, updated, caller.SubjectID, current.Status, s.now()))

	return updated, nil
}

// cancelConflict подбирает сообщение для проигранной гонки за статус заказа.
func (s *Service) cancelConflict(ctx context.Context, id int64) error {
	o, err := s.repo.GetOrder(ctx, id)
	if err == nil && o.Status.IsTerminal() {
		return model.Conflict("order is already canceled")
	}
	return model.Conflict("order status changed concurrently")
}

// AdvanceOrderStatus безусловно устанавливает статус заказа. Доступно только
// администратору; порядок статусов не проверяется.
func (s *Service) AdvanceOrderStatus(ctx context.Context, caller *model.IdentityContext, id int64, target string) (*model.Order, error) {
	if err := access.Require(caller, model.RoleAdmin); err != nil {
		return nil, model.Forbidden("only administrators can update order status")
	}

	status, ok := model.ParseOrderStatus(target)
	if !ok {
		return nil, model.Validation("invalid status value")
	}

	updated, previous, err := s.repo.SetStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NotFound("order not found")
		}
		return nil, fmt.Errorf("set order status: %w", err)
	}

	if previous != status {
		s.recorder.OrderTransition(previous, status)
	}

	eventType := events.EventTypeOrderStatusChanged
	if status == model.OrderStatusCanceled {
		eventType = events.EventTypeOrderCanceled
	}
	s.publish(ctx, events.NewOrderEvent(eventType, updated, caller.SubjectID, previous, s.now()))

	s.logger.Info("order status set by administrator",
		zap.Int64("order_id", id),
		zap.Int64("admin_id", caller.SubjectID),
		zap.String("from", string(previous)),
		zap.String("to", string(status)),
	)

	return updated, nil
}
