package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bcastroea/sapatariacapacita-backend/internal/access"
	"github.com/bcastroea/sapatariacapacita-backend/internal/model"
	"github.com/bcastroea/sapatariacapacita-backend/internal/service"
)

var errAdminOnly = model.Forbidden("only administrators can update order status")

type lineItemDTO struct {
	ProductID int64           `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type addressDTO struct {
	Street     string `json:"street"`
	Number     string `json:"number"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
}

type createOrderRequest struct {
	Items           []lineItemDTO `json:"items"`
	ShippingAddress addressDTO    `json:"shipping_address"`
	PaymentMethod   string        `json:"payment_method"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type orderItemResponse struct {
	ProductID int64  `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

type orderResponse struct {
	ID              int64               `json:"id"`
	OwnerID         int64               `json:"owner_id"`
	Status          string              `json:"status"`
	Items           []orderItemResponse `json:"items"`
	ShippingAddress addressDTO          `json:"shipping_address"`
	PaymentMethod   string              `json:"payment_method"`
	Total           string              `json:"total"`
	CreatedAt       string              `json:"created_at"`
}

func toOrderResponse(o *model.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.StringFixed(2),
		})
	}

	addr := o.ShippingAddress
	return orderResponse{
		ID:      o.ID,
		OwnerID: o.OwnerID,
		Status:  string(o.Status),
		Items:   items,
		ShippingAddress: addressDTO{
			Street:     addr.Street,
			Number:     addr.Number,
			City:       addr.City,
			State:      addr.State,
			PostalCode: addr.PostalCode,
		},
		PaymentMethod: o.PaymentMethod,
		Total:         o.Total().StringFixed(2),
		CreatedAt:     o.CreatedAt.Format(time.RFC3339),
	}
}

func (req createOrderRequest) toNewOrder() service.NewOrder {
	items := make([]model.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, model.LineItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	return service.NewOrder{
		Items: items,
		ShippingAddress: model.ShippingAddress{
			Street:     req.ShippingAddress.Street,
			Number:     req.ShippingAddress.Number,
			City:       req.ShippingAddress.City,
			State:      req.ShippingAddress.State,
			PostalCode: req.ShippingAddress.PostalCode,
		},
		PaymentMethod: req.PaymentMethod,
	}
}

// CreateOrder оформляет заказ от имени текущего клиента.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	o, err := h.service.CreateOrder(r.Context(), caller, req.toNewOrder())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

// ListOrders возвращает заказы текущего клиента. Пустой список отдаётся как [] со статусом 200.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	orders, err := h.service.ListOrders(r.Context(), caller)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetOrder возвращает заказ по id.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "order")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	o, err := h.service.GetOrder(r.Context(), caller, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// CancelOrder отменяет заказ.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "order")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	o, err := h.service.CancelOrder(r.Context(), caller, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// UpdateOrderStatus устанавливает статус заказа (только администратор).
// Роль проверяется до разбора id и тела запроса.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	if err := access.Require(caller, model.RoleAdmin); err != nil {
		h.writeError(w, r, errAdminOnly)
		return
	}

	id, err := pathID(r, "order")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req statusRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	o, err := h.service.AdvanceOrderStatus(r.Context(), caller, id, req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderResponse(o))
}
