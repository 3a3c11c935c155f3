// Package handler содержит HTTP-обработчики API сервиса сапатарии.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bcastroea/sapatariacapacita-backend/internal/middleware"
	"github.com/bcastroea/sapatariacapacita-backend/internal/model"
	"github.com/bcastroea/sapatariacapacita-backend/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterCustomer(ctx context.Context, name, email, password string) (*model.Identity, error)
	Login(ctx context.Context, email, password string) (*service.Credential, error)
	GetIdentity(ctx context.Context, caller *model.IdentityContext, id int64) (*model.Identity, error)
	ChangePassword(ctx context.Context, caller *model.IdentityContext, id int64, password string) error

	CreateOrder(ctx context.Context, caller *model.IdentityContext, in service.NewOrder) (*model.Order, error)
	ListOrders(ctx context.Context, caller *model.IdentityContext) ([]model.Order, error)
	GetOrder(ctx context.Context, caller *model.IdentityContext, id int64) (*model.Order, error)
	CancelOrder(ctx context.Context, caller *model.IdentityContext, id int64) (*model.Order, error)
	AdvanceOrderStatus(ctx context.Context, caller *model.IdentityContext, id int64, target string) (*model.Order, error)

	Ping(ctx context.Context) error
}

// Handler реализует HTTP-обработчики API сервиса сапатарии.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	metrics        MetricsProvider
}

// MetricsProvider отдаёт HTTP-метрики и обработчик /metrics.
type MetricsProvider interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов. metrics может быть nil.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, metrics MetricsProvider) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		metrics:        metrics,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError переводит класс ошибки в HTTP-статус. Внутренние ошибки
// логируются полностью, клиент получает общее сообщение.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch model.KindOf(err) {
	case model.KindUnauthenticated:
		status = http.StatusUnauthorized
	case model.KindForbidden:
		status = http.StatusForbidden
	case model.KindNotFound:
		status = http.StatusNotFound
	case model.KindValidation, model.KindConflict:
		status = http.StatusBadRequest
	default:
		h.logger.Error("request failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
		return
	}

	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (h *Handler) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return model.Validation("invalid request body")
	}
	return nil
}

func pathID(r *http.Request, what string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, model.Validation("invalid %s id", what)
	}
	return id, nil
}

// caller достаёт данные вызывающего, положенные AuthMiddleware.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (*model.IdentityContext, bool) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "token not provided"})
		return nil, false
	}
	return identity, true
}

// Ping проверяет доступность хранилища.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.service.Ping(ctx); err != nil {
		h.logger.Error("ping storage", zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "storage unavailable"})
		return
	}

	w.WriteHeader(http.StatusOK)
}
