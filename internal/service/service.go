// Package service реализует бизнес-логику сервиса сапатарии.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/bcastroea/sapatariacapacita-backend/internal/events"
	"github.com/bcastroea/sapatariacapacita-backend/internal/model"
)

// OrderStore описывает хранилище заказов.
type OrderStore interface {
	CreateOrder(ctx context.Context, o *model.Order) error
	GetOrder(ctx context.Context, id int64) (*model.Order, error)
	ListOrdersByOwner(ctx context.Context, ownerID int64) ([]model.Order, error)
	// CompareAndSetStatus атомарно меняет статус, только если текущий равен expected.
	CompareAndSetStatus(ctx context.Context, id int64, expected, next model.OrderStatus) (*model.Order, error)
	// SetStatus безусловно перезаписывает статус и возвращает предыдущий.
	SetStatus(ctx context.Context, id int64, next model.OrderStatus) (*model.Order, model.OrderStatus, error)
}

// IdentityStore описывает хранилище учётных записей.
type IdentityStore interface {
	CreateIdentity(ctx context.Context, ident *model.Identity) error
	GetIdentityByEmail(ctx context.Context, email string) (*model.Identity, error)
	GetIdentityByID(ctx context.Context, id int64) (*model.Identity, error)
	UpdatePasswordHash(ctx context.Context, id int64, hash []byte) error
}

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	OrderStore
	IdentityStore
	Ping(ctx context.Context) error
	Close() error
}

// CredentialIssuer выпускает bearer-токены.
type CredentialIssuer interface {
	Issue(subjectID int64, role model.Role) (string, time.Time, error)
}

// Recorder принимает доменные метрики.
type Recorder interface {
	OrderCreated()
	OrderTransition(from, to model.OrderStatus)
	CredentialIssued()
}

type nopRecorder struct{}

func (nopRecorder) OrderCreated() {}

func (nopRecorder) OrderTransition(model.OrderStatus, model.OrderStatus) {}

func (nopRecorder) CredentialIssued() {}

// Service содержит бизнес-логику: учётные записи и жизненный цикл заказов.
type Service struct {
	repo      Repository
	issuer    CredentialIssuer
	publisher events.Publisher
	recorder  Recorder
	logger    *zap.Logger

	now      func() time.Time
	hashCost int
}

// NewService создаёт сервис. publisher, recorder и logger могут быть nil.
func NewService(repo Repository, issuer CredentialIssuer, publisher events.Publisher, recorder Recorder, logger *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		repo:      repo,
		issuer:    issuer,
		publisher: publisher,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
		hashCost:  bcrypt.DefaultCost,
	}
}

// Ping проверяет доступность хранилища.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if err := s.publisher.Close(); err != nil {
		s.logger.Warn("close event publisher", zap.Error(err))
	}
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// publish отправляет событие о зафиксированном изменении. Отмена запроса на него не влияет.
func (s *Service) publish(ctx context.Context, event events.OrderEvent) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("publish order event",
			zap.Error(err),
			zap.String("event_type", string(event.EventType)),
			zap.Int64("order_id", event.OrderID),
		)
	}
}
