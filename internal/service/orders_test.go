package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/bcastroea/sapatariacapacita-backend/internal/events"
	"github.com/bcastroea/sapatariacapacita-backend/internal/model"
	"github.com/bcastroea/sapatariacapacita-backend/internal/repository"
)

type stubIssuer struct {
	err error
}

func (s *stubIssuer) Issue(subjectID int64, role model.Role) (string, time.Time, error) {
	if s.err != nil {
		return "", time.Time{}, s.err
	}
	return "token-" + string(role), time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC), nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	events  []events.OrderEvent
	ctxErrs []error
	err     error
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	p.ctxErrs = append(p.ctxErrs, ctx.Err())
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

type countingRecorder struct {
	created     atomic.Int32
	transitions atomic.Int32
	issued      atomic.Int32
}

func (r *countingRecorder) OrderCreated() { r.created.Add(1) }

func (r *countingRecorder) OrderTransition(model.OrderStatus, model.OrderStatus) {
	r.transitions.Add(1)
}

func (r *countingRecorder) CredentialIssued() { r.issued.Add(1) }

type fixture struct {
	svc       *Service
	repo      Repository
	publisher *recordingPublisher
	recorder  *countingRecorder
}

func newFixture(t *testing.T, repo Repository) *fixture {
	t.Helper()

	if repo == nil {
		repo = repository.NewMemoryRepository()
	}
	publisher := &recordingPublisher{}
	recorder := &countingRecorder{}

	svc := NewService(repo, &stubIssuer{}, publisher, recorder, nil)
	svc.hashCost = bcrypt.MinCost

	return &fixture{svc: svc, repo: repo, publisher: publisher, recorder: recorder}
}

func customer(id int64) *model.IdentityContext {
	return &model.IdentityContext{SubjectID: id, Role: model.RoleCustomer}
}

func admin() *model.IdentityContext {
	return &model.IdentityContext{SubjectID: 1, Role: model.RoleAdmin}
}

func sampleOrder() NewOrder {
	return NewOrder{
		Items: []model.LineItem{
			{ProductID: 1, Quantity: 2, UnitPrice: decimal.NewFromFloat(50.0)},
		},
		ShippingAddress: model.ShippingAddress{
			Street: "Rua da Aurora", Number: "100", City: "Recife", State: "PE", PostalCode: "50050-000",
		},
		PaymentMethod: "pix",
	}
}

func TestOrderLifecycle_Scenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	created, err := f.svc.CreateOrder(ctx, customer(7), sampleOrder())
	require.NoError(t, err)
	assert.Equal(t, int64(7), created.OwnerID)
	assert.Equal(t, model.OrderStatusPending, created.Status)
	assert.Equal(t, "50050000", created.ShippingAddress.PostalCode)
	assert.True(t, decimal.NewFromInt(100).Equal(created.Total()))

	_, err = f.svc.GetOrder(ctx, customer(8), created.ID)
	assert.ErrorIs(t, err, model.ErrForbidden)

	paid, err := f.svc.AdvanceOrderStatus(ctx, admin(), created.ID, "PAID")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaid, paid.Status)

	canceled, err := f.svc.CancelOrder(ctx, customer(7), created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCanceled, canceled.Status)

	_, err = f.svc.CancelOrder(ctx, customer(7), created.ID)
	assert.ErrorIs(t, err, model.ErrConflict)

	stored, err := f.svc.GetOrder(ctx, customer(7), created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCanceled, stored.Status)

	assert.Equal(t, []events.EventType{
		events.EventTypeOrderCreated,
		events.EventTypeOrderStatusChanged,
		events.EventTypeOrderCanceled,
	}, f.publisher.types())
	assert.Equal(t, int32(1), f.recorder.created.Load())
	assert.Equal(t, int32(2), f.recorder.transitions.Load())
}

func TestCreateOrder_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	empty := sampleOrder()
	empty.Items = nil
	_, err := f.svc.CreateOrder(ctx, customer(7), empty)
	assert.ErrorIs(t, err, model.ErrValidation)

	noPayment := sampleOrder()
	noPayment.PaymentMethod = "  "
	_, err = f.svc.CreateOrder(ctx, customer(7), noPayment)
	assert.ErrorIs(t, err, model.ErrValidation)

	badCEP := sampleOrder()
	badCEP.ShippingAddress.PostalCode = "123"
	_, err = f.svc.CreateOrder(ctx, customer(7), badCEP)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = f.svc.CreateOrder(ctx, nil, sampleOrder())
	assert.ErrorIs(t, err, model.ErrForbidden)

	orders, err := f.svc.ListOrders(ctx, customer(7))
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Empty(t, f.publisher.types())
}

func TestListOrders_OnlyOwn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, err := f.svc.CreateOrder(ctx, customer(7), sampleOrder())
	require.NoError(t, err)
	_, err = f.svc.CreateOrder(ctx, customer(8), sampleOrder())
	require.NoError(t, err)
	_, err = f.svc.CreateOrder(ctx, customer(7), sampleOrder())
	require.NoError(t, err)

	orders, err := f.svc.ListOrders(ctx, customer(7))
	require.NoError(t, err)
	require.Len(t, orders, 2)
	for _, o := range orders {
		assert.Equal(t, int64(7), o.OwnerID)
	}

	// администратор видит в этом списке только свои заказы
	orders, err = f.svc.ListOrders(ctx, admin())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestGetAndCancel_OwnershipMatrix(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		caller  *model.IdentityContext
		wantErr error
	}{
		{name: "owner", caller: customer(7)},
		{name: "other customer", caller: customer(8), wantErr: model.ErrForbidden},
		{name: "admin", caller: admin()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			o, err := f.svc.CreateOrder(ctx, customer(7), sampleOrder())
			require.NoError(t, err)

			_, err = f.svc.GetOrder(ctx, tt.caller, o.ID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			_, err = f.svc.CancelOrder(ctx, tt.caller, o.ID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				stored, getErr := f.repo.GetOrder(ctx, o.ID)
				require.NoError(t, getErr)
				assert.Equal(t, model.OrderStatusPending, stored.Status)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestGetAndCancel_NotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, err := f.svc.GetOrder(ctx, customer(7), 404)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = f.svc.CancelOrder(ctx, customer(7), 404)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NotErrorIs(t, err, model.ErrConflict)
}

func TestCancelOrder_ForbiddenBeforeStatusCheck(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	o, err := f.svc.CreateOrder(ctx, customer(7), sampleOrder())
	require.NoError(t, err)
	_, err = f.svc.CancelOrder(ctx, customer(7), o.ID)
	require.NoError(t, err)

	_, err = f.svc.CancelOrder(ctx, customer(8), o.ID)
	assert.ErrorIs(t, err, model.ErrForbidden)
}

func TestCancelOrder_FromEveryNonTerminalStatus(t *testing.T) {
	ctx := context.Background()

	for _, status := range []model.OrderStatus{
		model.OrderStatusPending, model.OrderStatusPaid, model.OrderStatusSent, model.OrderStatusDelivered,
	} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t, nil)
			o, err := f.svc.CreateOrder(ctx, customer(7), sampleOrder())
			require.NoError(t, err)

			_, err = f.svc.AdvanceOrderStatus(ctx, admin(), o.ID, string(status))
			require.NoError(t, err)

			canceled, err := f.svc.CancelOrder(ctx, customer(7), o.ID)
			require.NoError(t, err)
			assert.Equal(t, model.OrderStatusCanceled, canceled.Status)
		})
	}
}

func TestCancelOrder_ConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	o, err := f.svc.CreateOrder(ctx, customer(7), sampleOrder())
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		conflicts atomic.Int32
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CancelOrder(ctx, customer(7), o.ID)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, model.ErrConflict):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(15), conflicts.Load())
}

// raceRepository подменяет статус заказа между чтением и условной записью.
type raceRepository struct {
	Repository
	interleave model.OrderStatus
}

func (r *raceRepository) CompareAndSetStatus(ctx context.Context, id int64, expected, next model.OrderStatus) (*model.Order, error) {
	if _, _, err := r.Repository.SetStatus(ctx, id, r.interleave); err != nil {
		return nil, err
	}
	return r.Repository.CompareAndSetStatus(ctx, id, expected, next)
}

func TestCancelOrder_LosesRaceToAdminWrite(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		interleave model.OrderStatus
		wantMsg    string
	}{
		{name: "admin advanced", interleave: model.OrderStatusSent, wantMsg: "order status changed concurrently"},
		{name: "admin canceled", interleave: model.OrderStatusCanceled, wantMsg: "order is already canceled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &raceRepository{Repository: repository.NewMemoryRepository(), interleave: tt.interleave}
			f := newFixture(t, repo)

			o, err := f.svc.CreateOrder(ctx, customer(7), sampleOrder())
			require.NoError(t, err)

			_, err = f.svc.CancelOrder(ctx, customer(7), o.ID)
			require.ErrorIs(t, err, model.ErrConflict)
			assert.EqualError(t, err, tt.wantMsg)

			stored, err := repo.GetOrder(ctx, o.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.interleave, stored.Status)
		})
	}
}

func TestAdvanceOrderStatus_CheckOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	o, err := f.svc.CreateOrder(ctx, customer(7), sampleOrder())
	require.NoError(t, err)

	// проверка роли раньше проверки значения
	_, err = f.svc.AdvanceOrderStatus(ctx, customer(7), o.ID, "BOGUS")
	assert.ErrorIs(t, err, model.ErrForbidden)

	// проверка значения раньше проверки существования
	_, err = f.svc.AdvanceOrderStatus(ctx, admin(), 404, "BOGUS")
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = f.svc.AdvanceOrderStatus(ctx, admin(), 404, "PAID")
	assert.ErrorIs(t, err, model.ErrNotFound)

	for _, bad := range []string{"", "paid", "canceled", "CANCELLED", "SHIPPED"} {
		_, err = f.svc.AdvanceOrderStatus(ctx, admin(), o.ID, bad)
		assert.ErrorIs(t, err, model.ErrValidation, bad)
	}

	stored, err := f.repo.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, stored.Status)
}

func TestAdvanceOrderStatus_Unconditional(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	o, err := f.svc.CreateOrder(ctx, customer(7), sampleOrder())
	require.NoError(t, err)

	_, err = f.svc.CancelOrder(ctx, customer(7), o.ID)
	require.NoError(t, err)

	// административная запись не проверяет порядок статусов, в том числе выход из CANCELED
	revived, err := f.svc.AdvanceOrderStatus(ctx, admin(), o.ID, "PENDING")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, revived.Status)
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.publisher.err = errors.New("broker down")

	o, err := f.svc.CreateOrder(ctx, customer(7), sampleOrder())
	require.NoError(t, err)

	stored, err := f.repo.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, stored.Status)
}

func TestPublishSurvivesCanceledRequest(t *testing.T) {
	f := newFixture(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// хранилище в памяти не смотрит на контекст, поэтому запись успевает зафиксироваться
	_, err := f.svc.CreateOrder(ctx, customer(7), sampleOrder())
	require.NoError(t, err)

	require.Len(t, f.publisher.ctxErrs, 1)
	assert.NoError(t, f.publisher.ctxErrs[0])
	assert.Equal(t, []events.EventType{events.EventTypeOrderCreated}, f.publisher.types())
}

func TestCreateOrder_RejectsSubCentPrices(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	for _, price := range []string{"50.555", "1e15"} {
		in := sampleOrder()
		in.Items[0].UnitPrice = decimal.RequireFromString(price)
		in.Items[0].Quantity = 3

		_, err := f.svc.CreateOrder(ctx, customer(7), in)
		assert.ErrorIs(t, err, model.ErrValidation, price)
	}

	orders, err := f.svc.ListOrders(ctx, customer(7))
	require.NoError(t, err)
	assert.Empty(t, orders)
}

type failingRepository struct {
	Repository
}

func (failingRepository) GetOrder(context.Context, int64) (*model.Order, error) {
	return nil, errors.New("connection refused")
}

func TestGetOrder_InternalError(t *testing.T) {
	f := newFixture(t, failingRepository{Repository: repository.NewMemoryRepository()})

	_, err := f.svc.GetOrder(context.Background(), customer(7), 1)
	require.Error(t, err)
	assert.Equal(t, model.KindInternal, model.KindOf(err))
}
