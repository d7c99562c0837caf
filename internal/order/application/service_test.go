package application

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"oms/internal/order/domain"
)

// ---- 内存假实现：存储 ----

type fakeOrderStore struct {
	orders map[uuid.UUID]domain.Order
}

func (f *fakeOrderStore) Insert(_ context.Context, order *domain.Order) error {
	f.orders[order.ID] = *order
	return nil
}

func (f *fakeOrderStore) FindByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound(id)
	}
	cp := o
	return &cp, nil
}

func (f *fakeOrderStore) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeOrderStore) FindAllByUserName(_ context.Context, userName string, pageSize, page int) ([]*domain.Order, error) {
	var out []*domain.Order
	for _, o := range f.orders {
		if o.UserName == userName {
			cp := o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeOrderStore) UpdateStatus(_ context.Context, id uuid.UUID, status domain.Status) error {
	o, ok := f.orders[id]
	if !ok {
		return domain.ErrPersistenceFailure("order status update affected 0 rows")
	}
	o.Status = status
	f.orders[id] = o
	return nil
}

type fakePositionStore struct {
	positions    map[uuid.UUID]domain.OrderPosition
	findAllCalls int
}

func (f *fakePositionStore) Insert(_ context.Context, p *domain.OrderPosition) (uuid.UUID, error) {
	id := uuid.New()
	cp := *p
	cp.ID = id
	f.positions[id] = cp
	return id, nil
}

func (f *fakePositionStore) FindByID(_ context.Context, id uuid.UUID) (*domain.OrderPosition, error) {
	p, ok := f.positions[id]
	if !ok {
		return nil, domain.ErrPositionNotFound(id)
	}
	cp := p
	return &cp, nil
}

func (f *fakePositionStore) FindAllByOrderID(_ context.Context, orderID uuid.UUID) ([]domain.OrderPosition, error) {
	f.findAllCalls++
	var out []domain.OrderPosition
	for _, p := range f.positions {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePositionStore) UpdatePrice(_ context.Context, id uuid.UUID, price decimal.Decimal) error {
	p, ok := f.positions[id]
	if !ok {
		return domain.ErrPersistenceFailure("position price update affected 0 rows")
	}
	p.Price = decimal.NewNullDecimal(price)
	f.positions[id] = p
	return nil
}

func (f *fakePositionStore) DeleteByID(_ context.Context, id uuid.UUID) error {
	if _, ok := f.positions[id]; !ok {
		return domain.ErrPersistenceFailure("position deletion affected 0 rows")
	}
	delete(f.positions, id)
	return nil
}

type fakeChangeStore struct {
	changes      map[uuid.UUID][]domain.OrderStatusChange
	findAllCalls int
}

func (f *fakeChangeStore) Insert(_ context.Context, orderID uuid.UUID, change domain.OrderStatusChange) error {
	f.changes[orderID] = append(f.changes[orderID], change)
	return nil
}

func (f *fakeChangeStore) FindAllByOrderID(_ context.Context, orderID uuid.UUID) ([]domain.OrderStatusChange, error) {
	f.findAllCalls++
	return f.changes[orderID], nil
}

// fakeTx 在 fn 出错时恢复三个存储的快照，模拟事务回滚。
type fakeTx struct {
	orders    *fakeOrderStore
	positions *fakePositionStore
	changes   *fakeChangeStore
}

func (f *fakeTx) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	ordersSnap := make(map[uuid.UUID]domain.Order, len(f.orders.orders))
	for k, v := range f.orders.orders {
		ordersSnap[k] = v
	}
	positionsSnap := make(map[uuid.UUID]domain.OrderPosition, len(f.positions.positions))
	for k, v := range f.positions.positions {
		positionsSnap[k] = v
	}
	changesSnap := make(map[uuid.UUID][]domain.OrderStatusChange, len(f.changes.changes))
	for k, v := range f.changes.changes {
		changesSnap[k] = append([]domain.OrderStatusChange(nil), v...)
	}

	if err := fn(ctx); err != nil {
		f.orders.orders = ordersSnap
		f.positions.positions = positionsSnap
		f.changes.changes = changesSnap
		return err
	}
	return nil
}

// ---- 内存假实现：出站端口 ----

type fakeProducts struct {
	prices      map[string]decimal.Decimal
	unavailable map[string]bool
	freshCalls  int
}

func (f *fakeProducts) PriceOf(_ context.Context, code string) (decimal.Decimal, error) {
	return f.lookup(code)
}

func (f *fakeProducts) FreshPriceOf(_ context.Context, code string) (decimal.Decimal, error) {
	f.freshCalls++
	return f.lookup(code)
}

func (f *fakeProducts) lookup(code string) (decimal.Decimal, error) {
	if f.unavailable[code] {
		return decimal.Zero, domain.ErrProductUnavailable(code)
	}
	price, ok := f.prices[code]
	if !ok {
		return decimal.Zero, domain.ErrProductUnavailable(code)
	}
	return price, nil
}

type fakeBilling struct {
	operationID uuid.UUID
	withdrawErr error
	withdrawn   []decimal.Decimal
	comments    []string
	canceled    []uuid.UUID
}

func (f *fakeBilling) Withdraw(_ context.Context, amount decimal.Decimal, comment string) (uuid.UUID, error) {
	if f.withdrawErr != nil {
		return uuid.Nil, f.withdrawErr
	}
	f.withdrawn = append(f.withdrawn, amount)
	f.comments = append(f.comments, comment)
	return f.operationID, nil
}

func (f *fakeBilling) CancelOperation(_ context.Context, operationID uuid.UUID) error {
	f.canceled = append(f.canceled, operationID)
	return nil
}

type fakeLicenses struct {
	failOnCall int // 1 起算，0 表示从不失败
	calls      int
	issued     []uuid.UUID
	revoked    []uuid.UUID
}

func (f *fakeLicenses) Issue(_ context.Context, productCode string) (uuid.UUID, error) {
	f.calls++
	if f.failOnCall != 0 && f.calls >= f.failOnCall {
		return uuid.Nil, domain.ErrAdapterFailure("license.issue", assert.AnError)
	}
	id := uuid.New()
	f.issued = append(f.issued, id)
	return id, nil
}

func (f *fakeLicenses) Revoke(_ context.Context, licenseID uuid.UUID) error {
	f.revoked = append(f.revoked, licenseID)
	return nil
}

type fixture struct {
	service   *OrderService
	orders    *fakeOrderStore
	positions *fakePositionStore
	changes   *fakeChangeStore
	products  *fakeProducts
	billing   *fakeBilling
	licenses  *fakeLicenses
}

func newFixture() *fixture {
	orders := &fakeOrderStore{orders: map[uuid.UUID]domain.Order{}}
	positions := &fakePositionStore{positions: map[uuid.UUID]domain.OrderPosition{}}
	changes := &fakeChangeStore{changes: map[uuid.UUID][]domain.OrderStatusChange{}}
	products := &fakeProducts{prices: map[string]decimal.Decimal{}, unavailable: map[string]bool{}}
	billing := &fakeBilling{operationID: uuid.New()}
	licenses := &fakeLicenses{}

	service := NewOrderService(
		orders, positions, changes,
		&fakeTx{orders: orders, positions: positions, changes: changes},
		products, billing, licenses, nil,
		otel.Tracer("order-service-test"), zerolog.Nop(),
	)
	return &fixture{
		service: service, orders: orders, positions: positions, changes: changes,
		products: products, billing: billing, licenses: licenses,
	}
}

func (f *fixture) seedOrder(t *testing.T, owner string, status domain.Status) uuid.UUID {
	t.Helper()
	order := domain.NewOrder(owner, time.Now())
	order.Status = status
	require.NoError(t, f.orders.Insert(context.Background(), order))
	require.NoError(t, f.changes.Insert(context.Background(), order.ID, domain.OrderStatusChange{
		Status:    domain.StatusCreated,
		CreatedAt: order.CreatedAt,
	}))
	return order.ID
}

func (f *fixture) seedPosition(t *testing.T, orderID uuid.UUID, code string, quantity int, price decimal.Decimal) uuid.UUID {
	t.Helper()
	id, err := f.positions.Insert(context.Background(), &domain.OrderPosition{
		OrderID:     orderID,
		ProductCode: code,
		Quantity:    quantity,
		Price:       decimal.NewNullDecimal(price),
	})
	require.NoError(t, err)
	return id
}

// ---- 测试 ----

func TestCreate(t *testing.T) {
	f := newFixture()

	order, err := f.service.Create(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCreated, order.Status)

	stored, err := f.orders.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", stored.UserName)

	changes := f.changes.changes[order.ID]
	require.Len(t, changes, 1)
	assert.Equal(t, domain.StatusCreated, changes[0].Status)
}

func TestGet_DistinguishesNotFoundAndOwnership(t *testing.T) {
	f := newFixture()
	orderID := f.seedOrder(t, "alice", domain.StatusCreated)

	_, err := f.service.Get(context.Background(), "alice", uuid.New())
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

	_, err = f.service.Get(context.Background(), "mallory", orderID)
	assert.Equal(t, domain.KindOwnershipViolation, domain.KindOf(err))

	order, err := f.service.Get(context.Background(), "alice", orderID)
	require.NoError(t, err)
	assert.Equal(t, orderID, order.ID)
}

func TestList_EmptyPageShortCircuits(t *testing.T) {
	f := newFixture()

	orders, err := f.service.List(context.Background(), "nobody", 10, 1)
	require.NoError(t, err)
	assert.Empty(t, orders)
	// 空结果不得触发逐单的行项目/历史查询。
	assert.Zero(t, f.positions.findAllCalls)
	assert.Zero(t, f.changes.findAllCalls)
}

func TestList_AttachesPositionsAndHistory(t *testing.T) {
	f := newFixture()
	orderID := f.seedOrder(t, "alice", domain.StatusCreated)
	f.seedPosition(t, orderID, "SKU1", 1, decimal.NewFromInt(5))

	orders, err := f.service.List(context.Background(), "alice", 10, 1)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Len(t, orders[0].Positions, 1)
	assert.Len(t, orders[0].StatusChanges, 1)
}

func TestAddPosition_CapturesCurrentPrice(t *testing.T) {
	f := newFixture()
	orderID := f.seedOrder(t, "alice", domain.StatusCreated)
	f.products.prices["SKU1"] = decimal.RequireFromString("10.00")

	positionID, err := f.service.AddPosition(context.Background(), "alice", orderID, "SKU1", 2)
	require.NoError(t, err)

	position, err := f.positions.FindByID(context.Background(), positionID)
	require.NoError(t, err)
	assert.True(t, position.Price.Valid)
	assert.True(t, position.Price.Decimal.Equal(decimal.RequireFromString("10.00")))
}

func TestAddPosition_FailsOutsideCreated(t *testing.T) {
	f := newFixture()
	orderID := f.seedOrder(t, "alice", domain.StatusPlaced)
	f.products.prices["SKU1"] = decimal.NewFromInt(1)

	_, err := f.service.AddPosition(context.Background(), "alice", orderID, "SKU1", 1)
	assert.Equal(t, domain.KindStateConflict, domain.KindOf(err))
	assert.Empty(t, f.positions.positions)
}

func TestAddPosition_UnavailableProduct(t *testing.T) {
	f := newFixture()
	orderID := f.seedOrder(t, "alice", domain.StatusCreated)
	f.products.unavailable["SKU1"] = true

	_, err := f.service.AddPosition(context.Background(), "alice", orderID, "SKU1", 1)
	assert.Equal(t, domain.KindProductUnavailable, domain.KindOf(err))
	assert.Empty(t, f.positions.positions)
}

func TestRemovePosition(t *testing.T) {
	f := newFixture()
	orderID := f.seedOrder(t, "alice", domain.StatusCreated)
	positionID := f.seedPosition(t, orderID, "SKU1", 1, decimal.NewFromInt(1))

	require.NoError(t, f.service.RemovePosition(context.Background(), "alice", positionID))
	assert.Empty(t, f.positions.positions)

	err := f.service.RemovePosition(context.Background(), "alice", positionID)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestRemovePosition_FailsOutsideCreated(t *testing.T) {
	f := newFixture()
	orderID := f.seedOrder(t, "alice", domain.StatusPlaced)
	positionID := f.seedPosition(t, orderID, "SKU1", 1, decimal.NewFromInt(1))

	err := f.service.RemovePosition(context.Background(), "alice", positionID)
	assert.Equal(t, domain.KindStateConflict, domain.KindOf(err))
	assert.Len(t, f.positions.positions, 1)
}

func TestPlace_RestampsPricesAndRecordsChange(t *testing.T) {
	f := newFixture()
	orderID := f.seedOrder(t, "alice", domain.StatusCreated)
	// 加购时的旧价格 8.00，下单时目录价已漂移到 10.00。
	f.seedPosition(t, orderID, "SKU1", 2, decimal.RequireFromString("8.00"))
	f.products.prices["SKU1"] = decimal.RequireFromString("10.00")

	require.NoError(t, f.service.Place(context.Background(), "alice", orderID))

	order, err := f.service.Get(context.Background(), "alice", orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPlaced, order.Status)
	require.Len(t, order.Positions, 1)
	assert.True(t, order.Positions[0].Price.Decimal.Equal(decimal.RequireFromString("10.00")))
	assert.True(t, domain.Total(order.Positions).Equal(decimal.RequireFromString("20.00")))
	// 锁价必须走绕过缓存的查询。
	assert.Equal(t, 1, f.products.freshCalls)
}

func TestPlace_AbortsWhenAnyProductUnavailable(t *testing.T) {
	f := newFixture()
	orderID := f.seedOrder(t, "alice", domain.StatusCreated)
	f.seedPosition(t, orderID, "SKU1", 1, decimal.RequireFromString("8.00"))
	f.seedPosition(t, orderID, "SKU2", 1, decimal.RequireFromString("9.00"))
	f.products.prices["SKU1"] = decimal.RequireFromString("10.00")
	f.products.unavailable["SKU2"] = true

	err := f.service.Place(context.Background(), "alice", orderID)
	assert.Equal(t, domain.KindProductUnavailable, domain.KindOf(err))

	// 整个流转回滚：状态不变，任何行项目价格都未被更新。
	order, err := f.service.Get(context.Background(), "alice", orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCreated, order.Status)
	for _, p := range order.Positions {
		assert.False(t, p.Price.Decimal.Equal(decimal.RequireFromString("10.00")))
	}
}

func TestPlace_StateConflictWhenAlreadyPlaced(t *testing.T) {
	f := newFixture()
	orderID := f.seedOrder(t, "alice", domain.StatusPlaced)

	err := f.service.Place(context.Background(), "alice", orderID)
	assert.Equal(t, domain.KindStateConflict, domain.KindOf(err))
}

func TestPay_CompletesOrderAndWithdrawsTotal(t *testing.T) {
	f := newFixture()
	orderID := f.seedOrder(t, "alice", domain.StatusPlaced)
	f.seedPosition(t, orderID, "SKU1", 2, decimal.RequireFromString("10.00"))
	f.seedPosition(t, orderID, "SKU2", 1, decimal.RequireFromString("5.50"))

	require.NoError(t, f.service.Pay(context.Background(), "alice", orderID))

	order, err := f.service.Get(context.Background(), "alice", orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, order.Status)

	require.Len(t, f.billing.withdrawn, 1)
	assert.True(t, f.billing.withdrawn[0].Equal(decimal.RequireFromString("25.50")))
	assert.Contains(t, f.billing.comments[0], orderID.String())
	assert.Len(t, f.licenses.issued, 2)
	assert.Empty(t, f.billing.canceled)
}

func TestPay_LicenseFailureCompensatesAndKeepsOrderPlaced(t *testing.T) {
	f := newFixture()
	orderID := f.seedOrder(t, "alice", domain.StatusPlaced)
	f.seedPosition(t, orderID, "SKU1", 1, decimal.RequireFromString("10.00"))
	f.seedPosition(t, orderID, "SKU2", 1, decimal.RequireFromString("10.00"))
	f.licenses.failOnCall = 2 // 第二张许可证签发失败

	err := f.service.Pay(context.Background(), "alice", orderID)
	require.Error(t, err)

	// 扣款被撤销，已签发的许可证被吊销。
	require.Len(t, f.billing.canceled, 1)
	assert.Equal(t, f.billing.operationID, f.billing.canceled[0])
	require.Len(t, f.licenses.issued, 1)
	assert.Equal(t, f.licenses.issued, f.licenses.revoked)

	order, getErr := f.service.Get(context.Background(), "alice", orderID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.StatusPlaced, order.Status)
	for _, c := range f.changes.changes[orderID] {
		assert.NotEqual(t, domain.StatusCompleted, c.Status)
	}
}

func TestPay_InsufficientFunds(t *testing.T) {
	f := newFixture()
	orderID := f.seedOrder(t, "alice", domain.StatusPlaced)
	f.seedPosition(t, orderID, "SKU1", 1, decimal.RequireFromString("10.00"))
	f.billing.withdrawErr = domain.ErrInsufficientFunds(decimal.RequireFromString("10.00"))

	err := f.service.Pay(context.Background(), "alice", orderID)
	assert.Equal(t, domain.KindInsufficientFunds, domain.KindOf(err))

	// 没有扣款成功，也没有许可证被签发。
	assert.Empty(t, f.billing.withdrawn)
	assert.Empty(t, f.licenses.issued)

	order, getErr := f.service.Get(context.Background(), "alice", orderID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.StatusPlaced, order.Status)
}

func TestPay_ZeroPositionsStillWithdrawsZeroTotal(t *testing.T) {
	f := newFixture()
	orderID := f.seedOrder(t, "alice", domain.StatusPlaced)

	require.NoError(t, f.service.Pay(context.Background(), "alice", orderID))

	require.Len(t, f.billing.withdrawn, 1)
	assert.True(t, f.billing.withdrawn[0].IsZero())
	assert.Empty(t, f.licenses.issued)

	order, err := f.service.Get(context.Background(), "alice", orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, order.Status)
}

func TestPay_RequiresPlacedStatus(t *testing.T) {
	f := newFixture()
	orderID := f.seedOrder(t, "alice", domain.StatusCreated)

	err := f.service.Pay(context.Background(), "alice", orderID)
	assert.Equal(t, domain.KindStateConflict, domain.KindOf(err))
	assert.Empty(t, f.billing.withdrawn)
}

func TestCancel_SecondCallConflictsAndAuditStaysSingle(t *testing.T) {
	f := newFixture()
	orderID := f.seedOrder(t, "alice", domain.StatusCreated)

	require.NoError(t, f.service.Cancel(context.Background(), "alice", orderID))

	err := f.service.Cancel(context.Background(), "alice", orderID)
	assert.Equal(t, domain.KindStateConflict, domain.KindOf(err))

	canceled := 0
	for _, c := range f.changes.changes[orderID] {
		if c.Status == domain.StatusCanceled {
			canceled++
		}
	}
	assert.Equal(t, 1, canceled)

	order, err := f.service.Get(context.Background(), "alice", orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCanceled, order.Status)
}

func TestRoundTrip_PositionsSurvivePlacement(t *testing.T) {
	f := newFixture()
	orderID := f.seedOrder(t, "alice", domain.StatusCreated)
	f.products.prices["SKU1"] = decimal.RequireFromString("10.00")
	f.products.prices["SKU2"] = decimal.RequireFromString("3.25")

	_, err := f.service.AddPosition(context.Background(), "alice", orderID, "SKU1", 2)
	require.NoError(t, err)
	_, err = f.service.AddPosition(context.Background(), "alice", orderID, "SKU2", 5)
	require.NoError(t, err)
	require.NoError(t, f.service.Place(context.Background(), "alice", orderID))

	order, err := f.service.Get(context.Background(), "alice", orderID)
	require.NoError(t, err)
	require.Len(t, order.Positions, 2)

	byCode := map[string]domain.OrderPosition{}
	for _, p := range order.Positions {
		byCode[p.ProductCode] = p
	}
	assert.Equal(t, 2, byCode["SKU1"].Quantity)
	assert.True(t, byCode["SKU1"].Price.Decimal.Equal(decimal.RequireFromString("10.00")))
	assert.Equal(t, 5, byCode["SKU2"].Quantity)
	assert.True(t, byCode["SKU2"].Price.Decimal.Equal(decimal.RequireFromString("3.25")))
}

func TestMutatingOperationsCheckOwnershipFirst(t *testing.T) {
	f := newFixture()
	orderID := f.seedOrder(t, "alice", domain.StatusCreated)
	positionID := f.seedPosition(t, orderID, "SKU1", 1, decimal.NewFromInt(1))
	f.products.prices["SKU1"] = decimal.NewFromInt(1)

	_, err := f.service.AddPosition(context.Background(), "mallory", orderID, "SKU1", 1)
	assert.Equal(t, domain.KindOwnershipViolation, domain.KindOf(err))

	err = f.service.RemovePosition(context.Background(), "mallory", positionID)
	assert.Equal(t, domain.KindOwnershipViolation, domain.KindOf(err))

	err = f.service.Place(context.Background(), "mallory", orderID)
	assert.Equal(t, domain.KindOwnershipViolation, domain.KindOf(err))

	err = f.service.Pay(context.Background(), "mallory", orderID)
	assert.Equal(t, domain.KindOwnershipViolation, domain.KindOf(err))

	err = f.service.Cancel(context.Background(), "mallory", orderID)
	assert.Equal(t, domain.KindOwnershipViolation, domain.KindOf(err))

	// 任何越权尝试都不会留下状态变化。
	order, err := f.service.Get(context.Background(), "alice", orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCreated, order.Status)
}
