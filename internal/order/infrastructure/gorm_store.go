package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"oms/internal/order/domain"
)

// GormOrderStore 是 domain.OrderStore 的 GORM 实现。
type GormOrderStore struct {
	db *gorm.DB
}

func NewGormOrderStore(db *gorm.DB) *GormOrderStore {
	return &GormOrderStore{db: db}
}

func (s *GormOrderStore) Insert(ctx context.Context, order *domain.Order) error {
	if err := dbFrom(ctx, s.db).Create(toOrderModel(order)).Error; err != nil {
		return errors.Wrap(err, "insert order")
	}
	return nil
}

func (s *GormOrderStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var m OrderModel
	err := dbFrom(ctx, s.db).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound(id)
		}
		return nil, errors.Wrap(err, "find order")
	}
	return toDomainOrder(&m), nil
}

// FindByIDForUpdate 在当前事务内以 SELECT ... FOR UPDATE 持有行锁，
// 保证状态检查到最终更新之间不会发生丢失更新。
func (s *GormOrderStore) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var m OrderModel
	err := dbFrom(ctx, s.db).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound(id)
		}
		return nil, errors.Wrap(err, "find order for update")
	}
	return toDomainOrder(&m), nil
}

func (s *GormOrderStore) FindAllByUserName(ctx context.Context, userName string, pageSize, page int) ([]*domain.Order, error) {
	var ms []OrderModel
	err := dbFrom(ctx, s.db).
		Where("user_name = ?", userName).
		Order("created_at DESC").
		Limit(pageSize).
		Offset(pageSize * (page - 1)).
		Find(&ms).Error
	if err != nil {
		return nil, errors.Wrap(err, "find orders by user")
	}
	out := make([]*domain.Order, 0, len(ms))
	for i := range ms {
		out = append(out, toDomainOrder(&ms[i]))
	}
	return out, nil
}

func (s *GormOrderStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":     string(status),
		"updated_at": now,
	}
	if status == domain.StatusPlaced {
		updates["placed_at"] = now
	}

	res := dbFrom(ctx, s.db).Model(&OrderModel{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return errors.Wrap(res.Error, "update order status")
	}
	if res.RowsAffected != 1 {
		return domain.ErrPersistenceFailure(fmt.Sprintf("order status update affected %d rows, id=%s", res.RowsAffected, id))
	}
	return nil
}

// GormPositionStore 是 domain.PositionStore 的 GORM 实现。
type GormPositionStore struct {
	db *gorm.DB
}

func NewGormPositionStore(db *gorm.DB) *GormPositionStore {
	return &GormPositionStore{db: db}
}

func (s *GormPositionStore) Insert(ctx context.Context, position *domain.OrderPosition) (uuid.UUID, error) {
	m := toPositionModel(position)
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if err := dbFrom(ctx, s.db).Create(m).Error; err != nil {
		return uuid.Nil, errors.Wrap(err, "insert order position")
	}
	return m.ID, nil
}

func (s *GormPositionStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.OrderPosition, error) {
	var m OrderPositionModel
	err := dbFrom(ctx, s.db).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPositionNotFound(id)
		}
		return nil, errors.Wrap(err, "find order position")
	}
	p := toDomainPosition(&m)
	return &p, nil
}

func (s *GormPositionStore) FindAllByOrderID(ctx context.Context, orderID uuid.UUID) ([]domain.OrderPosition, error) {
	var ms []OrderPositionModel
	if err := dbFrom(ctx, s.db).Where("order_id = ?", orderID).Find(&ms).Error; err != nil {
		return nil, errors.Wrap(err, "find order positions")
	}
	out := make([]domain.OrderPosition, 0, len(ms))
	for i := range ms {
		out = append(out, toDomainPosition(&ms[i]))
	}
	return out, nil
}

func (s *GormPositionStore) UpdatePrice(ctx context.Context, id uuid.UUID, price decimal.Decimal) error {
	res := dbFrom(ctx, s.db).Model(&OrderPositionModel{}).Where("id = ?", id).
		Update("price", decimal.NewNullDecimal(price))
	if res.Error != nil {
		return errors.Wrap(res.Error, "update position price")
	}
	if res.RowsAffected != 1 {
		return domain.ErrPersistenceFailure(fmt.Sprintf("position price update affected %d rows, id=%s", res.RowsAffected, id))
	}
	return nil
}

func (s *GormPositionStore) DeleteByID(ctx context.Context, id uuid.UUID) error {
	res := dbFrom(ctx, s.db).Where("id = ?", id).Delete(&OrderPositionModel{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete order position")
	}
	if res.RowsAffected != 1 {
		return domain.ErrPersistenceFailure(fmt.Sprintf("position deletion affected %d rows, id=%s", res.RowsAffected, id))
	}
	return nil
}

// GormStatusChangeStore 是 domain.StatusChangeStore 的 GORM 实现。
// 审计记录只插入、只读取，没有更新和删除路径。
type GormStatusChangeStore struct {
	db *gorm.DB
}

func NewGormStatusChangeStore(db *gorm.DB) *GormStatusChangeStore {
	return &GormStatusChangeStore{db: db}
}

func (s *GormStatusChangeStore) Insert(ctx context.Context, orderID uuid.UUID, change domain.OrderStatusChange) error {
	m := &OrderStatusChangeModel{
		ID:        uuid.New(),
		OrderID:   orderID,
		Status:    string(change.Status),
		CreatedAt: change.CreatedAt,
	}
	if err := dbFrom(ctx, s.db).Create(m).Error; err != nil {
		return errors.Wrap(err, "insert status change")
	}
	return nil
}

func (s *GormStatusChangeStore) FindAllByOrderID(ctx context.Context, orderID uuid.UUID) ([]domain.OrderStatusChange, error) {
	var ms []OrderStatusChangeModel
	err := dbFrom(ctx, s.db).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&ms).Error
	if err != nil {
		return nil, errors.Wrap(err, "find status changes")
	}
	out := make([]domain.OrderStatusChange, 0, len(ms))
	for i := range ms {
		out = append(out, toDomainStatusChange(&ms[i]))
	}
	return out, nil
}
