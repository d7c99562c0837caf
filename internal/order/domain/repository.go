package domain

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStore 定义了订单行的持久化接口。
// 它位于领域层，由基础设施层实现；每个方法对应一条原子语句，
// 事务边界由调用方通过 TxManager 组合。
type OrderStore interface {
	// Insert 写入新订单行。
	Insert(ctx context.Context, order *Order) error

	// FindByID 按 ID 查找订单，无匹配行时返回 KindNotFound。
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByIDForUpdate 与 FindByID 相同，但在事务内持有行锁，
	// 用于状态检查与后续更新之间防止丢失更新。
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindAllByUserName 按创建时间倒序分页返回用户的订单。页码从 1 开始。
	FindAllByUserName(ctx context.Context, userName string, pageSize, page int) ([]*Order, error)

	// UpdateStatus 更新订单状态；影响行数不为 1 视为持久化失败。
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
}

// PositionStore 定义了订单行项目的持久化接口。
type PositionStore interface {
	Insert(ctx context.Context, position *OrderPosition) (uuid.UUID, error)
	FindByID(ctx context.Context, id uuid.UUID) (*OrderPosition, error)
	FindAllByOrderID(ctx context.Context, orderID uuid.UUID) ([]OrderPosition, error)
	UpdatePrice(ctx context.Context, id uuid.UUID, price decimal.Decimal) error
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

// StatusChangeStore 定义了状态流转审计记录的持久化接口。
type StatusChangeStore interface {
	Insert(ctx context.Context, orderID uuid.UUID, change OrderStatusChange) error
	// FindAllByOrderID 按时间倒序返回全部记录。
	FindAllByOrderID(ctx context.Context, orderID uuid.UUID) ([]OrderStatusChange, error)
}

// TxManager 将 fn 内的所有存储调用包进同一个数据库事务；
// fn 返回错误时整体回滚。
type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}
