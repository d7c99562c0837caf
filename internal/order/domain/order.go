package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order 是订单聚合的根实体
type Order struct {
	ID        uuid.UUID
	UserName  string // 下单用户（已由上游完成身份解析）
	Status    Status
	CreatedAt time.Time
	PlacedAt  *time.Time
	UpdatedAt time.Time

	Positions     []OrderPosition
	StatusChanges []OrderStatusChange // 只追加，读取时按时间倒序
}

// OrderPosition 是订单的一个行项目。价格在加入购物车时记录，
// 下单时以商品服务的最新报价重新锁定。
type OrderPosition struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ProductCode string
	Quantity    int
	Price       decimal.NullDecimal
}

// OrderStatusChange 是一次状态流转的审计记录，从不更新或删除。
type OrderStatusChange struct {
	Status    Status
	CreatedAt time.Time
}

// 工厂函数: NewOrder 创建一个 CREATED 状态的新订单。
func NewOrder(userName string, now time.Time) *Order {
	return &Order{
		ID:        uuid.New(),
		UserName:  userName,
		Status:    StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// OwnedBy 校验订单归属。
func (o *Order) OwnedBy(userName string) error {
	if o.UserName != userName {
		return ErrOrderOwnedByAnotherUser(o.ID)
	}
	return nil
}

// CanChange 报告行项目当前是否可修改。只有 CREATED 状态允许增删行项目。
func (o *Order) CanChange() bool {
	return o.Status == StatusCreated
}

// Place 将订单从 CREATED 流转到 PLACED。
func (o *Order) Place(now time.Time) error {
	if o.Status != StatusCreated {
		return ErrStateConflict(o.ID, o.Status, StatusCreated)
	}
	o.Status = StatusPlaced
	o.PlacedAt = &now
	o.UpdatedAt = now
	return nil
}

// Complete 将订单从 PLACED 流转到 COMPLETED。
func (o *Order) Complete(now time.Time) error {
	if o.Status != StatusPlaced {
		return ErrStateConflict(o.ID, o.Status, StatusPlaced)
	}
	o.Status = StatusCompleted
	o.UpdatedAt = now
	return nil
}

// Cancel 将订单从 CREATED 流转到 CANCELED。
func (o *Order) Cancel(now time.Time) error {
	if o.Status != StatusCreated {
		return ErrStateConflict(o.ID, o.Status, StatusCreated)
	}
	o.Status = StatusCanceled
	o.UpdatedAt = now
	return nil
}

// Total 计算应付总额：Σ 单价 × 数量，十进制运算。
// 未锁价的行项目按零计入（只会出现在尚未下单的订单上）。
func Total(positions []OrderPosition) decimal.Decimal {
	total := decimal.Zero
	for _, p := range positions {
		if !p.Price.Valid {
			continue
		}
		total = total.Add(p.Price.Decimal.Mul(decimal.NewFromInt(int64(p.Quantity))))
	}
	return total
}
