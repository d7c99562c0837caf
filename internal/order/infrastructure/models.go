package infrastructure

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 数据库模型与领域模型分离，转换见 mapper.go。

type OrderModel struct {
	ID        uuid.UUID `gorm:"type:char(36);primaryKey"`
	UserName  string    `gorm:"size:128;not null;index"`
	Status    string    `gorm:"size:16;not null"`
	CreatedAt time.Time `gorm:"not null;index"`
	PlacedAt  *time.Time
	UpdatedAt time.Time `gorm:"not null"`
}

func (OrderModel) TableName() string { return "orders" }

type OrderPositionModel struct {
	ID          uuid.UUID           `gorm:"type:char(36);primaryKey"`
	OrderID     uuid.UUID           `gorm:"type:char(36);not null;index"`
	ProductCode string              `gorm:"size:64;not null"`
	Quantity    int                 `gorm:"not null"`
	Price       decimal.NullDecimal `gorm:"type:decimal(12,2)"`
}

func (OrderPositionModel) TableName() string { return "order_positions" }

type OrderStatusChangeModel struct {
	ID        uuid.UUID `gorm:"type:char(36);primaryKey"`
	OrderID   uuid.UUID `gorm:"type:char(36);not null;index"`
	Status    string    `gorm:"size:16;not null"`
	CreatedAt time.Time `gorm:"not null;index"`
}

func (OrderStatusChangeModel) TableName() string { return "order_status_changes" }

// Migrate 建表/补列。
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&OrderModel{}, &OrderPositionModel{}, &OrderStatusChangeModel{})
}
