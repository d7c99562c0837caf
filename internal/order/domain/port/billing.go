package port

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillingService 是计费服务的出站端口。
type BillingService interface {
	// Withdraw 从用户账户扣款，返回可用于撤销的操作 ID。
	// 余额不足时返回 KindInsufficientFunds。
	Withdraw(ctx context.Context, amount decimal.Decimal, comment string) (uuid.UUID, error)

	// CancelOperation 撤销一次已执行的扣款操作。
	CancelOperation(ctx context.Context, operationID uuid.UUID) error
}
