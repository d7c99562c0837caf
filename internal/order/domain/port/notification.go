package port

import (
	"context"
	"time"

	"github.com/google/uuid"

	"oms/internal/order/domain"
)

// StatusNotifier 在订单状态流转提交后对外发布事件。
// 发布失败不影响业务操作结果。
type StatusNotifier interface {
	NotifyStatusChange(ctx context.Context, orderID uuid.UUID, userName string, status domain.Status, at time.Time) error
}
