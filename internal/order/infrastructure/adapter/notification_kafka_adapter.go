package adapter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"oms/internal/order/domain"
)

// NotificationKafkaAdapter 实现了 port.StatusNotifier：
// 状态流转提交后向 Kafka 发布事件，供下游（通知、报表）消费。
type NotificationKafkaAdapter struct {
	writer *kafka.Writer
}

func NewNotificationKafkaAdapter(writer *kafka.Writer) *NotificationKafkaAdapter {
	return &NotificationKafkaAdapter{writer: writer}
}

type statusChangeEvent struct {
	OrderID  string    `json:"orderId"`
	UserName string    `json:"userName"`
	Status   string    `json:"status"`
	At       time.Time `json:"at"`
}

func (a *NotificationKafkaAdapter) NotifyStatusChange(ctx context.Context, orderID uuid.UUID, userName string, status domain.Status, at time.Time) error {
	event := statusChangeEvent{
		OrderID:  orderID.String(),
		UserName: userName,
		Status:   string(status),
		At:       at,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal status change event")
	}

	msg := kafka.Message{
		Key:   []byte(orderID.String()),
		Value: payload,
	}

	// 注入追踪上下文，下游消费者可以接上链路。
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for k, v := range carrier {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	return a.writer.WriteMessages(ctx, msg)
}

// Close 关闭底层的 Kafka writer。
func (a *NotificationKafkaAdapter) Close() error {
	return a.writer.Close()
}
