package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 订单服务的 Prometheus 指标，通过 /metrics 暴露。
var (
	OrderOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_operations_total",
		Help: "Order lifecycle operations by operation name and result.",
	}, []string{"operation", "result"})

	SagaExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saga_executions_total",
		Help: "Saga executions by result.",
	}, []string{"result"})

	SagaCompensationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "saga_compensations_total",
		Help: "Compensation actions triggered during saga unwind.",
	})

	SagaCompensationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "saga_compensation_failures_total",
		Help: "Compensation actions that themselves failed. Requires manual follow-up.",
	})
)
