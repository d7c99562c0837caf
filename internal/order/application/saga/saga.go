package saga

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"oms/internal/pkg/metrics"
)

// Context 在一次 saga 执行内的步骤之间传递数据：
// 前序动作写入（如外部操作 ID），后续动作和补偿读取。
type Context struct {
	values map[string]any
}

func NewContext() *Context {
	return &Context{values: make(map[string]any)}
}

func (c *Context) Set(key string, value any) {
	c.values[key] = value
}

func (c *Context) Value(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Action 是一个可补偿步骤的动作或补偿函数。
type Action func(ctx context.Context, sc *Context) error

type step struct {
	name         string
	action       Action
	compensation Action
}

// Saga 按追加顺序执行一组 (动作, 补偿) 对：任一动作失败后
// 不再执行后续动作，已完成动作的补偿按完成顺序的逆序运行。
// 单次执行私有，不跨订单共享。
type Saga struct {
	steps   []step
	execLog *ExecutionLog
	tracer  trace.Tracer
}

func New(execLog *ExecutionLog, tracer trace.Tracer) *Saga {
	return &Saga{execLog: execLog, tracer: tracer}
}

// AddStep 追加一个可补偿步骤。补偿可以为 nil，表示该步骤无需回滚。
func (s *Saga) AddStep(name string, action, compensation Action) {
	s.steps = append(s.steps, step{name: name, action: action, compensation: compensation})
}

// Log 返回本次执行的日志。
func (s *Saga) Log() *ExecutionLog {
	return s.execLog
}

// Execute 顺序执行所有步骤。整体结果为首个失败动作的错误；
// 补偿结果不改变整体结果。
func (s *Saga) Execute(ctx context.Context) error {
	sc := NewContext()

	for i, st := range s.steps {
		s.execLog.record(st.name, PhaseStarted, nil)

		stepCtx, span := s.tracer.Start(ctx, "saga."+st.name)
		err := st.action(stepCtx, sc)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "saga step failed")
			span.End()

			s.execLog.record(st.name, PhaseFailed, err)
			log.Error().Err(err).Str("step", st.name).Msg("saga step failed, unwinding completed steps")

			s.compensate(ctx, sc, i)
			metrics.SagaExecutionsTotal.WithLabelValues("failure").Inc()
			return err
		}
		span.End()
		s.execLog.record(st.name, PhaseCompleted, nil)
	}

	metrics.SagaExecutionsTotal.WithLabelValues("success").Inc()
	return nil
}

// compensate 逆序回滚 failed 之前已完成的步骤。补偿尽力而为：
// 单个补偿失败只记录，不中断其余补偿。
func (s *Saga) compensate(ctx context.Context, sc *Context, failed int) {
	for i := failed - 1; i >= 0; i-- {
		st := s.steps[i]
		if st.compensation == nil {
			continue
		}

		metrics.SagaCompensationsTotal.Inc()

		compCtx, span := s.tracer.Start(ctx, "saga.compensation."+st.name)
		if err := st.compensation(compCtx, sc); err != nil {
			span.RecordError(err)
			span.End()

			s.execLog.record(st.name, PhaseCompensationFailed, err)
			metrics.SagaCompensationFailuresTotal.Inc()
			log.Error().Err(err).Str("step", st.name).Msg("saga compensation failed, manual follow-up required")
			continue
		}
		span.End()
		s.execLog.record(st.name, PhaseCompensated, nil)
	}
}
