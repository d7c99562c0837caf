package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"oms/internal/order/application/saga"
	"oms/internal/order/domain"
	"oms/internal/order/domain/port"
	"oms/internal/pkg/metrics"
)

// saga 上下文里扣款操作 ID 的键；许可证步骤按行项目 ID 派生各自的键。
const ctxKeyOperationID = "operationId"

// OrderService 编排订单生命周期：加载状态、校验归属与状态机、
// 组合存储调用为单个事务，支付时驱动补偿式步骤序列。
type OrderService struct {
	orders    domain.OrderStore
	positions domain.PositionStore
	changes   domain.StatusChangeStore
	tx        domain.TxManager

	products port.ProductService
	billing  port.BillingService
	licenses port.LicenseService
	notifier port.StatusNotifier

	tracer trace.Tracer
	logger zerolog.Logger
}

func NewOrderService(
	orders domain.OrderStore,
	positions domain.PositionStore,
	changes domain.StatusChangeStore,
	tx domain.TxManager,
	products port.ProductService,
	billing port.BillingService,
	licenses port.LicenseService,
	notifier port.StatusNotifier,
	tracer trace.Tracer,
	logger zerolog.Logger,
) *OrderService {
	return &OrderService{
		orders: orders, positions: positions, changes: changes, tx: tx,
		products: products, billing: billing, licenses: licenses, notifier: notifier,
		tracer: tracer, logger: logger,
	}
}

// Create 创建一个 CREATED 状态的新订单，订单行与首条状态记录原子写入。
func (s *OrderService) Create(ctx context.Context, userName string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Create")
	defer span.End()

	now := time.Now()
	order := domain.NewOrder(userName, now)
	span.SetAttributes(attribute.String("order.id", order.ID.String()))

	err := s.tx.Do(ctx, func(ctx context.Context) error {
		if err := s.orders.Insert(ctx, order); err != nil {
			return err
		}
		return s.changes.Insert(ctx, order.ID, domain.OrderStatusChange{
			Status:    domain.StatusCreated,
			CreatedAt: now,
		})
	})
	s.observe("create", err)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("order_id", order.ID.String()).Str("owner", userName).Msg("order created")
	s.notify(ctx, order.ID, userName, domain.StatusCreated, now)
	return order, nil
}

// List 按创建时间倒序分页返回用户的订单，并为每个订单并发挂载
// 行项目与状态历史。空页直接返回，不发起逐单查询。
func (s *OrderService) List(ctx context.Context, userName string, pageSize, page int) ([]*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.List")
	defer span.End()

	orders, err := s.orders.FindAllByUserName(ctx, userName, pageSize, page)
	if err != nil {
		s.observe("list", err)
		return nil, err
	}
	if len(orders) == 0 {
		s.observe("list", nil)
		return []*domain.Order{}, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, order := range orders {
		g.Go(func() error { return s.attachPositions(gctx, order) })
		g.Go(func() error { return s.attachStatusChanges(gctx, order) })
	}
	err = g.Wait()
	s.observe("list", err)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// Get 按 ID 返回订单及其行项目和状态历史。
// 不存在与归属他人是两种可区分的错误。
func (s *OrderService) Get(ctx context.Context, userName string, orderID uuid.UUID) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Get")
	defer span.End()

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		s.observe("get", err)
		return nil, err
	}
	if err := order.OwnedBy(userName); err != nil {
		s.observe("get", err)
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.attachPositions(gctx, order) })
	g.Go(func() error { return s.attachStatusChanges(gctx, order) })
	err = g.Wait()
	s.observe("get", err)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// AddPosition 向 CREATED 状态的订单追加行项目，
// 单价取商品服务的当前报价。
func (s *OrderService) AddPosition(ctx context.Context, userName string, orderID uuid.UUID, productCode string, quantity int) (uuid.UUID, error) {
	ctx, span := s.tracer.Start(ctx, "order.AddPosition")
	defer span.End()

	var positionID uuid.UUID
	err := s.tx.Do(ctx, func(ctx context.Context) error {
		order, err := s.orders.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := order.OwnedBy(userName); err != nil {
			return err
		}
		if !order.CanChange() {
			return domain.ErrStateConflict(order.ID, order.Status, domain.StatusCreated)
		}

		price, err := s.products.PriceOf(ctx, productCode)
		if err != nil {
			return err
		}

		positionID, err = s.positions.Insert(ctx, &domain.OrderPosition{
			OrderID:     orderID,
			ProductCode: productCode,
			Quantity:    quantity,
			Price:       decimal.NewNullDecimal(price),
		})
		return err
	})
	s.observe("add_position", err)
	if err != nil {
		return uuid.Nil, err
	}
	return positionID, nil
}

// RemovePosition 删除行项目；其所属订单必须仍为 CREATED 状态。
func (s *OrderService) RemovePosition(ctx context.Context, userName string, positionID uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "order.RemovePosition")
	defer span.End()

	err := s.tx.Do(ctx, func(ctx context.Context) error {
		position, err := s.positions.FindByID(ctx, positionID)
		if err != nil {
			return err
		}
		order, err := s.orders.FindByIDForUpdate(ctx, position.OrderID)
		if err != nil {
			return err
		}
		if err := order.OwnedBy(userName); err != nil {
			return err
		}
		if !order.CanChange() {
			return domain.ErrStateConflict(order.ID, order.Status, domain.StatusCreated)
		}
		return s.positions.DeleteByID(ctx, positionID)
	})
	s.observe("remove_position", err)
	return err
}

// Place 将订单从 CREATED 流转到 PLACED。每个行项目的单价绕过缓存、
// 以商品服务的最新报价重新锁定，任一商品不可售则整个流转回滚。
func (s *OrderService) Place(ctx context.Context, userName string, orderID uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "order.Place")
	defer span.End()

	now := time.Now()
	err := s.tx.Do(ctx, func(ctx context.Context) error {
		order, err := s.orders.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := order.OwnedBy(userName); err != nil {
			return err
		}
		if err := order.Place(now); err != nil {
			return err
		}

		positions, err := s.positions.FindAllByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		for _, position := range positions {
			price, err := s.products.FreshPriceOf(ctx, position.ProductCode)
			if err != nil {
				return err
			}
			if err := s.positions.UpdatePrice(ctx, position.ID, price); err != nil {
				return err
			}
		}

		if err := s.changes.Insert(ctx, orderID, domain.OrderStatusChange{
			Status:    domain.StatusPlaced,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		return s.orders.UpdateStatus(ctx, orderID, domain.StatusPlaced)
	})
	s.observe("place", err)
	if err != nil {
		return err
	}

	s.logger.Info().Str("order_id", orderID.String()).Msg("order placed")
	s.notify(ctx, orderID, userName, domain.StatusPlaced, now)
	return nil
}

// Pay 将订单从 PLACED 流转到 COMPLETED：先通过支付 saga 扣款并逐行签发
// 许可证，任一步失败则已完成的外部操作按逆序撤销，订单保持 PLACED。
// 零行项目的订单仍会以零总额执行扣款步骤。
func (s *OrderService) Pay(ctx context.Context, userName string, orderID uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "order.Pay")
	defer span.End()

	now := time.Now()
	err := s.tx.Do(ctx, func(ctx context.Context) error {
		order, err := s.orders.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := order.OwnedBy(userName); err != nil {
			return err
		}
		if order.Status != domain.StatusPlaced {
			return domain.ErrStateConflict(order.ID, order.Status, domain.StatusPlaced)
		}

		positions, err := s.positions.FindAllByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		total := domain.Total(positions)
		span.SetAttributes(attribute.String("order.total", total.String()))

		if err := s.buildPaymentSaga(orderID, total, positions).Execute(ctx); err != nil {
			return err
		}

		if err := s.changes.Insert(ctx, orderID, domain.OrderStatusChange{
			Status:    domain.StatusCompleted,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		return s.orders.UpdateStatus(ctx, orderID, domain.StatusCompleted)
	})
	s.observe("pay", err)
	if err != nil {
		return err
	}

	s.logger.Info().Str("order_id", orderID.String()).Msg("order paid")
	s.notify(ctx, orderID, userName, domain.StatusCompleted, now)
	return nil
}

// Cancel 将订单从 CREATED 流转到 CANCELED。
func (s *OrderService) Cancel(ctx context.Context, userName string, orderID uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "order.Cancel")
	defer span.End()

	now := time.Now()
	err := s.tx.Do(ctx, func(ctx context.Context) error {
		order, err := s.orders.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := order.OwnedBy(userName); err != nil {
			return err
		}
		if err := order.Cancel(now); err != nil {
			return err
		}

		if err := s.changes.Insert(ctx, orderID, domain.OrderStatusChange{
			Status:    domain.StatusCanceled,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		return s.orders.UpdateStatus(ctx, orderID, domain.StatusCanceled)
	})
	s.observe("cancel", err)
	if err != nil {
		return err
	}

	s.logger.Info().Str("order_id", orderID.String()).Msg("order canceled")
	s.notify(ctx, orderID, userName, domain.StatusCanceled, now)
	return nil
}

// buildPaymentSaga 组装支付步骤序列：步骤 0 扣款（操作 ID 存入 saga 上下文，
// 补偿为撤销该操作），之后每个行项目一个签发许可证的步骤（补偿为吊销）。
func (s *OrderService) buildPaymentSaga(orderID uuid.UUID, total decimal.Decimal, positions []domain.OrderPosition) *saga.Saga {
	sg := saga.New(saga.NewExecutionLog(), s.tracer)

	sg.AddStep("withdraw-funds",
		func(ctx context.Context, sc *saga.Context) error {
			operationID, err := s.billing.Withdraw(ctx, total, fmt.Sprintf("payment for order ID=%s", orderID))
			if err != nil {
				return err
			}
			sc.Set(ctxKeyOperationID, operationID)
			return nil
		},
		func(ctx context.Context, sc *saga.Context) error {
			v, ok := sc.Value(ctxKeyOperationID)
			if !ok {
				return fmt.Errorf("no billing operation recorded for order %s", orderID)
			}
			return s.billing.CancelOperation(ctx, v.(uuid.UUID))
		})

	for _, position := range positions {
		key := "licenseId." + position.ID.String()
		productCode := position.ProductCode
		sg.AddStep("issue-license-"+productCode,
			func(ctx context.Context, sc *saga.Context) error {
				licenseID, err := s.licenses.Issue(ctx, productCode)
				if err != nil {
					return err
				}
				sc.Set(key, licenseID)
				return nil
			},
			func(ctx context.Context, sc *saga.Context) error {
				v, ok := sc.Value(key)
				if !ok {
					return fmt.Errorf("no license recorded for product %s", productCode)
				}
				return s.licenses.Revoke(ctx, v.(uuid.UUID))
			})
	}
	return sg
}

func (s *OrderService) attachPositions(ctx context.Context, order *domain.Order) error {
	positions, err := s.positions.FindAllByOrderID(ctx, order.ID)
	if err != nil {
		return err
	}
	order.Positions = positions
	return nil
}

func (s *OrderService) attachStatusChanges(ctx context.Context, order *domain.Order) error {
	changes, err := s.changes.FindAllByOrderID(ctx, order.ID)
	if err != nil {
		return err
	}
	order.StatusChanges = changes
	return nil
}

// notify 在流转提交后对外发布状态事件，失败只记日志。
func (s *OrderService) notify(ctx context.Context, orderID uuid.UUID, userName string, status domain.Status, at time.Time) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyStatusChange(ctx, orderID, userName, status, at); err != nil {
		s.logger.Warn().Err(err).Str("order_id", orderID.String()).Msg("status notification failed")
	}
}

func (s *OrderService) observe(operation string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.OrderOperationsTotal.WithLabelValues(operation, result).Inc()
}
