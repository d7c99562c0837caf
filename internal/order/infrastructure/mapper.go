package infrastructure

import (
	"oms/internal/order/domain"
)

func toDomainOrder(m *OrderModel) *domain.Order {
	return &domain.Order{
		ID:        m.ID,
		UserName:  m.UserName,
		Status:    domain.Status(m.Status),
		CreatedAt: m.CreatedAt,
		PlacedAt:  m.PlacedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toOrderModel(o *domain.Order) *OrderModel {
	return &OrderModel{
		ID:        o.ID,
		UserName:  o.UserName,
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt,
		PlacedAt:  o.PlacedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func toDomainPosition(m *OrderPositionModel) domain.OrderPosition {
	return domain.OrderPosition{
		ID:          m.ID,
		OrderID:     m.OrderID,
		ProductCode: m.ProductCode,
		Quantity:    m.Quantity,
		Price:       m.Price,
	}
}

func toPositionModel(p *domain.OrderPosition) *OrderPositionModel {
	return &OrderPositionModel{
		ID:          p.ID,
		OrderID:     p.OrderID,
		ProductCode: p.ProductCode,
		Quantity:    p.Quantity,
		Price:       p.Price,
	}
}

func toDomainStatusChange(m *OrderStatusChangeModel) domain.OrderStatusChange {
	return domain.OrderStatusChange{
		Status:    domain.Status(m.Status),
		CreatedAt: m.CreatedAt,
	}
}
