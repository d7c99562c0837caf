package interfaces

import (
	"time"

	"github.com/shopspring/decimal"

	"oms/internal/order/domain"
)

type createOrderResponse struct {
	OrderID   string    `json:"orderId"`
	CreatedAt time.Time `json:"createdAt"`
}

type addPositionRequest struct {
	ProductCode string `json:"productCode"`
	Quantity    int    `json:"quantity"`
}

type addPositionResponse struct {
	PositionID string `json:"positionId"`
}

type positionDto struct {
	ID          string              `json:"id"`
	ProductCode string              `json:"productCode"`
	Quantity    int                 `json:"quantity"`
	Price       decimal.NullDecimal `json:"price"`
}

type statusChangeDto struct {
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type orderDto struct {
	ID            string            `json:"id"`
	Status        string            `json:"status"`
	CreatedAt     time.Time         `json:"createdAt"`
	PlacedAt      *time.Time        `json:"placedAt,omitempty"`
	Positions     []positionDto     `json:"positions"`
	StatusChanges []statusChangeDto `json:"statusChanges"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func toOrderDto(o *domain.Order) orderDto {
	dto := orderDto{
		ID:            o.ID.String(),
		Status:        string(o.Status),
		CreatedAt:     o.CreatedAt,
		PlacedAt:      o.PlacedAt,
		Positions:     []positionDto{},
		StatusChanges: []statusChangeDto{},
	}
	for _, p := range o.Positions {
		dto.Positions = append(dto.Positions, positionDto{
			ID:          p.ID.String(),
			ProductCode: p.ProductCode,
			Quantity:    p.Quantity,
			Price:       p.Price,
		})
	}
	for _, c := range o.StatusChanges {
		dto.StatusChanges = append(dto.StatusChanges, statusChangeDto{
			Status:    string(c.Status),
			CreatedAt: c.CreatedAt,
		})
	}
	return dto
}
