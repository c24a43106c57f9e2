package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderPlaced struct {
	OrderID     uuid.UUID       `json:"order_id"`
	BuyerID     string          `json:"buyer_id"`
	SellerID    string          `json:"seller_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []OrderItem     `json:"items"`
}

type OrderStatusChanged struct {
	OrderID uuid.UUID   `json:"order_id"`
	Status  OrderStatus `json:"status"`
}

type OrderDelivered struct {
	OrderID       uuid.UUID       `json:"order_id"`
	SellerID      string          `json:"seller_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Commission    decimal.Decimal `json:"commission"`
	SellerEarning decimal.Decimal `json:"seller_earning"`
}
