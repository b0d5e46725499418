package contracts

import "time"

// Order represents an execution order handed to the broker
// ⭐ SSOT: 어댑터 → Broker 주문 정보 전달
type Order struct {
	Code      string    `json:"code"`
	Side      OrderSide `json:"side"`  // BUY or SELL
	Qty       int64     `json:"qty"`
	Price     float64   `json:"price"` // 0 = 시장가
	CreatedAt time.Time `json:"created_at"`
}

// OrderSide represents buy or sell
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderResult represents order submission result
type OrderResult struct {
	OrderID   string    `json:"order_id"` // 체결 통보 조회 키
	Accepted  bool      `json:"accepted"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Fill represents a fill notification from the execution subsystem.
// OrderID는 원 주문을, TradeID는 체결을 식별한다.
type Fill struct {
	OrderID   string    `json:"order_id"`
	TradeID   string    `json:"trade_id"`
	Qty       int64     `json:"qty"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// IsMarketOrder checks if the order is a market order
func (o *Order) IsMarketOrder() bool {
	return o.Price == 0
}
