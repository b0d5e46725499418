package execution

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/wonny/sigaudit/internal/contracts"
	"github.com/wonny/sigaudit/pkg/logger"
)

// SimBroker simulates order execution for backtests. Orders accepted at
// step N fill at step N+1's close price with slippage applied. 미래 참조
// 방지를 위해 제출 스텝의 가격으로는 체결하지 않는다.
// ⭐ SSOT: 백테스트 체결 시뮬레이션은 여기서만
type SimBroker struct {
	logger *logger.Logger

	commissionRate float64
	slippageRate   float64

	nextOrderID int64
	nextTradeID int64
	pending     []*contracts.Order
	pendingIDs  []string
	fillFns     []func(contracts.Fill)

	// Statistics
	totalOrders     int
	totalFills      int
	totalCommission float64
}

// SimStats holds simulation statistics
type SimStats struct {
	TotalOrders     int
	TotalFills      int
	TotalCommission float64
}

// NewSimBroker creates a simulated broker
func NewSimBroker(commissionRate, slippageRate float64, log *logger.Logger) *SimBroker {
	return &SimBroker{
		logger:         log,
		commissionRate: commissionRate,
		slippageRate:   slippageRate,
	}
}

// SubmitOrder implements Broker. 주문은 다음 스텝까지 pending 상태로 남는다.
func (b *SimBroker) SubmitOrder(ctx context.Context, order *contracts.Order) (*contracts.OrderResult, error) {
	if order.Qty <= 0 {
		return &contracts.OrderResult{
			Accepted:  false,
			Message:   fmt.Sprintf("invalid qty %d", order.Qty),
			Timestamp: time.Now(),
		}, fmt.Errorf("invalid order qty: %d", order.Qty)
	}

	b.nextOrderID++
	orderID := fmt.Sprintf("SIM-ORD-%d", b.nextOrderID)

	b.pending = append(b.pending, order)
	b.pendingIDs = append(b.pendingIDs, orderID)
	b.totalOrders++

	b.logger.WithFields(map[string]interface{}{
		"order_id": orderID,
		"code":     order.Code,
		"side":     order.Side,
		"qty":      order.Qty,
	}).Debug("Order accepted in simulation")

	return &contracts.OrderResult{
		OrderID:   orderID,
		Accepted:  true,
		Timestamp: time.Now(),
	}, nil
}

// OnFill implements Broker
func (b *SimBroker) OnFill(fn func(fill contracts.Fill)) {
	b.fillFns = append(b.fillFns, fn)
}

// Step fills every pending order at the given data point's close price
// and delivers fill notifications. 호스트 루프가 매 스텝 호출한다.
func (b *SimBroker) Step(dp *contracts.DataPoint) {
	if len(b.pending) == 0 {
		return
	}

	for i, order := range b.pending {
		price := dp.Close
		if order.Side == contracts.OrderSideBuy {
			price = price * (1.0 + b.slippageRate)
		} else {
			price = price * (1.0 - b.slippageRate)
		}

		commission := math.Abs(price*float64(order.Qty)) * b.commissionRate
		b.totalCommission += commission
		b.totalFills++
		b.nextTradeID++

		fill := contracts.Fill{
			OrderID:   b.pendingIDs[i],
			TradeID:   fmt.Sprintf("SIM-TRD-%d", b.nextTradeID),
			Qty:       order.Qty,
			Price:     price,
			Timestamp: dp.Time,
		}

		for _, fn := range b.fillFns {
			fn(fill)
		}
	}

	b.pending = b.pending[:0]
	b.pendingIDs = b.pendingIDs[:0]
}

// Stats returns simulation statistics
func (b *SimBroker) Stats() SimStats {
	return SimStats{
		TotalOrders:     b.totalOrders,
		TotalFills:      b.totalFills,
		TotalCommission: b.totalCommission,
	}
}
