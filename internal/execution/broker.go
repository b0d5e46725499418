package execution

import (
	"context"

	"github.com/wonny/sigaudit/internal/contracts"
)

// Broker defines the order-submission seam between the engine and the
// execution subsystem
// ⭐ SSOT: 주문/체결 연동 인터페이스는 여기서만 정의
type Broker interface {
	// SubmitOrder submits an order and returns the broker-assigned order id
	SubmitOrder(ctx context.Context, order *contracts.Order) (*contracts.OrderResult, error)

	// OnFill registers a callback invoked for every fill notification.
	// 체결 통보는 주문 제출보다 늦게, 별도 스텝에서 도착할 수 있다.
	OnFill(fn func(fill contracts.Fill))
}
