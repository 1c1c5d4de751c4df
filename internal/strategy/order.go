package strategy

import "github.com/nilskujath/onesecondtrader/internal/events"

// Order is the strategy's own record of an order it submitted, tracked
// through submitted_orders/pending_orders/submitted_modifications/
// submitted_cancellations (spec.md §4.4).
type Order struct {
	SystemOrderID string
	Symbol        string
	OrderType     events.OrderType
	Side          events.Side
	Quantity      float64
	LimitPrice    *float64
	StopPrice     *float64
	Action        string
	Signal        string
}

func (o *Order) clone() *Order {
	c := *o
	return &c
}
