package strategy

import (
	"math"

	"github.com/nilskujath/onesecondtrader/internal/events"
)

// Position is a strategy's authoritative view of its holding in one symbol:
// signed quantity (positive long, negative short) and weighted-average
// entry price (spec.md §3 "Position").
type Position struct {
	Quantity float64
	AvgPrice float64
}

func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

// applyFill folds one fill into pos per spec.md §4.4's weighted-average
// rules, including reduction and flip semantics.
func applyFill(pos Position, side events.Side, quantityFilled, fillPrice float64) Position {
	qOld := pos.Quantity
	pOld := pos.AvgPrice
	qFill := side.Signed() * quantityFilled
	qNew := qOld + qFill

	pNew := pOld
	switch {
	case qOld == 0:
		pNew = fillPrice
	case sign(qOld) == sign(qFill):
		pNew = (math.Abs(qOld)*pOld + math.Abs(qFill)*fillPrice) / (math.Abs(qOld) + math.Abs(qFill))
	case math.Abs(qFill) < math.Abs(qOld):
		pNew = pOld
	}

	if qNew == 0 {
		pNew = 0
	} else if qOld != 0 && sign(qNew) != sign(qOld) {
		pNew = fillPrice
	}

	return Position{Quantity: qNew, AvgPrice: pNew}
}
