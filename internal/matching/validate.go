package matching

import "github.com/nilskujath/onesecondtrader/internal/events"

// validateSubmission checks a submission request against spec.md §3's
// order invariants. It returns a canonical reason code and message when
// the request is malformed, or ("", "", true) when it is well-formed.
func validateSubmission(req events.OrderSubmissionRequest) (reason, message string, ok bool) {
	if req.Quantity <= 0 {
		return events.ReasonNonPositiveQty, "quantity must be greater than zero", false
	}

	switch req.OrderType {
	case events.OrderTypeMarket:
		return "", "", true
	case events.OrderTypeLimit:
		if req.LimitPrice == nil {
			return events.ReasonMissingLimitPrice, "LIMIT order requires limit_price", false
		}
		return "", "", true
	case events.OrderTypeStop:
		if req.StopPrice == nil {
			return events.ReasonMissingStopPrice, "STOP order requires stop_price", false
		}
		return "", "", true
	case events.OrderTypeStopLimit:
		if req.StopPrice == nil {
			return events.ReasonMissingStopPrice, "STOP_LIMIT order requires stop_price", false
		}
		if req.LimitPrice == nil {
			return events.ReasonMissingLimitPrice, "STOP_LIMIT order requires limit_price", false
		}
		return "", "", true
	default:
		return events.ReasonUnknownOrderType, "unrecognized order_type", false
	}
}
