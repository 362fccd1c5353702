package notify

import (
	"fmt"

	"polytrader/internal/order"
)

// Builders for the five user-visible notification shapes. One execution
// outcome produces exactly one notification.

func OrderExecuted(o *order.AlgoOrder, price, size float64, reason string) Notification {
	return New(KindOrderExecuted,
		fmt.Sprintf("%s order executed", o.Kind),
		fmt.Sprintf("%s %.4f of %s @ %.4f\n%s", o.Side, size, o.TokenID, price, reason))
}

func OrderFailed(o *order.AlgoOrder, errMsg string) Notification {
	return New(KindOrderFailed,
		fmt.Sprintf("%s order failed", o.Kind),
		fmt.Sprintf("%s %s: %s", o.Side, o.TokenID, errMsg))
}

func TWAPCompleted(o *order.AlgoOrder) Notification {
	return New(KindTWAPCompleted,
		"TWAP completed",
		fmt.Sprintf("%s %s: executed %.4f of %.4f across %d slices",
			o.Side, o.TokenID, o.State.ExecutedSize, o.TotalSize, o.State.ExecutedSlices))
}

func RestingOrderFilled(r *order.RestingOrder) Notification {
	body := fmt.Sprintf("%s %.4f of %s @ %.4f", r.Side, r.Size, r.TokenID, r.FillPrice)
	if r.FillInferred {
		body += "\n(fill inferred: order left the open set; could also be an external cancel)"
	}
	return New(KindRestingOrderFilled, "Limit order filled", body)
}

func PriceAlertTriggered(tokenID string, direction string, target, price float64) Notification {
	return New(KindPriceAlert,
		"Price alert",
		fmt.Sprintf("%s is %.4f (%s %.4f)", tokenID, price, direction, target))
}
