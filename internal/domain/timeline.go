package domain

import "time"

// Типы событий в истории заказа.
const (
	TimelineEventOrderPlaced        = "OrderPlaced"
	TimelineEventOrderCancelled     = "OrderCancelled"
	TimelineEventOrderStatusChanged = "OrderStatusChanged"
)

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}
