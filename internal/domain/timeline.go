package domain

import "time"

// TimelineEvent описывает событие в жизненном цикле платежа.
type TimelineEvent struct {
	PaymentID string
	Type      string
	Reason    string
	Occurred  time.Time
}
