package grievance

// DeliveryState tracks whether the grievance mail reached the transport
type DeliveryState string

const (
	// DeliveryPending means the record was reserved but the relay has not reported yet
	DeliveryPending DeliveryState = "pending"
	// DeliverySent means the relay accepted the mail; only sent grievances are visible
	DeliverySent DeliveryState = "sent"
	// DeliveryFailed means the relay rejected the mail or the outcome was abandoned
	DeliveryFailed DeliveryState = "failed"
)

// IsValid checks if the DeliveryState is a known value
func (d DeliveryState) IsValid() bool {
	switch d {
	case DeliveryPending, DeliverySent, DeliveryFailed:
		return true
	}
	return false
}

// String returns the string representation of DeliveryState
func (d DeliveryState) String() string {
	return string(d)
}
