package orders

import "fmt"

// Status is the closed set of states an order moves through. The normal
// progression is pending -> confirmed -> preparing -> shipped -> delivered;
// cancelled is reachable from any non-terminal state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// remember to add new statuses to statusLabels and validNext
var statusLabels = map[Status]string{
	StatusPending:   "order received",
	StatusConfirmed: "order confirmed",
	StatusPreparing: "preparing your order",
	StatusShipped:   "order shipped",
	StatusDelivered: "order delivered",
	StatusCancelled: "order cancelled",
}

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed: {StatusPreparing: true, StatusCancelled: true},
	StatusPreparing: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:   {StatusDelivered: true, StatusCancelled: true},
	StatusDelivered: {},
	StatusCancelled: {},
}

// Label is the default history comment for a transition into s.
func (s Status) Label() string {
	return statusLabels[s]
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if _, ok := statusLabels[s]; !ok {
		return "", fmt.Errorf("unknown order status %q", raw)
	}
	return s, nil
}

// CanTransition reports whether to is a conventional successor of from.
// UpdateStatus does not enforce this; it is advisory for callers.
func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
