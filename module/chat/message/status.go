package message

import "fmt"

// DeliveryStatus is the per-message state machine. The order of the
// constants is the total order of the machine: a transition is legal
// only to a strictly greater status, which makes monotonicity a plain
// integer comparison.
type DeliveryStatus int

const (
	StatusSent DeliveryStatus = iota
	StatusDelivered
	StatusRead
)

func (s DeliveryStatus) String() string {
	switch s {
	case StatusSent:
		return "sent"
	case StatusDelivered:
		return "delivered"
	case StatusRead:
		return "read"
	default:
		return fmt.Sprintf("delivery(%d)", int(s))
	}
}

// CanTransitionTo reports whether moving to next is a real forward
// transition. Equal-or-lower targets are no-ops for callers, never
// errors.
func (s DeliveryStatus) CanTransitionTo(next DeliveryStatus) bool {
	return next > s
}

func ParseDeliveryStatus(s string) (DeliveryStatus, error) {
	switch s {
	case "sent":
		return StatusSent, nil
	case "delivered":
		return StatusDelivered, nil
	case "read":
		return StatusRead, nil
	default:
		return StatusSent, fmt.Errorf("unknown delivery status %q", s)
	}
}

// lowerStatuses lists every status strictly below next; used as the
// guard filter of the single-document status update.
func lowerStatuses(next DeliveryStatus) []string {
	out := make([]string, 0, int(next))
	for s := StatusSent; s < next; s++ {
		out = append(out, s.String())
	}
	return out
}
