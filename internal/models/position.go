package models

// Position ties one broker ticket to the signal leg it fills. A signal opens
// at most two legs: the first at the signal's open price and, when the
// account runs in high-risk mode, a second at the second price. Exactly one
// of IsFirst/IsSecond is set.
type Position struct {
	ID       int64
	SignalID int64
	Ticket   int64
	UserID   int64
	IsFirst  bool
	IsSecond bool
}

// Leg names the slot this position occupies under its signal, for logs.
func (p *Position) Leg() string {
	switch {
	case p.IsFirst:
		return "first"
	case p.IsSecond:
		return "second"
	default:
		return "unknown"
	}
}
