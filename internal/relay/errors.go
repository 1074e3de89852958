package relay

import "fmt"

// Direction names one half of a relay.
type Direction int

const (
	InboundToOutbound Direction = iota
	OutboundToInbound
)

func (d Direction) String() string {
	if d == InboundToOutbound {
		return "inbound->outbound"
	}
	return "outbound->inbound"
}

// TransferError reports the first unrecoverable read, write or splice error
// after both streams were established.
type TransferError struct {
	Direction Direction
	Err       error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer %s: %v", e.Direction, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}
