package departures

import (
	"fmt"
)

// Kind classifies why a (stop, line) acquisition produced no entries.
type Kind int

const (
	// KindTransport is a network, timeout or HTTP-status failure.
	KindTransport Kind = iota
	// KindAPI is a response carrying an error message instead of data.
	KindAPI
	// KindEmpty is a successful response without a single usable trip.
	KindEmpty
	// KindSchema is a payload whose shape or values no longer match the
	// timetable format.
	KindSchema
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindAPI:
		return "api"
	case KindEmpty:
		return "empty"
	case KindSchema:
		return "schema"
	default:
		return "unknown"
	}
}

// FetchError is the failure of one (stop, line) acquisition. Its message is
// what the board shows to the rider.
type FetchError struct {
	Kind     Kind
	StopID   string
	StopPost string
	Line     string
	Err      error
}

func (e *FetchError) Error() string {
	where := e.Line + "@" + e.StopPost
	switch e.Kind {
	case KindTransport:
		return fmt.Sprintf("network error %s: %v", where, e.Err)
	case KindAPI:
		return fmt.Sprintf("api error %s: %v", where, e.Err)
	case KindEmpty:
		return "no data " + where
	case KindSchema:
		return fmt.Sprintf("bad schedule %s: %v", where, e.Err)
	default:
		return fmt.Sprintf("fetch failed %s: %v", where, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
