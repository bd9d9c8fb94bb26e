package dispatch

import (
	"errors"
	"fmt"
	"strings"
)

// FailureKind classifies the failure of one attempt on one node.
type FailureKind int

const (
	// TransportFailure is a connection error or a timeout.
	TransportFailure FailureKind = iota
	// RemoteStatusFailure is a response outside of the success range.
	RemoteStatusFailure
	// DecodeFailure is a successful status with a body that is not JSON.
	DecodeFailure
)

// String ...
func (k FailureKind) String() string {
	switch k {
	case TransportFailure:
		return "transport"
	case RemoteStatusFailure:
		return "status"
	case DecodeFailure:
		return "decode"
	default:
		return "unknown"
	}
}

// MarshalText ...
func (k FailureKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Failure records why one node did not serve one call.
type Failure struct {
	Node   string      `json:"node"`
	Kind   FailureKind `json:"kind"`
	Status int         `json:"status,omitempty"`
	Err    string      `json:"error,omitempty"`
	Detail string      `json:"detail,omitempty"`
}

// Error ...
func (f Failure) Error() string {
	switch f.Kind {
	case RemoteStatusFailure:
		return fmt.Sprintf("%s: status %d", f.Node, f.Status)
	default:
		return fmt.Sprintf("%s: %s", f.Node, f.Err)
	}
}

// AggregateFailure is returned when every node visited by a call failed. It
// carries the failures in visiting order.
type AggregateFailure struct {
	Method   string
	Path     string
	Failures []Failure
}

// Error ...
func (e *AggregateFailure) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("%s %s: no nodes configured", e.Method, e.Path)
	}

	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}

	return fmt.Sprintf("%s %s: all %d nodes failed: %s",
		e.Method, e.Path, len(e.Failures), strings.Join(msgs, "; "))
}

// AsAggregateFailure unwraps err into an *AggregateFailure.
func AsAggregateFailure(err error) (*AggregateFailure, bool) {
	var agg *AggregateFailure
	if errors.As(err, &agg) {
		return agg, true
	}
	return nil, false
}

const detailLimit = 200

func snippet(body []byte) string {
	if len(body) > detailLimit {
		body = body[:detailLimit]
	}
	return string(body)
}
