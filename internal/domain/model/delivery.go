package model

import "fmt"

// DeliveryStatus classifies the result of one downstream delivery attempt.
type DeliveryStatus string

const (
	// DeliveryDelivered means the downstream API accepted the note (2xx).
	DeliveryDelivered DeliveryStatus = "delivered"
	// DeliveryRejected means the downstream API was reachable but returned a
	// non-2xx status. Terminal for this attempt; the note stays queued.
	DeliveryRejected DeliveryStatus = "rejected"
	// DeliveryTransportFailure means the request never produced an HTTP
	// response (connection refused, timeout, DNS failure).
	DeliveryTransportFailure DeliveryStatus = "transport_failure"
)

// DeliveryOutcome is the classified result of a single delivery attempt.
// StatusCode and Body are set for delivered/rejected outcomes; Reason is set
// for transport failures. Outcomes are values, not errors: a failed attempt is
// an expected result the pipelines account for, not an exceptional condition.
type DeliveryOutcome struct {
	Status     DeliveryStatus
	StatusCode int
	Body       string
	Reason     string
}

// Delivered reports whether the downstream API confirmed acceptance.
func (o DeliveryOutcome) Delivered() bool {
	return o.Status == DeliveryDelivered
}

// Detail returns a human-readable description of a failed outcome, used in
// flush reports and error responses.
func (o DeliveryOutcome) Detail() string {
	switch o.Status {
	case DeliveryRejected:
		if o.Body != "" {
			return fmt.Sprintf("downstream rejected with status %d: %s", o.StatusCode, o.Body)
		}
		return fmt.Sprintf("downstream rejected with status %d", o.StatusCode)
	case DeliveryTransportFailure:
		return "downstream unreachable: " + o.Reason
	default:
		return "delivered"
	}
}
