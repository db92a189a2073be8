// Package alert defines the outbound alert model and the dispatch policy
// that stands between the detectors and the notification transport.
//
// DESIGN: Alerts are a tagged variant, one case per alert type, with typed
// fields per case. Constructors validate payloads, so a malformed alert can
// never reach the transport.
package alert

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/poolwatch/poolwatch/internal/parser"
)

// Type identifies an alert category. The dispatcher keeps one cooldown entry
// per Type.
type Type string

const (
	TypeFailover  Type = "failover"
	TypeErrorRate Type = "error_rate"
)

// Severity is the operator-facing urgency of an alert.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// FailoverDetails carries the fields of a failover alert.
type FailoverDetails struct {
	From parser.Pool
	To   parser.Pool
}

// ErrorRateDetails carries the fields of an error-rate alert.
type ErrorRateDetails struct {
	Rate      float64 // percent
	Threshold float64 // percent
	Errors    int
	Window    int
}

// Alert is one notification to be delivered. Exactly one of Failover or
// ErrorRate is set, matching Type.
type Alert struct {
	ID       string
	Type     Type
	Severity Severity
	// LoggedAt is the access-log timestamp of the triggering record, zero
	// when the line carried none. Annotation only; cooldown timing always
	// uses arrival wall-clock time.
	LoggedAt time.Time

	Failover  *FailoverDetails
	ErrorRate *ErrorRateDetails
}

// NewFailover builds a failover alert. Both pools must be valid and differ.
func NewFailover(from, to parser.Pool, loggedAt time.Time) (Alert, error) {
	if !from.Valid() || !to.Valid() {
		return Alert{}, fmt.Errorf("alert: invalid failover pools %q -> %q", from, to)
	}
	if from == to {
		return Alert{}, fmt.Errorf("alert: degenerate failover %q -> %q", from, to)
	}
	return Alert{
		ID:       uuid.New().String(),
		Type:     TypeFailover,
		Severity: SeverityWarning,
		LoggedAt: loggedAt,
		Failover: &FailoverDetails{From: from, To: to},
	}, nil
}

// NewErrorRate builds an error-rate alert from window statistics.
func NewErrorRate(rate, threshold float64, errors, window int, loggedAt time.Time) (Alert, error) {
	if window <= 0 {
		return Alert{}, fmt.Errorf("alert: non-positive window %d", window)
	}
	if errors < 0 || errors > window {
		return Alert{}, fmt.Errorf("alert: error count %d out of range for window %d", errors, window)
	}
	return Alert{
		ID:       uuid.New().String(),
		Type:     TypeErrorRate,
		Severity: SeverityCritical,
		LoggedAt: loggedAt,
		ErrorRate: &ErrorRateDetails{
			Rate:      rate,
			Threshold: threshold,
			Errors:    errors,
			Window:    window,
		},
	}, nil
}

// Title returns the human-readable headline for the alert.
func (a Alert) Title() string {
	switch a.Type {
	case TypeFailover:
		return "Failover Detected"
	case TypeErrorRate:
		return "High Error Rate"
	default:
		return "Alert"
	}
}

// Message returns the human-readable body for the alert.
func (a Alert) Message() string {
	switch a.Type {
	case TypeFailover:
		return fmt.Sprintf("Failover from *%s* to *%s*", a.Failover.From, a.Failover.To)
	case TypeErrorRate:
		d := a.ErrorRate
		return fmt.Sprintf("High error rate detected: *%.1f%%* (%d/%d requests)\n*Threshold: %.1f%%*",
			d.Rate, d.Errors, d.Window, d.Threshold)
	default:
		return ""
	}
}
