package domain

import (
	"context"
	"fmt"
)

// AttendanceCounts are the raw registration counters for one event.
type AttendanceCounts struct {
	Total     int
	Pending   int
	Approved  int
	Rejected  int
	CheckedIn int
}

// AttendanceStats is the dashboard view of an event's registrations.
// swagger:model AttendanceStats
type AttendanceStats struct {
	Total          int    `json:"total"`
	Pending        int    `json:"pending"`
	Approved       int    `json:"approved"`
	Rejected       int    `json:"rejected"`
	CheckedIn      int    `json:"checked_in"`
	ApprovalRate   string `json:"approval_rate"`
	AttendanceRate string `json:"attendance_rate"`
}

// NewAttendanceStats derives rates from c. approval = approved/total,
// attendance = checked_in/approved, each "0.00%" when the denominator is zero.
func NewAttendanceStats(c AttendanceCounts) *AttendanceStats {
	return &AttendanceStats{
		Total:          c.Total,
		Pending:        c.Pending,
		Approved:       c.Approved,
		Rejected:       c.Rejected,
		CheckedIn:      c.CheckedIn,
		ApprovalRate:   FormatRate(c.Approved, c.Total),
		AttendanceRate: FormatRate(c.CheckedIn, c.Approved),
	}
}

// FormatRate renders part/whole as a percentage with two decimals.
func FormatRate(part, whole int) string {
	if whole <= 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", float64(part)/float64(whole)*100)
}

// AttendanceService computes read-only statistics for an event.
type AttendanceService interface {
	Stats(ctx context.Context, eventID string) (*AttendanceStats, error)
}
