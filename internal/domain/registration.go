package domain

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// RegistrationStatus is the review state of a registration.
type RegistrationStatus string

const (
	StatusPending  RegistrationStatus = "pending"
	StatusApproved RegistrationStatus = "approved"
	StatusRejected RegistrationStatus = "rejected"
)

var registrationStatuses = []RegistrationStatus{StatusPending, StatusApproved, StatusRejected}

// ParseRegistrationStatus returns the status named by s or ErrInvalidInput.
func ParseRegistrationStatus(s string) (RegistrationStatus, error) {
	for _, st := range registrationStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, s)
}

// Transition is an organizer action that moves a registration between statuses.
type Transition string

const (
	TransitionApprove Transition = "approve"
	TransitionReject  Transition = "reject"
)

// transitions lists every legal move. Anything absent is rejected.
var transitions = map[Transition]map[RegistrationStatus]RegistrationStatus{
	TransitionApprove: {
		StatusPending:  StatusApproved,
		StatusRejected: StatusApproved,
	},
	TransitionReject: {
		StatusPending: StatusRejected,
	},
}

// NextStatus returns the status reached by applying t to from.
// Approving an approved registration yields ErrAlreadyApproved; every other
// illegal move yields ErrInvalidTransition.
func NextStatus(from RegistrationStatus, t Transition) (RegistrationStatus, error) {
	if to, ok := transitions[t][from]; ok {
		return to, nil
	}
	if t == TransitionApprove && from == StatusApproved {
		return "", ErrAlreadyApproved
	}
	return "", ErrInvalidTransition
}

// SourceStatuses returns the statuses t may be applied to, in declaration order.
// Stores use it to build conditional updates.
func SourceStatuses(t Transition) []RegistrationStatus {
	var out []RegistrationStatus
	for _, st := range registrationStatuses {
		if _, ok := transitions[t][st]; ok {
			out = append(out, st)
		}
	}
	return out
}

// CheckInAllowed reports why reg cannot be checked in, or nil if it can.
func CheckInAllowed(reg *Registration) error {
	if reg.Status != StatusApproved {
		return ErrNotApproved
	}
	if reg.CheckedInAt != nil {
		return ErrAlreadyCheckedIn
	}
	return nil
}

// Registration is an attendee's request to attend an event.
// swagger:model Registration
type Registration struct {
	ID                       string             `json:"id"`
	EventID                  string             `json:"event_id"`
	FullName                 string             `json:"full_name"`
	Email                    string             `json:"email"`
	Phone                    string             `json:"phone"`
	Age                      int                `json:"age"`
	HeardAbout               string             `json:"heard_about"`
	WantsFutureNotifications bool               `json:"wants_future_notifications"`
	SubmittedAt              time.Time          `json:"submitted_at"`
	Status                   RegistrationStatus `json:"status"`
	QRCode                   string             `json:"qr_code,omitempty"`
	CheckedInAt              *time.Time         `json:"checked_in_at"`
}

// DefaultHeardAbout is stored when the attendee leaves heard_about empty.
const DefaultHeardAbout = "Not provided"

// RegistrationInput holds the attendee-supplied form fields.
type RegistrationInput struct {
	FullName                 string
	Email                    string
	Phone                    string
	Age                      int
	HeardAbout               string
	WantsFutureNotifications bool
}

// Field limits. The email is embedded in the QR ticket, so MaxEmailLength
// also keeps every approved ticket within the QR symbol's capacity.
const (
	MaxEmailLength      = 254
	MaxFullNameLength   = 200
	MaxPhoneLength      = 32
	MaxHeardAboutLength = 500
)

var emailRegexp = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Validate returns one message per invalid field; nil means valid.
func (in RegistrationInput) Validate() []string {
	var errs []string
	fullName := strings.TrimSpace(in.FullName)
	if fullName == "" {
		errs = append(errs, "full_name is required")
	} else if utf8.RuneCountInString(fullName) > MaxFullNameLength {
		errs = append(errs, fmt.Sprintf("full_name must be at most %d characters", MaxFullNameLength))
	}
	email := NormalizeEmail(in.Email)
	switch {
	case email == "":
		errs = append(errs, "email is required")
	case len(email) > MaxEmailLength:
		errs = append(errs, fmt.Sprintf("email must be at most %d characters", MaxEmailLength))
	case !emailRegexp.MatchString(email):
		errs = append(errs, "email is invalid")
	}
	phone := strings.TrimSpace(in.Phone)
	if phone == "" {
		errs = append(errs, "phone is required")
	} else if utf8.RuneCountInString(phone) > MaxPhoneLength {
		errs = append(errs, fmt.Sprintf("phone must be at most %d characters", MaxPhoneLength))
	}
	if utf8.RuneCountInString(strings.TrimSpace(in.HeardAbout)) > MaxHeardAboutLength {
		errs = append(errs, fmt.Sprintf("heard_about must be at most %d characters", MaxHeardAboutLength))
	}
	if in.Age <= 0 {
		errs = append(errs, "age is required and must be positive")
	}
	return errs
}

// NormalizeEmail trims, NFC-normalizes and lowercases an address so that
// uniqueness checks are insensitive to case and surrounding whitespace.
func NormalizeEmail(email string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(email)))
}

// NewRegistration builds a pending registration from validated input.
// ID is set by the repository on create.
func NewRegistration(eventID string, in RegistrationInput, submittedAt time.Time) *Registration {
	heardAbout := strings.TrimSpace(in.HeardAbout)
	if heardAbout == "" {
		heardAbout = DefaultHeardAbout
	}
	return &Registration{
		EventID:                  eventID,
		FullName:                 strings.TrimSpace(in.FullName),
		Email:                    NormalizeEmail(in.Email),
		Phone:                    strings.TrimSpace(in.Phone),
		Age:                      in.Age,
		HeardAbout:               heardAbout,
		WantsFutureNotifications: in.WantsFutureNotifications,
		SubmittedAt:              submittedAt,
		Status:                   StatusPending,
	}
}

// RegistrationFilter narrows list and count queries. Nil fields match everything.
type RegistrationFilter struct {
	Status    *RegistrationStatus
	CheckedIn *bool
}

// Matches reports whether reg satisfies the filter.
func (f RegistrationFilter) Matches(reg *Registration) bool {
	if f.Status != nil && reg.Status != *f.Status {
		return false
	}
	if f.CheckedIn != nil && (reg.CheckedInAt != nil) != *f.CheckedIn {
		return false
	}
	return true
}

// RegistrationRepository defines storage operations for registrations.
// SetApproved, SetRejected and MarkCheckedIn check their precondition and write
// in one atomic step, so at most one concurrent caller wins per registration.
type RegistrationRepository interface {
	// Create stores reg and sets its ID. Returns ErrDuplicateRegistration when
	// the (event_id, email) pair exists.
	Create(ctx context.Context, reg *Registration) error
	GetByID(ctx context.Context, id string) (*Registration, error)
	GetByEventAndEmail(ctx context.Context, eventID, email string) (*Registration, error)
	// ListByEvent returns registrations ordered by submitted_at descending.
	// A zero PageSize returns every match.
	ListByEvent(ctx context.Context, eventID string, filter RegistrationFilter, page PaginationParams) ([]*Registration, error)
	CountByEvent(ctx context.Context, eventID string, filter RegistrationFilter) (int, error)
	// CountsByEvent computes every attendance counter from one snapshot.
	CountsByEvent(ctx context.Context, eventID string) (*AttendanceCounts, error)
	SetApproved(ctx context.Context, id, qrCode string) (*Registration, error)
	SetRejected(ctx context.Context, id string) (*Registration, error)
	MarkCheckedIn(ctx context.Context, id string, at time.Time) (*Registration, error)
}

// RegistrationService is the registration lifecycle: submit, review and check-in.
type RegistrationService interface {
	Submit(ctx context.Context, eventID string, in RegistrationInput) (*Registration, error)
	ListByEvent(ctx context.Context, eventID string, filter RegistrationFilter, page PaginationParams) ([]*Registration, int, error)
	GetByID(ctx context.Context, id string) (*Registration, error)
	Approve(ctx context.Context, id string) (*Registration, error)
	Reject(ctx context.Context, id string) (*Registration, error)
	CheckIn(ctx context.Context, token string) (*Registration, error)
}
