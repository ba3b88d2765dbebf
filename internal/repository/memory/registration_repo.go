// Package memory holds in-process stores used for local runs and tests.
// They honour the same atomicity contract as the Postgres stores.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"eventcheckin/internal/domain"
)

type registrationRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.Registration
	byEmail map[string]string
}

// NewRegistrationRepository returns an empty in-memory RegistrationRepository.
func NewRegistrationRepository() domain.RegistrationRepository {
	return &registrationRepository{
		byID:    make(map[string]*domain.Registration),
		byEmail: make(map[string]string),
	}
}

func emailKey(eventID, email string) string {
	return eventID + "\x00" + email
}

func clone(reg *domain.Registration) *domain.Registration {
	c := *reg
	if reg.CheckedInAt != nil {
		t := *reg.CheckedInAt
		c.CheckedInAt = &t
	}
	return &c
}

func (r *registrationRepository) Create(_ context.Context, reg *domain.Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := emailKey(reg.EventID, reg.Email)
	if _, ok := r.byEmail[key]; ok {
		return domain.ErrDuplicateRegistration
	}
	reg.ID = uuid.New().String()
	r.byID[reg.ID] = clone(reg)
	r.byEmail[key] = reg.ID
	return nil
}

func (r *registrationRepository) GetByID(_ context.Context, id string) (*domain.Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(reg), nil
}

func (r *registrationRepository) GetByEventAndEmail(_ context.Context, eventID, email string) (*domain.Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[emailKey(eventID, email)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(r.byID[id]), nil
}

func (r *registrationRepository) matching(eventID string, filter domain.RegistrationFilter) []*domain.Registration {
	var out []*domain.Registration
	for _, reg := range r.byID {
		if reg.EventID == eventID && filter.Matches(reg) {
			out = append(out, reg)
		}
	}
	return out
}

func (r *registrationRepository) ListByEvent(_ context.Context, eventID string, filter domain.RegistrationFilter, page domain.PaginationParams) ([]*domain.Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	regs := r.matching(eventID, filter)
	sort.Slice(regs, func(i, j int) bool {
		if regs[i].SubmittedAt.Equal(regs[j].SubmittedAt) {
			return regs[i].ID > regs[j].ID
		}
		return regs[i].SubmittedAt.After(regs[j].SubmittedAt)
	})
	if page.Paged() {
		start := page.Offset()
		if start > len(regs) {
			start = len(regs)
		}
		end := start + page.PageSize
		if end > len(regs) {
			end = len(regs)
		}
		regs = regs[start:end]
	}
	out := make([]*domain.Registration, 0, len(regs))
	for _, reg := range regs {
		out = append(out, clone(reg))
	}
	return out, nil
}

func (r *registrationRepository) CountByEvent(_ context.Context, eventID string, filter domain.RegistrationFilter) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matching(eventID, filter)), nil
}

func (r *registrationRepository) CountsByEvent(_ context.Context, eventID string) (*domain.AttendanceCounts, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := &domain.AttendanceCounts{}
	for _, reg := range r.byID {
		if reg.EventID != eventID {
			continue
		}
		c.Total++
		switch reg.Status {
		case domain.StatusPending:
			c.Pending++
		case domain.StatusApproved:
			c.Approved++
		case domain.StatusRejected:
			c.Rejected++
		}
		if reg.CheckedInAt != nil {
			c.CheckedIn++
		}
	}
	return c, nil
}

// transition applies t under the write lock so that only one caller can move
// a registration out of a given status.
func (r *registrationRepository) transition(id string, t domain.Transition, apply func(*domain.Registration)) (*domain.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	next, err := domain.NextStatus(reg.Status, t)
	if err != nil {
		return nil, err
	}
	reg.Status = next
	if apply != nil {
		apply(reg)
	}
	return clone(reg), nil
}

func (r *registrationRepository) SetApproved(_ context.Context, id, qrCode string) (*domain.Registration, error) {
	return r.transition(id, domain.TransitionApprove, func(reg *domain.Registration) {
		reg.QRCode = qrCode
	})
}

func (r *registrationRepository) SetRejected(_ context.Context, id string) (*domain.Registration, error) {
	return r.transition(id, domain.TransitionReject, nil)
}

func (r *registrationRepository) MarkCheckedIn(_ context.Context, id string, at time.Time) (*domain.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if err := domain.CheckInAllowed(reg); err != nil {
		return nil, err
	}
	t := at
	reg.CheckedInAt = &t
	return clone(reg), nil
}
