package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventcheckin/internal/adapters/auth"
	"eventcheckin/internal/adapters/qrcode"
	"eventcheckin/internal/clock"
	"eventcheckin/internal/domain"
	"eventcheckin/internal/queue"
	"eventcheckin/internal/repository/memory"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

const eventID = "ev-1"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingCodec remembers the last token issued so tests can scan it.
type recordingCodec struct {
	domain.TicketCodec
	mu   sync.Mutex
	last string
}

func (c *recordingCodec) Issue(registrationID, eventID, email string) (string, error) {
	token, err := c.TicketCodec.Issue(registrationID, eventID, email)
	c.mu.Lock()
	c.last = token
	c.mu.Unlock()
	return token, err
}

func (c *recordingCodec) lastToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.RegistrationEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev domain.RegistrationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type failingEncoder struct{}

func (failingEncoder) Encode(string) (string, error) {
	return "", domain.ErrEncoding
}

type failingQueue struct{}

func (failingQueue) EnqueueApproval(context.Context, domain.ApprovalNotification) error {
	return errors.New("redis: connection refused")
}

type fixture struct {
	svc       domain.RegistrationService
	stats     domain.AttendanceService
	events    *memory.EventRepository
	regs      domain.RegistrationRepository
	queue     *queue.MemoryQueue
	codec     *recordingCodec
	publisher *recordingPublisher
	clock     *clock.Manual
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	encoder       domain.QREncoder
	notifications domain.NotificationQueue
}

func withEncoder(e domain.QREncoder) fixtureOption {
	return func(c *fixtureConfig) { c.encoder = e }
}

func withNotifications(q domain.NotificationQueue) fixtureOption {
	return func(c *fixtureConfig) { c.notifications = q }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	clk := clock.NewManual(now)
	codec, err := auth.NewTicketCodec("test-ticket-secret", auth.DefaultTicketTTL, clk)
	require.NoError(t, err)

	f := &fixture{
		events:    memory.NewEventRepository(),
		regs:      memory.NewRegistrationRepository(),
		queue:     queue.NewMemoryQueue(64, discardLogger()),
		codec:     &recordingCodec{TicketCodec: codec},
		publisher: &recordingPublisher{},
		clock:     clk,
	}
	cfg := &fixtureConfig{encoder: qrcode.NewEncoder(qrcode.DefaultSize), notifications: f.queue}
	for _, opt := range opts {
		opt(cfg)
	}

	deadline := now.Add(24 * time.Hour)
	f.events.Put(&domain.Event{
		ID:                   eventID,
		Title:                "GopherCon",
		Status:               domain.EventStatusPublished,
		StartDate:            now.Add(48 * time.Hour),
		EndDate:              now.Add(56 * time.Hour),
		RegistrationDeadline: &deadline,
	})
	f.svc = NewRegistrationService(f.events, f.regs, f.codec, cfg.encoder, cfg.notifications, f.publisher, clk, discardLogger())
	f.stats = NewAttendanceService(f.events, f.regs)
	return f
}

func input(email string) domain.RegistrationInput {
	return domain.RegistrationInput{
		FullName: "Ada Lovelace",
		Email:    email,
		Phone:    "555-0100",
		Age:      36,
	}
}

func (f *fixture) submit(t *testing.T, email string) *domain.Registration {
	t.Helper()
	reg, err := f.svc.Submit(context.Background(), eventID, input(email))
	require.NoError(t, err)
	return reg
}

func TestRegistrationService_Submit(t *testing.T) {
	f := newFixture(t)

	reg, err := f.svc.Submit(context.Background(), eventID, input("  Ada@Example.COM "))
	require.NoError(t, err)
	assert.NotEmpty(t, reg.ID)
	assert.Equal(t, "ada@example.com", reg.Email)
	assert.Equal(t, domain.StatusPending, reg.Status)
	assert.Equal(t, domain.DefaultHeardAbout, reg.HeardAbout)
	assert.Empty(t, reg.QRCode)
	assert.Nil(t, reg.CheckedInAt)
	assert.True(t, reg.SubmittedAt.Equal(now))
	assert.Equal(t, []string{domain.EventRegistrationSubmitted}, f.publisher.types())
	assert.Zero(t, f.queue.Len())
}

func TestRegistrationService_SubmitRejections(t *testing.T) {
	past := now.Add(-time.Minute)
	exactlyNow := now

	tests := []struct {
		name    string
		event   *domain.Event
		eventID string
		input   domain.RegistrationInput
		wantErr error
	}{
		{
			name:    "missing fields",
			eventID: eventID,
			input:   domain.RegistrationInput{Email: "nope"},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "unknown event",
			eventID: "missing",
			input:   input("a@x.com"),
			wantErr: domain.ErrEventNotAvailable,
		},
		{
			name:    "draft event",
			event:   &domain.Event{ID: "draft", Status: domain.EventStatusDraft},
			eventID: "draft",
			input:   input("a@x.com"),
			wantErr: domain.ErrEventNotAvailable,
		},
		{
			name:    "completed event",
			event:   &domain.Event{ID: "done", Status: domain.EventStatusCompleted},
			eventID: "done",
			input:   input("a@x.com"),
			wantErr: domain.ErrEventNotAvailable,
		},
		{
			name:    "deadline passed",
			event:   &domain.Event{ID: "late", Status: domain.EventStatusPublished, RegistrationDeadline: &past},
			eventID: "late",
			input:   input("a@x.com"),
			wantErr: domain.ErrDeadlinePassed,
		},
		{
			name:    "deadline is now",
			event:   &domain.Event{ID: "edge", Status: domain.EventStatusPublished, RegistrationDeadline: &exactlyNow},
			eventID: "edge",
			input:   input("a@x.com"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.event != nil {
				f.events.Put(tt.event)
			}
			_, err := f.svc.Submit(context.Background(), tt.eventID, tt.input)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
			n, cerr := f.regs.CountByEvent(context.Background(), tt.eventID, domain.RegistrationFilter{})
			require.NoError(t, cerr)
			assert.Zero(t, n)
		})
	}
}

func TestRegistrationService_SubmitValidationFields(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Submit(context.Background(), eventID, domain.RegistrationInput{})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "full_name is required")
	assert.Contains(t, verr.Fields, "age is required and must be positive")
}

func TestRegistrationService_SubmitDuplicate(t *testing.T) {
	f := newFixture(t)
	f.submit(t, "a@x.com")

	_, err := f.svc.Submit(context.Background(), eventID, input(" A@X.com"))
	require.ErrorIs(t, err, domain.ErrAlreadyRegistered)
}

func TestRegistrationService_ConcurrentSubmit(t *testing.T) {
	f := newFixture(t)
	const workers = 16

	var wg sync.WaitGroup
	var created, duplicates atomic.Int32
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Submit(context.Background(), eventID, input("race@x.com"))
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, domain.ErrAlreadyRegistered):
				duplicates.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, created.Load())
	assert.EqualValues(t, workers-1, duplicates.Load())
}

func TestRegistrationService_StateMachine(t *testing.T) {
	type step struct {
		action  string
		wantErr error
		want    domain.RegistrationStatus
	}
	tests := []struct {
		name  string
		steps []step
	}{
		{"pending to approved", []step{{"approve", nil, domain.StatusApproved}}},
		{"pending to rejected", []step{{"reject", nil, domain.StatusRejected}}},
		{"rejected to approved", []step{
			{"reject", nil, domain.StatusRejected},
			{"approve", nil, domain.StatusApproved},
		}},
		{"approve twice", []step{
			{"approve", nil, domain.StatusApproved},
			{"approve", domain.ErrAlreadyApproved, domain.StatusApproved},
		}},
		{"reject twice", []step{
			{"reject", nil, domain.StatusRejected},
			{"reject", domain.ErrInvalidTransition, domain.StatusRejected},
		}},
		{"reject after approve", []step{
			{"approve", nil, domain.StatusApproved},
			{"reject", domain.ErrInvalidTransition, domain.StatusApproved},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			reg := f.submit(t, "a@x.com")

			for _, st := range tt.steps {
				var err error
				switch st.action {
				case "approve":
					_, err = f.svc.Approve(ctx, reg.ID)
				case "reject":
					_, err = f.svc.Reject(ctx, reg.ID)
				}
				if st.wantErr != nil {
					require.ErrorIs(t, err, st.wantErr)
				} else {
					require.NoError(t, err)
				}
				got, err := f.svc.GetByID(ctx, reg.ID)
				require.NoError(t, err)
				assert.Equal(t, st.want, got.Status)
			}
		})
	}
}

func TestRegistrationService_Approve(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	reg := f.submit(t, "a@x.com")

	approved, err := f.svc.Approve(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, approved.Status)
	assert.True(t, strings.HasPrefix(approved.QRCode, "data:image/png;base64,"))

	claims, err := f.codec.Verify(f.codec.lastToken())
	require.NoError(t, err)
	assert.Equal(t, reg.ID, claims.RegistrationID)
	assert.Equal(t, eventID, claims.EventID)
	assert.Equal(t, "a@x.com", claims.Email)

	require.Equal(t, 1, f.queue.Len())
	job, err := f.queue.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, queue.JobTypeApprovalEmail, job.Type)
	assert.JSONEq(t, `{"registration_id":"`+reg.ID+`","event_id":"ev-1"}`, string(job.Payload))

	assert.Equal(t, []string{domain.EventRegistrationSubmitted, domain.EventRegistrationApproved}, f.publisher.types())
}

func TestRegistrationService_EmailLengthBoundary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	longest := strings.Repeat("a", domain.MaxEmailLength-len("@x.com")) + "@x.com"
	require.Len(t, longest, domain.MaxEmailLength)
	reg := f.submit(t, longest)

	approved, err := f.svc.Approve(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, approved.Status)
	assert.NotEmpty(t, approved.QRCode)

	claims, err := f.codec.Verify(f.codec.lastToken())
	require.NoError(t, err)
	assert.Equal(t, longest, claims.Email)

	_, err = f.svc.Submit(ctx, eventID, input("b"+longest))
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"email must be at most 254 characters"}, verr.Fields)
}

func TestRegistrationService_ApproveUnknown(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Approve(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.Reject(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRegistrationService_ApproveEncodingFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, withEncoder(failingEncoder{}))
	reg := f.submit(t, "a@x.com")

	_, err := f.svc.Approve(ctx, reg.ID)
	require.ErrorIs(t, err, domain.ErrEncoding)

	got, err := f.svc.GetByID(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Empty(t, got.QRCode)
}

func TestRegistrationService_ApproveNotificationFailureKeepsApproval(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, withNotifications(failingQueue{}))
	reg := f.submit(t, "a@x.com")

	approved, err := f.svc.Approve(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, approved.Status)
}

func TestRegistrationService_PublisherFailureIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("amqp: channel closed")

	reg := f.submit(t, "a@x.com")
	_, err := f.svc.Approve(context.Background(), reg.ID)
	require.NoError(t, err)
}

func TestRegistrationService_CheckIn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	reg := f.submit(t, "a@x.com")
	_, err := f.svc.Approve(ctx, reg.ID)
	require.NoError(t, err)
	token := f.codec.lastToken()

	f.clock.Advance(72 * time.Hour)
	first, err := f.svc.CheckIn(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, first.CheckedInAt)
	assert.True(t, first.CheckedInAt.Equal(f.clock.Now()))
	assert.Equal(t, "a@x.com", first.Email)

	f.clock.Advance(time.Minute)
	_, err = f.svc.CheckIn(ctx, token)
	require.ErrorIs(t, err, domain.ErrAlreadyCheckedIn)

	got, err := f.svc.GetByID(ctx, reg.ID)
	require.NoError(t, err)
	assert.True(t, got.CheckedInAt.Equal(*first.CheckedInAt))
}

func TestRegistrationService_CheckInRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("garbage token", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CheckIn(ctx, "not-a-token")
		require.ErrorIs(t, err, domain.ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		f := newFixture(t)
		reg := f.submit(t, "a@x.com")
		_, err := f.svc.Approve(ctx, reg.ID)
		require.NoError(t, err)

		f.clock.Advance(auth.DefaultTicketTTL + time.Second)
		_, err = f.svc.CheckIn(ctx, f.codec.lastToken())
		require.ErrorIs(t, err, domain.ErrExpiredToken)
	})

	t.Run("token for pending registration", func(t *testing.T) {
		f := newFixture(t)
		reg := f.submit(t, "a@x.com")
		token, err := f.codec.Issue(reg.ID, eventID, reg.Email)
		require.NoError(t, err)

		_, err = f.svc.CheckIn(ctx, token)
		require.ErrorIs(t, err, domain.ErrNotApproved)
	})

	t.Run("token for rejected registration", func(t *testing.T) {
		f := newFixture(t)
		reg := f.submit(t, "a@x.com")
		token, err := f.codec.Issue(reg.ID, eventID, reg.Email)
		require.NoError(t, err)
		_, err = f.svc.Reject(ctx, reg.ID)
		require.NoError(t, err)

		_, err = f.svc.CheckIn(ctx, token)
		require.ErrorIs(t, err, domain.ErrNotApproved)
	})

	t.Run("token for unknown registration", func(t *testing.T) {
		f := newFixture(t)
		token, err := f.codec.Issue("ghost", eventID, "ghost@x.com")
		require.NoError(t, err)

		_, err = f.svc.CheckIn(ctx, token)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestRegistrationService_ConcurrentCheckIn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	reg := f.submit(t, "a@x.com")
	_, err := f.svc.Approve(ctx, reg.ID)
	require.NoError(t, err)
	token := f.codec.lastToken()

	const scanners = 16
	var wg sync.WaitGroup
	var ok, already atomic.Int32
	for i := 0; i < scanners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CheckIn(ctx, token)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrAlreadyCheckedIn):
				already.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, ok.Load())
	assert.EqualValues(t, scanners-1, already.Load())
}

func TestRegistrationService_ListByEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		f.submit(t, email)
		f.clock.Advance(time.Minute)
	}

	regs, total, err := f.svc.ListByEvent(ctx, eventID, domain.RegistrationFilter{}, domain.PaginationParams{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, regs, 2)
	assert.Equal(t, "c@x.com", regs[0].Email)
	assert.Equal(t, "b@x.com", regs[1].Email)

	pending := domain.StatusPending
	regs, total, err = f.svc.ListByEvent(ctx, eventID, domain.RegistrationFilter{Status: &pending}, domain.PaginationParams{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, regs, 3)

	_, _, err = f.svc.ListByEvent(ctx, "missing", domain.RegistrationFilter{}, domain.PaginationParams{})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEndToEnd_SubmitApproveCheckIn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	reg := f.submit(t, "a@x.com")
	_, err := f.svc.Approve(ctx, reg.ID)
	require.NoError(t, err)
	token := f.codec.lastToken()

	_, err = f.svc.CheckIn(ctx, token)
	require.NoError(t, err)
	_, err = f.svc.CheckIn(ctx, token)
	require.ErrorIs(t, err, domain.ErrAlreadyCheckedIn)

	stats, err := f.stats.Stats(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Approved)
	assert.Equal(t, 1, stats.CheckedIn)
	assert.Equal(t, "100.00%", stats.AttendanceRate)
	assert.Equal(t, []string{
		domain.EventRegistrationSubmitted,
		domain.EventRegistrationApproved,
		domain.EventRegistrationCheckedIn,
	}, f.publisher.types())
}
