package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventcheckin/internal/delivery/http/helpers"
	"eventcheckin/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeRegistrationService struct {
	reg   *domain.Registration
	list  []*domain.Registration
	total int
	err   error

	lastEventID string
	lastInput   domain.RegistrationInput
	lastFilter  domain.RegistrationFilter
	lastParams  domain.PaginationParams
	lastID      string
	lastToken   string
}

func (f *fakeRegistrationService) Submit(_ context.Context, eventID string, in domain.RegistrationInput) (*domain.Registration, error) {
	f.lastEventID, f.lastInput = eventID, in
	return f.reg, f.err
}

func (f *fakeRegistrationService) ListByEvent(_ context.Context, eventID string, filter domain.RegistrationFilter, page domain.PaginationParams) ([]*domain.Registration, int, error) {
	f.lastEventID, f.lastFilter, f.lastParams = eventID, filter, page
	return f.list, f.total, f.err
}

func (f *fakeRegistrationService) GetByID(_ context.Context, id string) (*domain.Registration, error) {
	f.lastID = id
	return f.reg, f.err
}

func (f *fakeRegistrationService) Approve(_ context.Context, id string) (*domain.Registration, error) {
	f.lastID = id
	return f.reg, f.err
}

func (f *fakeRegistrationService) Reject(_ context.Context, id string) (*domain.Registration, error) {
	f.lastID = id
	return f.reg, f.err
}

func (f *fakeRegistrationService) CheckIn(_ context.Context, token string) (*domain.Registration, error) {
	f.lastToken = token
	return f.reg, f.err
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) *helpers.APIError {
	t.Helper()
	var envelope helpers.APIResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&envelope))
	require.NotNil(t, envelope.Error)
	return envelope.Error
}

const validSubmitBody = `{"full_name":"Ada Lovelace","email":"Ada@Example.com","phone":"555-0100","age":36}`

func TestRegistrationController_Submit(t *testing.T) {
	submitted := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		body       string
		fakeReg    *domain.Registration
		fakeErr    error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "created",
			body:       validSubmitBody,
			fakeReg:    &domain.Registration{ID: "reg-1", EventID: "ev-1", Email: "ada@example.com", Status: domain.StatusPending, SubmittedAt: submitted},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "malformed json",
			body:       `{"full_name":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   helpers.ErrCodeBadRequest,
		},
		{
			name:       "unknown field",
			body:       `{"full_name":"A","email":"a@x.com","phone":"1","age":3,"role":"admin"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   helpers.ErrCodeBadRequest,
		},
		{
			name:       "missing required fields",
			body:       `{"email":"a@x.com"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   helpers.ErrCodeValidation,
		},
		{
			name:       "event not accepting",
			body:       validSubmitBody,
			fakeErr:    domain.ErrEventNotAvailable,
			wantStatus: http.StatusNotFound,
			wantCode:   helpers.ErrCodeEventNotAvailable,
		},
		{
			name:       "deadline passed",
			body:       validSubmitBody,
			fakeErr:    domain.ErrDeadlinePassed,
			wantStatus: http.StatusBadRequest,
			wantCode:   helpers.ErrCodeDeadlinePassed,
		},
		{
			name:       "already registered",
			body:       validSubmitBody,
			fakeErr:    domain.ErrAlreadyRegistered,
			wantStatus: http.StatusConflict,
			wantCode:   helpers.ErrCodeAlreadyRegistered,
		},
		{
			name:       "storage failure is not leaked",
			body:       validSubmitBody,
			fakeErr:    errors.New("pq: connection reset by peer"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   helpers.ErrCodeInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeRegistrationService{reg: tt.fakeReg, err: tt.fakeErr}
			ctrl := NewRegistrationController(testLogger(), fake)

			req := httptest.NewRequest(http.MethodPost, "/events/ev-1/registrations", strings.NewReader(tt.body))
			req.SetPathValue("eventID", "ev-1")
			rr := httptest.NewRecorder()
			ctrl.Submit(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantCode != "" {
				apiErr := decodeError(t, rr)
				assert.Equal(t, tt.wantCode, apiErr.Code)
				assert.NotContains(t, apiErr.Message, "pq:")
				return
			}
			assert.Equal(t, "ev-1", fake.lastEventID)
			assert.Equal(t, "Ada@Example.com", fake.lastInput.Email)
			assert.NotContains(t, rr.Body.String(), "qr_code")
		})
	}
}

func TestRegistrationController_ListByEvent(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		fakeErr    error
		wantStatus int
		check      func(t *testing.T, fake *fakeRegistrationService, data ListRegistrationsResponse)
	}{
		{
			name:       "defaults",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, fake *fakeRegistrationService, data ListRegistrationsResponse) {
				assert.Nil(t, fake.lastFilter.Status)
				assert.Nil(t, fake.lastFilter.CheckedIn)
				assert.Equal(t, 1, fake.lastParams.Page)
				assert.Equal(t, domain.DefaultRegistrationPageSize, fake.lastParams.PageSize)
				require.Len(t, data.Items, 2)
				assert.Equal(t, 2, data.Pagination.Total)
				assert.Equal(t, 1, data.Pagination.TotalPages)
			},
		},
		{
			name:       "status and checked_in filters",
			query:      "?status=approved&checked_in=false&page=2&page_size=1",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, fake *fakeRegistrationService, data ListRegistrationsResponse) {
				require.NotNil(t, fake.lastFilter.Status)
				assert.Equal(t, domain.StatusApproved, *fake.lastFilter.Status)
				require.NotNil(t, fake.lastFilter.CheckedIn)
				assert.False(t, *fake.lastFilter.CheckedIn)
				assert.Equal(t, 2, fake.lastParams.Page)
				assert.Equal(t, 1, fake.lastParams.PageSize)
				assert.Equal(t, 2, data.Pagination.TotalPages)
			},
		},
		{
			name:       "bad status",
			query:      "?status=waitlisted",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad checked_in",
			query:      "?checked_in=maybe",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown event",
			fakeErr:    domain.ErrNotFound,
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeRegistrationService{
				list:  []*domain.Registration{{ID: "reg-2"}, {ID: "reg-1"}},
				total: 2,
				err:   tt.fakeErr,
			}
			ctrl := NewRegistrationController(testLogger(), fake)

			req := httptest.NewRequest(http.MethodGet, "/events/ev-1/registrations"+tt.query, nil)
			req.SetPathValue("eventID", "ev-1")
			rr := httptest.NewRecorder()
			ctrl.ListByEvent(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code)
			if tt.check == nil {
				return
			}
			var envelope struct {
				Data ListRegistrationsResponse `json:"data"`
			}
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&envelope))
			tt.check(t, fake, envelope.Data)
		})
	}
}

func TestRegistrationController_Transitions(t *testing.T) {
	approved := &domain.Registration{ID: "reg-1", Status: domain.StatusApproved, QRCode: "data:image/png;base64,AA=="}

	tests := []struct {
		name       string
		action     string
		fakeErr    error
		wantStatus int
		wantCode   string
	}{
		{name: "get", action: "get", wantStatus: http.StatusOK},
		{name: "get missing", action: "get", fakeErr: domain.ErrNotFound, wantStatus: http.StatusNotFound, wantCode: helpers.ErrCodeNotFound},
		{name: "approve", action: "approve", wantStatus: http.StatusOK},
		{name: "approve twice", action: "approve", fakeErr: domain.ErrAlreadyApproved, wantStatus: http.StatusConflict, wantCode: helpers.ErrCodeAlreadyApproved},
		{name: "approve encoding failure", action: "approve", fakeErr: domain.ErrEncoding, wantStatus: http.StatusInternalServerError, wantCode: helpers.ErrCodeQRGeneration},
		{name: "reject", action: "reject", wantStatus: http.StatusOK},
		{name: "reject approved", action: "reject", fakeErr: domain.ErrInvalidTransition, wantStatus: http.StatusConflict, wantCode: helpers.ErrCodeInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeRegistrationService{reg: approved, err: tt.fakeErr}
			ctrl := NewRegistrationController(testLogger(), fake)

			req := httptest.NewRequest(http.MethodPut, "/registrations/reg-1/"+tt.action, nil)
			req.SetPathValue("registrationID", "reg-1")
			rr := httptest.NewRecorder()
			switch tt.action {
			case "get":
				ctrl.GetByID(rr, req)
			case "approve":
				ctrl.Approve(rr, req)
			case "reject":
				ctrl.Reject(rr, req)
			}

			require.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, "reg-1", fake.lastID)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, rr).Code)
			}
		})
	}
}

func TestRegistrationController_CheckIn(t *testing.T) {
	at := time.Date(2026, 6, 3, 9, 15, 0, 0, time.UTC)

	tests := []struct {
		name        string
		body        string
		fakeErr     error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{name: "success", body: `{"qr_token":"tok"}`, wantStatus: http.StatusOK},
		{name: "missing token", body: `{}`, wantStatus: http.StatusBadRequest, wantCode: helpers.ErrCodeValidation},
		{name: "forged", body: `{"qr_token":"tok"}`, fakeErr: domain.ErrInvalidToken, wantStatus: http.StatusUnauthorized, wantCode: helpers.ErrCodeInvalidQRCode, wantMessage: "invalid or expired QR code"},
		{name: "expired", body: `{"qr_token":"tok"}`, fakeErr: domain.ErrExpiredToken, wantStatus: http.StatusUnauthorized, wantCode: helpers.ErrCodeInvalidQRCode, wantMessage: "invalid or expired QR code"},
		{name: "not approved", body: `{"qr_token":"tok"}`, fakeErr: domain.ErrNotApproved, wantStatus: http.StatusBadRequest, wantCode: helpers.ErrCodeNotApproved},
		{name: "second scan", body: `{"qr_token":"tok"}`, fakeErr: domain.ErrAlreadyCheckedIn, wantStatus: http.StatusConflict, wantCode: helpers.ErrCodeAlreadyCheckedIn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeRegistrationService{
				reg: &domain.Registration{ID: "reg-1", FullName: "Ada Lovelace", Email: "ada@example.com", Status: domain.StatusApproved, CheckedInAt: &at},
				err: tt.fakeErr,
			}
			ctrl := NewRegistrationController(testLogger(), fake)

			req := httptest.NewRequest(http.MethodPost, "/check-ins", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			ctrl.CheckIn(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantCode != "" {
				apiErr := decodeError(t, rr)
				assert.Equal(t, tt.wantCode, apiErr.Code)
				if tt.wantMessage != "" {
					assert.Equal(t, tt.wantMessage, apiErr.Message)
				}
				return
			}
			assert.Equal(t, "tok", fake.lastToken)
			var envelope struct {
				Data CheckInResponse `json:"data"`
			}
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&envelope))
			assert.Equal(t, "ada@example.com", envelope.Data.Email)
			assert.Equal(t, domain.StatusApproved, envelope.Data.Status)
			require.NotNil(t, envelope.Data.CheckedInAt)
			assert.True(t, envelope.Data.CheckedInAt.Equal(at))
		})
	}
}
