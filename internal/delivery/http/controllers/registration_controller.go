package controllers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"eventcheckin/internal/delivery/http/helpers"
	"eventcheckin/internal/domain"
)

type RegistrationController struct {
	Logger  *slog.Logger
	Service domain.RegistrationService
}

func NewRegistrationController(logger *slog.Logger, svc domain.RegistrationService) *RegistrationController {
	return &RegistrationController{
		Logger:  logger,
		Service: svc,
	}
}

// RegistrationSuccessResponse is the success envelope for endpoints returning one registration.
type RegistrationSuccessResponse struct {
	Data  *domain.Registration `json:"data"`
	Error *helpers.APIError    `json:"error"`
}

// SubmitRegistrationRequest is the request body for POST /events/{eventID}/registrations.
type SubmitRegistrationRequest struct {
	FullName                 string `json:"full_name"`
	Email                    string `json:"email"`
	Phone                    string `json:"phone"`
	Age                      int    `json:"age"`
	HeardAbout               string `json:"heard_about"`
	WantsFutureNotifications bool   `json:"wants_future_notifications"`
}

func (r *SubmitRegistrationRequest) input() domain.RegistrationInput {
	return domain.RegistrationInput{
		FullName:                 r.FullName,
		Email:                    r.Email,
		Phone:                    r.Phone,
		Age:                      r.Age,
		HeardAbout:               r.HeardAbout,
		WantsFutureNotifications: r.WantsFutureNotifications,
	}
}

// Validate implements helpers.Validator.
func (r *SubmitRegistrationRequest) Validate() []string {
	return r.input().Validate()
}

// Submit godoc
// @Summary Register for an event
// @Description Public registration form. Creates a pending registration; no QR code is issued until an organizer approves it. Emails are compared case-insensitively.
// @Tags registrations
// @Accept json
// @Produce json
// @Param eventID path string true "Event ID (UUID)"
// @Param body body controllers.SubmitRegistrationRequest true "Attendee details"
// @Success 201 {object} controllers.RegistrationSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: validation_failed, registration_closed"
// @Failure 404 {object} helpers.APIResponse "error.code: event_not_available"
// @Failure 409 {object} helpers.APIResponse "error.code: already_registered"
// @Failure 429 {object} helpers.APIResponse "error.code: too_many_requests"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/registrations [post]
func (c *RegistrationController) Submit(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	if eventID == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "missing eventID")
		return
	}
	var req SubmitRegistrationRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}

	reg, err := c.Service.Submit(r.Context(), eventID, req.input())
	if err != nil {
		helpers.WriteDomainError(w, r, c.Logger, err)
		return
	}
	reg.QRCode = ""
	helpers.WriteJSONSuccess(w, http.StatusCreated, reg)
}

// ListRegistrationsResponse is the data payload for GET /events/{eventID}/registrations (200).
type ListRegistrationsResponse struct {
	Items      []*domain.Registration `json:"items"`
	Pagination helpers.PaginationMeta `json:"pagination"`
}

// ListRegistrationsSuccessResponse is the success response envelope for GET /events/{eventID}/registrations (200).
type ListRegistrationsSuccessResponse struct {
	Data  ListRegistrationsResponse `json:"data"`
	Error *helpers.APIError         `json:"error"`
}

// ListByEvent godoc
// @Summary List registrations for an event
// @Description Returns registrations newest first. Filter by status and by check-in state. Requires authentication.
// @Tags registrations
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Param status query string false "pending, approved or rejected"
// @Param checked_in query bool false "Only checked-in (true) or not yet checked-in (false) attendees"
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 50, max 200)"
// @Success 200 {object} controllers.ListRegistrationsSuccessResponse "data contains items and pagination"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/registrations [get]
func (c *RegistrationController) ListByEvent(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	if eventID == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "missing eventID")
		return
	}

	var filter domain.RegistrationFilter
	q := r.URL.Query()
	if s := q.Get("status"); s != "" {
		status, err := domain.ParseRegistrationStatus(s)
		if err != nil {
			helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "status must be pending, approved or rejected")
			return
		}
		filter.Status = &status
	}
	if s := q.Get("checked_in"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "checked_in must be true or false")
			return
		}
		filter.CheckedIn = &v
	}

	params := helpers.ParsePagination(r)
	list, total, err := c.Service.ListByEvent(r.Context(), eventID, filter, params)
	if err != nil {
		helpers.WriteDomainError(w, r, c.Logger, err)
		return
	}
	if list == nil {
		list = []*domain.Registration{}
	}
	meta := helpers.NewPaginationMeta(params.Page, params.PageSize, total)
	helpers.WriteJSONSuccess(w, http.StatusOK, ListRegistrationsResponse{Items: list, Pagination: meta})
}

// GetByID godoc
// @Summary Get a registration
// @Tags registrations
// @Produce json
// @Security BearerAuth
// @Param registrationID path string true "Registration ID (UUID)"
// @Success 200 {object} controllers.RegistrationSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /registrations/{registrationID} [get]
func (c *RegistrationController) GetByID(w http.ResponseWriter, r *http.Request) {
	c.withRegistrationID(w, r, c.Service.GetByID)
}

// Approve godoc
// @Summary Approve a registration
// @Description Issues a signed QR ticket, stores it on the registration and queues the confirmation email. Rejected registrations may be re-approved.
// @Tags registrations
// @Produce json
// @Security BearerAuth
// @Param registrationID path string true "Registration ID (UUID)"
// @Success 200 {object} controllers.RegistrationSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: already_approved"
// @Failure 500 {object} helpers.APIResponse "error.code: qr_generation_failed, internal_error"
// @Router /registrations/{registrationID}/approve [put]
func (c *RegistrationController) Approve(w http.ResponseWriter, r *http.Request) {
	c.withRegistrationID(w, r, c.Service.Approve)
}

// Reject godoc
// @Summary Reject a pending registration
// @Tags registrations
// @Produce json
// @Security BearerAuth
// @Param registrationID path string true "Registration ID (UUID)"
// @Success 200 {object} controllers.RegistrationSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: invalid_transition"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /registrations/{registrationID}/reject [put]
func (c *RegistrationController) Reject(w http.ResponseWriter, r *http.Request) {
	c.withRegistrationID(w, r, c.Service.Reject)
}

func (c *RegistrationController) withRegistrationID(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id string) (*domain.Registration, error)) {
	id := r.PathValue("registrationID")
	if id == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "missing registrationID")
		return
	}
	reg, err := op(r.Context(), id)
	if err != nil {
		helpers.WriteDomainError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, reg)
}

// CheckInRequest is the request body for POST /check-ins.
type CheckInRequest struct {
	QRToken string `json:"qr_token"`
}

// Validate implements helpers.Validator.
func (r *CheckInRequest) Validate() []string {
	if r.QRToken == "" {
		return []string{"qr_token is required"}
	}
	return nil
}

// CheckInResponse is what the door operator sees after a scan.
type CheckInResponse struct {
	RegistrationID string                    `json:"registration_id"`
	FullName       string                    `json:"full_name"`
	Email          string                    `json:"email"`
	Status         domain.RegistrationStatus `json:"status"`
	CheckedInAt    *time.Time                `json:"checked_in_at"`
}

// CheckInSuccessResponse is the success envelope for POST /check-ins (200).
type CheckInSuccessResponse struct {
	Data  CheckInResponse   `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// CheckIn godoc
// @Summary Check in an attendee by QR token
// @Description Redeems the token embedded in an approval QR code. A second scan of the same code fails with already_checked_in. Forged and expired codes are reported identically.
// @Tags check-in
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body controllers.CheckInRequest true "Scanned token"
// @Success 200 {object} controllers.CheckInSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: validation_failed, not_approved"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized, invalid_qr_code"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: already_checked_in"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /check-ins [post]
func (c *RegistrationController) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req CheckInRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	reg, err := c.Service.CheckIn(r.Context(), req.QRToken)
	if err != nil {
		helpers.WriteDomainError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, CheckInResponse{
		RegistrationID: reg.ID,
		FullName:       reg.FullName,
		Email:          reg.Email,
		Status:         reg.Status,
		CheckedInAt:    reg.CheckedInAt,
	})
}
