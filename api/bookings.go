package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinicore/scheduling/internal/domain"
	"github.com/clinicore/scheduling/internal/service/booking"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

type createBookingRequest struct {
	HoldID                 uuid.UUID            `json:"hold_id" binding:"required"`
	Source                 string               `json:"source" binding:"required"`
	Timezone               string               `json:"timezone" binding:"required"`
	LateToleranceMinutes   *int                 `json:"late_tolerance_minutes"`
	RecurrenceSeriesID     *uuid.UUID           `json:"recurrence_series_id"`
	PricingSplit           *domain.PricingSplit `json:"pricing_split"`
	PreconditionsPassed    bool                 `json:"preconditions_passed"`
	AnamneseRequired       bool                 `json:"anamnese_required"`
	AnamneseOverrideReason *string              `json:"anamnese_override_reason"`
	RequestedAt            *time.Time           `json:"requested_at"`
}

type confirmBookingRequest struct {
	HoldID        uuid.UUID  `json:"hold_id" binding:"required"`
	PaymentStatus string     `json:"payment_status" binding:"required"`
	ConfirmedAt   *time.Time `json:"confirmed_at"`
}

type rescheduleBookingRequest struct {
	ExpectedVersion int64     `json:"expected_version" binding:"required"`
	NewStartAt      time.Time `json:"new_start_at" binding:"required"`
	NewEndAt        time.Time `json:"new_end_at" binding:"required"`
	Reason          *string   `json:"reason"`
}

type cancelBookingRequest struct {
	ExpectedVersion int64      `json:"expected_version" binding:"required"`
	Reason          *string    `json:"reason"`
	CancelledBy     string     `json:"cancelled_by"`
	CancelledAt     *time.Time `json:"cancelled_at"`
}

type paymentStatusRequest struct {
	ExpectedVersion int64  `json:"expected_version" binding:"required"`
	PaymentStatus   string `json:"payment_status" binding:"required"`
}

type noShowRequest struct {
	ExpectedVersion int64     `json:"expected_version" binding:"required"`
	MarkedAt        time.Time `json:"marked_at" binding:"required"`
}

type bookingResponse struct {
	ID                   uuid.UUID  `json:"id"`
	ClinicID             uuid.UUID  `json:"clinic_id"`
	ProfessionalID       uuid.UUID  `json:"professional_id"`
	PatientID            uuid.UUID  `json:"patient_id"`
	Source               string     `json:"source"`
	Status               string     `json:"status"`
	PaymentStatus        string     `json:"payment_status"`
	HoldID               uuid.UUID  `json:"hold_id"`
	StartAt              time.Time  `json:"start_at"`
	EndAt                time.Time  `json:"end_at"`
	Timezone             string     `json:"timezone"`
	LateToleranceMinutes int        `json:"late_tolerance_minutes"`
	RecurrenceSeriesID   *uuid.UUID `json:"recurrence_series_id,omitempty"`
	CancellationReason   *string    `json:"cancellation_reason,omitempty"`
	NoShowMarkedAt       *time.Time `json:"no_show_marked_at,omitempty"`
	Version              int64      `json:"version"`
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.create)
	router.GET("/:id", h.get)
	router.POST("/:id/confirm", h.confirm)
	router.POST("/:id/reschedule", h.reschedule)
	router.DELETE("/:id", h.cancel)
	router.POST("/:id/no-show", h.noShow)
	router.PUT("/:id/payment-status", h.paymentStatus)
}

// RegisterSchedule exposes the professional day view used by clinic
// front desks.
func (h *BookingHandler) RegisterSchedule(router *gin.RouterGroup) {
	router.GET("/:id/schedule", h.professionalDay)
}

func (h *BookingHandler) create(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.service.CreateBooking(c.Request.Context(), booking.CreateBookingInput{
		TenantID:               tenant,
		HoldID:                 req.HoldID,
		Source:                 req.Source,
		Timezone:               req.Timezone,
		LateToleranceMinutes:   req.LateToleranceMinutes,
		RecurrenceSeriesID:     req.RecurrenceSeriesID,
		PricingSplit:           req.PricingSplit,
		PreconditionsPassed:    req.PreconditionsPassed,
		AnamneseRequired:       req.AnamneseRequired,
		AnamneseOverrideReason: req.AnamneseOverrideReason,
		RequestedAt:            req.RequestedAt,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toBookingResponse(created))
}

func (h *BookingHandler) get(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}

	found, err := h.service.GetBooking(c.Request.Context(), tenant, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(found))
}

func (h *BookingHandler) confirm(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}
	var req confirmBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	confirmed, err := h.service.ConfirmBooking(c.Request.Context(), booking.ConfirmBookingInput{
		TenantID:      tenant,
		BookingID:     id,
		HoldID:        req.HoldID,
		PaymentStatus: domain.PaymentStatus(req.PaymentStatus),
		ConfirmedAt:   req.ConfirmedAt,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(confirmed))
}

func (h *BookingHandler) reschedule(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}
	var req rescheduleBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.service.RescheduleBooking(c.Request.Context(), booking.RescheduleBookingInput{
		TenantID:        tenant,
		BookingID:       id,
		ExpectedVersion: req.ExpectedVersion,
		NewStartAt:      req.NewStartAt,
		NewEndAt:        req.NewEndAt,
		Reason:          req.Reason,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(updated))
}

func (h *BookingHandler) cancel(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}
	var req cancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cancelled, err := h.service.CancelBooking(c.Request.Context(), booking.CancelBookingInput{
		TenantID:        tenant,
		BookingID:       id,
		ExpectedVersion: req.ExpectedVersion,
		Reason:          req.Reason,
		CancelledBy:     req.CancelledBy,
		CancelledAt:     req.CancelledAt,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(cancelled))
}

func (h *BookingHandler) noShow(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}
	var req noShowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.service.MarkBookingNoShow(c.Request.Context(), booking.MarkNoShowInput{
		TenantID:        tenant,
		BookingID:       id,
		ExpectedVersion: req.ExpectedVersion,
		MarkedAt:        req.MarkedAt,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(updated))
}

func (h *BookingHandler) paymentStatus(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}
	var req paymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.service.RecordPaymentStatus(c.Request.Context(), booking.RecordPaymentStatusInput{
		TenantID:        tenant,
		BookingID:       id,
		ExpectedVersion: req.ExpectedVersion,
		PaymentStatus:   domain.PaymentStatus(req.PaymentStatus),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(updated))
}

func (h *BookingHandler) professionalDay(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	professionalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid professional id"})
		return
	}
	day, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	bookings, err := h.service.ListProfessionalDay(c.Request.Context(), tenant, professionalID, day)
	if err != nil {
		writeError(c, err)
		return
	}

	response := make([]bookingResponse, 0, len(bookings))
	for i := range bookings {
		response = append(response, toBookingResponse(&bookings[i]))
	}
	c.JSON(http.StatusOK, response)
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	return bookingResponse{
		ID:                   b.ID,
		ClinicID:             b.ClinicID,
		ProfessionalID:       b.ProfessionalID,
		PatientID:            b.PatientID,
		Source:               b.Source,
		Status:               string(b.Status),
		PaymentStatus:        string(b.PaymentStatus),
		HoldID:               b.HoldID,
		StartAt:              b.StartAt,
		EndAt:                b.EndAt,
		Timezone:             b.Timezone,
		LateToleranceMinutes: b.LateToleranceMinutes,
		RecurrenceSeriesID:   b.RecurrenceSeriesID,
		CancellationReason:   b.CancellationReason,
		NoShowMarkedAt:       b.NoShowMarkedAt,
		Version:              b.Version,
	}
}
