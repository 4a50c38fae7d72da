package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinicore/scheduling/internal/domain"
	"github.com/clinicore/scheduling/internal/service/holds"
)

type HoldHandler struct {
	service holds.HoldUseCase
}

type createHoldRequest struct {
	ClinicID               uuid.UUID  `json:"clinic_id" binding:"required"`
	ProfessionalID         uuid.UUID  `json:"professional_id" binding:"required"`
	OriginalProfessionalID *uuid.UUID `json:"original_professional_id"`
	CoverageID             *uuid.UUID `json:"coverage_id"`
	PatientID              uuid.UUID  `json:"patient_id" binding:"required"`
	ServiceTypeID          uuid.UUID  `json:"service_type_id" binding:"required"`
	StartAt                time.Time  `json:"start_at" binding:"required"`
	EndAt                  time.Time  `json:"end_at" binding:"required"`
	RequestedBy            string     `json:"requested_by"`
}

type holdResponse struct {
	ID             uuid.UUID `json:"id"`
	ClinicID       uuid.UUID `json:"clinic_id"`
	ProfessionalID uuid.UUID `json:"professional_id"`
	PatientID      uuid.UUID `json:"patient_id"`
	ServiceTypeID  uuid.UUID `json:"service_type_id"`
	StartAt        time.Time `json:"start_at"`
	EndAt          time.Time `json:"end_at"`
	TTLExpiresAt   time.Time `json:"ttl_expires_at"`
	Status         string    `json:"status"`
	Version        int64     `json:"version"`
}

func NewHoldHandler(service holds.HoldUseCase) *HoldHandler {
	return &HoldHandler{service: service}
}

func (h *HoldHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.create)
	router.GET("/:id", h.get)
	router.DELETE("/:id", h.cancel)
}

func (h *HoldHandler) create(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	var req createHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hold, err := h.service.CreateHold(c.Request.Context(), holds.CreateHoldInput{
		TenantID:               tenant,
		ClinicID:               req.ClinicID,
		ProfessionalID:         req.ProfessionalID,
		OriginalProfessionalID: req.OriginalProfessionalID,
		CoverageID:             req.CoverageID,
		PatientID:              req.PatientID,
		ServiceTypeID:          req.ServiceTypeID,
		StartAt:                req.StartAt,
		EndAt:                  req.EndAt,
		RequestedBy:            req.RequestedBy,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toHoldResponse(hold))
}

func (h *HoldHandler) get(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hold id"})
		return
	}

	hold, err := h.service.GetHold(c.Request.Context(), tenant, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toHoldResponse(hold))
}

func (h *HoldHandler) cancel(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hold id"})
		return
	}

	hold, err := h.service.CancelHold(c.Request.Context(), tenant, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toHoldResponse(hold))
}

func toHoldResponse(hold *domain.BookingHold) holdResponse {
	return holdResponse{
		ID:             hold.ID,
		ClinicID:       hold.ClinicID,
		ProfessionalID: hold.ProfessionalID,
		PatientID:      hold.PatientID,
		ServiceTypeID:  hold.ServiceTypeID,
		StartAt:        hold.StartAt,
		EndAt:          hold.EndAt,
		TTLExpiresAt:   hold.TTLExpiresAt,
		Status:         string(hold.Status),
		Version:        hold.Version,
	}
}
