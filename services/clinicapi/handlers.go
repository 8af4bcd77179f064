package main

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clinigo/clinic-platform/shared/middleware"
	"github.com/clinigo/clinic-platform/shared/models"
	"github.com/clinigo/clinic-platform/shared/tenant"
	"github.com/clinigo/clinic-platform/shared/utils"
)

// CreatePatientRequest represents the create patient request
type CreatePatientRequest struct {
	Name      string     `json:"name" binding:"required"`
	CPF       string     `json:"cpf"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	BirthDate *time.Time `json:"birth_date"`
}

// CreateAppointmentRequest represents the create appointment request
type CreateAppointmentRequest struct {
	PatientID  uuid.UUID `json:"patient_id" binding:"required"`
	DoctorName string    `json:"doctor_name" binding:"required"`
	StartsAt   time.Time `json:"starts_at" binding:"required"`
	EndsAt     time.Time `json:"ends_at"`
	Notes      string    `json:"notes"`
}

// clinicScope returns the handle for a tenant table plus the query scope.
// In the shared model store rows are isolated per clinic by ownership
// column; an isolated database holds only the clinic's own rows.
func clinicScope(c *gin.Context, r *tenant.Router, table string) (*gorm.DB, *tenant.Context, bool) {
	tc, ok := middleware.GetClinicContext(c)
	if !ok {
		utils.InternalServerErrorResponse(c, "Clinic context missing")
		return nil, nil, false
	}
	desc, _ := middleware.GetDescriptor(c)

	db := r.For(table, desc)
	if desc == nil || desc.Mode != tenant.ModeIsolated {
		db = db.Where("clinica_id = ?", tc.ClinicID)
	}
	return db, tc, true
}

// handleGetClinicInfo returns the resolved clinic context for the request
func handleGetClinicInfo() gin.HandlerFunc {
	return func(c *gin.Context) {
		tc, ok := middleware.GetClinicContext(c)
		if !ok {
			utils.InternalServerErrorResponse(c, "Clinic context missing")
			return
		}
		desc, _ := middleware.GetDescriptor(c)

		info := gin.H{
			"clinic_id": tc.ClinicID,
			"subdomain": tc.Subdomain,
			"mode":      tc.Mode,
		}
		if desc != nil {
			info["database"] = desc.DatabaseName
			info["health"] = desc.Health
			if desc.DegradedReason != "" {
				info["degraded_reason"] = desc.DegradedReason
			}
		}

		utils.OKResponse(c, "Clinic context", info)
	}
}

// handleListPatients lists the clinic's patients
func handleListPatients(r *tenant.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		db, _, ok := clinicScope(c, r, "pacientes")
		if !ok {
			return
		}

		var patients []models.Patient
		q := db.Order("nome")
		if search := c.Query("q"); search != "" {
			q = q.Where("nome ILIKE ?", "%"+search+"%")
		}
		if err := q.Limit(200).Find(&patients).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to fetch patients")
			return
		}

		utils.OKResponse(c, "Patients retrieved successfully", patients)
	}
}

// handleCreatePatient creates a patient owned by the request's clinic
func handleCreatePatient(r *tenant.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreatePatientRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		tc, ok := middleware.GetClinicContext(c)
		if !ok {
			utils.InternalServerErrorResponse(c, "Clinic context missing")
			return
		}
		desc, _ := middleware.GetDescriptor(c)

		patient := models.Patient{
			ID:        uuid.New(),
			ClinicID:  tc.ClinicID,
			Name:      req.Name,
			CPF:       req.CPF,
			Email:     req.Email,
			Phone:     req.Phone,
			BirthDate: req.BirthDate,
		}

		if err := r.For("pacientes", desc).Create(&patient).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to create patient")
			return
		}

		utils.CreatedResponse(c, "Patient created successfully", patient)
	}
}

// handleGetPatient fetches one patient
func handleGetPatient(r *tenant.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		db, _, ok := clinicScope(c, r, "pacientes")
		if !ok {
			return
		}

		var patient models.Patient
		if err := db.Where("id = ?", c.Param("id")).First(&patient).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				utils.NotFoundResponse(c, "Patient not found")
			} else {
				utils.InternalServerErrorResponse(c, "Failed to fetch patient")
			}
			return
		}

		utils.OKResponse(c, "Patient retrieved successfully", patient)
	}
}

// handleListAppointments lists the clinic's appointments for a day range
func handleListAppointments(r *tenant.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		db, _, ok := clinicScope(c, r, "agendamentos")
		if !ok {
			return
		}

		q := db.Order("inicio")
		if from := c.Query("from"); from != "" {
			q = q.Where("inicio >= ?", from)
		}
		if to := c.Query("to"); to != "" {
			q = q.Where("inicio < ?", to)
		}

		var appointments []models.Appointment
		if err := q.Preload("Patient").Limit(500).Find(&appointments).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to fetch appointments")
			return
		}

		utils.OKResponse(c, "Appointments retrieved successfully", appointments)
	}
}

// handleCreateAppointment schedules an appointment for the clinic
func handleCreateAppointment(r *tenant.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateAppointmentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		tc, ok := middleware.GetClinicContext(c)
		if !ok {
			utils.InternalServerErrorResponse(c, "Clinic context missing")
			return
		}
		desc, _ := middleware.GetDescriptor(c)

		appointment := models.Appointment{
			ID:         uuid.New(),
			ClinicID:   tc.ClinicID,
			PatientID:  req.PatientID,
			DoctorName: req.DoctorName,
			StartsAt:   req.StartsAt,
			EndsAt:     req.EndsAt,
			Status:     models.AppointmentScheduled,
			Notes:      req.Notes,
		}

		if err := r.For("agendamentos", desc).Create(&appointment).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to create appointment")
			return
		}

		utils.CreatedResponse(c, "Appointment created successfully", appointment)
	}
}
