package main

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/clinigo/clinic-platform/shared/models"
	"github.com/clinigo/clinic-platform/shared/tenant"
	"github.com/clinigo/clinic-platform/shared/utils"
)

// CreateClinicRequest represents the create clinic request
type CreateClinicRequest struct {
	Name            string `json:"name" binding:"required"`
	ResponsibleName string `json:"responsible_name"`
	Email           string `json:"email" binding:"required,email"`
	Phone           string `json:"phone"`
	Subdomain       string `json:"subdomain" binding:"required"`
	Plan            string `json:"plan"`
}

// UpdateStatusRequest represents a clinic status transition request
type UpdateStatusRequest struct {
	Status models.ClinicStatus `json:"status" binding:"required,oneof=ativa suspensa cancelada"`
	Reason string              `json:"reason"`
}

// handleCreateClinic runs the clinic-creation workflow
func handleCreateClinic(prov *tenant.Provisioner) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateClinicRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		outcome, err := prov.CreateClinic(c.Request.Context(), tenant.CreateClinicInput{
			Name:            req.Name,
			ResponsibleName: req.ResponsibleName,
			Email:           req.Email,
			Phone:           req.Phone,
			Subdomain:       req.Subdomain,
			Plan:            req.Plan,
			Actor:           c.GetString("email"),
		})
		if err != nil {
			switch {
			case errors.Is(err, tenant.ErrInvalidSubdomain):
				utils.BadRequestResponse(c, "Subdomain is invalid or reserved")
			case errors.Is(err, tenant.ErrSubdomainTaken):
				utils.ConflictResponse(c, "Subdomain already in use")
			default:
				logrus.WithError(err).Error("Clinic creation failed")
				utils.InternalServerErrorResponse(c, "Failed to create clinic")
			}
			return
		}

		if outcome.Status == tenant.OutcomeCreatedDegraded {
			utils.WarningResponse(c, 201, "Clinic created", outcome.Warning, outcome.Clinic)
			return
		}
		utils.CreatedResponse(c, "Clinic created and provisioning requested", outcome.Clinic)
	}
}

// handleGetClinics lists all clinics in the directory
func handleGetClinics(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var clinics []models.Clinic
		q := db
		if status := c.Query("status"); status != "" {
			q = q.Where("status = ?", status)
		}
		if err := q.Order("nome").Find(&clinics).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to fetch clinics")
			return
		}

		utils.OKResponse(c, "Clinics retrieved successfully", clinics)
	}
}

// handleGetClinic fetches a single clinic by id
func handleGetClinic(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var clinic models.Clinic
		if err := db.Where("id = ?", c.Param("id")).First(&clinic).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				utils.NotFoundResponse(c, "Clinic not found")
			} else {
				utils.InternalServerErrorResponse(c, "Failed to fetch clinic")
			}
			return
		}

		utils.OKResponse(c, "Clinic retrieved successfully", clinic)
	}
}

// handleUpdateClinicStatus applies a status transition and broadcasts a
// cache invalidation for the clinic
func handleUpdateClinicStatus(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var clinic models.Clinic
		if err := db.Where("id = ?", c.Param("id")).First(&clinic).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				utils.NotFoundResponse(c, "Clinic not found")
			} else {
				utils.InternalServerErrorResponse(c, "Failed to fetch clinic")
			}
			return
		}

		var req UpdateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format. Status must be ativa, suspensa or cancelada")
			return
		}

		if !clinic.CanTransitionTo(req.Status) {
			utils.BadRequestResponse(c, "Status transition not allowed")
			return
		}

		previous := clinic.Status
		clinic.Status = req.Status
		if err := db.Save(&clinic).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to update clinic status")
			return
		}

		id := clinic.ID
		aerr := db.Create(&models.AuditLog{
			ClinicID: &id,
			Actor:    c.GetString("email"),
			Action:   "clinic_status_changed",
			Details:  `{"from":"` + string(previous) + `","to":"` + string(req.Status) + `"}`,
		}).Error
		if aerr != nil {
			logrus.WithError(aerr).Warn("Audit write failed")
		}

		// A clinic leaving active stops serving, so its rolling counter is
		// no longer meaningful.
		if req.Status != models.ClinicStatusActive {
			if derr := utils.CacheDelete(tenant.ConnectionCounterKey(clinic.Subdomain)); derr != nil {
				logrus.WithError(derr).Debug("Connection counter reset failed")
			}
		}

		if rdb := utils.GetRedisClient(); rdb != nil {
			if err := tenant.PublishInvalidation(c.Request.Context(), rdb, clinic.Subdomain); err != nil {
				logrus.WithError(err).Warn("Cache invalidation publish failed")
			}
		}

		utils.OKResponse(c, "Clinic status updated", clinic)
	}
}

// handleRetryProvision republishes the provisioning request for a clinic
// whose isolated database was never created
func handleRetryProvision(db *gorm.DB, publisher *ProvisionPublisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var clinic models.Clinic
		if err := db.Where("id = ?", c.Param("id")).First(&clinic).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				utils.NotFoundResponse(c, "Clinic not found")
			} else {
				utils.InternalServerErrorResponse(c, "Failed to fetch clinic")
			}
			return
		}

		if clinic.DatabaseCreated {
			utils.BadRequestResponse(c, "Clinic already has an isolated database")
			return
		}

		err := publisher.RequestProvision(c.Request.Context(), tenant.ProvisionRequest{
			ClinicID:  clinic.ID,
			Name:      clinic.Name,
			Subdomain: clinic.Subdomain,
			Email:     clinic.Email,
			Plan:      clinic.Plan,
		})
		if err != nil {
			logrus.WithError(err).WithField("clinic", clinic.Subdomain).Error("Provisioning retry publish failed")
			utils.ServiceUnavailableResponse(c, "Provisioning pipeline unavailable, try again later")
			return
		}

		utils.OKResponse(c, "Provisioning requested", gin.H{"clinic_id": clinic.ID, "subdomain": clinic.Subdomain})
	}
}

// handleGetMonitoring returns the clinic's connection activity record,
// enriched with the live Redis counter and provisioning receipt when
// Redis is reachable
func handleGetMonitoring(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var row models.ConnectionMonitor
		if err := db.Where("clinica_id = ?", c.Param("id")).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				utils.NotFoundResponse(c, "No activity recorded for this clinic")
			} else {
				utils.InternalServerErrorResponse(c, "Failed to fetch monitoring record")
			}
			return
		}

		data := gin.H{"record": row}
		if count, err := utils.CacheGet(tenant.ConnectionCounterKey(row.Subdomain)); err == nil {
			data["live_connections"] = count
		}
		if dbName, err := utils.CacheGet(tenant.ProvisionReceiptKey(row.Subdomain)); err == nil {
			data["recent_provision"] = dbName
		}

		utils.OKResponse(c, "Monitoring record retrieved", data)
	}
}
