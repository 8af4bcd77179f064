package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Patient is a tenant-scoped record. In the shared model store rows are
// owned by clinic (clinica_id); in an isolated database the column is
// still present but always holds the owning clinic.
type Patient struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ClinicID  uuid.UUID      `json:"clinic_id" gorm:"column:clinica_id;type:uuid;not null;index"`
	Name      string         `json:"name" gorm:"column:nome;not null"`
	CPF       string         `json:"cpf" gorm:"column:cpf;index"`
	Email     string         `json:"email" gorm:"column:email"`
	Phone     string         `json:"phone" gorm:"column:telefone"`
	BirthDate *time.Time     `json:"birth_date,omitempty" gorm:"column:data_nascimento"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`
}

// TableName returns the table name for the Patient model
func (Patient) TableName() string {
	return "pacientes"
}

// AppointmentStatus represents the lifecycle of an appointment
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "agendado"
	AppointmentConfirmed AppointmentStatus = "confirmado"
	AppointmentDone      AppointmentStatus = "realizado"
	AppointmentCancelled AppointmentStatus = "cancelado"
)

// Appointment is a tenant-scoped scheduling record
type Appointment struct {
	ID         uuid.UUID         `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ClinicID   uuid.UUID         `json:"clinic_id" gorm:"column:clinica_id;type:uuid;not null;index"`
	PatientID  uuid.UUID         `json:"patient_id" gorm:"column:paciente_id;type:uuid;not null;index"`
	DoctorName string            `json:"doctor_name" gorm:"column:medico"`
	StartsAt   time.Time         `json:"starts_at" gorm:"column:inicio;not null;index"`
	EndsAt     time.Time         `json:"ends_at" gorm:"column:fim"`
	Status     AppointmentStatus `json:"status" gorm:"column:status;default:'agendado'"`
	Notes      string            `json:"notes" gorm:"column:observacoes"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`

	Patient *Patient `json:"patient,omitempty" gorm:"foreignKey:PatientID"`
}

// TableName returns the table name for the Appointment model
func (Appointment) TableName() string {
	return "agendamentos"
}
