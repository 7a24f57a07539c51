package domain

import "time"

type ApplicationStatus string

const ApplicationStatusPending ApplicationStatus = "pending"

// SchoolApplication is a pending registration request from an institution.
type SchoolApplication struct {
	ID              string            `json:"id"`
	SchoolName      string            `json:"school_name"`
	Address         string            `json:"address"`
	Email           string            `json:"email"`
	Representative  string            `json:"representative"`
	InstitutionCode string            `json:"mechanical_code"`
	Status          ApplicationStatus `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
}
