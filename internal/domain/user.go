package domain

import "time"

// Role discriminates the two kinds of registered users.
type Role string

const (
	RoleDriver    Role = "driver"
	RolePassenger Role = "passenger"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleDriver || r == RolePassenger
}

// Other returns the opposite role.
func (r Role) Other() Role {
	if r == RoleDriver {
		return RolePassenger
	}
	return RoleDriver
}

// UserRecord is one registered driver or passenger as stored in the ledger.
type UserRecord struct {
	ID                 string    `json:"id"`
	Username           string    `json:"username"`
	CredentialHash     string    `json:"password,omitempty"`
	Role               Role      `json:"type"`
	Email              string    `json:"email"`
	PhoneNumber        string    `json:"phonenumber"`
	Age                int       `json:"age"`
	LicenseID          string    `json:"licenseid,omitempty"`
	LicenseDocumentRef string    `json:"license_file,omitempty"`
	AttendingSchool    string    `json:"attending_school,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// Registration carries a raw registration payload before validation.
type Registration struct {
	Email              string
	Username           string
	Password           string
	Role               string
	PhoneNumber        string
	Age                string
	LicenseID          string
	AttendingSchool    string
	LicenseDocumentRef string
}

// Session is the verified content of a bearer token. It is never persisted.
type Session struct {
	Identity  string
	Role      Role
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
