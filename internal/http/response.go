package http

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"time"

	"rideshare-registry/internal/domain"
)

// UserResponse is the public view of a user record. It has no credential field.
type UserResponse struct {
	ID              string      `json:"id"`
	Username        string      `json:"username"`
	Role            domain.Role `json:"role"`
	Email           string      `json:"email"`
	PhoneNumber     string      `json:"phonenumber"`
	Age             int         `json:"age"`
	LicenseID       string      `json:"licenseid,omitempty"`
	LicenseFile     string      `json:"license_file,omitempty"`
	AttendingSchool string      `json:"attending_school,omitempty"`
	CreatedAt       string      `json:"created_at"`
}

func userToResponse(user domain.UserRecord) UserResponse {
	return UserResponse{
		ID:              user.ID,
		Username:        user.Username,
		Role:            user.Role,
		Email:           user.Email,
		PhoneNumber:     user.PhoneNumber,
		Age:             user.Age,
		LicenseID:       user.LicenseID,
		LicenseFile:     user.LicenseDocumentRef,
		AttendingSchool: user.AttendingSchool,
		CreatedAt:       user.CreatedAt.Format(time.RFC3339),
	}
}

// flexString accepts a JSON string or number, so clients may send age either way.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("expected a string or number")
	}
	*f = flexString(n.String())
	if _, err := n.Int64(); err != nil {
		// 30.0 and 3e1 are whole numbers too
		if v, err := n.Float64(); err == nil && v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			*f = flexString(strconv.FormatInt(int64(v), 10))
		}
	}
	return nil
}
