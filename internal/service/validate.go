package service

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"rideshare-registry/internal/domain"
)

const (
	minUsernameLength = 3
	minEmailLength    = 5
	minPasswordLength = 8
	// bcrypt ignores input past 72 bytes.
	maxPasswordBytes = 72
	maxAge           = 150
)

type field struct {
	name  string
	value string
}

func requireFields(fields ...field) error {
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return &domain.ValidationError{Field: f.name, Reason: "is required"}
		}
	}
	return nil
}

func minLength(name, value string, n int) error {
	if utf8.RuneCountInString(value) < n {
		return &domain.ValidationError{Field: name, Reason: "must be at least " + strconv.Itoa(n) + " characters"}
	}
	return nil
}

// normalizeRegistration checks a raw payload and returns the record to store
// (without id, hash or timestamp) together with the plaintext password.
func normalizeRegistration(in domain.Registration) (domain.UserRecord, string, error) {
	if err := requireFields(
		field{"email", in.Email},
		field{"username", in.Username},
		field{"password", in.Password},
		field{"role", in.Role},
		field{"phonenumber", in.PhoneNumber},
		field{"age", in.Age},
	); err != nil {
		return domain.UserRecord{}, "", err
	}

	role := domain.Role(strings.ToLower(strings.TrimSpace(in.Role)))
	if !role.Valid() {
		return domain.UserRecord{}, "", &domain.ValidationError{Field: "role", Reason: "must be driver or passenger"}
	}

	rec := domain.UserRecord{
		Username:    strings.TrimSpace(in.Username),
		Role:        role,
		Email:       strings.TrimSpace(in.Email),
		PhoneNumber: strings.TrimSpace(in.PhoneNumber),
	}

	switch role {
	case domain.RoleDriver:
		if err := requireFields(field{"licenseid", in.LicenseID}); err != nil {
			return domain.UserRecord{}, "", err
		}
		rec.LicenseID = strings.TrimSpace(in.LicenseID)
		rec.LicenseDocumentRef = strings.TrimSpace(in.LicenseDocumentRef)
	case domain.RolePassenger:
		if err := requireFields(field{"attending_school", in.AttendingSchool}); err != nil {
			return domain.UserRecord{}, "", err
		}
		rec.AttendingSchool = strings.TrimSpace(in.AttendingSchool)
	}

	if err := minLength("username", rec.Username, minUsernameLength); err != nil {
		return domain.UserRecord{}, "", err
	}
	if err := minLength("email", rec.Email, minEmailLength); err != nil {
		return domain.UserRecord{}, "", err
	}
	if err := minLength("password", in.Password, minPasswordLength); err != nil {
		return domain.UserRecord{}, "", err
	}
	if len(in.Password) > maxPasswordBytes {
		return domain.UserRecord{}, "", &domain.ValidationError{Field: "password", Reason: "must be at most " + strconv.Itoa(maxPasswordBytes) + " bytes"}
	}

	age, err := strconv.Atoi(strings.TrimSpace(in.Age))
	if err != nil || age < 1 || age > maxAge {
		return domain.UserRecord{}, "", &domain.ValidationError{Field: "age", Reason: "must be a whole number between 1 and " + strconv.Itoa(maxAge)}
	}
	rec.Age = age

	return rec, in.Password, nil
}

func normalizeSchool(in domain.SchoolApplication) (domain.SchoolApplication, error) {
	if err := requireFields(
		field{"school_name", in.SchoolName},
		field{"address", in.Address},
		field{"email", in.Email},
		field{"representative", in.Representative},
		field{"mechanical_code", in.InstitutionCode},
	); err != nil {
		return domain.SchoolApplication{}, err
	}

	out := domain.SchoolApplication{
		SchoolName:      strings.TrimSpace(in.SchoolName),
		Address:         strings.TrimSpace(in.Address),
		Email:           strings.TrimSpace(in.Email),
		Representative:  strings.TrimSpace(in.Representative),
		InstitutionCode: strings.TrimSpace(in.InstitutionCode),
		Status:          domain.ApplicationStatusPending,
	}
	if err := minLength("email", out.Email, minEmailLength); err != nil {
		return domain.SchoolApplication{}, err
	}
	return out, nil
}
