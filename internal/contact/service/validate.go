package service

import (
	"strings"

	"registro/internal/contact/models"
	dErrors "registro/pkg/domain-errors"
)

// Validate checks the required fields before any network call so both
// backends see only well-formed contact data.
func Validate(input models.Input) error {
	required := []struct {
		name  string
		value string
	}{
		{"first_name", input.FirstName},
		{"last_name", input.LastName},
		{"street", input.Street},
		{"city", input.City},
		{"province", input.Province},
		{"postal_code", input.PostalCode},
		{"country_code", input.CountryCode},
		{"phone", input.Phone},
		{"email", input.Email},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return dErrors.Newf(dErrors.CodeBadRequest, "contact field %s is required", f.name)
		}
	}

	if len(strings.TrimSpace(input.CountryCode)) != 2 {
		return dErrors.New(dErrors.CodeBadRequest, "country_code must be a 2-letter ISO code")
	}
	if !strings.Contains(input.Email, "@") {
		return dErrors.New(dErrors.CodeBadRequest, "email is malformed")
	}
	return nil
}
