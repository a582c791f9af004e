package store

import (
	"fmt"
	"slices"
	"strings"

	"medpassport/internal/equivalency"
	"medpassport/internal/errors"
	"medpassport/internal/types"
)

// Project years outside this range are rejected; 0 means unknown.
const (
	MinProjectYear = 1950
	MaxProjectYear = 2100
)

func invalid(field, message string) *errors.AppError {
	return errors.NewValidationError(errors.ErrCodeInvalidRequest, message, nil).WithContext("field", field)
}

// ValidateRotation trims r in place and checks the required fields.
func ValidateRotation(r *types.Rotation) error {
	r.Hospital = strings.TrimSpace(r.Hospital)
	r.Specialty = strings.TrimSpace(r.Specialty)
	r.Dates = strings.TrimSpace(r.Dates)
	r.Grade = strings.TrimSpace(r.Grade)
	r.Description = strings.TrimSpace(r.Description)

	if r.Hospital == "" {
		return invalid("hospital", "Hospital is required")
	}
	if r.Specialty == "" {
		return invalid("specialty", "Specialty is required")
	}
	return nil
}

// ValidateProcedure trims p in place and checks name, level and count.
func ValidateProcedure(p *types.Procedure) error {
	p.Procedure = strings.TrimSpace(p.Procedure)
	p.Level = strings.TrimSpace(p.Level)

	if p.Procedure == "" {
		return invalid("procedure", "Procedure name is required")
	}
	if !slices.Contains(types.ProcedureLevels, p.Level) {
		return invalid("level", fmt.Sprintf("Level must be one of %s", strings.Join(types.ProcedureLevels, ", ")))
	}
	if p.Count < 1 {
		return invalid("count", "Count must be at least 1")
	}
	return nil
}

// ValidateProject trims p in place and checks type, title and year.
func ValidateProject(p *types.Project) error {
	p.Type = strings.TrimSpace(p.Type)
	p.Title = strings.TrimSpace(p.Title)
	p.Role = strings.TrimSpace(p.Role)

	if p.Type == "" {
		return invalid("type", "Project type is required")
	}
	if p.Title == "" {
		return invalid("title", "Title is required")
	}
	if p.Year != 0 && (p.Year < MinProjectYear || p.Year > MaxProjectYear) {
		return invalid("year", fmt.Sprintf("Year must be between %d and %d", MinProjectYear, MaxProjectYear))
	}
	return nil
}

// ValidateProfile checks the tier against the table and rewrites the
// country list to canonical labels, deduplicated in order.
func ValidateProfile(p *types.Profile, table *equivalency.Table) error {
	p.GlobalTier = strings.TrimSpace(p.GlobalTier)
	p.Summary = strings.TrimSpace(p.Summary)

	if !table.IsTier(p.GlobalTier) {
		return invalid("global_tier", "Unknown seniority tier").WithContext("tier", p.GlobalTier)
	}

	countries := make([]string, 0, len(p.SelectedCountries))
	for _, c := range p.SelectedCountries {
		label, ok := table.CountryLabel(c)
		if !ok {
			return invalid("selected_countries", "Unknown country").WithContext("country", c)
		}
		if !slices.Contains(countries, label) {
			countries = append(countries, label)
		}
	}
	p.SelectedCountries = countries
	return nil
}
