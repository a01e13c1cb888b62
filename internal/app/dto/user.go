package dto

import (
	domainuser "booking-service/internal/domain/user"
)

type PersonSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// MapPersonSummary keeps the id when the directory has no profile for it.
func MapPersonSummary(id string, profile *domainuser.Profile) PersonSummary {
	if profile == nil {
		return PersonSummary{ID: id}
	}
	return PersonSummary{
		ID:    string(profile.ID),
		Name:  profile.Name,
		Email: profile.Email,
	}
}
