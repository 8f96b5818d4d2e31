package domain

import "strings"

type ShippingAddress struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Validate returns a message per invalid field, or nil when the address can be shipped to.
func (a ShippingAddress) Validate() map[string]string {
	fields := make(map[string]string)
	required := []struct {
		name  string
		value string
	}{
		{"first_name", a.FirstName},
		{"last_name", a.LastName},
		{"address", a.Address},
		{"city", a.City},
		{"state", a.State},
		{"postal_code", a.PostalCode},
		{"country", a.Country},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			fields[f.name] = "is required"
		}
	}
	if a.Email != "" && !strings.Contains(a.Email, "@") {
		fields["email"] = "must be a valid email address"
	}

	if len(fields) == 0 {
		return nil
	}
	return fields
}

// WithDefaults fills the fields the storefront pre-populates.
func (a ShippingAddress) WithDefaults(country, email string) ShippingAddress {
	if a.Country == "" {
		a.Country = country
	}
	if a.Email == "" {
		a.Email = email
	}
	return a
}
