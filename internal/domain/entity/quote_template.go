package entity

import "time"

// QuoteTemplate is contractor-level presentation metadata used when rendering quotes.
// The revision engine only reads it.
type QuoteTemplate struct {
	ContractorID  string    `json:"contractor_id"`
	BusinessName  string    `json:"business_name"`
	ContactName   string    `json:"contact_name,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Email         string    `json:"email,omitempty"`
	LicenseNumber string    `json:"license_number,omitempty"`
	Terms         string    `json:"terms,omitempty"`
	Footer        string    `json:"footer,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}
