// Package registry provides access to the device registry: verification,
// company and person lookups, and device registration.
package registry

import (
	"context"
	"time"
)

// Company is a registry tenant that owns registered devices.
type Company struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Person is a device owner within a company.
type Person struct {
	ID             string `json:"id"`
	CompanyID      string `json:"company_id"`
	Name           string `json:"name"`
	Identification string `json:"identification"`
	Phone          string `json:"phone,omitempty"`
	DeviceCount    int    `json:"device_count"`
}

// NewPerson carries the fields for creating a person. The registry
// assigns the canonical identity; clients never pick IDs.
type NewPerson struct {
	CompanyID      string `json:"company_id"`
	Name           string `json:"name"`
	Identification string `json:"identification"`
	Phone          string `json:"phone,omitempty"`
}

// Device is a registered device record.
type Device struct {
	ID           string    `json:"id"`
	IMEI         string    `json:"imei"`
	Owner        Person    `json:"owner"`
	Company      Company   `json:"company"`
	RegisteredAt time.Time `json:"registered_at"`
}

// VerificationResult is the registry's answer for a single identifier.
type VerificationResult struct {
	IMEI   string  `json:"imei"`
	Exists bool    `json:"exists"`
	Device *Device `json:"device,omitempty"`
}

// Client is the registry access interface. Implementations map their
// transport failures to *Error; Verify is side-effect free and never
// retried automatically.
type Client interface {
	Verify(ctx context.Context, imei string) (VerificationResult, error)
	Companies(ctx context.Context) ([]Company, error)
	PersonsByCompany(ctx context.Context, companyID string) ([]Person, error)
	CreatePerson(ctx context.Context, person NewPerson) (Person, error)
	Register(ctx context.Context, imei, personID string) (Device, error)
}
