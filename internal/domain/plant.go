// Package domain defines the core entities of the fleet monitoring engine.
//
// Entities are plain value types persisted by the store; components reference
// each other by identifier, never by in-memory pointer.
package domain

import (
	"fmt"
	"time"
)

// Brand identifies a vendor integration.
type Brand string

const (
	BrandSolis  Brand = "SOLIS"
	BrandHuawei Brand = "HUAWEI"
	BrandGoodwe Brand = "GOODWE"
	BrandDele   Brand = "DELE"
)

// AllBrands lists every supported brand.
func AllBrands() []Brand {
	return []Brand{BrandSolis, BrandHuawei, BrandGoodwe, BrandDele}
}

// ParseBrand validates a brand string.
func ParseBrand(s string) (Brand, error) {
	switch Brand(s) {
	case BrandSolis, BrandHuawei, BrandGoodwe, BrandDele:
		return Brand(s), nil
	}
	return "", fmt.Errorf("unknown brand %q", s)
}

// IntegrationStatus tracks whether the plant's vendor integration is usable.
type IntegrationStatus string

const (
	IntegrationActive          IntegrationStatus = "ACTIVE"
	IntegrationPausedAuthError IntegrationStatus = "PAUSED_AUTH_ERROR"
	IntegrationDisabled        IntegrationStatus = "DISABLED"
)

// PlantStatus is the derived health tag.
type PlantStatus string

const (
	StatusGreen  PlantStatus = "GREEN"
	StatusYellow PlantStatus = "YELLOW"
	StatusRed    PlantStatus = "RED"
	StatusGrey   PlantStatus = "GREY"
)

// Plant is one monitored installation.
type Plant struct {
	ID                  string
	Name                string
	Brand               Brand
	Timezone            string // IANA zone, required
	IntegrationStatus   IntegrationStatus
	Status              PlantStatus
	AlertsSilencedUntil *time.Time
	OwnerCustomerID     string
	VendorPlantID       string
	InstalledCapacityW  *float64
	DeletedAt           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Location resolves the plant's IANA timezone.
func (p *Plant) Location() (*time.Location, error) {
	if p.Timezone == "" {
		return nil, fmt.Errorf("plant %s has no timezone", p.ID)
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, fmt.Errorf("plant %s timezone %q: %w", p.ID, p.Timezone, err)
	}
	return loc, nil
}

// Credential is the encrypted vendor credential bound to a plant.
type Credential struct {
	PlantID       string
	Brand         Brand
	EncryptedBlob []byte
	KeyVersion    int
	UpdatedAt     time.Time
}
