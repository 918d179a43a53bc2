package models

import "time"

// DefaultSettingsKey identifies the single platform settings row.
const DefaultSettingsKey = "default"

// Settings holds platform-wide configuration, including the fare rates.
type Settings struct {
	ID                 string    `json:"id" db:"id"`
	Key                string    `json:"key" db:"key"`
	PlatformFeePercent float64   `json:"platform_fee_percent" db:"platform_fee_percent"`
	MinimumFare        float64   `json:"minimum_fare" db:"minimum_fare"`
	BaseRatePerMile    float64   `json:"base_rate_per_mile" db:"base_rate_per_mile"`
	BaseRatePerMinute  float64   `json:"base_rate_per_minute" db:"base_rate_per_minute"`
	PlatformName       string    `json:"platform_name" db:"platform_name"`
	SupportEmail       string    `json:"support_email" db:"support_email"`
	SupportPhone       string    `json:"support_phone" db:"support_phone"`
	Timezone           string    `json:"timezone" db:"timezone"`
	DefaultLanguage    string    `json:"default_language" db:"default_language"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultSettings returns the values a fresh installation starts with.
func DefaultSettings() Settings {
	return Settings{
		Key:                DefaultSettingsKey,
		PlatformFeePercent: 20,
		MinimumFare:        5,
		BaseRatePerMile:    1.5,
		BaseRatePerMinute:  0.3,
		PlatformName:       "Alatoul",
		SupportEmail:       "support@alatoul.com",
		SupportPhone:       "+1 (555) 123-4567",
		Timezone:           "UTC-5",
		DefaultLanguage:    "en",
	}
}

// Pricing is the fare-relevant subset of Settings.
type Pricing struct {
	PlatformFeePercent float64 `json:"platform_fee_percent"`
	MinimumFare        float64 `json:"minimum_fare"`
	BaseRatePerMile    float64 `json:"base_rate_per_mile"`
	BaseRatePerMinute  float64 `json:"base_rate_per_minute"`
}

// Pricing extracts the fare rates.
func (s Settings) Pricing() Pricing {
	return Pricing{
		PlatformFeePercent: s.PlatformFeePercent,
		MinimumFare:        s.MinimumFare,
		BaseRatePerMile:    s.BaseRatePerMile,
		BaseRatePerMinute:  s.BaseRatePerMinute,
	}
}

// UpdateSettingsRequest is a partial update of the settings row
type UpdateSettingsRequest struct {
	PlatformFeePercent *float64 `json:"platform_fee_percent,omitempty" validate:"omitempty,gte=0,lte=100"`
	MinimumFare        *float64 `json:"minimum_fare,omitempty" validate:"omitempty,gte=0"`
	BaseRatePerMile    *float64 `json:"base_rate_per_mile,omitempty" validate:"omitempty,gte=0"`
	BaseRatePerMinute  *float64 `json:"base_rate_per_minute,omitempty" validate:"omitempty,gte=0"`
	PlatformName       *string  `json:"platform_name,omitempty" validate:"omitempty,min=1,max=100"`
	SupportEmail       *string  `json:"support_email,omitempty" validate:"omitempty,email"`
	SupportPhone       *string  `json:"support_phone,omitempty" validate:"omitempty,max=50"`
	Timezone           *string  `json:"timezone,omitempty" validate:"omitempty,max=50"`
	DefaultLanguage    *string  `json:"default_language,omitempty" validate:"omitempty,min=2,max=10"`
}

// UpdatePricingRequest updates only the fare rates
type UpdatePricingRequest struct {
	PlatformFeePercent *float64 `json:"platform_fee_percent,omitempty" validate:"omitempty,gte=0,lte=100"`
	MinimumFare        *float64 `json:"minimum_fare,omitempty" validate:"omitempty,gte=0"`
	BaseRatePerMile    *float64 `json:"base_rate_per_mile,omitempty" validate:"omitempty,gte=0"`
	BaseRatePerMinute  *float64 `json:"base_rate_per_minute,omitempty" validate:"omitempty,gte=0"`
}

// Apply copies the set fields onto s.
func (r UpdateSettingsRequest) Apply(s *Settings) {
	UpdatePricingRequest{
		PlatformFeePercent: r.PlatformFeePercent,
		MinimumFare:        r.MinimumFare,
		BaseRatePerMile:    r.BaseRatePerMile,
		BaseRatePerMinute:  r.BaseRatePerMinute,
	}.Apply(s)
	if r.PlatformName != nil {
		s.PlatformName = *r.PlatformName
	}
	if r.SupportEmail != nil {
		s.SupportEmail = *r.SupportEmail
	}
	if r.SupportPhone != nil {
		s.SupportPhone = *r.SupportPhone
	}
	if r.Timezone != nil {
		s.Timezone = *r.Timezone
	}
	if r.DefaultLanguage != nil {
		s.DefaultLanguage = *r.DefaultLanguage
	}
}

// Apply copies the set rates onto s.
func (r UpdatePricingRequest) Apply(s *Settings) {
	if r.PlatformFeePercent != nil {
		s.PlatformFeePercent = *r.PlatformFeePercent
	}
	if r.MinimumFare != nil {
		s.MinimumFare = *r.MinimumFare
	}
	if r.BaseRatePerMile != nil {
		s.BaseRatePerMile = *r.BaseRatePerMile
	}
	if r.BaseRatePerMinute != nil {
		s.BaseRatePerMinute = *r.BaseRatePerMinute
	}
}
