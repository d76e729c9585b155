package model

import (
	"encoding/json"
	"time"
)

// Conversion - Terminal valuable action of a visitor which gets attributed.
type Conversion struct {
	ID        string  `gorm:"primary_key:true;type:varchar(64)" json:"id"`
	VisitorID string  `gorm:"not null;index" json:"visitor_id"`
	Type      string  `gorm:"not null" json:"type"`
	Value     float64 `gorm:"not null" json:"value"`
	// External system which reported the conversion.
	Source        string  `json:"source"`
	SourceID      string  `json:"source_id"`
	CustomerEmail *string `json:"customer_email,omitempty"`
	CustomerName  *string `json:"customer_name,omitempty"`
	// JSON encoded free-form metadata.
	Metadata    string    `gorm:"type:text" json:"metadata"`
	ConvertedAt int64     `gorm:"not null;index" json:"converted_at"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Conversion) TableName() string {
	return "conversions"
}

// ConversionData - Conversion signal payload (lead captured, purchase, enrollment).
type ConversionData struct {
	Value         float64                `json:"value"`
	Source        string                 `json:"source"`
	SourceID      string                 `json:"source_id"`
	CustomerEmail string                 `json:"customer_email"`
	CustomerName  string                 `json:"customer_name"`
	Metadata      map[string]interface{} `json:"metadata"`
	// Defaults to now when zero.
	ConvertedAt int64 `json:"converted_at"`
}

// NewConversion builds a conversion row from the signal payload.
func NewConversion(visitorID, conversionType string, data *ConversionData) (*Conversion, error) {
	if data == nil {
		data = &ConversionData{}
	}

	conversion := &Conversion{
		VisitorID:     visitorID,
		Type:          conversionType,
		Value:         data.Value,
		Source:        data.Source,
		SourceID:      data.SourceID,
		CustomerEmail: getOptionalString(data.CustomerEmail),
		CustomerName:  getOptionalString(data.CustomerName),
		ConvertedAt:   data.ConvertedAt,
	}

	if len(data.Metadata) > 0 {
		metadata, err := json.Marshal(data.Metadata)
		if err != nil {
			return nil, err
		}
		conversion.Metadata = string(metadata)
	}
	return conversion, nil
}

// GetMetadata decodes the JSON metadata. Empty metadata decodes to an empty map.
func (c *Conversion) GetMetadata() (map[string]interface{}, error) {
	metadata := make(map[string]interface{})
	if c.Metadata == "" {
		return metadata, nil
	}
	err := json.Unmarshal([]byte(c.Metadata), &metadata)
	return metadata, err
}

// Claim status of a conversion on the batch path.
const (
	ClaimStatusProcessing = "processing"
	ClaimStatusAttributed = "attributed"
	ClaimStatusNoTouches  = "no_touches"
	ClaimStatusFailed     = "failed"
)

// ConversionClaim - Marks a conversion as taken by a worker before scoring.
type ConversionClaim struct {
	ConversionID string    `gorm:"primary_key:true;type:varchar(64)" json:"conversion_id"`
	Status       string    `gorm:"not null" json:"status"`
	Attempts     int       `gorm:"not null" json:"attempts"`
	ClaimedAt    int64     `gorm:"not null" json:"claimed_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (ConversionClaim) TableName() string {
	return "conversion_claims"
}
