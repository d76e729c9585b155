package model

import (
	"time"
)

// Touch types recorded by the ingestion side.
const (
	TouchTypePageView  = "pageview"
	TouchTypeClick     = "click"
	TouchTypeFormView  = "form_view"
	TouchTypeFormStart = "form_start"
)

// Touch - One observed marketing interaction of a visitor. Immutable once created.
type Touch struct {
	ID        string  `gorm:"primary_key:true;type:varchar(64)" json:"id"`
	VisitorID string  `gorm:"not null;index:touches_visitor_id_timestamp_idx" json:"visitor_id"`
	SessionID *string `json:"session_id,omitempty"`
	Type      string  `gorm:"not null" json:"type"`
	// Channel group computed once on creation, never recomputed.
	Channel     string  `gorm:"not null" json:"channel"`
	Source      *string `json:"source,omitempty"`
	Medium      *string `json:"medium,omitempty"`
	Campaign    *string `json:"campaign,omitempty"`
	Content     *string `json:"content,omitempty"`
	Term        *string `json:"term,omitempty"`
	LandingPage string  `gorm:"type:text" json:"landing_page"`
	Referrer    string  `gorm:"type:text" json:"referrer"`
	// unix epoch timestamp in seconds.
	Timestamp int64 `gorm:"not null;index:touches_visitor_id_timestamp_idx" json:"timestamp"`
	// Insertion order, assigned by the database. Breaks ties on timestamp.
	Sequence  int64     `gorm:"column:sequence;type:bigserial;AUTO_INCREMENT" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

func (Touch) TableName() string {
	return "touches"
}

// TouchEvent - Visitor activity payload forwarded by ingestion.
type TouchEvent struct {
	Type        string `json:"type"`
	SessionID   string `json:"session_id"`
	UTM         UTMParams
	LandingPage string `json:"landing_page"`
	Referrer    string `json:"referrer"`
	// Defaults to now when zero.
	Timestamp int64 `json:"timestamp"`
}

// UTMParams - utm_* query parameters of the landing page.
type UTMParams struct {
	Source   string `json:"utm_source"`
	Medium   string `json:"utm_medium"`
	Campaign string `json:"utm_campaign"`
	Content  string `json:"utm_content"`
	Term     string `json:"utm_term"`
}

// TouchConversion - Touches considered for the attribution of a conversion.
type TouchConversion struct {
	TouchID      string    `gorm:"primary_key:true;type:varchar(64)" json:"touch_id"`
	ConversionID string    `gorm:"primary_key:true;type:varchar(64)" json:"conversion_id"`
	CreatedAt    time.Time `json:"created_at"`
}

func (TouchConversion) TableName() string {
	return "touch_conversions"
}

func getOptionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// NewTouchFromEvent builds a touch with the channel group resolved.
func NewTouchFromEvent(visitorID string, event *TouchEvent) *Touch {
	touchType := event.Type
	if touchType == "" {
		touchType = TouchTypePageView
	}

	touch := &Touch{
		VisitorID:   visitorID,
		SessionID:   getOptionalString(event.SessionID),
		Type:        touchType,
		Channel:     GetChannelGroup(event.Referrer, event.UTM),
		Source:      getOptionalString(event.UTM.Source),
		Medium:      getOptionalString(event.UTM.Medium),
		Campaign:    getOptionalString(event.UTM.Campaign),
		Content:     getOptionalString(event.UTM.Content),
		Term:        getOptionalString(event.UTM.Term),
		LandingPage: event.LandingPage,
		Referrer:    event.Referrer,
		Timestamp:   event.Timestamp,
	}
	return touch
}
