package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/grievancenet/backend/internal/domain/grievance"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// AttachmentList stores attachment metadata as a JSON document
type AttachmentList []grievance.Attachment

// Value implements driver.Valuer
func (l AttachmentList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (l *AttachmentList) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into AttachmentList", value)
	}
	if len(raw) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(raw, l)
}

// GormDBDataType picks jsonb on postgres and text elsewhere
func (AttachmentList) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "jsonb"
	}
	return "text"
}

// GrievanceModel is the persistence model for the Grievance aggregate
type GrievanceModel struct {
	AggregateModel
	UserID           uuid.UUID               `gorm:"type:uuid;not null;index;uniqueIndex:idx_grievances_user_request,priority:1,where:delivery <> 'failed'"`
	RequestID        *string                 `gorm:"type:varchar(64);uniqueIndex:idx_grievances_user_request,priority:2,where:delivery <> 'failed'"`
	Problem          string                  `gorm:"type:text;not null"`
	City             string                  `gorm:"type:varchar(100);not null"`
	MailBody         string                  `gorm:"type:text;not null"`
	DetailedLocation string                  `gorm:"type:varchar(500)"`
	Latitude         decimal.NullDecimal     `gorm:"type:numeric(9,6)"`
	Longitude        decimal.NullDecimal     `gorm:"type:numeric(9,6)"`
	Attachments      AttachmentList          `gorm:"not null"`
	Delivery         grievance.DeliveryState `gorm:"type:varchar(20);not null;default:'pending';index"`
	DeliveryError    string                  `gorm:"type:text"`
	DeliveredAt      *time.Time
	Status           grievance.Status `gorm:"type:varchar(20);not null;default:'Pending';index"`
	StatusChangedBy  *uuid.UUID       `gorm:"type:uuid"`
	StatusChangedAt  *time.Time
}

// TableName returns the table name for GORM
func (GrievanceModel) TableName() string {
	return "grievances"
}

// ToDomain converts the persistence model to a domain Grievance
func (m *GrievanceModel) ToDomain() *grievance.Grievance {
	g := &grievance.Grievance{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		UserID:            m.UserID,
		Problem:           m.Problem,
		City:              m.City,
		MailBody:          m.MailBody,
		DetailedLocation:  m.DetailedLocation,
		Attachments:       []grievance.Attachment(m.Attachments),
		Delivery:          m.Delivery,
		DeliveryError:     m.DeliveryError,
		DeliveredAt:       m.DeliveredAt,
		Status:            m.Status,
		StatusChangedBy:   m.StatusChangedBy,
		StatusChangedAt:   m.StatusChangedAt,
	}
	if m.RequestID != nil {
		g.RequestID = *m.RequestID
	}
	if m.Latitude.Valid && m.Longitude.Valid {
		g.Coordinates = &grievance.Coordinates{
			Latitude:  m.Latitude.Decimal,
			Longitude: m.Longitude.Decimal,
		}
	}
	return g
}

// GrievanceModelFromDomain creates a persistence model from a domain Grievance
func GrievanceModelFromDomain(g *grievance.Grievance) *GrievanceModel {
	m := &GrievanceModel{
		UserID:           g.UserID,
		Problem:          g.Problem,
		City:             g.City,
		MailBody:         g.MailBody,
		DetailedLocation: g.DetailedLocation,
		Attachments:      AttachmentList(g.Attachments),
		Delivery:         g.Delivery,
		DeliveryError:    g.DeliveryError,
		DeliveredAt:      g.DeliveredAt,
		Status:           g.Status,
		StatusChangedBy:  g.StatusChangedBy,
		StatusChangedAt:  g.StatusChangedAt,
	}
	m.FromDomainAggregateRoot(g.BaseAggregateRoot)
	if g.RequestID != "" {
		requestID := g.RequestID
		m.RequestID = &requestID
	}
	if g.Coordinates != nil {
		m.Latitude = decimal.NewNullDecimal(g.Coordinates.Latitude)
		m.Longitude = decimal.NewNullDecimal(g.Coordinates.Longitude)
	}
	return m
}
