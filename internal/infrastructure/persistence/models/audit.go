package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/audit"
	"go.uber.org/zap"
)

var modelLogger = zap.L().Named("persistence.models")

// AuditEventModel is the persistence model for an audit trail entry.
// Meta, Before and After are stored as JSON documents.
type AuditEventModel struct {
	ID         uuid.UUID  `gorm:"type:uuid;primary_key"`
	OccurredAt time.Time  `gorm:"not null;index"`
	Action     string     `gorm:"type:varchar(50);not null;index"`
	ActorID    *uuid.UUID `gorm:"type:uuid;index"`
	ActorType  string     `gorm:"type:varchar(20);not null"`
	ActorName  string     `gorm:"type:varchar(200)"`
	ActorEmail string     `gorm:"type:varchar(200)"`
	EntityType string     `gorm:"type:varchar(50);not null;index:idx_audit_entity,priority:1"`
	EntityID   string     `gorm:"type:varchar(100);not null;index:idx_audit_entity,priority:2"`
	IP         string     `gorm:"type:varchar(64)"`
	UserAgent  string     `gorm:"type:varchar(500)"`
	Route      string     `gorm:"type:varchar(200)"`
	Method     string     `gorm:"type:varchar(10)"`
	RequestID  string     `gorm:"type:varchar(64)"`
	MetaJSON   string     `gorm:"column:meta;type:jsonb;default:'{}'"`
	BeforeJSON string     `gorm:"column:before_state;type:jsonb"`
	AfterJSON  string     `gorm:"column:after_state;type:jsonb"`
}

// TableName returns the table name for GORM
func (AuditEventModel) TableName() string {
	return "audit_events"
}

// ToDomain converts the persistence model to an audit Entry
func (m *AuditEventModel) ToDomain() audit.Entry {
	return audit.Entry{
		ID:         m.ID,
		OccurredAt: m.OccurredAt,
		Action:     m.Action,
		ActorID:    m.ActorID,
		ActorType:  m.ActorType,
		ActorName:  m.ActorName,
		ActorEmail: m.ActorEmail,
		EntityType: m.EntityType,
		EntityID:   m.EntityID,
		IP:         m.IP,
		UserAgent:  m.UserAgent,
		Route:      m.Route,
		Method:     m.Method,
		RequestID:  m.RequestID,
		Meta:       decodeJSONMap(m.MetaJSON, "meta", m.ID),
		Before:     decodeJSONMap(m.BeforeJSON, "before_state", m.ID),
		After:      decodeJSONMap(m.AfterJSON, "after_state", m.ID),
	}
}

// AuditEventModelFromDomain creates a persistence model from an audit Entry
func AuditEventModelFromDomain(e *audit.Entry) *AuditEventModel {
	return &AuditEventModel{
		ID:         e.ID,
		OccurredAt: e.OccurredAt,
		Action:     e.Action,
		ActorID:    e.ActorID,
		ActorType:  e.ActorType,
		ActorName:  e.ActorName,
		ActorEmail: e.ActorEmail,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		IP:         e.IP,
		UserAgent:  e.UserAgent,
		Route:      e.Route,
		Method:     e.Method,
		RequestID:  e.RequestID,
		MetaJSON:   encodeJSONMap(e.Meta, "{}"),
		BeforeJSON: encodeJSONMap(e.Before, ""),
		AfterJSON:  encodeJSONMap(e.After, ""),
	}
}

func encodeJSONMap(m map[string]any, empty string) string {
	if len(m) == 0 {
		return empty
	}
	raw, err := json.Marshal(m)
	if err != nil {
		modelLogger.Warn("failed to encode audit JSON", zap.Error(err))
		return empty
	}
	return string(raw)
}

func decodeJSONMap(raw, column string, id uuid.UUID) map[string]any {
	if raw == "" || raw == "{}" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		modelLogger.Warn("failed to parse audit JSON",
			zap.String("column", column),
			zap.String("audit_id", id.String()),
			zap.Error(err))
		return nil
	}
	return m
}
