package store

import (
	"time"

	"gorm.io/datatypes"
)

// Row types for the relational schema. Raw scraped items are never stored;
// only competitors, their platform bindings and derived insights.

type CompetitorRow struct {
	ID        string    `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;type:varchar(128);not null"`
	Slug      string    `gorm:"column:slug;type:varchar(160);not null;uniqueIndex:uk_owner_slug"`
	UserID    string    `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex:uk_owner_slug"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

type SourceRow struct {
	ID            string     `gorm:"column:id;type:uuid;primaryKey"`
	CompetitorID  string     `gorm:"column:competitor_id;type:uuid;not null;uniqueIndex:uk_competitor_platform"`
	Platform      string     `gorm:"column:platform;type:varchar(32);not null;uniqueIndex:uk_competitor_platform"`
	Target        string     `gorm:"column:target;type:varchar(512)"`
	Enabled       bool       `gorm:"column:enabled;default:true"`
	LastScrapedAt *time.Time `gorm:"column:last_scraped_at"`
}

type FeatureRow struct {
	ID           string         `gorm:"column:id;type:uuid;primaryKey"`
	UserID       string         `gorm:"column:user_id;type:varchar(64);not null;index"`
	CompetitorID string         `gorm:"column:competitor_id;type:uuid;not null;index"`
	Description  string         `gorm:"column:description;type:text;not null"`
	Platform     string         `gorm:"column:platform;type:varchar(32)"`
	EvidenceIDs  datatypes.JSON `gorm:"column:evidence_ids;type:jsonb"`
	CreatedAt    time.Time      `gorm:"column:created_at"`
}

type ComplaintRow struct {
	ID           string         `gorm:"column:id;type:uuid;primaryKey"`
	UserID       string         `gorm:"column:user_id;type:varchar(64);not null;index"`
	CompetitorID string         `gorm:"column:competitor_id;type:uuid;not null;index"`
	Description  string         `gorm:"column:description;type:text;not null"`
	Platform     string         `gorm:"column:platform;type:varchar(32)"`
	EvidenceIDs  datatypes.JSON `gorm:"column:evidence_ids;type:jsonb"`
	CreatedAt    time.Time      `gorm:"column:created_at"`
}

type LeadRow struct {
	ID           string         `gorm:"column:id;type:uuid;primaryKey"`
	UserID       string         `gorm:"column:user_id;type:varchar(64);not null;index"`
	CompetitorID string         `gorm:"column:competitor_id;type:uuid;not null;index"`
	Username     string         `gorm:"column:username;type:varchar(128);not null"`
	Platform     string         `gorm:"column:platform;type:varchar(32)"`
	Excerpt      string         `gorm:"column:excerpt;type:text"`
	Reason       string         `gorm:"column:reason;type:text"`
	EvidenceIDs  datatypes.JSON `gorm:"column:evidence_ids;type:jsonb"`
	CreatedAt    time.Time      `gorm:"column:created_at"`
}

type AlternativeRow struct {
	ID           string         `gorm:"column:id;type:uuid;primaryKey"`
	UserID       string         `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex:uk_alt_identity"`
	CompetitorID string         `gorm:"column:competitor_id;type:uuid;not null;uniqueIndex:uk_alt_identity"`
	Name         string         `gorm:"column:name;type:varchar(128);not null;uniqueIndex:uk_alt_identity"`
	Description  string         `gorm:"column:description;type:text"`
	Confidence   float64        `gorm:"column:confidence;type:numeric(4,3);default:0"`
	Mentions     int            `gorm:"column:mentions;default:1"`
	Platform     string         `gorm:"column:platform;type:varchar(32)"`
	EvidenceIDs  datatypes.JSON `gorm:"column:evidence_ids;type:jsonb"`
	CreatedAt    time.Time      `gorm:"column:created_at"`
	UpdatedAt    time.Time      `gorm:"column:updated_at"`
}

func (CompetitorRow) TableName() string  { return "competitors" }
func (SourceRow) TableName() string      { return "sources" }
func (FeatureRow) TableName() string     { return "features" }
func (ComplaintRow) TableName() string   { return "complaints" }
func (LeadRow) TableName() string        { return "leads" }
func (AlternativeRow) TableName() string { return "alternatives" }
