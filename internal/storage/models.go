package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is one ingested price-index reading. Rows are written once and
// never updated.
type Snapshot struct {
	ID          uint         `json:"id" gorm:"primaryKey;column:id"`
	UpdatedTime string       `json:"updated_time" gorm:"column:updated_time"`
	UpdatedISO  string       `json:"updated_iso" gorm:"column:updated_iso"`
	UpdatedUK   string       `json:"updated_uk" gorm:"column:updated_uk"`
	Disclaimer  string       `json:"disclaimer" gorm:"column:disclaimer;type:text"`
	ChartName   string       `json:"chart_name" gorm:"column:chart_name"`
	CreateTime  time.Time    `json:"create_time" gorm:"column:create_time;not null;index"`
	Rates       []RateRecord `json:"rates,omitempty" gorm:"foreignKey:SnapshotID;constraint:OnDelete:CASCADE"`
}

func (Snapshot) TableName() string { return "snapshots" }

// Currency is a directory entry. LocalizedName is operator-curated and is
// only defaulted when the code is first seen.
type Currency struct {
	Code          string `json:"code" gorm:"primaryKey;column:code;size:16"`
	LocalizedName string `json:"localized_name" gorm:"column:localized_name;size:64;not null"`
	EnglishName   string `json:"english_name" gorm:"column:english_name;size:128"`
}

func (Currency) TableName() string { return "currencies" }

// RateRecord is one currency's rate inside a snapshot. Rate and RateFloat
// are stored exactly as supplied by the feed.
type RateRecord struct {
	ID           uint            `json:"id" gorm:"primaryKey;column:id"`
	SnapshotID   uint            `json:"snapshot_id" gorm:"column:snapshot_id;not null;uniqueIndex:idx_rate_snapshot_currency,priority:1"`
	CurrencyCode string          `json:"currency_code" gorm:"column:currency_code;size:16;not null;uniqueIndex:idx_rate_snapshot_currency,priority:2"`
	Currency     *Currency       `json:"currency,omitempty" gorm:"foreignKey:CurrencyCode;references:Code;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Symbol       string          `json:"symbol" gorm:"column:symbol"`
	Rate         string          `json:"rate" gorm:"column:rate;not null"`
	RateFloat    decimal.Decimal `json:"rate_float" gorm:"column:rate_float;type:numeric;not null"`
}

func (RateRecord) TableName() string { return "rate_records" }

// Token represents an API access token. Only the SHA-256 of the raw token is
// stored.
type Token struct {
	ID         string     `json:"id" gorm:"primaryKey;column:id"`
	Name       string     `json:"name" gorm:"column:name"`
	TokenHash  string     `json:"-" gorm:"column:token_hash;uniqueIndex"`
	Role       string     `json:"role" gorm:"column:role"`
	CreatedAt  time.Time  `json:"created_at" gorm:"column:created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" gorm:"column:expires_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" gorm:"column:last_used_at"`
}

func (Token) TableName() string { return "tokens" }

// ScheduledJob records the last run of a background job.
type ScheduledJob struct {
	Name           string    `json:"name" gorm:"primaryKey;column:name"`
	LastRunAt      time.Time `json:"last_run_at" gorm:"column:last_run_at"`
	LastDurationMs int64     `json:"last_duration_ms" gorm:"column:last_duration_ms"`
	LastSuccess    int       `json:"last_success" gorm:"column:last_success"`
	LastError      string    `json:"last_error" gorm:"column:last_error"`
}

func (ScheduledJob) TableName() string { return "scheduled_jobs" }
