package dao

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Candidacy struct {
	ID          uint   `gorm:"primaryKey"`
	CandidateID uint   `gorm:"not null;uniqueIndex:ux_candidacies_identity,priority:1"`
	EditionID   uint   `gorm:"not null;uniqueIndex:ux_candidacies_identity,priority:2"`
	CategoryID  uint   `gorm:"not null;uniqueIndex:ux_candidacies_identity,priority:3"`
	Status      string `gorm:"not null;default:'pending'"`
	VoteCount   int    `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Candidacy) TableName() string {
	return "candidacies"
}

// VoteSetting rows are unique per (edition, category); CategoryID 0 is the
// edition-wide default that category-specific rows override.
type VoteSetting struct {
	ID                     uint  `gorm:"primaryKey"`
	EditionID              uint  `gorm:"not null;uniqueIndex:ux_vote_settings_scope,priority:1"`
	CategoryID             uint  `gorm:"not null;default:0;uniqueIndex:ux_vote_settings_scope,priority:2"`
	IsPaid                 bool  `gorm:"not null;default:false"`
	VotePrice              int64 `gorm:"not null;default:0"`
	FreeVotesPerUser       int   `gorm:"not null;default:0"`
	MaxVotesPerUser        int   `gorm:"not null;default:0"`
	MaxVotesPerCandidate   int   `gorm:"not null;default:0"`
	SingleVotePerCandidate bool  `gorm:"not null;default:false"`
	VoteStart              *time.Time
	VoteEnd                *time.Time
	PaymentMethods         string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (VoteSetting) TableName() string {
	return "vote_settings"
}

type Payment struct {
	ID            uint   `gorm:"primaryKey"`
	Token         string `gorm:"type:varchar(64);not null;uniqueIndex"`
	Reference     string `gorm:"type:varchar(32);not null;uniqueIndex"`
	Amount        int64  `gorm:"not null"`
	Currency      string `gorm:"type:varchar(8);not null"`
	Status        string `gorm:"type:varchar(16);not null;default:'pending';index"`
	TransactionID *string `gorm:"type:varchar(64);uniqueIndex"`
	VotesCount    int    `gorm:"not null"`
	CandidateID   uint   `gorm:"not null;index"`
	EditionID     uint   `gorm:"not null;index"`
	CategoryID    uint   `gorm:"not null;default:0"`
	CustomerEmail string `gorm:"type:varchar(100)"`
	CustomerPhone string `gorm:"type:varchar(20)"`
	Firstname     string `gorm:"type:varchar(50)"`
	Lastname      string `gorm:"type:varchar(50)"`
	Metadata      datatypes.JSONMap `gorm:"type:jsonb"`
	ExpiresAt     time.Time
	PaidAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (Payment) TableName() string {
	return "payments"
}

type Vote struct {
	ID          uint  `gorm:"primaryKey"`
	CandidacyID uint  `gorm:"not null;index"`
	CandidateID uint  `gorm:"not null;index"`
	EditionID   uint  `gorm:"not null;index"`
	CategoryID  uint  `gorm:"not null;default:0"`
	VoterID     *uint `gorm:"index"`
	PaymentID   *uint `gorm:"index"`
	IsPaid      bool  `gorm:"not null;default:false"`
	IPAddress   string `gorm:"type:varchar(45)"`
	UserAgent   string `gorm:"type:varchar(255)"`
	CreatedAt   time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

func (Vote) TableName() string {
	return "votes"
}

// GatewayEvent stores every received provider webhook with dedup metadata,
// so duplicate deliveries short-circuit and anomalies stay auditable.
type GatewayEvent struct {
	ID              uint   `gorm:"primaryKey"`
	ProviderEventID string `gorm:"type:varchar(191);not null;uniqueIndex"`
	EventName       string `gorm:"type:varchar(100);not null;index"`
	TransactionID   string `gorm:"type:varchar(64);index"`
	Payload         string `gorm:"type:text;not null"`
	SignatureValid  bool   `gorm:"not null;default:false"`
	ProcessedAt     *time.Time
	ProcessingError string `gorm:"type:text"`
	CreatedAt       time.Time
}

func (GatewayEvent) TableName() string {
	return "gateway_events"
}
