package db

import "time"

type TrustEntryModel struct {
	KeyID            string `gorm:"primaryKey"`
	Alg              string `gorm:"not null"`
	PublicKey        []byte `gorm:"type:bytea;not null"`
	TrustLevel       string `gorm:"not null"`
	Revoked          bool   `gorm:"not null;default:false"`
	RevokedAt        *time.Time
	RevocationReason string
	RegisteredAt     time.Time `gorm:"not null"`
}

func (TrustEntryModel) TableName() string { return "trust_entries" }

type ExecutionModel struct {
	ExecutionID string `gorm:"type:uuid;primaryKey"`
	ToolID      string `gorm:"index;not null"`
	Input       []byte `gorm:"type:jsonb"`
	Output      []byte `gorm:"type:jsonb;not null"`
	Signature   string `gorm:"not null"`
	KeyID       string `gorm:"index;not null"`
	Alg         string `gorm:"not null"`
	Nonce       string
	SignedAt    time.Time `gorm:"index;not null"`
	TrustLevel  string    `gorm:"not null"`
}

func (ExecutionModel) TableName() string { return "signed_executions" }
