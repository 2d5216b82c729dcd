package model

import "time"

// RefreshToken is a ledger row for an issued, not yet revoked refresh token.
// ID is the token's jti; TokenHash is the hex SHA-256 of the signed token.
type RefreshToken struct {
	ID        string `gorm:"type:char(36);primaryKey"`
	TokenHash string `gorm:"type:char(64);uniqueIndex;not null"`
	ExpiresAt *time.Time
	CreatedAt time.Time
}
