package models

import "time"

// TokenState is the persisted OAuth2 token pair for one Xero tenant.
// The refresh token is rotated on every refresh; only the latest value is usable.
type TokenState struct {
	TenantID             string     `gorm:"column:tenant_id;primaryKey"`
	AccessToken          string     `gorm:"column:access_token"`
	RefreshToken         string     `gorm:"column:refresh_token"`
	AccessTokenExpiresAt *time.Time `gorm:"column:access_token_expires_at"`
	UpdatedAt            time.Time  `gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM
func (TokenState) TableName() string {
	return "xero_token"
}
