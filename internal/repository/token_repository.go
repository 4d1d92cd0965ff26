package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vipul43/ledger-sync/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrTokenNotFound = errors.New("token not found")

// TokenRepository is the persisted source of truth for the Xero token pair.
type TokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Load retrieves the token state for a tenant
func (r *TokenRepository) Load(ctx context.Context, tenantID string) (*models.TokenState, error) {
	var state models.TokenState
	result := r.db.WithContext(ctx).First(&state, "tenant_id = ?", tenantID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to load token: %w", result.Error)
	}
	return &state, nil
}

// Save writes access token, refresh token and expiry in a single statement
func (r *TokenRepository) Save(ctx context.Context, state models.TokenState) error {
	state.UpdatedAt = time.Now()
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&state)
	if result.Error != nil {
		return fmt.Errorf("failed to save token: %w", result.Error)
	}
	return nil
}

// Seed stores a bootstrap refresh token unless one is already persisted.
// It reports whether the seed was written.
func (r *TokenRepository) Seed(ctx context.Context, tenantID, refreshToken string) (bool, error) {
	if refreshToken == "" {
		return false, nil
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.TokenState{
			TenantID:     tenantID,
			RefreshToken: refreshToken,
			UpdatedAt:    time.Now(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to seed token: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}
