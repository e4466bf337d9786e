// Package referral maintains the referrer/referee forest. Each user has
// at most one parent, set once at registration; the structure is kept
// acyclic.
package referral

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"gorm.io/gorm"

	"github.com/basharatali122/hamza-website-backend/internal/apperrors"
	"github.com/basharatali122/hamza-website-backend/internal/models"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 8
	codeAttempts = 5
)

type Graph struct {
	db *gorm.DB
}

func NewGraph(db *gorm.DB) *Graph {
	return &Graph{db: db}
}

func randomCode() (string, error) {
	buf := make([]byte, codeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", fmt.Errorf("generate referral code: %w", err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// GenerateCode allocates a referral code not yet taken by any user. The
// codespace is 36^8 so collisions are freak events, but each candidate
// is still checked and generation gives up after a bounded number of
// tries.
func (g *Graph) GenerateCode(ctx context.Context) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		var count int64
		err = g.db.WithContext(ctx).Model(&models.User{}).
			Where("referral_code = ?", code).
			Count(&count).Error
		if err != nil {
			return "", fmt.Errorf("check referral code: %w", err)
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", apperrors.ErrDuplicateReferralCode
}

// Resolve looks up the owner of a referral code. An unknown code is a
// soft failure: registration proceeds without attribution, so Resolve
// returns (nil, nil) rather than an error.
func (g *Graph) Resolve(ctx context.Context, code string) (*models.User, error) {
	if code == "" {
		return nil, nil
	}
	var referrer models.User
	err := g.db.WithContext(ctx).Where("referral_code = ?", code).First(&referrer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve referral code: %w", err)
	}
	return &referrer, nil
}

// Attach validates the edge referrer -> newUser before the user row is
// created. The new user has no descendants yet, so a single-parent edge
// to an existing user cannot close a cycle; self-referral is the one
// degenerate case and is rejected.
func (g *Graph) Attach(newUser *models.User, referrer *models.User) error {
	if referrer == nil {
		return nil
	}
	if newUser.ReferredBy != nil {
		return apperrors.Validation("referredBy", "is already set")
	}
	if referrer.ID == newUser.ID || referrer.Email == newUser.Email {
		return apperrors.Validation("referralCode", "cannot refer yourself")
	}
	newUser.ReferredBy = &referrer.ID
	return nil
}

// Children returns the direct referees of a user.
func (g *Graph) Children(ctx context.Context, userID string) ([]models.User, error) {
	var children []models.User
	err := g.db.WithContext(ctx).
		Where("referred_by = ?", userID).
		Order("created_at DESC").
		Find(&children).Error
	if err != nil {
		return nil, fmt.Errorf("list referees: %w", err)
	}
	return children, nil
}

// ChildIDs is the index used by traversals: parent id -> child ids.
func (g *Graph) ChildIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := g.db.WithContext(ctx).Model(&models.User{}).
		Where("referred_by = ?", userID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list referee ids: %w", err)
	}
	return ids, nil
}

// Parent returns the referrer of a user, or nil for a root.
func (g *Graph) Parent(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	if err := g.db.WithContext(ctx).First(&u, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if u.ReferredBy == nil {
		return nil, nil
	}
	var parent models.User
	if err := g.db.WithContext(ctx).First(&parent, "id = ?", *u.ReferredBy).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load referrer: %w", err)
	}
	return &parent, nil
}

// Level maps a direct-referral count onto the marketing tier.
func Level(directReferrals int) int {
	switch {
	case directReferrals >= 20:
		return 3
	case directReferrals >= 5:
		return 2
	default:
		return 1
	}
}
