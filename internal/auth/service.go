// Package auth handles registration and login. Registration is the
// entry point into the referral graph: an optional referral code
// attributes the new user to a referrer and triggers the signup bonus.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/basharatali122/hamza-website-backend/internal/apperrors"
	"github.com/basharatali122/hamza-website-backend/internal/bonus"
	"github.com/basharatali122/hamza-website-backend/internal/models"
	"github.com/basharatali122/hamza-website-backend/internal/referral"
	"github.com/basharatali122/hamza-website-backend/internal/wallet"
)

const tokenTTL = 24 * time.Hour

type Service struct {
	db      *gorm.DB
	graph   *referral.Graph
	bonuses *bonus.Engine
	secret  []byte
}

func NewService(db *gorm.DB, graph *referral.Graph, bonuses *bonus.Engine, secret string) *Service {
	return &Service{db: db, graph: graph, bonuses: bonuses, secret: []byte(secret)}
}

type RegisterInput struct {
	Name         string      `json:"name"`
	Username     string      `json:"username"`
	Email        string      `json:"email"`
	Password     string      `json:"password"`
	Role         models.Role `json:"role"`
	ReferralCode string      `json:"referralCode"`
}

// Register creates the user, attaches it to the referral forest when a
// known code is supplied, and pays out the signup bonus. User row,
// bonus credit and referral event commit as one unit; an unknown code
// degrades to an unattributed registration instead of failing it.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" || in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, apperrors.Validation("body", "name, username, email and password are required")
	}
	if in.Role == "" {
		in.Role = models.RoleCustomer
	}
	if !models.ValidRole(in.Role) {
		return nil, apperrors.Validation("role", "must be customer, vendor or admin")
	}

	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ? OR email = ?", in.Username, in.Email).
		Count(&count).Error
	if err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("username or email taken: %w", apperrors.ErrAlreadyExists)
	}
	if in.Role == models.RoleAdmin {
		var admins int64
		err := s.db.WithContext(ctx).Model(&models.User{}).
			Where("role = ?", models.RoleAdmin).
			Count(&admins).Error
		if err != nil {
			return nil, fmt.Errorf("check existing admin: %w", err)
		}
		if admins > 0 {
			return nil, apperrors.Validation("role", "only one admin is allowed")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	code, err := s.graph.GenerateCode(ctx)
	if err != nil {
		return nil, err
	}

	referrer, err := s.graph.Resolve(ctx, strings.TrimSpace(in.ReferralCode))
	if err != nil {
		return nil, err
	}

	user := models.User{
		Name:         in.Name,
		Username:     in.Username,
		Email:        in.Email,
		Password:     string(hash),
		Role:         in.Role,
		ReferralCode: code,
	}
	if err := s.graph.Attach(&user, referrer); err != nil {
		return nil, err
	}

	err = wallet.WithConflictRetry(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		if referrer != nil {
			return s.bonuses.OnSignupTx(tx, referrer.ID, user.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if referrer != nil {
		s.bonuses.RefreshTeams(ctx, referrer.ID)
	}
	return &user, nil
}

// Login checks credentials and issues a signed token.
func (s *Service) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", nil, apperrors.Validation("body", "username and password are required")
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, apperrors.ErrNotFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, apperrors.ErrNotFound
	}

	token, err := s.IssueToken(&user)
	if err != nil {
		return "", nil, err
	}
	return token, &user, nil
}

// IssueToken signs an HS256 token carrying the user id and role.
func (s *Service) IssueToken(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":  user.ID,
		"role": string(user.Role),
		"exp":  time.Now().Add(tokenTTL).Unix(),
		"iat":  time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
