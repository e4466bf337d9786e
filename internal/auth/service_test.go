package auth

import (
	"context"
	"fmt"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/basharatali122/hamza-website-backend/internal/apperrors"
	"github.com/basharatali122/hamza-website-backend/internal/bonus"
	"github.com/basharatali122/hamza-website-backend/internal/logger"
	"github.com/basharatali122/hamza-website-backend/internal/models"
	"github.com/basharatali122/hamza-website-backend/internal/referral"
	"github.com/basharatali122/hamza-website-backend/internal/store"
	"github.com/basharatali122/hamza-website-backend/internal/team"
	"github.com/basharatali122/hamza-website-backend/internal/wallet"
)

const testSecret = "test-jwt-secret"

func newTestService(t *testing.T) (*Service, *gorm.DB, *wallet.Ledger) {
	t.Helper()
	logger.Log = zap.NewNop()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))

	ledger := wallet.NewLedger(db)
	graph := referral.NewGraph(db)
	teams := team.NewAggregator(db, graph, 10)
	bonuses := bonus.NewEngine(db, ledger, teams,
		decimal.RequireFromString("100.00"),
		decimal.RequireFromString("10"))
	return NewService(db, graph, bonuses, testSecret), db, ledger
}

func register(t *testing.T, s *Service, username, referralCode string) *models.User {
	t.Helper()
	u, err := s.Register(context.Background(), RegisterInput{
		Name:         username,
		Username:     username,
		Email:        username + "@test.com",
		Password:     "password123",
		ReferralCode: referralCode,
	})
	require.NoError(t, err)
	return u
}

func TestRegisterAssignsCodeAndDefaults(t *testing.T) {
	s, _, _ := newTestService(t)

	u := register(t, s, "alice", "")
	assert.NotEmpty(t, u.ID)
	assert.Regexp(t, `^[A-Z0-9]{8}$`, u.ReferralCode)
	assert.Equal(t, models.RoleCustomer, u.Role)
	assert.Nil(t, u.ReferredBy)
	assert.NotEqual(t, "password123", u.Password, "password must be hashed")
}

func TestRegisterValidation(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()

	var ve *apperrors.ValidationError
	_, err := s.Register(ctx, RegisterInput{Username: "x", Email: "x@test.com", Password: "p"})
	require.ErrorAs(t, err, &ve, "missing name")

	_, err = s.Register(ctx, RegisterInput{Name: "X", Username: "x", Email: "x@test.com", Password: "p", Role: "superuser"})
	require.ErrorAs(t, err, &ve, "unknown role")
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	s, _, _ := newTestService(t)
	register(t, s, "alice", "")

	_, err := s.Register(context.Background(), RegisterInput{
		Name: "Other", Username: "alice", Email: "other@test.com", Password: "p",
	})
	require.ErrorIs(t, err, apperrors.ErrAlreadyExists)

	_, err = s.Register(context.Background(), RegisterInput{
		Name: "Other", Username: "other", Email: "alice@test.com", Password: "p",
	})
	require.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestRegisterWithReferralCodeAttributesAndPays(t *testing.T) {
	s, db, ledger := newTestService(t)
	ctx := context.Background()

	referrer := register(t, s, "referrer", "")
	referee := register(t, s, "referee", referrer.ReferralCode)

	require.NotNil(t, referee.ReferredBy)
	assert.Equal(t, referrer.ID, *referee.ReferredBy)

	w, err := ledger.GetOrCreate(ctx, referrer.ID)
	require.NoError(t, err)
	assert.True(t, w.BonusBalance.Equal(decimal.RequireFromString("100.00")))

	var event models.ReferralEvent
	require.NoError(t, db.Where("referrer_id = ?", referrer.ID).First(&event).Error)
	assert.Equal(t, referee.ID, event.RefereeID)

	var fresh models.User
	require.NoError(t, db.First(&fresh, "id = ?", referrer.ID).Error)
	assert.Equal(t, 1, fresh.DirectReferrals)
	assert.Equal(t, 1, fresh.TeamSize)
}

func TestRegisterWithUnknownCodeProceedsUnattributed(t *testing.T) {
	s, db, _ := newTestService(t)

	u := register(t, s, "alice", "NOSUCH00")
	assert.Nil(t, u.ReferredBy)

	var events int64
	require.NoError(t, db.Model(&models.ReferralEvent{}).Count(&events).Error)
	assert.EqualValues(t, 0, events)
}

func TestRegisterChainUpdatesUplineCounters(t *testing.T) {
	s, db, _ := newTestService(t)

	a := register(t, s, "a", "")
	b := register(t, s, "b", a.ReferralCode)
	c := register(t, s, "c", b.ReferralCode)
	register(t, s, "d", c.ReferralCode)

	var fresh models.User
	require.NoError(t, db.First(&fresh, "id = ?", a.ID).Error)
	assert.Equal(t, 3, fresh.TeamSize)
	assert.Equal(t, 1, fresh.DirectReferrals)
	assert.Equal(t, 3, fresh.TeamDepth)
}

func TestRegisterAllowsOnlyOneAdmin(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := s.Register(ctx, RegisterInput{
		Name: "Admin", Username: "admin", Email: "admin@test.com", Password: "p", Role: models.RoleAdmin,
	})
	require.NoError(t, err)

	var ve *apperrors.ValidationError
	_, err = s.Register(ctx, RegisterInput{
		Name: "Admin2", Username: "admin2", Email: "admin2@test.com", Password: "p", Role: models.RoleAdmin,
	})
	require.ErrorAs(t, err, &ve)
}

func TestLoginRoundTrip(t *testing.T) {
	s, _, _ := newTestService(t)
	u := register(t, s, "alice", "")

	token, got, err := s.Login(context.Background(), "alice", "password123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	parsed, err := jwt.Parse(token, func(token *jwt.Token) (any, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, u.ID, claims["sub"])
	assert.Equal(t, "customer", claims["role"])
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s, _, _ := newTestService(t)
	register(t, s, "alice", "")

	_, _, err := s.Login(context.Background(), "alice", "wrong")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, _, err = s.Login(context.Background(), "nobody", "password123")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}
