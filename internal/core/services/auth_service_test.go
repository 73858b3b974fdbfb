package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/lexpraxis/legal_practice_app/internal/apperrors"
	"github.com/lexpraxis/legal_practice_app/internal/core/domain"
	portsrepo "github.com/lexpraxis/legal_practice_app/internal/core/ports/repositories"
	portssvc "github.com/lexpraxis/legal_practice_app/internal/core/ports/services"
	"github.com/lexpraxis/legal_practice_app/internal/core/services"
	"github.com/lexpraxis/legal_practice_app/internal/dto"
	"github.com/lexpraxis/legal_practice_app/internal/platform/config"
	"github.com/lexpraxis/legal_practice_app/internal/utils"
)

// --- Mock UserRepository ---
type MockUserRepository struct {
	mock.Mock
}

var _ portsrepo.UserRepositoryFacade = (*MockUserRepository)(nil)

func (m *MockUserRepository) FindUserByID(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) SaveUser(ctx context.Context, user domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// --- Test Suite Setup ---
type AuthServiceTestSuite struct {
	suite.Suite
	mockUserRepo *MockUserRepository
	cfg          *config.Config
	service      portssvc.AuthSvcFacade
	userID       string
	email        string
	password     string
}

func (suite *AuthServiceTestSuite) SetupTest() {
	suite.mockUserRepo = new(MockUserRepository)
	suite.cfg = &config.Config{
		JWTSecret:         "test-signing-secret",
		JWTExpiryDuration: time.Hour,
		JWTIssuer:         "lpa-test",
	}
	suite.service = services.NewAuthService(suite.mockUserRepo, suite.cfg)

	suite.userID = uuid.NewString()
	suite.email = "partner@firm.example"
	suite.password = "s3cure-enough"
}

func (suite *AuthServiceTestSuite) user(active bool) *domain.User {
	hash, err := utils.HashPassword(suite.password)
	suite.Require().NoError(err)
	return &domain.User{
		UserID:       suite.userID,
		Name:         "Managing Partner",
		Email:        suite.email,
		PasswordHash: hash,
		IsActive:     active,
	}
}

func (suite *AuthServiceTestSuite) TestLogin_Success() {
	ctx := context.Background()
	suite.mockUserRepo.On("FindUserByEmail", ctx, suite.email).Return(suite.user(true), nil).Once()

	resp, err := suite.service.Login(ctx, dto.LoginRequest{Email: suite.email, Password: suite.password})

	suite.Require().NoError(err)
	suite.Equal(suite.userID, resp.UserID)
	suite.Equal(int64(3600), resp.ExpiresIn)

	// The token must verify against the configured secret and carry the user
	// as subject.
	parsed, err := jwt.ParseWithClaims(resp.Token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(suite.cfg.JWTSecret), nil
	})
	suite.Require().NoError(err)
	claims := parsed.Claims.(*jwt.RegisteredClaims)
	suite.Equal(suite.userID, claims.Subject)
	suite.Equal("lpa-test", claims.Issuer)
	suite.mockUserRepo.AssertExpectations(suite.T())
}

func (suite *AuthServiceTestSuite) TestLogin_WrongPassword() {
	ctx := context.Background()
	suite.mockUserRepo.On("FindUserByEmail", ctx, suite.email).Return(suite.user(true), nil).Once()

	_, err := suite.service.Login(ctx, dto.LoginRequest{Email: suite.email, Password: "wrong"})

	suite.Require().Error(err)
	suite.ErrorIs(err, apperrors.ErrForbidden)
	suite.ErrorIs(err, services.ErrInvalidCredentials)
}

func (suite *AuthServiceTestSuite) TestLogin_UnknownEmailSameError() {
	// An unknown email yields the same error as a bad password so login
	// responses never reveal which accounts exist.
	ctx := context.Background()
	suite.mockUserRepo.On("FindUserByEmail", ctx, "nobody@firm.example").Return(nil, apperrors.ErrNotFound).Once()

	_, err := suite.service.Login(ctx, dto.LoginRequest{Email: "nobody@firm.example", Password: suite.password})

	suite.Require().Error(err)
	suite.ErrorIs(err, apperrors.ErrForbidden)
	suite.ErrorIs(err, services.ErrInvalidCredentials)
	suite.NotErrorIs(err, apperrors.ErrNotFound)
}

func (suite *AuthServiceTestSuite) TestLogin_InactiveUser() {
	ctx := context.Background()
	suite.mockUserRepo.On("FindUserByEmail", ctx, suite.email).Return(suite.user(false), nil).Once()

	_, err := suite.service.Login(ctx, dto.LoginRequest{Email: suite.email, Password: suite.password})

	suite.Require().Error(err)
	suite.ErrorIs(err, services.ErrInvalidCredentials)
}

func (suite *AuthServiceTestSuite) TestRegister_Success() {
	ctx := context.Background()
	suite.mockUserRepo.On("SaveUser", ctx, mock.MatchedBy(func(u domain.User) bool {
		// The stored hash must verify against the plaintext and never equal it.
		return u.Email == suite.email && u.IsActive &&
			u.PasswordHash != suite.password &&
			utils.CheckPasswordHash(suite.password, u.PasswordHash)
	})).Return(nil).Once()

	resp, err := suite.service.Register(ctx, dto.RegisterRequest{
		Name:     "New Associate",
		Email:    suite.email,
		Password: suite.password,
	})

	suite.Require().NoError(err)
	suite.NotEmpty(resp.UserID)
	suite.Equal(suite.email, resp.Email)
	suite.mockUserRepo.AssertExpectations(suite.T())
}

func (suite *AuthServiceTestSuite) TestRegister_ShortPassword() {
	ctx := context.Background()

	_, err := suite.service.Register(ctx, dto.RegisterRequest{
		Name:     "New Associate",
		Email:    suite.email,
		Password: "short",
	})

	suite.Require().Error(err)
	suite.ErrorIs(err, apperrors.ErrValidation)
	suite.mockUserRepo.AssertNotCalled(suite.T(), "SaveUser", mock.Anything, mock.Anything)
}

func (suite *AuthServiceTestSuite) TestRegister_DuplicateEmail() {
	ctx := context.Background()
	suite.mockUserRepo.On("SaveUser", ctx, mock.Anything).Return(apperrors.ErrDuplicate).Once()

	_, err := suite.service.Register(ctx, dto.RegisterRequest{
		Name:     "New Associate",
		Email:    suite.email,
		Password: suite.password,
	})

	suite.Require().Error(err)
	suite.ErrorIs(err, apperrors.ErrDuplicate)
}

func TestAuthServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceTestSuite))
}
