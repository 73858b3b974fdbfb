package repositories

import (
	"context"

	"github.com/lexpraxis/legal_practice_app/internal/core/domain"
)

// ExchangeRateReader defines read operations for exchange rate data.
type ExchangeRateReader interface {
	// FindExchangeRate retrieves the latest rate between two currencies, or
	// apperrors.ErrNotFound when no rate is recorded.
	FindExchangeRate(ctx context.Context, fromCurrencyCode, toCurrencyCode string) (*domain.ExchangeRate, error)
}

// ExchangeRateWriter defines write operations for exchange rate data.
type ExchangeRateWriter interface {
	// SaveExchangeRate persists a new exchange rate.
	SaveExchangeRate(ctx context.Context, rate domain.ExchangeRate) error
}

// ExchangeRateRepositoryFacade combines all exchange-rate repository interfaces.
type ExchangeRateRepositoryFacade interface {
	ExchangeRateReader
	ExchangeRateWriter
}

// ClientRepositoryFacade provides client/project lookups for tenant scoping.
type ClientRepositoryFacade interface {
	// FindClientByID retrieves a client.
	FindClientByID(ctx context.Context, clientID string) (*domain.Client, error)

	// FindProjectByID retrieves a project.
	FindProjectByID(ctx context.Context, projectID string) (*domain.Project, error)
}

// CompanyRepositoryFacade provides company and membership lookups.
type CompanyRepositoryFacade interface {
	// FindCompanyByID retrieves a company.
	FindCompanyByID(ctx context.Context, companyID string) (*domain.Company, error)

	// FindUserCompanyRole retrieves the role a user holds in a company, or
	// apperrors.ErrNotFound when the user is not a member.
	FindUserCompanyRole(ctx context.Context, userID, companyID string) (domain.UserCompanyRole, error)
}

// UserRepositoryFacade provides user lookups for authentication.
type UserRepositoryFacade interface {
	// FindUserByID retrieves a user.
	FindUserByID(ctx context.Context, userID string) (*domain.User, error)

	// FindUserByEmail retrieves a user by email.
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// SaveUser inserts a new user.
	SaveUser(ctx context.Context, user domain.User) error
}
