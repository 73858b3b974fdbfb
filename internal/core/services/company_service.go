package services

import (
	"context"
	"errors"

	"log/slog"

	"github.com/lexpraxis/legal_practice_app/internal/apperrors"
	"github.com/lexpraxis/legal_practice_app/internal/core/domain"
	portsrepo "github.com/lexpraxis/legal_practice_app/internal/core/ports/repositories"
	portssvc "github.com/lexpraxis/legal_practice_app/internal/core/ports/services"
)

// companyService checks company membership roles for other services.
type companyService struct {
	BaseService
	companyRepo portsrepo.CompanyRepositoryFacade
}

// NewCompanyService creates a new company authorizer.
func NewCompanyService(companyRepo portsrepo.CompanyRepositoryFacade) portssvc.CompanyAuthorizerSvc {
	return &companyService{
		companyRepo: companyRepo,
	}
}

var _ portssvc.CompanyAuthorizerSvc = (*companyService)(nil)

// AuthorizeUserAction checks if a user has required permissions for a company
func (s *companyService) AuthorizeUserAction(ctx context.Context, userID, companyID string, requiredRole domain.UserCompanyRole) error {
	role, err := s.companyRepo.FindUserCompanyRole(ctx, userID, companyID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.LogDebug(ctx, "User not a member of company",
				slog.String("user_id", userID),
				slog.String("company_id", companyID))
			return apperrors.ErrForbidden
		}
		s.LogError(ctx, err, "Failed to find user company role",
			slog.String("user_id", userID),
			slog.String("company_id", companyID))
		return err
	}

	if !hasRequiredRole(role, requiredRole) {
		s.LogDebug(ctx, "User does not have required role",
			slog.String("user_id", userID),
			slog.String("company_id", companyID),
			slog.String("user_role", string(role)),
			slog.String("required_role", string(requiredRole)))
		return apperrors.ErrForbidden
	}

	return nil
}

// hasRequiredRole checks if the user's role meets or exceeds the required role
func hasRequiredRole(userRole, requiredRole domain.UserCompanyRole) bool {
	if userRole == domain.RoleRemoved {
		return false
	}
	switch requiredRole {
	case domain.RoleReadOnly:
		return userRole == domain.RoleReadOnly || userRole == domain.RoleMember || userRole == domain.RoleAdmin
	case domain.RoleMember:
		return userRole == domain.RoleMember || userRole == domain.RoleAdmin
	case domain.RoleAdmin:
		return userRole == domain.RoleAdmin
	default:
		return false
	}
}
