package domain

import "time"

// Company is the tenant boundary. Every other entity belongs to exactly one
// company, directly or through its owning client/project.
type Company struct {
	CompanyID           string  `json:"companyID"` // Primary key (UUID)
	Name                string  `json:"name"`
	DefaultCurrencyCode *string `json:"defaultCurrencyCode"` // e.g. "USD"
	IsActive            bool    `json:"isActive"`
	AuditFields
}

// UserCompanyRole defines the possible roles a user can have within a company.
type UserCompanyRole string

const (
	RoleAdmin    UserCompanyRole = "ADMIN"
	RoleMember   UserCompanyRole = "MEMBER"
	RoleReadOnly UserCompanyRole = "READONLY"
	RoleRemoved  UserCompanyRole = "REMOVED"
)

// UserCompany represents the membership of a User in a Company.
type UserCompany struct {
	UserID    string          `json:"userID"`
	CompanyID string          `json:"companyID"`
	Role      UserCompanyRole `json:"role"`
	JoinedAt  time.Time       `json:"joinedAt"`
}
