package domain

// User represents a staff member able to log in.
type User struct {
	UserID       string `json:"userID"` // Primary key (UUID)
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"` // bcrypt, never serialized
	IsActive     bool   `json:"isActive"`
	AuditFields
}
