package domain

// Client is a customer of the firm. Trust sub-ledgers hang off clients,
// optionally narrowed to one of the client's projects.
type Client struct {
	ClientID  string `json:"clientID"` // Primary key (UUID)
	CompanyID string `json:"companyID"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	IsActive  bool   `json:"isActive"`
	AuditFields
}

// Project is a matter/engagement for a client. Advances, expenses and
// invoices are tracked per project.
type Project struct {
	ProjectID    string `json:"projectID"` // Primary key (UUID)
	ClientID     string `json:"clientID"`
	CompanyID    string `json:"companyID"` // Denormalized from client for tenant scoping
	Name         string `json:"name"`
	CurrencyCode string `json:"currencyCode"` // Billing currency
	IsActive     bool   `json:"isActive"`
	AuditFields
}
