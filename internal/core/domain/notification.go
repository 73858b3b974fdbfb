package domain

// Notification is a persisted message for a user (e.g. "payslip ready").
type Notification struct {
	NotificationID string `json:"notificationID"` // Primary key (UUID)
	CompanyID      string `json:"companyID"`
	EmployeeID     string `json:"employeeID"`
	Message        string `json:"message"`
	Read           bool   `json:"read"`
	AuditFields
}
