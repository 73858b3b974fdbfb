package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Employee is a payroll subject. Salary history lives in SalaryRecord rows;
// the latest record is the gross used by a payroll run.
type Employee struct {
	EmployeeID string `json:"employeeID"` // Primary key (UUID)
	CompanyID  string `json:"companyID"`
	UserID     *string `json:"userID,omitempty"` // Linked login, if any
	Name       string `json:"name"`
	IsActive   bool   `json:"isActive"`
	AuditFields
}

// SalaryRecord is one entry in an employee's salary history.
type SalaryRecord struct {
	SalaryID      string          `json:"salaryID"` // Primary key (UUID)
	EmployeeID    string          `json:"employeeID"`
	Amount        decimal.Decimal `json:"amount"` // Monthly gross
	CurrencyCode  string          `json:"currencyCode"`
	EffectiveFrom time.Time       `json:"effectiveFrom"`
	AuditFields
}

// PayrollStatus is the approval state of a payroll run.
type PayrollStatus string

const (
	PayrollDraft       PayrollStatus = "DRAFT"
	PayrollHRApproved  PayrollStatus = "HR_APPROVED"
	PayrollAccApproved PayrollStatus = "ACC_APPROVED"
)

// PayrollRun aggregates one month's payslips. At most one run exists per
// (company, year, month); the store enforces this with a unique constraint.
type PayrollRun struct {
	RunID         string          `json:"runID"` // Primary key (UUID)
	CompanyID     string          `json:"companyID"`
	Year          int             `json:"year"`
	Month         int             `json:"month"` // 1..12
	Status        PayrollStatus   `json:"status"`
	CurrencyCode  string          `json:"currencyCode"`
	TotalGross    decimal.Decimal `json:"totalGross"`
	TotalNet      decimal.Decimal `json:"totalNet"`
	TransactionID *string         `json:"transactionID,omitempty"` // The aggregated GL entry
	AuditFields
}

// Payslip is one employee's computed pay for a run:
// net = gross - (absence + tax + insurance + medical).
type Payslip struct {
	PayslipID          string          `json:"payslipID"` // Primary key (UUID)
	RunID              string          `json:"runID"`
	EmployeeID         string          `json:"employeeID"`
	Gross              decimal.Decimal `json:"gross"`
	AbsenceDays        int             `json:"absenceDays"`
	AbsenceDeduction   decimal.Decimal `json:"absenceDeduction"`
	TaxDeduction       decimal.Decimal `json:"taxDeduction"`
	InsuranceDeduction decimal.Decimal `json:"insuranceDeduction"`
	MedicalDeduction   decimal.Decimal `json:"medicalDeduction"`
	Net                decimal.Decimal `json:"net"`
	CurrencyCode       string          `json:"currencyCode"`
	AuditFields
}
