package domain

import (
	"github.com/shopspring/decimal"
)

// AccountType defines the fundamental accounting type of an account.
type AccountType string

const (
	Asset       AccountType = "ASSET"
	Liability   AccountType = "LIABILITY"
	Equity      AccountType = "EQUITY"
	Income      AccountType = "INCOME"
	ExpenseType AccountType = "EXPENSE"
)

// Well-known account codes the services provision on demand.
const (
	AccountCodeCash            = "CASH-MAIN"
	AccountCodeClientFunds     = "CLIENT-FUNDS"
	AccountCodeWIP             = "WIP"
	AccountCodeExpensePayable  = "EXPENSE-PAYABLE"
	AccountCodeFeeIncome       = "FEE-INCOME"
	AccountCodeSalaryExpense   = "SALARY-EXP"
	AccountCodeTaxPayable      = "TAX-PAYABLE"
	AccountCodeInsPayable      = "INS-PAYABLE"
	AccountCodeMedicalPayable  = "MED-PAYABLE"
	AccountCodeAbsenceRecovery = "ABSENCE-RECOVERY"
)

// Account represents a general-ledger account within a company.
// Accounts are created on demand by code and never deleted once a
// transaction line refers to them.
type Account struct {
	AccountID    string          `json:"accountID"` // Primary key (UUID)
	CompanyID    string          `json:"companyID"`
	Code         string          `json:"code"` // Unique per company (e.g. "CASH-MAIN")
	Name         string          `json:"name"`
	AccountType  AccountType     `json:"accountType"`
	CurrencyCode string          `json:"currencyCode"`
	IsActive     bool            `json:"isActive"`
	Balance      decimal.Decimal `json:"balance"` // Cached; refreshed transactionally on every posting
	AuditFields
}
