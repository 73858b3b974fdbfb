package dto

import (
	"github.com/shopspring/decimal"

	"github.com/lexpraxis/legal_practice_app/internal/core/domain"
)

// RunPayrollRequest asks for a payroll run for one period.
type RunPayrollRequest struct {
	Year  int `json:"year" binding:"required,min=2000,max=2200"`
	Month int `json:"month" binding:"required,min=1,max=12"`
}

// PayslipResponse is the API shape of one employee's computed pay.
type PayslipResponse struct {
	PayslipID          string          `json:"payslipID"`
	EmployeeID         string          `json:"employeeID"`
	Gross              decimal.Decimal `json:"gross"`
	AbsenceDays        int             `json:"absenceDays"`
	AbsenceDeduction   decimal.Decimal `json:"absenceDeduction"`
	TaxDeduction       decimal.Decimal `json:"taxDeduction"`
	InsuranceDeduction decimal.Decimal `json:"insuranceDeduction"`
	MedicalDeduction   decimal.Decimal `json:"medicalDeduction"`
	Net                decimal.Decimal `json:"net"`
	CurrencyCode       string          `json:"currencyCode"`
}

// PayrollRunResponse is the API shape of a payroll run.
type PayrollRunResponse struct {
	RunID         string          `json:"runID"`
	Year          int             `json:"year"`
	Month         int             `json:"month"`
	Status        string          `json:"status"`
	CurrencyCode  string          `json:"currencyCode"`
	TotalGross    decimal.Decimal `json:"totalGross"`
	TotalNet      decimal.Decimal `json:"totalNet"`
	TransactionID *string         `json:"transactionID,omitempty"`
	Payslips      []PayslipResponse `json:"payslips,omitempty"`
}

// ToPayslipResponse converts a domain payslip to its API shape.
func ToPayslipResponse(p domain.Payslip) PayslipResponse {
	return PayslipResponse{
		PayslipID:          p.PayslipID,
		EmployeeID:         p.EmployeeID,
		Gross:              p.Gross,
		AbsenceDays:        p.AbsenceDays,
		AbsenceDeduction:   p.AbsenceDeduction,
		TaxDeduction:       p.TaxDeduction,
		InsuranceDeduction: p.InsuranceDeduction,
		MedicalDeduction:   p.MedicalDeduction,
		Net:                p.Net,
		CurrencyCode:       p.CurrencyCode,
	}
}

// ToPayrollRunResponse converts a domain run (and optional payslips) to its API shape.
func ToPayrollRunResponse(run *domain.PayrollRun, payslips []domain.Payslip) PayrollRunResponse {
	resp := PayrollRunResponse{
		RunID:         run.RunID,
		Year:          run.Year,
		Month:         run.Month,
		Status:        string(run.Status),
		CurrencyCode:  run.CurrencyCode,
		TotalGross:    run.TotalGross,
		TotalNet:      run.TotalNet,
		TransactionID: run.TransactionID,
	}
	for _, p := range payslips {
		resp.Payslips = append(resp.Payslips, ToPayslipResponse(p))
	}
	return resp
}
