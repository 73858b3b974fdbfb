package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lexpraxis/legal_practice_app/internal/core/domain"
)

// CreateInvoiceRequest opens a new DRAFT invoice for a project.
type CreateInvoiceRequest struct {
	ClientID     string          `json:"clientID" binding:"required"`
	ProjectID    string          `json:"projectID" binding:"required"`
	CurrencyCode string          `json:"currencyCode" binding:"required,currencycode"`
	IssueDate    time.Time       `json:"issueDate" binding:"required"`
	Discount     decimal.Decimal `json:"discount"` // Percentage
	Tax          decimal.Decimal `json:"tax"`      // Percentage
}

// UpsertInvoiceItemRequest adds or updates one invoice line. When RefID is
// set, the operation is idempotent per (itemType, refID).
type UpsertInvoiceItemRequest struct {
	ItemType  string          `json:"itemType" binding:"required,oneof=TIME EXPENSE FIXED"`
	RefID     *string         `json:"refID"`
	Details   string          `json:"details"`
	Quantity  decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice decimal.Decimal `json:"unitPrice" binding:"required"`
}

// UpdateInvoiceTermsRequest changes discount/tax percentages.
type UpdateInvoiceTermsRequest struct {
	Discount *decimal.Decimal `json:"discount"`
	Tax      *decimal.Decimal `json:"tax"`
}

// ChangeInvoiceCurrencyRequest switches an invoice to a new currency,
// converting every item's unit price.
type ChangeInvoiceCurrencyRequest struct {
	CurrencyCode string `json:"currencyCode" binding:"required,currencycode"`
}

// TrustPaymentRequest applies client trust money against an invoice.
type TrustPaymentRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// InvoiceItemResponse is the API shape of an invoice line.
type InvoiceItemResponse struct {
	ItemID    string          `json:"itemID"`
	ItemType  string          `json:"itemType"`
	RefID     *string         `json:"refID,omitempty"`
	Details   string          `json:"details"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// InvoiceResponse is the API shape of an invoice with derived totals.
type InvoiceResponse struct {
	InvoiceID     string                `json:"invoiceID"`
	InvoiceNumber string                `json:"invoiceNumber"`
	ClientID      string                `json:"clientID"`
	ProjectID     string                `json:"projectID"`
	CurrencyCode  string                `json:"currencyCode"`
	Status        string                `json:"status"`
	IssueDate     time.Time             `json:"issueDate"`
	Subtotal      decimal.Decimal       `json:"subtotal"`
	Discount      decimal.Decimal       `json:"discount"`
	Tax           decimal.Decimal       `json:"tax"`
	Total         decimal.Decimal       `json:"total"`
	TrustDeducted decimal.Decimal       `json:"trustDeducted"`
	Items         []InvoiceItemResponse `json:"items,omitempty"`
}

// TrustPaymentResponse reports the outcome of applying trust money.
type TrustPaymentResponse struct {
	InvoiceID string          `json:"invoiceID"`
	PaymentID string          `json:"paymentID"`
	Applied   decimal.Decimal `json:"applied"`
	Status    string          `json:"status"`
}

// ToInvoiceItemResponse converts a domain item to its API shape.
func ToInvoiceItemResponse(i domain.InvoiceItem) InvoiceItemResponse {
	return InvoiceItemResponse{
		ItemID:    i.ItemID,
		ItemType:  string(i.ItemType),
		RefID:     i.RefID,
		Details:   i.Details,
		Quantity:  i.Quantity,
		UnitPrice: i.UnitPrice,
		LineTotal: i.LineTotal,
	}
}

// ToInvoiceResponse converts a domain invoice to its API shape.
func ToInvoiceResponse(inv *domain.Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		InvoiceID:     inv.InvoiceID,
		InvoiceNumber: inv.InvoiceNumber,
		ClientID:      inv.ClientID,
		ProjectID:     inv.ProjectID,
		CurrencyCode:  inv.CurrencyCode,
		Status:        string(inv.Status),
		IssueDate:     inv.IssueDate,
		Subtotal:      inv.Subtotal,
		Discount:      inv.Discount,
		Tax:           inv.Tax,
		Total:         inv.Total,
		TrustDeducted: inv.TrustDeducted,
	}
	for _, item := range inv.Items {
		resp.Items = append(resp.Items, ToInvoiceItemResponse(item))
	}
	return resp
}
