package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/lexpraxis/legal_practice_app/internal/apperrors"
	"github.com/lexpraxis/legal_practice_app/internal/core/domain"
	portsrepo "github.com/lexpraxis/legal_practice_app/internal/core/ports/repositories"
	portssvc "github.com/lexpraxis/legal_practice_app/internal/core/ports/services"
	"github.com/lexpraxis/legal_practice_app/internal/core/services"
	"github.com/lexpraxis/legal_practice_app/internal/dto"
)

// --- Mock ExpenseRepository ---
type MockExpenseRepository struct {
	mock.Mock
}

var _ portsrepo.ExpenseRepositoryWithTx = (*MockExpenseRepository)(nil)

func (m *MockExpenseRepository) FindExpenseByID(ctx context.Context, expenseID string) (*domain.Expense, error) {
	args := m.Called(ctx, expenseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Expense), args.Error(1)
}

func (m *MockExpenseRepository) ListExpensesByProject(ctx context.Context, projectID string) ([]domain.Expense, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Expense), args.Error(1)
}

func (m *MockExpenseRepository) SaveExpense(ctx context.Context, expense domain.Expense) error {
	args := m.Called(ctx, expense)
	return args.Error(0)
}

func (m *MockExpenseRepository) MarkApprovedInTx(ctx context.Context, tx pgx.Tx, expenseID, approvedBy string, approvedAt time.Time) error {
	args := m.Called(ctx, tx, expenseID, approvedBy, approvedAt)
	return args.Error(0)
}

func (m *MockExpenseRepository) LinkInvoiceInTx(ctx context.Context, tx pgx.Tx, expenseID, invoiceID, updatedBy string, updatedAt time.Time) error {
	args := m.Called(ctx, tx, expenseID, invoiceID, updatedBy, updatedAt)
	return args.Error(0)
}

func (m *MockExpenseRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Tx), args.Error(1)
}

func (m *MockExpenseRepository) Commit(ctx context.Context, tx pgx.Tx) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockExpenseRepository) Rollback(ctx context.Context, tx pgx.Tx) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

// --- Mock TrustService ---
type MockTrustService struct {
	mock.Mock
}

var _ portssvc.TrustSvcFacade = (*MockTrustService)(nil)

func (m *MockTrustService) AddAdvance(ctx context.Context, companyID string, req dto.AddAdvanceRequest, userID string) (*domain.AdvancePayment, error) {
	args := m.Called(ctx, companyID, req, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AdvancePayment), args.Error(1)
}

func (m *MockTrustService) Credit(ctx context.Context, companyID string, req dto.TrustAdjustmentRequest, userID string) (*domain.TrustAccount, error) {
	args := m.Called(ctx, companyID, req, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TrustAccount), args.Error(1)
}

func (m *MockTrustService) Debit(ctx context.Context, companyID string, req dto.TrustAdjustmentRequest, userID string) (*domain.TrustAccount, error) {
	args := m.Called(ctx, companyID, req, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TrustAccount), args.Error(1)
}

func (m *MockTrustService) Balance(ctx context.Context, companyID, trustAccountID, userID string) (*dto.TrustBalanceResponse, error) {
	args := m.Called(ctx, companyID, trustAccountID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.TrustBalanceResponse), args.Error(1)
}

func (m *MockTrustService) ConsumeAdvanceInTx(ctx context.Context, tx pgx.Tx, companyID, projectID, expenseCurrency string, expenseAmount decimal.Decimal, userID string) (decimal.Decimal, decimal.Decimal, error) {
	args := m.Called(ctx, tx, companyID, projectID, expenseCurrency, expenseAmount, userID)
	if args.Get(0) == nil {
		return decimal.Zero, decimal.Zero, args.Error(2)
	}
	return args.Get(0).(decimal.Decimal), args.Get(1).(decimal.Decimal), args.Error(2)
}

func (m *MockTrustService) DebitInTx(ctx context.Context, tx pgx.Tx, companyID, clientID string, projectID *string, currencyCode string, kind domain.TrustAccountKind, amount decimal.Decimal, description, userID string, invoiceID *string) (*domain.TrustAccount, error) {
	args := m.Called(ctx, tx, companyID, clientID, projectID, currencyCode, kind, amount, description, userID, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TrustAccount), args.Error(1)
}

// --- Mock InvoiceService ---
type MockInvoiceService struct {
	mock.Mock
}

var _ portssvc.InvoiceSvcFacade = (*MockInvoiceService)(nil)

func (m *MockInvoiceService) CreateInvoice(ctx context.Context, companyID string, req dto.CreateInvoiceRequest, userID string) (*domain.Invoice, error) {
	args := m.Called(ctx, companyID, req, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Invoice), args.Error(1)
}

func (m *MockInvoiceService) GetInvoice(ctx context.Context, companyID, invoiceID, userID string) (*domain.Invoice, error) {
	args := m.Called(ctx, companyID, invoiceID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Invoice), args.Error(1)
}

func (m *MockInvoiceService) UpsertItem(ctx context.Context, companyID, invoiceID string, req dto.UpsertInvoiceItemRequest, userID string) (*domain.Invoice, error) {
	args := m.Called(ctx, companyID, invoiceID, req, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Invoice), args.Error(1)
}

func (m *MockInvoiceService) RemoveItem(ctx context.Context, companyID, invoiceID, itemID, userID string) (*domain.Invoice, error) {
	args := m.Called(ctx, companyID, invoiceID, itemID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Invoice), args.Error(1)
}

func (m *MockInvoiceService) UpdateTerms(ctx context.Context, companyID, invoiceID string, req dto.UpdateInvoiceTermsRequest, userID string) (*domain.Invoice, error) {
	args := m.Called(ctx, companyID, invoiceID, req, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Invoice), args.Error(1)
}

func (m *MockInvoiceService) ChangeCurrency(ctx context.Context, companyID, invoiceID string, req dto.ChangeInvoiceCurrencyRequest, userID string) (*domain.Invoice, error) {
	args := m.Called(ctx, companyID, invoiceID, req, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Invoice), args.Error(1)
}

func (m *MockInvoiceService) ApplyTrustPayment(ctx context.Context, companyID, invoiceID string, req dto.TrustPaymentRequest, userID string) (*dto.TrustPaymentResponse, error) {
	args := m.Called(ctx, companyID, invoiceID, req, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.TrustPaymentResponse), args.Error(1)
}

func (m *MockInvoiceService) AttachExpenseInTx(ctx context.Context, tx pgx.Tx, companyID string, expense domain.Expense, userID string) (string, error) {
	args := m.Called(ctx, tx, companyID, expense, userID)
	return args.String(0), args.Error(1)
}

// --- Test Suite Setup ---
type ExpenseServiceTestSuite struct {
	suite.Suite
	mockExpenseRepo *MockExpenseRepository
	mockClientRepo  *MockClientRepository
	mockTrustSvc    *MockTrustService
	mockLedgerSvc   *MockLedgerService
	mockInvoiceSvc  *MockInvoiceService
	service         portssvc.ExpenseSvcFacade
	companyID       string
	clientID        string
	projectID       string
	userID          string
}

func (suite *ExpenseServiceTestSuite) SetupTest() {
	suite.mockExpenseRepo = new(MockExpenseRepository)
	suite.mockClientRepo = new(MockClientRepository)
	suite.mockTrustSvc = new(MockTrustService)
	suite.mockLedgerSvc = new(MockLedgerService)
	suite.mockInvoiceSvc = new(MockInvoiceService)
	suite.service = services.NewExpenseService(suite.mockExpenseRepo, suite.mockClientRepo, suite.mockTrustSvc, suite.mockLedgerSvc, suite.mockInvoiceSvc, nil)

	suite.companyID = uuid.NewString()
	suite.clientID = uuid.NewString()
	suite.projectID = uuid.NewString()
	suite.userID = uuid.NewString()
}

func (suite *ExpenseServiceTestSuite) expense(amount string, approved bool) *domain.Expense {
	return &domain.Expense{
		ExpenseID:    uuid.NewString(),
		CompanyID:    suite.companyID,
		ProjectID:    suite.projectID,
		Description:  "Court filing fee",
		Amount:       decimal.RequireFromString(amount),
		CurrencyCode: "USD",
		IncurredOn:   time.Now().UTC(),
		Approved:     approved,
	}
}

func (suite *ExpenseServiceTestSuite) project() *domain.Project {
	return &domain.Project{
		ProjectID:    suite.projectID,
		ClientID:     suite.clientID,
		CompanyID:    suite.companyID,
		Name:         "Arbitration matter",
		CurrencyCode: "USD",
		IsActive:     true,
	}
}

// --- CreateExpense ---

func (suite *ExpenseServiceTestSuite) TestCreateExpense_Success() {
	ctx := context.Background()
	req := dto.CreateExpenseRequest{
		ProjectID:    suite.projectID,
		Description:  "Translation of exhibits",
		Amount:       decimal.NewFromInt(250),
		CurrencyCode: "USD",
		IncurredOn:   time.Now().UTC(),
	}

	suite.mockClientRepo.On("FindProjectByID", ctx, suite.projectID).Return(suite.project(), nil).Once()
	suite.mockExpenseRepo.On("SaveExpense", ctx, mock.MatchedBy(func(e domain.Expense) bool {
		return !e.Approved && !e.Invoiced && e.CompanyID == suite.companyID
	})).Return(nil).Once()

	expense, err := suite.service.CreateExpense(ctx, suite.companyID, req, suite.userID)

	suite.Require().NoError(err)
	suite.False(expense.Approved)
	suite.False(expense.Invoiced)
	suite.mockExpenseRepo.AssertExpectations(suite.T())
}

func (suite *ExpenseServiceTestSuite) TestCreateExpense_NonPositiveAmount() {
	ctx := context.Background()
	req := dto.CreateExpenseRequest{
		ProjectID:    suite.projectID,
		Description:  "Free filing",
		Amount:       decimal.Zero,
		CurrencyCode: "USD",
		IncurredOn:   time.Now().UTC(),
	}

	_, err := suite.service.CreateExpense(ctx, suite.companyID, req, suite.userID)

	suite.Require().Error(err)
	suite.ErrorIs(err, apperrors.ErrValidation)
	suite.mockExpenseRepo.AssertNotCalled(suite.T(), "SaveExpense", mock.Anything, mock.Anything)
}

// --- ApproveExpense ---

func (suite *ExpenseServiceTestSuite) TestApproveExpense_FullyCoveredByAdvances() {
	ctx := context.Background()
	expense := suite.expense("400", false)
	invoiceID := uuid.NewString()

	suite.mockExpenseRepo.On("FindExpenseByID", ctx, expense.ExpenseID).Return(expense, nil).Once()
	suite.mockClientRepo.On("FindProjectByID", ctx, suite.projectID).Return(suite.project(), nil).Once()
	suite.mockExpenseRepo.On("Begin", ctx).Return(nil, nil).Once()
	suite.mockExpenseRepo.On("MarkApprovedInTx", ctx, mock.Anything, expense.ExpenseID, suite.userID, mock.AnythingOfType("time.Time")).Return(nil).Once()
	suite.mockTrustSvc.On("ConsumeAdvanceInTx", ctx, mock.Anything, suite.companyID, suite.projectID, "USD", decEq("400"), suite.userID).
		Return(decimal.NewFromInt(400), decimal.Zero, nil).Once()
	suite.mockLedgerSvc.On("EnsureAccountInTx", ctx, mock.Anything, suite.companyID, domain.AccountCodeWIP, mock.Anything, domain.Asset, "USD", suite.userID).
		Return(&domain.Account{AccountID: uuid.NewString()}, nil).Once()
	suite.mockLedgerSvc.On("EnsureAccountInTx", ctx, mock.Anything, suite.companyID, domain.AccountCodeClientFunds, mock.Anything, domain.Liability, "USD", suite.userID).
		Return(&domain.Account{AccountID: uuid.NewString()}, nil).Once()
	suite.mockLedgerSvc.On("PostTransactionInTx", ctx, mock.Anything, suite.companyID, mock.MatchedBy(func(glReq dto.CreateTransactionRequest) bool {
		// Fully covered: WIP debit balanced by a single client-funds credit.
		return len(glReq.Lines) == 2 &&
			glReq.Lines[0].Debit.Equal(decimal.NewFromInt(400)) &&
			glReq.Lines[1].Credit.Equal(decimal.NewFromInt(400))
	}), suite.userID).Return(&domain.Transaction{TransactionID: uuid.NewString()}, nil).Once()
	suite.mockInvoiceSvc.On("AttachExpenseInTx", ctx, mock.Anything, suite.companyID, *expense, suite.userID).Return(invoiceID, nil).Once()
	suite.mockExpenseRepo.On("LinkInvoiceInTx", ctx, mock.Anything, expense.ExpenseID, invoiceID, suite.userID, mock.AnythingOfType("time.Time")).Return(nil).Once()
	suite.mockExpenseRepo.On("Commit", ctx, mock.Anything).Return(nil).Once()
	suite.mockExpenseRepo.On("Rollback", ctx, mock.Anything).Return(pgx.ErrTxClosed).Maybe()

	resp, err := suite.service.ApproveExpense(ctx, suite.companyID, expense.ExpenseID, suite.userID)

	suite.Require().NoError(err)
	suite.True(resp.Covered.Equal(decimal.NewFromInt(400)))
	suite.True(resp.Residual.IsZero())
	suite.Equal(invoiceID, resp.InvoiceID)
	// No residual means no direct debit against the expense float.
	suite.mockTrustSvc.AssertNotCalled(suite.T(), "DebitInTx",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	suite.mockExpenseRepo.AssertExpectations(suite.T())
	suite.mockLedgerSvc.AssertExpectations(suite.T())
	suite.mockInvoiceSvc.AssertExpectations(suite.T())
}

func (suite *ExpenseServiceTestSuite) TestApproveExpense_ResidualOverdraftsExpenseFloat() {
	ctx := context.Background()
	expense := suite.expense("500", false)
	invoiceID := uuid.NewString()

	suite.mockExpenseRepo.On("FindExpenseByID", ctx, expense.ExpenseID).Return(expense, nil).Once()
	suite.mockClientRepo.On("FindProjectByID", ctx, suite.projectID).Return(suite.project(), nil).Once()
	suite.mockExpenseRepo.On("Begin", ctx).Return(nil, nil).Once()
	suite.mockExpenseRepo.On("MarkApprovedInTx", ctx, mock.Anything, expense.ExpenseID, suite.userID, mock.AnythingOfType("time.Time")).Return(nil).Once()
	// Advances only cover 300 of the 500.
	suite.mockTrustSvc.On("ConsumeAdvanceInTx", ctx, mock.Anything, suite.companyID, suite.projectID, "USD", decEq("500"), suite.userID).
		Return(decimal.NewFromInt(300), decimal.NewFromInt(200), nil).Once()
	suite.mockTrustSvc.On("DebitInTx", ctx, mock.Anything, suite.companyID, suite.clientID, mock.Anything, "USD",
		domain.ExpenseKind, decEq("200"), mock.AnythingOfType("string"), suite.userID, mock.Anything).
		Return(&domain.TrustAccount{TrustAccountID: uuid.NewString()}, nil).Once()
	suite.mockLedgerSvc.On("EnsureAccountInTx", ctx, mock.Anything, suite.companyID, mock.AnythingOfType("string"), mock.Anything, mock.AnythingOfType("domain.AccountType"), "USD", suite.userID).
		Return(&domain.Account{AccountID: uuid.NewString()}, nil).Times(3)
	suite.mockLedgerSvc.On("PostTransactionInTx", ctx, mock.Anything, suite.companyID, mock.MatchedBy(func(glReq dto.CreateTransactionRequest) bool {
		// WIP 500 debit against client-funds 300 and expenses-payable 200 credits.
		return len(glReq.Lines) == 3 &&
			glReq.Lines[0].Debit.Equal(decimal.NewFromInt(500)) &&
			glReq.Lines[1].Credit.Equal(decimal.NewFromInt(300)) &&
			glReq.Lines[2].Credit.Equal(decimal.NewFromInt(200))
	}), suite.userID).Return(&domain.Transaction{TransactionID: uuid.NewString()}, nil).Once()
	suite.mockInvoiceSvc.On("AttachExpenseInTx", ctx, mock.Anything, suite.companyID, *expense, suite.userID).Return(invoiceID, nil).Once()
	suite.mockExpenseRepo.On("LinkInvoiceInTx", ctx, mock.Anything, expense.ExpenseID, invoiceID, suite.userID, mock.AnythingOfType("time.Time")).Return(nil).Once()
	suite.mockExpenseRepo.On("Commit", ctx, mock.Anything).Return(nil).Once()
	suite.mockExpenseRepo.On("Rollback", ctx, mock.Anything).Return(pgx.ErrTxClosed).Maybe()

	resp, err := suite.service.ApproveExpense(ctx, suite.companyID, expense.ExpenseID, suite.userID)

	suite.Require().NoError(err)
	suite.True(resp.Covered.Equal(decimal.NewFromInt(300)))
	suite.True(resp.Residual.Equal(decimal.NewFromInt(200)))
	suite.mockTrustSvc.AssertExpectations(suite.T())
}

func (suite *ExpenseServiceTestSuite) TestApproveExpense_AlreadyApproved() {
	ctx := context.Background()
	expense := suite.expense("400", true)
	suite.mockExpenseRepo.On("FindExpenseByID", ctx, expense.ExpenseID).Return(expense, nil).Once()

	_, err := suite.service.ApproveExpense(ctx, suite.companyID, expense.ExpenseID, suite.userID)

	suite.Require().Error(err)
	suite.ErrorIs(err, services.ErrAlreadyApproved)
	suite.ErrorIs(err, apperrors.ErrConflict)
	suite.mockExpenseRepo.AssertNotCalled(suite.T(), "Begin", mock.Anything)
}

func (suite *ExpenseServiceTestSuite) TestApproveExpense_LostGuardedUpdateRace() {
	// Another request approved the expense between the read and the guarded
	// update; the flip reports a conflict and everything rolls back.
	ctx := context.Background()
	expense := suite.expense("400", false)

	suite.mockExpenseRepo.On("FindExpenseByID", ctx, expense.ExpenseID).Return(expense, nil).Once()
	suite.mockClientRepo.On("FindProjectByID", ctx, suite.projectID).Return(suite.project(), nil).Once()
	suite.mockExpenseRepo.On("Begin", ctx).Return(nil, nil).Once()
	suite.mockExpenseRepo.On("MarkApprovedInTx", ctx, mock.Anything, expense.ExpenseID, suite.userID, mock.AnythingOfType("time.Time")).
		Return(apperrors.ErrConflict).Once()
	suite.mockExpenseRepo.On("Rollback", ctx, mock.Anything).Return(nil).Once()

	_, err := suite.service.ApproveExpense(ctx, suite.companyID, expense.ExpenseID, suite.userID)

	suite.Require().Error(err)
	suite.ErrorIs(err, services.ErrAlreadyApproved)
	suite.mockTrustSvc.AssertNotCalled(suite.T(), "ConsumeAdvanceInTx",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	suite.mockExpenseRepo.AssertNotCalled(suite.T(), "Commit", mock.Anything, mock.Anything)
}

func (suite *ExpenseServiceTestSuite) TestApproveExpense_WrongTenant() {
	ctx := context.Background()
	expense := suite.expense("400", false)
	expense.CompanyID = uuid.NewString()
	suite.mockExpenseRepo.On("FindExpenseByID", ctx, expense.ExpenseID).Return(expense, nil).Once()

	_, err := suite.service.ApproveExpense(ctx, suite.companyID, expense.ExpenseID, suite.userID)

	suite.Require().Error(err)
	suite.ErrorIs(err, apperrors.ErrNotFound)
}

func TestExpenseServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ExpenseServiceTestSuite))
}
