package services

// ServiceContainer holds all the service facades the handlers consume.
type ServiceContainer struct {
	Auth       AuthSvcFacade
	Company    CompanyAuthorizerSvc
	Ledger     LedgerSvcFacade
	Conversion ConversionSvcFacade
	Trust      TrustSvcFacade
	Expense    ExpenseSvcFacade
	Invoice    InvoiceSvcFacade
	Payroll    PayrollSvcFacade
}
