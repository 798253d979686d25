package models

import (
	"encoding/json"
	"errors"
)

type ObligationKind string

const (
	ObligationKindSale     ObligationKind = "Sale"
	ObligationKindPurchase ObligationKind = "Purchase"
	ObligationKindExpense  ObligationKind = "Expense"
	ObligationKindPayroll  ObligationKind = "Payroll"
)

var obligationKinds = map[string]ObligationKind{
	"Sale":     ObligationKindSale,
	"Purchase": ObligationKindPurchase,
	"Expense":  ObligationKindExpense,
	"Payroll":  ObligationKindPayroll,
}

func (k ObligationKind) IsValid() bool {
	_, ok := obligationKinds[string(k)]
	return ok
}

func (k *ObligationKind) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("obligation kind must be string")
	}
	kind, ok := obligationKinds[str]
	if !ok {
		return errors.New("invalid obligation kind")
	}
	*k = kind
	return nil
}

// ObligationStatus is derived from applied vs final amount; see deriveObligationStatus.
type ObligationStatus string

const (
	ObligationStatusPending ObligationStatus = "Pending"
	ObligationStatusPartial ObligationStatus = "Partial"
	ObligationStatusPaid    ObligationStatus = "Paid"
)

type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "Cash"
	PaymentMethodBankTransfer PaymentMethod = "Bank Transfer"
	PaymentMethodCard         PaymentMethod = "Card"
	PaymentMethodCheque       PaymentMethod = "Cheque"
	PaymentMethodOther        PaymentMethod = "Other"
)

var paymentMethods = map[string]PaymentMethod{
	"Cash":          PaymentMethodCash,
	"Bank Transfer": PaymentMethodBankTransfer,
	"Card":          PaymentMethodCard,
	"Cheque":        PaymentMethodCheque,
	"Other":         PaymentMethodOther,
}

func (m PaymentMethod) IsValid() bool {
	_, ok := paymentMethods[string(m)]
	return ok
}

func (m *PaymentMethod) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("payment method must be string")
	}
	method, ok := paymentMethods[str]
	if !ok {
		return errors.New("invalid payment method")
	}
	*m = method
	return nil
}

type OutboxReferenceType string

const (
	OutboxReferenceTypePayment         OutboxReferenceType = "PAYMENT"
	OutboxReferenceTypePaymentReversal OutboxReferenceType = "PAYMENT_REVERSAL"
	OutboxReferenceTypeProductCost     OutboxReferenceType = "PRODUCT_COST"
)

type OutboxAction string

const (
	OutboxActionCreate  OutboxAction = "C"
	OutboxActionReplace OutboxAction = "R"
)
