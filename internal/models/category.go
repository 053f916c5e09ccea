package models

import (
	"trade-journal/internal/errors"
)

// CategoryKind is the closed set of transaction categories.
type CategoryKind int

const (
	KindDeposit CategoryKind = iota + 1
	KindWithdrawal
	KindWithdrawalTax
	KindWithdrawalEarnings
	KindFundTrade
	KindPaymentFromTrade
	KindPaymentTax
	KindPaymentEarnings
	KindFeeOpen
	KindFeeClose
	KindOpenTrade
	KindCloseSafetyStop
	KindCloseSafetyStopSlippage
	KindCloseTarget
)

// AllKinds lists every category kind in declaration order.
var AllKinds = []CategoryKind{
	KindDeposit,
	KindWithdrawal,
	KindWithdrawalTax,
	KindWithdrawalEarnings,
	KindFundTrade,
	KindPaymentFromTrade,
	KindPaymentTax,
	KindPaymentEarnings,
	KindFeeOpen,
	KindFeeClose,
	KindOpenTrade,
	KindCloseSafetyStop,
	KindCloseSafetyStopSlippage,
	KindCloseTarget,
}

// Key returns the stable storage key of the kind.
func (k CategoryKind) Key() string {
	switch k {
	case KindDeposit:
		return "deposit"
	case KindWithdrawal:
		return "withdrawal"
	case KindWithdrawalTax:
		return "withdrawal_tax"
	case KindWithdrawalEarnings:
		return "withdrawal_earnings"
	case KindFundTrade:
		return "fund_trade"
	case KindPaymentFromTrade:
		return "payment_from_trade"
	case KindPaymentTax:
		return "payment_tax"
	case KindPaymentEarnings:
		return "payment_earnings"
	case KindFeeOpen:
		return "fee_open"
	case KindFeeClose:
		return "fee_close"
	case KindOpenTrade:
		return "open_trade"
	case KindCloseSafetyStop:
		return "close_safety_stop"
	case KindCloseSafetyStopSlippage:
		return "close_safety_stop_slippage"
	case KindCloseTarget:
		return "close_target"
	}
	return ""
}

func (k CategoryKind) String() string {
	if key := k.Key(); key != "" {
		return key
	}
	return "unknown"
}

// Scope tells whether a category belongs to an account or to a single trade.
type Scope int

const (
	ScopeAccount Scope = iota + 1
	ScopeTrade
)

// Scope returns the scope of the kind.
func (k CategoryKind) Scope() Scope {
	switch k {
	case KindDeposit, KindWithdrawal, KindWithdrawalTax, KindWithdrawalEarnings:
		return ScopeAccount
	case KindFundTrade, KindPaymentFromTrade, KindPaymentTax, KindPaymentEarnings,
		KindFeeOpen, KindFeeClose, KindOpenTrade,
		KindCloseSafetyStop, KindCloseSafetyStopSlippage, KindCloseTarget:
		return ScopeTrade
	}
	return 0
}

// Flow is the effect a category has on the account capital balance.
type Flow int

const (
	FlowIgnored Flow = iota
	FlowInflow
	FlowOutflow
)

// AccountFlow returns how the kind moves the account capital balance.
func (k CategoryKind) AccountFlow() Flow {
	switch k {
	case KindDeposit, KindCloseSafetyStop, KindCloseTarget, KindCloseSafetyStopSlippage:
		return FlowInflow
	case KindWithdrawal, KindWithdrawalTax, KindWithdrawalEarnings,
		KindFeeOpen, KindFeeClose, KindOpenTrade:
		return FlowOutflow
	case KindFundTrade, KindPaymentFromTrade, KindPaymentTax, KindPaymentEarnings:
		return FlowIgnored
	}
	return FlowIgnored
}

// IsExit reports whether the kind records capital returning from a closed position.
func (k CategoryKind) IsExit() bool {
	switch k {
	case KindCloseSafetyStop, KindCloseSafetyStopSlippage, KindCloseTarget:
		return true
	}
	return false
}

// IsFee reports whether the kind is a trade fee.
func (k CategoryKind) IsFee() bool {
	return k == KindFeeOpen || k == KindFeeClose
}

// ParseKind resolves a storage key to its kind.
func ParseKind(key string) (CategoryKind, error) {
	for _, k := range AllKinds {
		if k.Key() == key {
			return k, nil
		}
	}
	return 0, errors.NewValidationError("category", key, "unknown transaction category")
}

// TransactionCategory is a category kind plus the trade it is scoped to, if any.
type TransactionCategory struct {
	Kind    CategoryKind
	TradeID string
}

func Deposit() TransactionCategory            { return TransactionCategory{Kind: KindDeposit} }
func Withdrawal() TransactionCategory         { return TransactionCategory{Kind: KindWithdrawal} }
func WithdrawalTax() TransactionCategory      { return TransactionCategory{Kind: KindWithdrawalTax} }
func WithdrawalEarnings() TransactionCategory { return TransactionCategory{Kind: KindWithdrawalEarnings} }

func FundTrade(tradeID string) TransactionCategory {
	return TransactionCategory{Kind: KindFundTrade, TradeID: tradeID}
}

func PaymentFromTrade(tradeID string) TransactionCategory {
	return TransactionCategory{Kind: KindPaymentFromTrade, TradeID: tradeID}
}

func PaymentTax(tradeID string) TransactionCategory {
	return TransactionCategory{Kind: KindPaymentTax, TradeID: tradeID}
}

func PaymentEarnings(tradeID string) TransactionCategory {
	return TransactionCategory{Kind: KindPaymentEarnings, TradeID: tradeID}
}

func FeeOpen(tradeID string) TransactionCategory {
	return TransactionCategory{Kind: KindFeeOpen, TradeID: tradeID}
}

func FeeClose(tradeID string) TransactionCategory {
	return TransactionCategory{Kind: KindFeeClose, TradeID: tradeID}
}

func OpenTrade(tradeID string) TransactionCategory {
	return TransactionCategory{Kind: KindOpenTrade, TradeID: tradeID}
}

func CloseSafetyStop(tradeID string) TransactionCategory {
	return TransactionCategory{Kind: KindCloseSafetyStop, TradeID: tradeID}
}

func CloseSafetyStopSlippage(tradeID string) TransactionCategory {
	return TransactionCategory{Kind: KindCloseSafetyStopSlippage, TradeID: tradeID}
}

func CloseTarget(tradeID string) TransactionCategory {
	return TransactionCategory{Kind: KindCloseTarget, TradeID: tradeID}
}

// ParseCategory rebuilds a category from its key and optional trade id.
func ParseCategory(key, tradeID string) (TransactionCategory, error) {
	kind, err := ParseKind(key)
	if err != nil {
		return TransactionCategory{}, err
	}
	c := TransactionCategory{Kind: kind, TradeID: tradeID}
	if err := c.Validate(); err != nil {
		return TransactionCategory{}, err
	}
	return c, nil
}

// Key returns the stable storage key of the category.
func (c TransactionCategory) Key() string {
	return c.Kind.Key()
}

func (c TransactionCategory) String() string {
	if c.TradeID == "" {
		return c.Kind.String()
	}
	return c.Kind.String() + "(" + c.TradeID + ")"
}

// Validate checks that the trade id matches the category scope.
func (c TransactionCategory) Validate() error {
	switch c.Kind.Scope() {
	case ScopeAccount:
		if c.TradeID != "" {
			return errors.NewValidationError("trade_id", c.TradeID, c.Kind.Key()+" is account-scoped and takes no trade")
		}
	case ScopeTrade:
		if c.TradeID == "" {
			return errors.NewValidationError("trade_id", c.TradeID, c.Kind.Key()+" requires a trade")
		}
	default:
		return errors.NewValidationError("category", int(c.Kind), "unknown transaction category")
	}
	return nil
}
