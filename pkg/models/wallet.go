package models

import "time"

type WalletLogType string

const (
	LogMint         WalletLogType = "MINT"
	LogGrant        WalletLogType = "GRANT"
	LogPurchase     WalletLogType = "PURCHASE"
	LogTransfer     WalletLogType = "TRANSFER"
	LogCommission   WalletLogType = "ORDER_COMMISSION"
	LogVoucherIssue WalletLogType = "VOUCHER_ISSUE"
	LogVoucherUse   WalletLogType = "VOUCHER_USE"
)

// WalletLog é o registro de auditoria imutável de toda mutação de saldo.
// Append-only: nunca atualizado nem apagado; correção é um lançamento novo.
type WalletLog struct {
	ID           string        `json:"id"`
	Type         WalletLogType `json:"type"`
	UserID       string        `json:"userId,omitempty"`
	UserName     string        `json:"userName,omitempty"`
	OperatorID   string        `json:"operatorId"`
	OperatorName string        `json:"operatorName"`
	Amount       int64         `json:"amount"`
	Note         string        `json:"note"`
	VoucherID    string        `json:"voucherId,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}

type VoucherType string

const (
	VoucherDriverFee    VoucherType = "DRIVER_FEE"
	VoucherRideDiscount VoucherType = "RIDE_DISCOUNT"
)

type VoucherStatus string

const (
	VoucherActive  VoucherStatus = "ACTIVE"
	VoucherUsed    VoucherStatus = "USED"
	VoucherExpired VoucherStatus = "EXPIRED"
)

// Voucher tem saldo próprio, independente dos pontos do usuário.
type Voucher struct {
	ID         string        `json:"id"`
	UserID     string        `json:"userId"`
	Type       VoucherType   `json:"type"`
	Title      string        `json:"title"`
	Amount     int64         `json:"amount"`
	Balance    int64         `json:"balance"`
	ExpiryDate time.Time     `json:"expiryDate"`
	Status     VoucherStatus `json:"status"`
	IssuerID   string        `json:"issuerId"`
	CreatedAt  time.Time     `json:"createdAt"`
}
