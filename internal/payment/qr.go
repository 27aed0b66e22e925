package payment

import (
	"fmt"
	"strings"
)

// BankAccount is the platform collection account rendered into QR payloads.
type BankAccount struct {
	BankName      string
	AccountNumber string
	HolderName    string
}

// QRPayload carries everything a banking app needs to pre-fill a transfer.
// Content is the matching code; banks may truncate or strip formatting from
// transfer descriptions, which is why the code itself has no separators.
type QRPayload struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	HolderName    string `json:"holder_name"`
	AmountMinor   int64  `json:"amount_minor"`
	Content       string `json:"content"`
}

// Encode renders the payload string embedded in the QR image.
// Field order and the version tag are part of the client contract.
func (p QRPayload) Encode() string {
	var b strings.Builder
	b.WriteString("BANKQR|v1")
	b.WriteString("|bank=")
	b.WriteString(sanitizeField(p.BankName))
	b.WriteString("|acct=")
	b.WriteString(sanitizeField(p.AccountNumber))
	b.WriteString("|name=")
	b.WriteString(sanitizeField(p.HolderName))
	fmt.Fprintf(&b, "|amount=%d", p.AmountMinor)
	b.WriteString("|content=")
	b.WriteString(p.Content)
	return b.String()
}

func buildQRPayload(bank BankAccount, amountMinor int64, code string) QRPayload {
	return QRPayload{
		BankName:      bank.BankName,
		AccountNumber: bank.AccountNumber,
		HolderName:    bank.HolderName,
		AmountMinor:   amountMinor,
		Content:       code,
	}
}

// sanitizeField strips the payload delimiter from free-text bank fields.
func sanitizeField(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "|", " ")
}
