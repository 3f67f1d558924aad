package models

import "time"

// TopUpStatus is the state of a wallet top-up attempt.
type TopUpStatus string

const (
	TopUpInitiated      TopUpStatus = "initiated"
	TopUpGatewayPending TopUpStatus = "gateway_pending"
	TopUpCredited       TopUpStatus = "credited"
	TopUpFailed         TopUpStatus = "failed"
)

// Terminal reports whether no further status transition is allowed.
func (s TopUpStatus) Terminal() bool {
	return s == TopUpCredited || s == TopUpFailed
}

// TopUpStep is one durable sub-write of the credited path.
type TopUpStep string

const (
	StepWalletCredit TopUpStep = "wallet_credit"
	StepWalletNotice TopUpStep = "wallet_notice"
	StepCoinCredit   TopUpStep = "coin_credit"
	StepCoinNotice   TopUpStep = "coin_notice"
)

// TopUp records a wallet top-up and which of its credited-path steps have been applied.
type TopUp struct {
	ID                   string      `json:"id"`
	AccountID            string      `json:"accountId"`
	OrderRef             string      `json:"orderRef"`
	Amount               int64       `json:"amount"`
	Bonus                int64       `json:"bonus"`
	Currency             string      `json:"currency"`
	Lang                 string      `json:"lang"`
	Status               TopUpStatus `json:"status"`
	WalletCredited       bool        `json:"walletCredited"`
	WalletNotified       bool        `json:"walletNotified"`
	CoinsCredited        bool        `json:"coinsCredited"`
	CoinsNotified        bool        `json:"coinsNotified"`
	WalletNotificationID string      `json:"walletNotificationId,omitempty"`
	CoinsNotificationID  string      `json:"coinsNotificationId,omitempty"`
	CreatedAt            time.Time   `json:"createdAt"`
	UpdatedAt            time.Time   `json:"updatedAt"`
}

// StepDone reports whether step has already been applied.
func (t TopUp) StepDone(step TopUpStep) bool {
	switch step {
	case StepWalletCredit:
		return t.WalletCredited
	case StepWalletNotice:
		return t.WalletNotified
	case StepCoinCredit:
		return t.CoinsCredited
	case StepCoinNotice:
		return t.CoinsNotified
	}
	return false
}

// PendingSteps lists the credited-path steps still to apply, in order.
func (t TopUp) PendingSteps() []TopUpStep {
	steps := []TopUpStep{StepWalletCredit, StepWalletNotice}
	if t.Bonus > 0 {
		steps = append(steps, StepCoinCredit, StepCoinNotice)
	}
	pending := make([]TopUpStep, 0, len(steps))
	for _, step := range steps {
		if !t.StepDone(step) {
			pending = append(pending, step)
		}
	}
	return pending
}
