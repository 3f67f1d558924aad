package wallet

import "github.com/hongminglow/taheel-be/internal/models"

// Result reports which steps of a top-up have been applied.
type Result struct {
	TopUpID        string             `json:"topUpId"`
	AccountID      string             `json:"accountId"`
	OrderRef       string             `json:"orderRef"`
	Status         models.TopUpStatus `json:"status"`
	Amount         int64              `json:"amount"`
	Bonus          int64              `json:"bonus"`
	WalletCredited bool               `json:"walletCredited"`
	WalletNotified bool               `json:"walletNotified"`
	CoinsCredited  bool               `json:"coinsCredited"`
	CoinsNotified  bool               `json:"coinsNotified"`
	Pending        []models.TopUpStep `json:"pending"`

	topUp models.TopUp
}

func newResult(t models.TopUp) Result {
	pending := []models.TopUpStep{}
	if t.Status == models.TopUpCredited {
		pending = append(pending, t.PendingSteps()...)
	}
	return Result{
		TopUpID:        t.ID,
		AccountID:      t.AccountID,
		OrderRef:       t.OrderRef,
		Status:         t.Status,
		Amount:         t.Amount,
		Bonus:          t.Bonus,
		WalletCredited: t.WalletCredited,
		WalletNotified: t.WalletNotified,
		CoinsCredited:  t.CoinsCredited,
		CoinsNotified:  t.CoinsNotified,
		Pending:        pending,
		topUp:          t,
	}
}

// Complete reports whether the top-up was credited and every applicable step ran.
func (r Result) Complete() bool {
	return r.Status == models.TopUpCredited && len(r.Pending) == 0
}

// CompletedSteps lists applied steps in execution order.
func (r Result) CompletedSteps() []string {
	done := []string{}
	if r.WalletCredited {
		done = append(done, string(models.StepWalletCredit))
	}
	if r.WalletNotified {
		done = append(done, string(models.StepWalletNotice))
	}
	if r.CoinsCredited {
		done = append(done, string(models.StepCoinCredit))
	}
	if r.CoinsNotified {
		done = append(done, string(models.StepCoinNotice))
	}
	return done
}
