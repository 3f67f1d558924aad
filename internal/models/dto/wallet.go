package dto

// TopUpRequest starts a wallet top-up for the authenticated account.
type TopUpRequest struct {
	Amount int64  `json:"amount"`
	Lang   string `json:"lang"`
}

// PaymentCallback is the signed settlement notice sent by the payment provider.
type PaymentCallback struct {
	OrderRef string `json:"orderRef"`
	Status   string `json:"status"`
}
