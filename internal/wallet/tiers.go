package wallet

// Tier is one fixed top-up amount (AED) and the loyalty coins it grants.
type Tier struct {
	Amount int64 `json:"amount"`
	Bonus  int64 `json:"bonus"`
}

var tiers = []Tier{
	{Amount: 100, Bonus: 50},
	{Amount: 500, Bonus: 250},
	{Amount: 1000, Bonus: 500},
	{Amount: 5000, Bonus: 2500},
}

// BonusFor returns the coin bonus for a top-up amount; amounts off the ladder earn none.
func BonusFor(amount int64) int64 {
	for _, t := range tiers {
		if t.Amount == amount {
			return t.Bonus
		}
	}
	return 0
}

// Tiers lists the advertised options in ascending amount order.
func Tiers() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return out
}
