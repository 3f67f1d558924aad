package wallet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBonusFor(t *testing.T) {
	tests := map[int64]int64{
		100:  50,
		500:  250,
		1000: 500,
		5000: 2500,
		77:   0,
		200:  0,
		99:   0,
		1:    0,
	}
	for amount, want := range tests {
		assert.Equal(t, want, BonusFor(amount), "amount %d", amount)
	}
}

func TestTiersReturnsCopy(t *testing.T) {
	list := Tiers()
	list[0].Bonus = 9999
	assert.Equal(t, int64(50), BonusFor(100))
	assert.Len(t, Tiers(), 4)
}
