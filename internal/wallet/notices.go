package wallet

import "fmt"

func walletNotice(lang string, amount int64) (title, body string) {
	if lang == "en" {
		return "Wallet Charged", fmt.Sprintf("Your wallet was charged with %d AED.", amount)
	}
	return "تم شحن المحفظة", fmt.Sprintf("تم شحن محفظتك بمبلغ %d درهم.", amount)
}

func coinsNotice(lang string, bonus int64) (title, body string) {
	if lang == "en" {
		return "Coins Added", fmt.Sprintf("You received %d coins as wallet charge bonus.", bonus)
	}
	return "تم إضافة كوينات", fmt.Sprintf("تم إضافة %d كوين لرصيدك كمكافأة شحن المحفظة.", bonus)
}
