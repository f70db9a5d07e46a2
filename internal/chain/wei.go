package chain

import (
	"fmt"
	"math/big"
	"strings"
)

var weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// ParseEther converts a decimal ether string ("0.1") into wei. Negative
// amounts and more than 18 fractional digits are rejected.
func ParseEther(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" || strings.HasPrefix(amount, "-") {
		return nil, fmt.Errorf("invalid ether amount %q", amount)
	}

	whole, frac, _ := strings.Cut(amount, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 18 {
		return nil, fmt.Errorf("too many decimal places in %q", amount)
	}

	wholeInt, ok := new(big.Int).SetString(whole, 10)
	if !ok {
		return nil, fmt.Errorf("invalid ether amount %q", amount)
	}
	wei := new(big.Int).Mul(wholeInt, weiPerEther)

	if frac != "" {
		fracInt, ok := new(big.Int).SetString(frac+strings.Repeat("0", 18-len(frac)), 10)
		if !ok {
			return nil, fmt.Errorf("invalid ether amount %q", amount)
		}
		wei.Add(wei, fracInt)
	}
	return wei, nil
}

// FormatEther renders wei as a decimal ether string with trailing zeros
// trimmed. Used for display values only; arithmetic stays in wei.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	neg := wei.Sign() < 0
	abs := new(big.Int).Abs(wei)

	quo, rem := new(big.Int).QuoRem(abs, weiPerEther, new(big.Int))
	out := quo.String()
	if rem.Sign() != 0 {
		frac := fmt.Sprintf("%018s", rem.String())
		frac = strings.TrimRight(frac, "0")
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}
