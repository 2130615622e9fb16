package util

import (
	"fmt"
	"math/big"
	"strings"
)

// NearDecimals is the decimal precision of the native NEAR token (yoctoNEAR).
const NearDecimals = 24

// OneYocto is the minimal attached deposit required by ft_transfer_call.
const OneYocto = "1"

// ToBaseUnits converts a human-readable amount to indivisible base units
// using exact string arithmetic, e.g. "1.5" with 24 decimals ->
// "1500000000000000000000000". Money-valued fields must never round
// through floats.
func ToBaseUnits(amount string, decimals int) (*big.Int, error) {
	if amount == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}

	parts := strings.Split(amount, ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("invalid amount format: %s", amount)
	}
	whole := parts[0]
	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}

	// Pad or truncate the fractional part to the token's precision.
	if len(frac) < decimals {
		frac += strings.Repeat("0", decimals-len(frac))
	} else if len(frac) > decimals {
		frac = frac[:decimals]
	}

	combined := strings.TrimLeft(whole+frac, "0")
	if combined == "" {
		combined = "0"
	}

	result, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", amount)
	}

	return result, nil
}

// FromBaseUnits converts indivisible base units back to a human-readable
// amount, e.g. "1500000000000000000000000" with 24 decimals -> "1.5".
func FromBaseUnits(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}

	str := amount.String()
	if len(str) <= decimals {
		str = strings.Repeat("0", decimals-len(str)+1) + str
	}

	insertPos := len(str) - decimals
	whole := str[:insertPos]
	frac := strings.TrimRight(str[insertPos:], "0")

	if frac == "" {
		return whole
	}
	return whole + "." + frac
}
