package events

import (
	"math/big"
	"strconv"
	"strings"

	"safetymodule/crypto"
)

func normalizeAsset(asset string) string {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return ""
	}
	return strings.ToUpper(trimmed)
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func formatBool(v bool) string {
	return strconv.FormatBool(v)
}

func zeroAddress(addr [20]byte) bool {
	return addr == [20]byte{}
}

func accountString(addr [20]byte) string {
	return crypto.FromRaw(crypto.AccountPrefix, addr).String()
}

func marketString(addr [20]byte) string {
	return crypto.FromRaw(crypto.MarketPrefix, addr).String()
}
