// Package wallet finds EVM wallet addresses in tweets and reads on-chain
// balances for them.
package wallet

import (
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	addressRe = regexp.MustCompile(`0x[0-9a-fA-F]{40}\b`)
	wordRe    = regexp.MustCompile(`[a-zA-Z]+`)
)

// chainAliases maps words users write in tweets to chain names.
var chainAliases = map[string]string{
	"ethereum":  "ethereum",
	"mainnet":   "ethereum",
	"base":      "base",
	"arbitrum":  "arbitrum",
	"arb":       "arbitrum",
	"optimism":  "optimism",
	"polygon":   "polygon",
	"matic":     "polygon",
	"bsc":       "bsc",
	"bnb":       "bsc",
	"avalanche": "avalanche",
	"avax":      "avalanche",
}

// ExtractAddresses returns the EVM addresses in text in EIP-55 checksum
// form, in order of first appearance and without duplicates.
func ExtractAddresses(text string) []string {
	var out []string
	seen := make(map[common.Address]bool)
	for _, m := range addressRe.FindAllString(text, -1) {
		if !common.IsHexAddress(m) {
			continue
		}
		addr := common.HexToAddress(m)
		if seen[addr] {
			continue
		}
		seen[addr] = true
		out = append(out, addr.Hex())
	}
	return out
}

// DetectChain returns the first chain named in text, or fallback.
func DetectChain(text, fallback string) string {
	for _, w := range wordRe.FindAllString(text, -1) {
		if chain, ok := chainAliases[strings.ToLower(w)]; ok {
			return chain
		}
	}
	return fallback
}
