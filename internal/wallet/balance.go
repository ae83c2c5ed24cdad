package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"strings"

	"walletai/internal/config"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// BalanceReader is the part of ethclient.Client the balance tool needs.
type BalanceReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

type Chain struct {
	Reader BalanceReader
	Symbol string
}

// Balances is the wallet_balance tool. It reads the native balance of an
// address on one of the configured chains.
type Balances struct {
	chains  map[string]Chain
	closers []func()
}

func NewBalances(chains map[string]Chain) *Balances {
	return &Balances{chains: chains}
}

// Dial connects to every configured chain RPC endpoint.
func Dial(ctx context.Context, cfg map[string]*config.ChainConfig) (*Balances, error) {
	b := &Balances{chains: make(map[string]Chain, len(cfg))}
	for name, cc := range cfg {
		client, err := ethclient.DialContext(ctx, cc.RPCURL)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("dialing %s rpc: %w", name, err)
		}
		symbol := cc.Symbol
		if symbol == "" {
			symbol = "ETH"
		}
		b.chains[strings.ToLower(name)] = Chain{Reader: client, Symbol: symbol}
		b.closers = append(b.closers, client.Close)
	}
	return b, nil
}

func (b *Balances) Close() {
	for _, c := range b.closers {
		c()
	}
	b.closers = nil
}

func (b *Balances) Chains() []string {
	names := make([]string, 0, len(b.chains))
	for name := range b.chains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (b *Balances) Name() string { return "wallet_balance" }
func (b *Balances) Description() string {
	return "Read the native coin balance of a wallet address directly from the chain. Supported chains: " + strings.Join(b.Chains(), ", ")
}

func (b *Balances) InputSchema() any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"wallet_address": map[string]any{
				"type":        "string",
				"description": "0x-prefixed EVM address",
			},
			"chain": map[string]any{
				"type":        "string",
				"enum":        b.Chains(),
				"description": "Chain to read the balance from",
			},
		},
		"required":             []string{"wallet_address", "chain"},
		"additionalProperties": false,
	}
}

type balanceResult struct {
	Address string `json:"address"`
	Chain   string `json:"chain"`
	Wei     string `json:"wei"`
	Balance string `json:"balance"`
	Symbol  string `json:"symbol"`
}

func (b *Balances) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		WalletAddress string `json:"wallet_address"`
		Chain         string `json:"chain"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("parsing wallet_balance input: %w", err)
	}
	if !common.IsHexAddress(args.WalletAddress) {
		return "", fmt.Errorf("not an EVM address: %q", args.WalletAddress)
	}
	chain, ok := b.chains[strings.ToLower(args.Chain)]
	if !ok {
		return "", fmt.Errorf("chain %q is not configured", args.Chain)
	}

	addr := common.HexToAddress(args.WalletAddress)
	wei, err := chain.Reader.BalanceAt(ctx, addr, nil)
	if err != nil {
		return "", fmt.Errorf("reading balance: %w", err)
	}

	slog.Debug("wallet: balance read", "chain", args.Chain, "address", addr.Hex())

	out, err := json.Marshal(balanceResult{
		Address: addr.Hex(),
		Chain:   strings.ToLower(args.Chain),
		Wei:     wei.String(),
		Balance: FormatEther(wei),
		Symbol:  chain.Symbol,
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// FormatEther renders a wei amount in whole coins with up to 6 decimals.
func FormatEther(wei *big.Int) string {
	f := new(big.Float).SetPrec(256).SetInt(wei)
	f.Quo(f, big.NewFloat(1e18))
	s := f.Text('f', 6)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}
