package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestExtractAddresses(t *testing.T) {
	text := "@WalletAI check 0xde0b295669a9fd93d5f28d9ec85e40f4cb697bae and 0xDE0B295669A9FD93D5F28D9EC85E40F4CB697BAE, also 0x123 and 0x52908400098527886E0F7030069857D2E4169EE7"
	got := ExtractAddresses(text)
	want := []string{
		"0xde0B295669a9FD93d5F28D9Ec85E40f4cb697BAe",
		"0x52908400098527886E0F7030069857D2E4169EE7",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExtractAddresses = %v, want %v", got, want)
	}
	if got := ExtractAddresses("gm, no wallet here"); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestDetectChain(t *testing.T) {
	tests := []struct {
		text, want string
	}{
		{"analyze my Base wallet", "base"},
		{"on arb please, not polygon", "arbitrum"},
		{"how am I doing?", "ethereum"},
		{"database question", "ethereum"},
	}
	for _, tt := range tests {
		if got := DetectChain(tt.text, "ethereum"); got != tt.want {
			t.Errorf("DetectChain(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}

func TestFormatEther(t *testing.T) {
	tests := map[string]string{
		"0":                    "0",
		"1000000000000000000":  "1",
		"1500000000000000000":  "1.5",
		"123456789000000":      "0.000123",
		"25000000000000000000": "25",
	}
	for wei, want := range tests {
		n, _ := new(big.Int).SetString(wei, 10)
		if got := FormatEther(n); got != want {
			t.Errorf("FormatEther(%s) = %s, want %s", wei, got, want)
		}
	}
}

type fakeReader struct {
	balance *big.Int
	err     error
	got     common.Address
}

func (f *fakeReader) BalanceAt(ctx context.Context, account common.Address, block *big.Int) (*big.Int, error) {
	f.got = account
	return f.balance, f.err
}

func TestBalancesTool(t *testing.T) {
	reader := &fakeReader{balance: big.NewInt(2_500_000_000_000_000_000)}
	tool := NewBalances(map[string]Chain{
		"base":    {Reader: reader, Symbol: "ETH"},
		"polygon": {Reader: &fakeReader{err: errors.New("rpc down")}, Symbol: "POL"},
	})

	out, err := tool.Execute(context.Background(), `{"wallet_address":"0x52908400098527886e0f7030069857d2e4169ee7","chain":"Base"}`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var res balanceResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Balance != "2.5" || res.Symbol != "ETH" || res.Chain != "base" {
		t.Fatalf("result = %+v", res)
	}
	if reader.got.Hex() != "0x52908400098527886E0F7030069857D2E4169EE7" {
		t.Fatalf("queried %s", reader.got.Hex())
	}

	if _, err := tool.Execute(context.Background(), `{"wallet_address":"0x52908400098527886e0f7030069857d2e4169ee7","chain":"polygon"}`); err == nil {
		t.Fatal("expected rpc error")
	}
	if _, err := tool.Execute(context.Background(), `{"wallet_address":"nope","chain":"base"}`); err == nil {
		t.Fatal("expected address error")
	}
	if _, err := tool.Execute(context.Background(), `{"wallet_address":"0x52908400098527886e0f7030069857d2e4169ee7","chain":"solana"}`); err == nil {
		t.Fatal("expected unknown chain error")
	}
	if got := tool.Chains(); !reflect.DeepEqual(got, []string{"base", "polygon"}) {
		t.Fatalf("Chains = %v", got)
	}
}
