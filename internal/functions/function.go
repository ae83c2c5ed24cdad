// Package functions describes the HTTP-backed functions the agent may call
// and adapts them to agent tools.
package functions

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

var ErrInvalid = errors.New("invalid function")

// Argument types a function may declare.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
)

var (
	knownTypes   = []string{TypeString, TypeNumber, TypeInteger, TypeBoolean, TypeArray, TypeObject}
	knownMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE"}
)

type Argument struct {
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type" json:"type"`
	Description string `yaml:"description" json:"description"`
}

type Config struct {
	Method          string            `yaml:"method" json:"method"`
	URL             string            `yaml:"url" json:"url"`
	Platform        string            `yaml:"platform" json:"platform"`
	Headers         map[string]string `yaml:"headers" json:"-"`
	SuccessFeedback string            `yaml:"success_feedback" json:"success_feedback"`
	ErrorFeedback   string            `yaml:"error_feedback" json:"error_feedback"`
}

// Function is a named remote capability the model can invoke. Args are kept
// in declaration order.
type Function struct {
	Name        string     `yaml:"name" json:"name"`
	Description string     `yaml:"description" json:"description"`
	Args        []Argument `yaml:"args" json:"args"`
	Config      Config     `yaml:"config" json:"config"`
}

func (f Function) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalid)
	}
	if strings.TrimSpace(f.Description) == "" {
		return fmt.Errorf("%w %s: empty description", ErrInvalid, f.Name)
	}
	if !slices.Contains(knownMethods, strings.ToUpper(f.Config.Method)) {
		return fmt.Errorf("%w %s: unsupported method %q", ErrInvalid, f.Name, f.Config.Method)
	}
	u, err := url.Parse(f.Config.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w %s: bad url %q", ErrInvalid, f.Name, f.Config.URL)
	}
	seen := make(map[string]bool, len(f.Args))
	for _, a := range f.Args {
		if a.Name == "" {
			return fmt.Errorf("%w %s: argument without name", ErrInvalid, f.Name)
		}
		if seen[a.Name] {
			return fmt.Errorf("%w %s: duplicate argument %q", ErrInvalid, f.Name, a.Name)
		}
		seen[a.Name] = true
		if !slices.Contains(knownTypes, a.Type) {
			return fmt.Errorf("%w %s: argument %q has unknown type %q", ErrInvalid, f.Name, a.Name, a.Type)
		}
	}
	return nil
}

func defaultHeaders(apiKey string) map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + apiKey,
		"Content-Type":  "application/json",
	}
}

// Defaults returns the four wallet-analysis functions served under apiBase.
func Defaults(apiBase, apiKey string) []Function {
	base := strings.TrimRight(apiBase, "/")
	return []Function{
		{
			Name:        "analyze_wallet",
			Description: "Analyze wallet address for transaction history and performance metrics",
			Args: []Argument{
				{Name: "wallet_address", Type: TypeString, Description: "The wallet address to analyze"},
				{Name: "chain", Type: TypeString, Description: "The blockchain to analyze (e.g., base, ethereum)"},
			},
			Config: Config{
				Method:          "GET",
				URL:             base + "/wallet-analysis",
				Platform:        "twitter",
				Headers:         defaultHeaders(apiKey),
				SuccessFeedback: "Successfully analyzed wallet portfolio",
				ErrorFeedback:   "Failed to analyze wallet: Please check the address and try again",
			},
		},
		{
			Name:        "fetch_prices",
			Description: "Fetch current and historical prices for tokens",
			Args: []Argument{
				{Name: "token_addresses", Type: TypeArray, Description: "List of token addresses to fetch prices for"},
			},
			Config: Config{
				Method:          "GET",
				URL:             base + "/prices",
				Platform:        "twitter",
				Headers:         defaultHeaders(apiKey),
				SuccessFeedback: "Successfully fetched token prices",
				ErrorFeedback:   "Failed to fetch price data",
			},
		},
		{
			Name:        "generate_chart",
			Description: "Generate portfolio performance chart with ETH/BTC comparison",
			Args: []Argument{
				{Name: "wallet_data", Type: TypeString, Description: "Wallet performance data for visualization"},
			},
			Config: Config{
				Method:          "POST",
				URL:             base + "/generate-chart",
				Platform:        "twitter",
				Headers:         defaultHeaders(apiKey),
				SuccessFeedback: "Successfully generated performance chart",
				ErrorFeedback:   "Failed to generate chart visualization",
			},
		},
		{
			Name:        "generate_recommendations",
			Description: "Generate portfolio recommendations based on analysis",
			Args: []Argument{
				{Name: "analysis_data", Type: TypeString, Description: "Analyzed wallet data for generating recommendations"},
			},
			Config: Config{
				Method:          "POST",
				URL:             base + "/recommendations",
				Platform:        "twitter",
				Headers:         defaultHeaders(apiKey),
				SuccessFeedback: "Successfully generated recommendations",
				ErrorFeedback:   "Failed to generate recommendations",
			},
		},
	}
}

// Merge overlays extra on base by name. Functions new to base are appended
// in the order they appear in extra.
func Merge(base, extra []Function) []Function {
	out := slices.Clone(base)
	for _, fn := range extra {
		i := slices.IndexFunc(out, func(f Function) bool { return f.Name == fn.Name })
		if i >= 0 {
			out[i] = fn
			continue
		}
		out = append(out, fn)
	}
	return out
}

// ForPlatform keeps the functions bound to platform or to no platform.
func ForPlatform(fns []Function, platform string) []Function {
	var out []Function
	for _, fn := range fns {
		if fn.Config.Platform == "" || strings.EqualFold(fn.Config.Platform, platform) {
			out = append(out, fn)
		}
	}
	return out
}
