package chainrpc

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/d10r/sup-metrics-api/pkg/utils"
)

// The three fixed call signatures this service needs. Selectors are the
// first four bytes of keccak256 of the canonical signature.
const (
	selectorBalanceOf   = "0x70a08231" // balanceOf(address)
	selectorTotalSupply = "0x18160ddd" // totalSupply()
	selectorOwner       = "0x8da5cb5b" // owner()
)

var weiPerToken = new(big.Float).SetFloat64(1e18)

// BalanceOfData encodes a balanceOf(address) call.
func BalanceOfData(holder string) string {
	return selectorBalanceOf + padAddress(holder)
}

// TotalSupplyData encodes a totalSupply() call.
func TotalSupplyData() string {
	return selectorTotalSupply
}

// OwnerData encodes an owner() call.
func OwnerData() string {
	return selectorOwner
}

// padAddress left-pads a hex address to a 32-byte argument word.
func padAddress(addr string) string {
	h := strings.TrimPrefix(strings.ToLower(addr), "0x")
	return strings.Repeat("0", 64-len(h)) + h
}

// ParseUint decodes a single uint256 return word.
func ParseUint(raw string) (*big.Int, error) {
	h := strings.TrimPrefix(raw, "0x")
	if h == "" {
		return nil, fmt.Errorf("empty return data")
	}
	n, ok := new(big.Int).SetString(h, 16)
	if !ok {
		return nil, fmt.Errorf("invalid uint return data %q", raw)
	}
	return n, nil
}

// ParseAddress decodes an address return word (last 20 bytes).
func ParseAddress(raw string) (string, error) {
	h := strings.TrimPrefix(strings.ToLower(raw), "0x")
	if len(h) < 40 {
		return "", fmt.Errorf("invalid address return data %q", raw)
	}
	return utils.NormalizeAddress("0x" + h[len(h)-40:]), nil
}

// ToTokens converts a wei amount to whole tokens (18 decimals).
func ToTokens(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerToken).Float64()
	return f
}

// BalanceOf reads an ERC-20 balance in wei.
func (c *Client) BalanceOf(ctx context.Context, token, holder string) (*big.Int, error) {
	raw, err := c.CallOne(ctx, token, BalanceOfData(holder))
	if err != nil {
		return nil, fmt.Errorf("balanceOf %s: %w", holder, err)
	}
	return ParseUint(raw)
}

// TotalSupply reads an ERC-20 total supply in wei.
func (c *Client) TotalSupply(ctx context.Context, token string) (*big.Int, error) {
	raw, err := c.CallOne(ctx, token, TotalSupplyData())
	if err != nil {
		return nil, fmt.Errorf("totalSupply %s: %w", token, err)
	}
	return ParseUint(raw)
}

// Owner resolves the owning account of an ownable contract (a locker's
// owner lookup).
func (c *Client) Owner(ctx context.Context, contract string) (string, error) {
	raw, err := c.CallOne(ctx, contract, OwnerData())
	if err != nil {
		return "", fmt.Errorf("owner %s: %w", contract, err)
	}
	return ParseAddress(raw)
}
