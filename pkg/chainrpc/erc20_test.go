package chainrpc

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalanceOfData(t *testing.T) {
	data := BalanceOfData("0xAbCd000000000000000000000000000000001234")
	assert.Equal(t, selectorBalanceOf+"000000000000000000000000abcd000000000000000000000000000000001234", data)
}

func TestParseUint(t *testing.T) {
	n, err := ParseUint("0x0000000000000000000000000000000000000000000000056bc75e2d63100000")
	require.NoError(t, err)
	// 100 tokens in wei
	assert.Equal(t, "100000000000000000000", n.String())

	_, err = ParseUint("0x")
	assert.Error(t, err)
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("0x000000000000000000000000AbCd000000000000000000000000000000001234")
	require.NoError(t, err)
	assert.Equal(t, "0xabcd000000000000000000000000000000001234", addr)

	_, err = ParseAddress("0x1234")
	assert.Error(t, err)
}

func TestToTokens(t *testing.T) {
	wei, ok := new(big.Int).SetString("1500000000000000000", 10)
	require.True(t, ok)
	assert.InDelta(t, 1.5, ToTokens(wei), 1e-9)
	assert.Zero(t, ToTokens(nil))
}
