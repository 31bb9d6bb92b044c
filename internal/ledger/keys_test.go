package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The secp256k1 key 1 maps to the well known account 7e5f4552...5bdf.
const (
	keyOne     = "0000000000000000000000000000000000000000000000000000000000000001"
	keyOneHash = "7e5f4552091a69125d5dfcb7b8c2659029395bdf"
)

func keyOneAddress(t *testing.T) string {
	t.Helper()
	raw, err := hex.DecodeString(keyOneHash)
	require.NoError(t, err)
	return base58.CheckEncode(raw, addressPrefix)
}

func TestAddressFromPrivateKey(t *testing.T) {
	addr, err := AddressFromPrivateKey(keyOne)
	require.NoError(t, err)
	assert.Equal(t, keyOneAddress(t), addr)
	assert.True(t, IsValidAddress(addr))

	fromHex, err := HexToAddress("41" + keyOneHash)
	require.NoError(t, err)
	assert.Equal(t, addr, fromHex)

	_, err = AddressFromPrivateKey("zz")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestGenerateKey(t *testing.T) {
	addr, priv, err := GenerateKey()
	require.NoError(t, err)
	assert.Len(t, priv, 64)
	assert.True(t, IsValidAddress(addr))

	again, err := AddressFromPrivateKey(priv)
	require.NoError(t, err)
	assert.Equal(t, addr, again)

	other, _, err := GenerateKey()
	require.NoError(t, err)
	assert.NotEqual(t, addr, other)
}

func TestIsValidAddress(t *testing.T) {
	valid := keyOneAddress(t)
	assert.True(t, IsValidAddress(valid))

	tampered := []byte(valid)
	if tampered[10] == 'a' {
		tampered[10] = 'b'
	} else {
		tampered[10] = 'a'
	}

	for _, addr := range []string{
		"",
		"T123",
		string(tampered),
		"A" + valid[1:],
		valid + "x",
		"0x7e5f4552091a69125d5dfcb7b8c2659029395bdf",
	} {
		assert.False(t, IsValidAddress(addr), addr)
	}
}

func TestSignDigest_Recoverable(t *testing.T) {
	priv, err := parsePrivateKey(keyOne)
	require.NoError(t, err)

	digest := sha256.Sum256([]byte("raw transaction bytes"))
	sig := signDigest(priv, digest[:])
	require.Len(t, sig, 65)
	assert.LessOrEqual(t, sig[64], byte(3))

	compact := append([]byte{sig[64] + 27}, sig[:64]...)
	pub, _, err := ecdsa.RecoverCompact(compact, digest[:])
	require.NoError(t, err)
	assert.True(t, pub.IsEqual(priv.PubKey()))
}
