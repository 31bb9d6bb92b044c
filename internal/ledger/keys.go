package ledger

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/base58"
	"golang.org/x/crypto/sha3"
)

// addressPrefix is the version byte of mainnet TRON addresses.
const addressPrefix = 0x41

var addressPattern = regexp.MustCompile(`^T[1-9A-HJ-NP-Za-km-z]{33}$`)

// GenerateKey creates a fresh key pair and returns its address and the
// hex-encoded private key.
func GenerateKey() (address string, privateKeyHex string, err error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate key: %w", err)
	}
	return pubKeyToAddress(priv.PubKey()), hex.EncodeToString(priv.Serialize()), nil
}

func AddressFromPrivateKey(privateKeyHex string) (string, error) {
	priv, err := parsePrivateKey(privateKeyHex)
	if err != nil {
		return "", err
	}
	return pubKeyToAddress(priv.PubKey()), nil
}

// IsValidAddress checks the textual form and the base58check checksum.
func IsValidAddress(address string) bool {
	if !addressPattern.MatchString(address) {
		return false
	}
	payload, version, err := base58.CheckDecode(address)
	return err == nil && version == addressPrefix && len(payload) == 20
}

// HexToAddress converts a "41..." hex address to its base58 form.
func HexToAddress(h string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(h, "0x"))
	if err != nil || len(raw) != 21 || raw[0] != addressPrefix {
		return "", fmt.Errorf("%w: %s", ErrInvalidAddress, h)
	}
	return base58.CheckEncode(raw[1:], addressPrefix), nil
}

func pubKeyToAddress(pub *btcec.PublicKey) string {
	uncompressed := pub.SerializeUncompressed()

	h := sha3.NewLegacyKeccak256()
	h.Write(uncompressed[1:])
	digest := h.Sum(nil)

	return base58.CheckEncode(digest[len(digest)-20:], addressPrefix)
}

func parsePrivateKey(privateKeyHex string) (*btcec.PrivateKey, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil || len(raw) != 32 {
		return nil, ErrInvalidKey
	}
	priv, _ := btcec.PrivKeyFromBytes(raw)
	return priv, nil
}

// signDigest returns the 65-byte r||s||v signature TRON nodes expect.
func signDigest(priv *btcec.PrivateKey, digest []byte) []byte {
	compact := ecdsa.SignCompact(priv, digest, false)

	// compact is [27+recid] || r || s
	sig := make([]byte, 65)
	copy(sig, compact[1:])
	sig[64] = compact[0] - 27
	return sig
}
