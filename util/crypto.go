package util

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"math/big"
	"regexp"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/mailio/go-keyless-server/types"
	"golang.org/x/crypto/sha3"
)

const (
	AddressLength = 32 // bytes
	BlinderLength = 31 // bytes, fits into a single field element
)

// scalar field order of BN254, the nonce is reduced into it so it can be used as a circuit input
var fieldOrder, _ = new(big.Int).SetString("21888242871839275222246405745257275088548364400416034343698204186575808495617", 10)

// RandomBytes returns n bytes from crypto/rand
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// RandomHex returns a hex string of n random bytes (2*n characters)
func RandomHex(n int) (string, error) {
	b, err := RandomBytes(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// DeriveEphemeralNonce commits to the ephemeral public key, its expiry and the blinder.
// The result is a base 10 field element, the same shape the identity provider echoes back in the id token.
func DeriveEphemeralNonce(publicKey ed25519.PublicKey, expiryDateSecs int64, blinder []byte) string {
	h := sha3.New256()
	h.Write([]byte{0x00}) // ed25519 scheme
	h.Write(publicKey)
	var exp [8]byte
	binary.LittleEndian.PutUint64(exp[:], uint64(expiryDateSecs))
	h.Write(exp[:])
	h.Write(blinder)
	n := new(big.Int).SetBytes(h.Sum(nil))
	return n.Mod(n, fieldOrder).String()
}

// Sha256Hex returns the sha256 hash of the data as a hex string
func Sha256Hex(data []byte) string {
	hash := sha256.New()
	hash.Write(data)
	sum := hash.Sum(nil)
	return hex.EncodeToString(sum)
}

// Signing message using ed25519
func Sign(message []byte, privateKey ed25519.PrivateKey) ([]byte, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, types.ErrInvalidPrivateKey
	}
	return ed25519.Sign(privateKey, message), nil
}

// Generated ed25519 signing key pair and returns base64 public key, private key
// returns publicKey, privateKey, error
func GenerateEd25519KeyPair() (*string, *string, error) {
	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	pubKeyBase64 := base64.StdEncoding.EncodeToString(pubKey)
	privKeyBase64 := base64.StdEncoding.EncodeToString(privKey)
	return &pubKeyBase64, &privKeyBase64, nil
}

// GenerateSecp256k1KeyPair returns hex private scalar (32 bytes) and hex uncompressed public point (65 bytes)
func GenerateSecp256k1KeyPair() (string, string, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return "", "", err
	}
	return hex.EncodeToString(priv.Serialize()), hex.EncodeToString(priv.PubKey().SerializeUncompressed()), nil
}

// Secp256k1PublicKeyFromPrivate re-derives the uncompressed public point from a hex private scalar
func Secp256k1PublicKeyFromPrivate(privateKeyHex string) (string, error) {
	raw, err := hex.DecodeString(privateKeyHex)
	if err != nil || len(raw) != secp256k1.PrivKeyBytesLen {
		return "", types.ErrInvalidPrivateKey
	}
	priv := secp256k1.PrivKeyFromBytes(raw)
	return hex.EncodeToString(priv.PubKey().SerializeUncompressed()), nil
}

// IsSecp256k1PublicKey checks the hex value parses as a point on the curve
func IsSecp256k1PublicKey(publicKeyHex string) bool {
	raw, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return false
	}
	_, err = secp256k1.ParsePubKey(raw)
	return err == nil
}

var addressRe = regexp.MustCompile("^0x[0-9a-f]{1,64}$")

// NormalizeAddress lowercases and left pads an account address to 32 bytes
func NormalizeAddress(address string) (string, error) {
	a := strings.ToLower(strings.TrimSpace(address))
	if !strings.HasPrefix(a, "0x") {
		a = "0x" + a
	}
	if !addressRe.MatchString(a) {
		return "", types.ErrBadRequest
	}
	return "0x" + strings.Repeat("0", AddressLength*2-(len(a)-2)) + a[2:], nil
}

// HexWithPrefix encodes bytes the way the node expects them in JSON (0x prefixed)
func HexWithPrefix(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// DecodeHexWithPrefix is the inverse of HexWithPrefix (prefix optional)
func DecodeHexWithPrefix(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}
