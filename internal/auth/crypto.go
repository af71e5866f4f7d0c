// Package auth provides the agent keypair, request signing and the
// auth-code broker for privileged calls.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/nacl/box"
)

// GenerateKeyPair generates the agent's X25519/NaCl box keypair. The
// public key is advertised on every sync so the server can seal a
// rotated mining token to this agent.
func GenerateKeyPair() (publicKey, privateKey *[32]byte, err error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return pub, priv, nil
}

// SealToPublicKey encrypts message to the recipient's public key using an
// ephemeral sender key. Layout: nonce (24) + ephemeral pub (32) + box.
func SealToPublicKey(message []byte, recipientPub *[32]byte) (string, error) {
	ephPub, ephPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return "", err
	}
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", err
	}
	sealed := box.Seal(ephPub[:], message, &nonce, recipientPub, ephPriv)
	full := append(nonce[:], sealed...)
	return base64.StdEncoding.EncodeToString(full), nil
}

// OpenWithPrivateKey decrypts a sealed payload produced by SealToPublicKey.
func OpenWithPrivateKey(sealedB64 string, priv *[32]byte) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(sealedB64)
	if err != nil {
		return nil, fmt.Errorf("decode sealed payload: %w", err)
	}
	if len(data) < 24+32 {
		return nil, fmt.Errorf("sealed payload too short: %d bytes", len(data))
	}
	var nonce [24]byte
	copy(nonce[:], data[:24])
	var ephPub [32]byte
	copy(ephPub[:], data[24:56])
	opened, ok := box.Open(nil, data[56:], &nonce, &ephPub, priv)
	if !ok {
		return nil, fmt.Errorf("sealed payload did not open with this key")
	}
	return opened, nil
}

// ComputeHMAC computes the HMAC-SHA256 signature for a message on behalf
// of sender, keyed by the shared credential.
func ComputeHMAC(sender, message, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(sender + message))
	return hex.EncodeToString(mac.Sum(nil))
}

// GenerateNonce generates a random base64-encoded nonce of n bytes.
func GenerateNonce(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
