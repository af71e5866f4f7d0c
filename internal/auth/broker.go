package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"miner-agent/internal/comms"
)

// ErrUnauthorized means the mining token was rejected by the auth-code
// endpoint, typically because the server rotated it. The caller should
// wait for the sync loop to obtain a fresh token rather than retry.
var ErrUnauthorized = errors.New("mining token rejected by auth-code endpoint")

// Code is a short-lived, single-use authorization code. It must be
// obtained immediately before each privileged call and never reused,
// even while still unexpired.
type Code struct {
	Value     string
	ExpiresIn time.Duration
}

// Broker obtains auth codes. Every Obtain is a fresh network request;
// the broker performs no caching.
type Broker struct {
	client *comms.Client
	url    string
}

func NewBroker(client *comms.Client, url string) *Broker {
	return &Broker{client: client, url: url}
}

type codeRequest struct {
	MiningToken string `json:"miningToken"`
	NodeID      string `json:"nodeId"`
	Nonce       string `json:"nonce"`
	Signature   string `json:"signature"`
}

type codeResponse struct {
	Success   bool   `json:"success"`
	AuthCode  string `json:"authCode"`
	ExpiresIn int    `json:"expiresIn"`
}

// Obtain requests a fresh auth code for identity. The request is signed
// with an HMAC over the node identity and a random nonce, keyed by the
// mining token.
func (b *Broker) Obtain(ctx context.Context, identity, token string) (Code, error) {
	nonce, err := GenerateNonce(16)
	if err != nil {
		return Code{}, fmt.Errorf("generate nonce: %w", err)
	}
	req := codeRequest{
		MiningToken: token,
		NodeID:      identity,
		Nonce:       nonce,
		Signature:   ComputeHMAC(identity, nonce, token),
	}

	var resp codeResponse
	if err := b.client.PostJSON(ctx, b.url, req, &resp); err != nil {
		var ce *comms.CallError
		if errors.As(err, &ce) && (ce.Kind == comms.KindUnauthorized || ce.Status == 403) {
			return Code{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		return Code{}, fmt.Errorf("auth code request: %w", err)
	}
	if !resp.Success || resp.AuthCode == "" {
		return Code{}, fmt.Errorf("auth code request declined by server")
	}
	return Code{
		Value:     resp.AuthCode,
		ExpiresIn: time.Duration(resp.ExpiresIn) * time.Second,
	}, nil
}
