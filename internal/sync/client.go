package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"miner-agent/internal/auth"
	"miner-agent/internal/comms"
	"miner-agent/internal/credentials"
	"miner-agent/internal/metrics"
)

// nextSyncAllowed values below this are relative milliseconds; at or
// above it they are absolute Unix milliseconds.
const absoluteMillisCutoff = int64(100_000_000_000)

// Client issues the periodic liveness/capability report. One network
// call per SyncOnce, no internal retries; retry timing belongs entirely
// to the Scheduler.
type Client struct {
	comms       *comms.Client
	url         string
	identity    string
	provider    metrics.Provider
	store       *credentials.Store
	publicKey64 string
	privateKey  *[32]byte
	now         func() time.Time
}

func NewClient(c *comms.Client, url, identity string, provider metrics.Provider, store *credentials.Store, publicKey64 string, privateKey *[32]byte) *Client {
	return &Client{
		comms:       c,
		url:         url,
		identity:    identity,
		provider:    provider,
		store:       store,
		publicKey64: publicKey64,
		privateKey:  privateKey,
		now:         time.Now,
	}
}

type syncRequest struct {
	NodeID    string           `json:"nodeId"`
	PublicKey string           `json:"publicKey,omitempty"`
	Metrics   metrics.Snapshot `json:"metrics"`
	Status    string           `json:"status"`
}

type syncResponse struct {
	Success         bool   `json:"success"`
	SyncStatus      string `json:"syncStatus"`
	NextSyncAllowed int64  `json:"nextSyncAllowed,omitempty"`
	MiningToken     string `json:"miningToken,omitempty"`
	SealedToken     string `json:"sealedToken,omitempty"`
	Log             string `json:"log,omitempty"`
}

// SyncOnce reports the current capability snapshot and classifies the
// server's verdict. A rotated mining token is persisted here; persist
// failure is logged and the in-memory token stays usable.
func (c *Client) SyncOnce(ctx context.Context) Outcome {
	req := syncRequest{
		NodeID:    c.identity,
		PublicKey: c.publicKey64,
		Metrics:   c.provider(),
		Status:    "online",
	}

	var resp syncResponse
	if err := c.comms.PostJSON(ctx, c.url, req, &resp); err != nil {
		return c.classifyError(err)
	}
	if !resp.Success {
		// 2xx without the success flag: the server declined this cycle.
		if resp.Log != "" {
			log.Printf("[SYNC] server declined sync: %s", resp.Log)
		}
		return Outcome{Kind: TransientError, ServerStatus: resp.SyncStatus, Err: fmt.Errorf("server declined sync")}
	}

	out := Outcome{Kind: Success, ServerStatus: resp.SyncStatus}
	if resp.NextSyncAllowed > 0 {
		out.NextAllowedIn = c.nextAllowedIn(resp.NextSyncAllowed)
	}

	token := resp.MiningToken
	if token == "" && resp.SealedToken != "" {
		opened, err := auth.OpenWithPrivateKey(resp.SealedToken, c.privateKey)
		if err != nil {
			// Token unusable this cycle; the next sync will carry a
			// fresh rotation.
			return Outcome{Kind: TransientError, ServerStatus: resp.SyncStatus, Err: fmt.Errorf("open sealed token: %w", err)}
		}
		token = string(opened)
	}
	if token != "" {
		out.RotatedToken = token
		if err := c.store.Save(token); err != nil {
			log.Printf("[SYNC] failed to persist rotated mining token: %v", err)
		} else {
			log.Printf("[SYNC] mining token rotated")
		}
	}
	return out
}

func (c *Client) classifyError(err error) Outcome {
	var ce *comms.CallError
	if !errors.As(err, &ce) {
		return Outcome{Kind: TransientError, Err: err}
	}
	switch ce.Kind {
	case comms.KindRateLimited:
		return Outcome{Kind: RateLimited, RetryAfter: ce.RetryAfter, Err: err}
	case comms.KindPermanent, comms.KindUnauthorized:
		return Outcome{Kind: PermanentError, Err: err}
	default:
		return Outcome{Kind: TransientError, Err: err}
	}
}

func (c *Client) nextAllowedIn(v int64) time.Duration {
	if v >= absoluteMillisCutoff {
		d := time.UnixMilli(v).Sub(c.now())
		if d <= 0 {
			// An already-elapsed time is still a hint, not an absent
			// one; the scheduler clamps it up to its minimum delay.
			return time.Millisecond
		}
		return d
	}
	return time.Duration(v) * time.Millisecond
}
