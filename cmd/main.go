// Package cmd wires the agent's sync and task-polling loops together.
package cmd

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	stdsync "sync"
	"time"

	"miner-agent/internal/auth"
	"miner-agent/internal/comms"
	conf "miner-agent/internal/config"
	"miner-agent/internal/credentials"
	"miner-agent/internal/journal"
	"miner-agent/internal/metrics"
	syncer "miner-agent/internal/sync"
	"miner-agent/internal/tasks"
)

type Cmd struct {
	cfg         *conf.Config
	keyPublic   *[32]byte
	keyPrivate  *[32]byte
	keyPublic64 string
}

// NewAgent creates the agent and its process-lifetime keypair. The
// public key is advertised on every sync so the server can seal token
// rotations to this node.
func NewAgent(cfg *conf.Config) (*Cmd, error) {
	kPub, kPriv, err := auth.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate agent keypair: %w", err)
	}
	return &Cmd{
		cfg:         cfg,
		keyPublic:   kPub,
		keyPrivate:  kPriv,
		keyPublic64: base64.StdEncoding.EncodeToString(kPub[:]),
	}, nil
}

// Run starts both loops and blocks until ctx is cancelled. A missing
// node identity is the one unrecoverable startup failure; everything
// after boot is converted into scheduling decisions, never a crash.
func (cmd *Cmd) Run(ctx context.Context) error {
	log.Println("[AGENT] starting")

	identity, err := credentials.LoadIdentity(cmd.cfg.NodeIDFile)
	if err != nil {
		return fmt.Errorf("load node identity: %w", err)
	}
	log.Printf("[AGENT] node identity: %s", identity)

	store := credentials.NewStore(cmd.cfg.TokenFile)
	if _, ok, err := store.Load(); err != nil {
		log.Printf("[AGENT] failed to read persisted mining token: %v", err)
	} else if ok {
		log.Println("[AGENT] loaded persisted mining token")
	} else {
		log.Println("[AGENT] no mining token yet, waiting for a qualifying sync")
	}

	var jnl *journal.Journal
	if cmd.cfg.JournalDB != "" {
		jnl, err = journal.Open(cmd.cfg.JournalDB)
		if err != nil {
			log.Printf("[JOURNAL] failed to open %s, continuing without journal: %v", cmd.cfg.JournalDB, err)
			jnl = nil
		} else {
			log.Println("[JOURNAL] open")
		}
	}
	defer func() {
		if cerr := jnl.Close(); cerr != nil {
			log.Printf("[JOURNAL] error closing journal: %v", cerr)
		}
	}()

	httpc := comms.NewClient(cmd.cfg.RequestTimeout(), cmd.cfg.RequestsPerMin)
	provider := metrics.NewHostProvider(cmd.cfg.MetricsFile, "/")

	syncClient := syncer.NewClient(httpc, cmd.cfg.SyncURL(), identity, provider, store, cmd.keyPublic64, cmd.keyPrivate)
	policy := syncer.Policy{
		MinDelay:     cmd.cfg.MinDelay(),
		BaseInterval: cmd.cfg.BaseInterval(),
		MaxDelay:     cmd.cfg.MaxDelay(),
		Multiplier:   cmd.cfg.BackoffMultiplier,
		ErrorCap:     uint(cmd.cfg.ErrorCap),
		SafetyBuffer: cmd.cfg.SafetyBuffer(),
	}
	sched := syncer.NewScheduler(policy, syncer.SystemClock(), syncClient.SyncOnce, jnl)

	broker := auth.NewBroker(httpc, cmd.cfg.AuthCodeURL())
	taskClient := tasks.NewClient(httpc, cmd.cfg.TaskURL(), cmd.cfg.TaskCompleteURL())
	processor := tasks.DelayProcessor{UnitDelay: time.Second, MaxDelay: 30 * time.Second}
	poller := tasks.NewPoller(identity, store, broker, taskClient, processor, cmd.cfg.PollInterval(), jnl)

	var wg stdsync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		sched.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		poller.Run(ctx)
	}()

	statusTicker := time.NewTicker(cmd.cfg.StatusLogInterval())
	defer statusTicker.Stop()
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			log.Println("[AGENT] shut down")
			return nil
		case <-statusTicker.C:
			st := sched.Snapshot()
			log.Printf("[AGENT] status: consecutiveErrors=%d nextSyncAt=%s",
				st.ConsecutiveErrors, st.NextAllowedAt.Format(time.RFC3339))
			for _, line := range recentActivityLines(jnl, 3) {
				log.Printf("[AGENT] recent: %s", line)
			}
		}
	}
}

// recentActivityLines formats the newest journal entries for the
// periodic status log.
func recentActivityLines(jnl *journal.Journal, n int) []string {
	entries, err := jnl.RecentActivity(n)
	if err != nil {
		log.Printf("[JOURNAL] failed to read recent activity: %v", err)
		return nil
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s %s %s", e.At.Format(time.RFC3339), e.Kind, e.Detail))
	}
	return lines
}
