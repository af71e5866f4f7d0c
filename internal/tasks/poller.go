package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"miner-agent/internal/auth"
)

// Processor executes a standard task's payload. It is an external
// collaborator; the agent only cares about the result string it reports
// on completion.
type Processor interface {
	Process(ctx context.Context, task Task) (string, error)
}

// TokenSource is the poller's read-only view of the credential store.
type TokenSource interface {
	Token() (string, bool)
}

// CodeSource obtains a fresh auth code per privileged call.
type CodeSource interface {
	Obtain(ctx context.Context, identity, token string) (auth.Code, error)
}

// TaskProvider is the remote task endpoint pair.
type TaskProvider interface {
	Fetch(ctx context.Context, token, identity, authCode string) (*Task, error)
	Complete(ctx context.Context, done Completion) error
}

// Recorder receives activity records for the journal.
type Recorder interface {
	Record(kind, detail string)
}

// Poller is the independent work-claiming loop. It runs at a fixed short
// interval, decoupled from the sync scheduler, and only ever reads the
// credential store. A failed cycle never terminates the loop.
type Poller struct {
	identity  string
	tokens    TokenSource
	codes     CodeSource
	provider  TaskProvider
	processor Processor
	interval  time.Duration
	rec       Recorder
}

func NewPoller(identity string, tokens TokenSource, codes CodeSource, provider TaskProvider, processor Processor, interval time.Duration, rec Recorder) *Poller {
	return &Poller{
		identity:  identity,
		tokens:    tokens,
		codes:     codes,
		provider:  provider,
		processor: processor,
		interval:  interval,
		rec:       rec,
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	log.Printf("[POLL] task poller started (interval=%s)", p.interval)
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("[POLL] task poller stopped")
			return
		case <-t.C:
			if err := p.cycle(ctx); err != nil {
				log.Printf("[POLL] cycle failed: %v", err)
			}
		}
	}
}

// cycle claims and completes at most one task. Returning nil covers the
// quiet cases (no credentials yet, no task available); errors are logged
// by Run and the loop continues after the normal sleep either way.
func (p *Poller) cycle(ctx context.Context) error {
	token, ok := p.tokens.Token()
	if !ok {
		// Credential acquisition is the sync loop's job.
		log.Println("[POLL] no mining token yet, waiting for sync")
		return nil
	}

	code, err := p.codes.Obtain(ctx, p.identity, token)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			log.Println("[POLL] mining token rejected, waiting for sync to rotate it")
			return nil
		}
		return fmt.Errorf("obtain auth code: %w", err)
	}

	task, err := p.provider.Fetch(ctx, token, p.identity, code.Value)
	if err != nil {
		return err
	}
	if task == nil {
		log.Println("[POLL] no task available")
		return nil
	}

	log.Printf("[POLL] received %s task %s", task.Category, task.ID)
	done := Completion{
		TaskID:   task.ID,
		NodeID:   p.identity,
		Status:   "completed",
		Category: task.Category,
	}
	if task.Category == CategoryStandard {
		result, runErr := p.processor.Process(ctx, *task)
		if runErr != nil {
			done.Status = "failed"
			done.Result = runErr.Error()
			log.Printf("[POLL] task %s processing failed: %v", task.ID, runErr)
		} else {
			done.Result = result
		}
	}

	// Completion needs its own fresh auth code; the fetch code is
	// single-use by construction.
	ackCode, err := p.codes.Obtain(ctx, p.identity, token)
	if err != nil {
		return fmt.Errorf("obtain completion auth code for task %s: %w", task.ID, err)
	}
	done.AuthCode = ackCode.Value

	if err := p.provider.Complete(ctx, done); err != nil {
		return err
	}
	log.Printf("[POLL] task %s acknowledged (%s)", task.ID, done.Status)
	if p.rec != nil {
		p.rec.Record("task", fmt.Sprintf("%s %s %s", task.ID, task.Category, done.Status))
	}
	return nil
}
