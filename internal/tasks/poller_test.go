package tasks

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"miner-agent/internal/auth"
)

type stubTokens struct {
	token   string
	present bool
}

func (s stubTokens) Token() (string, bool) { return s.token, s.present }

type stubCodes struct {
	calls int
	err   error
}

func (s *stubCodes) Obtain(context.Context, string, string) (auth.Code, error) {
	if s.err != nil {
		return auth.Code{}, s.err
	}
	s.calls++
	return auth.Code{Value: fmt.Sprintf("code-%d", s.calls), ExpiresIn: time.Minute}, nil
}

type stubProvider struct {
	task        *Task
	fetchErr    error
	completeErr error

	fetchCodes  []string
	completions []Completion
}

func (p *stubProvider) Fetch(_ context.Context, _, _, authCode string) (*Task, error) {
	p.fetchCodes = append(p.fetchCodes, authCode)
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	return p.task, nil
}

func (p *stubProvider) Complete(_ context.Context, done Completion) error {
	p.completions = append(p.completions, done)
	return p.completeErr
}

type stubProcessor struct {
	calls  int
	result string
	err    error
}

func (p *stubProcessor) Process(context.Context, Task) (string, error) {
	p.calls++
	return p.result, p.err
}

func newTestPoller(tokens TokenSource, codes *stubCodes, provider *stubProvider, proc *stubProcessor) *Poller {
	return NewPoller("node-1", tokens, codes, provider, proc, time.Second, nil)
}

func TestCycleWithoutTokenWaitsForSync(t *testing.T) {
	codes := &stubCodes{}
	provider := &stubProvider{}
	p := newTestPoller(stubTokens{}, codes, provider, &stubProcessor{})

	require.NoError(t, p.cycle(context.Background()))
	require.Zero(t, codes.calls, "no auth code without a token")
	require.Empty(t, provider.fetchCodes)
}

func TestCycleNoTaskAvailableMakesNoStateChange(t *testing.T) {
	codes := &stubCodes{}
	provider := &stubProvider{task: nil}
	proc := &stubProcessor{}
	p := newTestPoller(stubTokens{token: "tok", present: true}, codes, provider, proc)

	require.NoError(t, p.cycle(context.Background()))
	require.Len(t, provider.fetchCodes, 1)
	require.Empty(t, provider.completions)
	require.Zero(t, proc.calls)
}

func TestStandardTaskUsesTwoDistinctAuthCodes(t *testing.T) {
	codes := &stubCodes{}
	provider := &stubProvider{task: &Task{ID: "t-1", Category: CategoryStandard}}
	proc := &stubProcessor{result: `{"ok":true}`}
	p := newTestPoller(stubTokens{token: "tok", present: true}, codes, provider, proc)

	require.NoError(t, p.cycle(context.Background()))

	require.Equal(t, 1, proc.calls)
	require.Equal(t, 2, codes.calls, "fetch and completion each need a fresh code")
	require.Len(t, provider.completions, 1)
	done := provider.completions[0]
	require.Equal(t, "code-1", provider.fetchCodes[0])
	require.Equal(t, "code-2", done.AuthCode)
	require.NotEqual(t, provider.fetchCodes[0], done.AuthCode)
	require.Equal(t, "completed", done.Status)
	require.Equal(t, `{"ok":true}`, done.Result)
	require.Equal(t, CategoryStandard, done.Category)
}

func TestPlaceholderTaskAcknowledgedWithoutPayload(t *testing.T) {
	codes := &stubCodes{}
	provider := &stubProvider{task: &Task{ID: "t-2", Category: CategoryPlaceholder}}
	proc := &stubProcessor{result: "unused"}
	p := newTestPoller(stubTokens{token: "tok", present: true}, codes, provider, proc)

	require.NoError(t, p.cycle(context.Background()))

	require.Zero(t, proc.calls, "placeholder tasks carry no work")
	require.Len(t, provider.completions, 1)
	done := provider.completions[0]
	require.Empty(t, done.Result)
	require.Equal(t, "completed", done.Status)
	require.Equal(t, CategoryPlaceholder, done.Category)
}

func TestProcessorFailureIsReportedAsFailed(t *testing.T) {
	codes := &stubCodes{}
	provider := &stubProvider{task: &Task{ID: "t-3", Category: CategoryStandard}}
	proc := &stubProcessor{err: errors.New("payload exploded")}
	p := newTestPoller(stubTokens{token: "tok", present: true}, codes, provider, proc)

	require.NoError(t, p.cycle(context.Background()))

	require.Len(t, provider.completions, 1)
	done := provider.completions[0]
	require.Equal(t, "failed", done.Status)
	require.Contains(t, done.Result, "payload exploded")
}

func TestRejectedTokenWaitsInsteadOfErroring(t *testing.T) {
	codes := &stubCodes{err: fmt.Errorf("wrapped: %w", auth.ErrUnauthorized)}
	provider := &stubProvider{}
	p := newTestPoller(stubTokens{token: "tok", present: true}, codes, provider, &stubProcessor{})

	require.NoError(t, p.cycle(context.Background()))
	require.Empty(t, provider.fetchCodes)
}

func TestFetchFailureDoesNotPoisonNextCycle(t *testing.T) {
	codes := &stubCodes{}
	provider := &stubProvider{fetchErr: errors.New("connection reset")}
	p := newTestPoller(stubTokens{token: "tok", present: true}, codes, provider, &stubProcessor{})

	require.Error(t, p.cycle(context.Background()))

	provider.fetchErr = nil
	provider.task = &Task{ID: "t-4", Category: CategoryPlaceholder}
	require.NoError(t, p.cycle(context.Background()))
	require.Len(t, provider.completions, 1)
}

func TestRunStopsOnCancel(t *testing.T) {
	p := newTestPoller(stubTokens{}, &stubCodes{}, &stubProvider{}, &stubProcessor{})
	p.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancellation")
	}
}
