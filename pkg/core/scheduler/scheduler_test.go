package scheduler

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/logging"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/processor"
)

type fakeSyncer struct {
	mu       sync.Mutex
	mappings int
	synced   []string
	fail     map[string]bool
}

func (f *fakeSyncer) SyncCIKTickerMappings(context.Context, bool) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mappings++
	return 1, nil
}

func (f *fakeSyncer) SyncCompany(_ context.Context, ticker string, _ bool) (*processor.SyncReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synced = append(f.synced, ticker)
	if f.fail[ticker] {
		return nil, errors.New("boom")
	}
	return &processor.SyncReport{Ticker: ticker}, nil
}

func TestRunNow(t *testing.T) {
	logging.SetOutput(io.Discard)
	fs := &fakeSyncer{fail: map[string]bool{"BAD": true}}
	s := New(context.Background(), fs, "", []string{"aapl", " ", "BAD", "msft"})

	res := s.RunNow(context.Background())
	require.NotNil(t, res)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, []string{"AAPL", "MSFT"}, res.Synced)
	require.Contains(t, res.Failed, "BAD")
	assert.Equal(t, 1, fs.mappings)
	assert.Equal(t, []string{"AAPL", "BAD", "MSFT"}, fs.synced)
	assert.Same(t, res, s.Last())
}

func TestRunNowCancelled(t *testing.T) {
	logging.SetOutput(io.Discard)
	fs := &fakeSyncer{}
	s := New(context.Background(), fs, "", []string{"AAPL"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := s.RunNow(ctx)
	assert.Empty(t, res.Synced)
	assert.ErrorIs(t, res.Failed["AAPL"], context.Canceled)
	assert.Empty(t, fs.synced)
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := New(context.Background(), &fakeSyncer{}, "not a cron", nil)
	assert.Error(t, s.Start())
}

func TestStartStop(t *testing.T) {
	logging.SetOutput(io.Discard)
	s := New(context.Background(), &fakeSyncer{}, DefaultSpec, []string{"AAPL"})
	require.NoError(t, s.Start())
	assert.Len(t, s.cron.Entries(), 1)
	s.Stop()
}
