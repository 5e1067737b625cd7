package system

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-signal-engine/config"
	"crypto-signal-engine/internal/pair"
	"crypto-signal-engine/internal/signals"
)

func testSystem(t *testing.T) *System {
	t.Helper()
	cfg := config.Default()
	cfg.DatabaseConfig.Path = filepath.Join(t.TempDir(), "system.db")
	cfg.StreamingConfig.ConnectionTimeoutSec = 1
	cfg.StreamingConfig.UpdateIntervalSec = 1

	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		if s.IsRunning() {
			s.Stop()
		}
		s.Close()
	})
	return s
}

func TestStartStopRestart(t *testing.T) {
	s := testSystem(t)

	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrNotRunning)

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(), ErrAlreadyRunning)

	require.NoError(t, s.Restart())
	assert.True(t, s.IsRunning())

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
}

func TestPairOperations(t *testing.T) {
	s := testSystem(t)

	all := s.ListPairs()
	assert.Len(t, all, 7)

	enabled := s.EnabledPairs()
	assert.ElementsMatch(t, []string{"BTCUSDT", "ETHUSDT"}, enabled)

	summary := s.PairSummary()
	assert.Equal(t, 7, summary.TotalPairs)
	assert.Equal(t, 2, summary.EnabledPairs)

	st, err := s.PairStatus("btcusdt")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", st.Symbol)

	_, err = s.PairStatus("NOPEUSDT")
	assert.ErrorIs(t, err, ErrPairNotFound)

	require.NoError(t, s.UpdatePairConfig("BTCUSDT", pair.Config{UpdateIntervalSec: 10}))
	assert.ErrorIs(t, s.UpdatePairConfig("NOPEUSDT", pair.Config{}), ErrPairNotFound)

	// Disabled pairs refuse to stream.
	assert.Error(t, s.StartPair("SOLUSDT"))
	assert.ErrorIs(t, s.StartPair("NOPEUSDT"), ErrPairNotFound)

	require.NoError(t, s.StartPair("BTCUSDT"))
	require.NoError(t, s.StopPair("BTCUSDT"))
}

func TestPairDataLimits(t *testing.T) {
	s := testSystem(t)

	data, err := s.PairData("BTCUSDT", 500)
	require.NoError(t, err)
	assert.Empty(t, data)

	_, err = s.PairData("NOPEUSDT", 10)
	assert.ErrorIs(t, err, ErrPairNotFound)
}

func TestTradingOperationsOnEmptySystem(t *testing.T) {
	s := testSystem(t)

	assert.Empty(t, s.ActiveSignals())

	recent, err := s.RecentSignals(10)
	require.NoError(t, err)
	assert.Empty(t, recent)

	filtered, err := s.RecentSignals(10, string(signals.StatusHitTarget), string(signals.StatusExpired))
	require.NoError(t, err)
	assert.Empty(t, filtered)

	stats, err := s.PatternStats()
	require.NoError(t, err)
	assert.Empty(t, stats)

	ind, err := s.Indicators("BTCUSDT")
	require.NoError(t, err)
	assert.Empty(t, ind)

	// Without market data there is no current price to validate against.
	_, err = s.CreateManualSignal("BTCUSDT", true, 45000, 46000, 44500)
	assert.ErrorIs(t, err, ErrNoMarketData)

	_, err = s.CloseSignal("missing", "")
	assert.ErrorIs(t, err, signals.ErrNotFound)
}

func TestStatusAndHealth(t *testing.T) {
	s := testSystem(t)

	st := s.GetStatus()
	assert.False(t, st.Running)
	assert.Equal(t, 7, st.Pairs.TotalPairs)

	h := s.Health(context.Background())
	assert.NotNil(t, h["database"])
	assert.NotNil(t, h["pairs"])
	assert.NotNil(t, h["streamer"])
}
