package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-signal-engine/internal/market"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testTick(symbol string, price float64, at time.Time) *market.Tick {
	return &market.Tick{
		Timestamp: at,
		Symbol:    symbol,
		Price:     price,
		Open:      price * 0.999,
		High:      price * 1.001,
		Low:       price * 0.998,
		Close:     price,
		Volume:    1_000_000,
		Source:    "Simulated",
	}
}

func TestInsertAndRecentTicks(t *testing.T) {
	db := openTestDB(t)

	base := time.Now().Add(-time.Minute).Truncate(time.Second)
	var ticks []*market.Tick
	for i := 0; i < 5; i++ {
		ticks = append(ticks, testTick("BTCUSDT", 45000+float64(i), base.Add(time.Duration(i)*time.Second)))
	}
	require.NoError(t, db.InsertTicks(ticks))

	got, err := db.RecentTicks("BTCUSDT", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// Oldest first within the returned window.
	assert.Equal(t, 45002.0, got[0].Price)
	assert.Equal(t, 45004.0, got[2].Price)

	n, err := db.TickCountSince("BTCUSDT", base)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
}

func TestSignalLifecyclePersistence(t *testing.T) {
	db := openTestDB(t)

	rec := &SignalRecord{
		SignalID:    "a1b2c3d4e5f6",
		CreatedAt:   time.Now(),
		Symbol:      "BTCUSDT",
		PatternType: "DOUBLE_BOTTOM",
		SignalType:  sql.NullString{String: "BUY", Valid: true},
		EntryPrice:  43344,
		TargetPrice: 44144,
		StopLoss:    42355,
		Confidence:  85,
		Status:      "ACTIVE",
	}
	require.NoError(t, db.InsertSignal(rec))

	// Duplicate signal_id must be rejected.
	assert.ErrorIs(t, db.InsertSignal(rec), ErrDuplicateSignal)

	rec.Status = "HIT_TARGET"
	rec.CurrentPrice = sql.NullFloat64{Float64: 44150, Valid: true}
	rec.ClosedAt = sql.NullTime{Time: time.Now(), Valid: true}
	rec.ProfitLossPct = sql.NullFloat64{Float64: 1.85, Valid: true}
	require.NoError(t, db.UpdateSignal(rec))

	rows, err := db.SignalsByStatus("HIT_TARGET")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a1b2c3d4e5f6", rows[0].SignalID)
	assert.InDelta(t, 1.85, rows[0].ProfitLossPct.Float64, 0.001)

	// Status-filtered recent query returns the same row.
	filtered, err := db.RecentSignals(5, "HIT_TARGET", "HIT_STOP")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "a1b2c3d4e5f6", filtered[0].SignalID)

	empty, err := db.RecentSignals(5, "EXPIRED")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPatternStats(t *testing.T) {
	db := openTestDB(t)

	insert := func(id, status string, pl float64) {
		require.NoError(t, db.InsertSignal(&SignalRecord{
			SignalID:      id,
			CreatedAt:     time.Now(),
			Symbol:        "ETHUSDT",
			PatternType:   "INDICATORS_BUY",
			EntryPrice:    3000,
			TargetPrice:   3100,
			StopLoss:      2950,
			Confidence:    70,
			Status:        status,
			ProfitLossPct: sql.NullFloat64{Float64: pl, Valid: true},
		}))
	}
	insert("000000000001", "HIT_TARGET", 3.3)
	insert("000000000002", "HIT_TARGET", 3.1)
	insert("000000000003", "HIT_STOP", -1.6)
	insert("000000000004", "EXPIRED", 0.2)
	insert("000000000005", "ACTIVE", 0)

	stats, err := db.PatternStats()
	require.NoError(t, err)
	require.Len(t, stats, 1)
	s := stats[0]
	assert.Equal(t, "INDICATORS_BUY", s.PatternType)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.Equal(t, 1, s.Expired)
	assert.InDelta(t, 66.67, s.SuccessRate, 0.01)
	assert.Greater(t, s.AvgRiskReward, 0.0)
}

func TestIndicatorRoundTrip(t *testing.T) {
	db := openTestDB(t)

	at := time.Now().Truncate(time.Second)
	require.NoError(t, db.InsertIndicators("BTCUSDT", at.Add(-time.Minute), map[string]float64{
		"RSI": 40, "SMA_12": 44900,
	}))
	require.NoError(t, db.InsertIndicators("BTCUSDT", at, map[string]float64{
		"RSI": 55.5, "SMA_12": 45010,
	}))

	latest, err := db.LatestIndicators("BTCUSDT")
	require.NoError(t, err)
	assert.InDelta(t, 55.5, latest["RSI"], 0.001)
	assert.InDelta(t, 45010, latest["SMA_12"], 0.001)
}

func TestConfigUpsert(t *testing.T) {
	db := openTestDB(t)

	_, ok, err := db.GetConfig("mode")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.SetConfig("mode", "paper"))
	require.NoError(t, db.SetConfig("mode", "live"))

	v, ok, err := db.GetConfig("mode")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "live", v)

	// Typed values round-trip through JSON.
	require.NoError(t, db.SetConfigValue("thresholds", map[string]float64{"min_confidence": 0.6}))
	var thresholds map[string]float64
	found, err := db.GetConfigValue("thresholds", &thresholds)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 0.6, thresholds["min_confidence"])

	found, err = db.GetConfigValue("missing", &thresholds)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCleanupOlderThan(t *testing.T) {
	db := openTestDB(t)

	old := testTick("BTCUSDT", 44000, time.Now().AddDate(0, 0, -40))
	fresh := testTick("BTCUSDT", 45000, time.Now())
	require.NoError(t, db.InsertTicks([]*market.Tick{old, fresh}))

	deleted, err := db.CleanupOlderThan(30)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	rows, err := db.RecentTicks("BTCUSDT", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 45000.0, rows[0].Price)
}

func TestBackupAndHealth(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.InsertTicks([]*market.Tick{testTick("BTCUSDT", 45000, time.Now())}))

	dest := filepath.Join(t.TempDir(), "backup.db")
	require.NoError(t, db.Backup(dest))

	restored, err := Open(dest)
	require.NoError(t, err)
	defer restored.Close()
	rows, err := restored.RecentTicks("BTCUSDT", 10)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	h := db.HealthCheck(context.Background())
	assert.True(t, h.Healthy)
	assert.True(t, h.IntegrityOK)
	assert.Greater(t, h.FileSizeBytes, int64(0))
}

func TestSystemLogSink(t *testing.T) {
	db := openTestDB(t)

	db.WriteSystemLog("warn", "streamer", "source disabled", map[string]interface{}{
		"source": "Binance",
	})

	logs, err := db.RecentLogs(10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "warn", logs[0].Level)
	assert.Equal(t, "streamer", logs[0].Component.String)
	assert.Contains(t, logs[0].Details.String, "Binance")
}
