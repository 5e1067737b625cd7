package pair

import (
	"testing"
	"time"

	"crypto-signal-engine/internal/market"
)

func tickAt(price float64, at time.Time) *market.Tick {
	return &market.Tick{
		Timestamp: at,
		Symbol:    "BTCUSDT",
		Price:     price,
		Close:     price,
		Source:    "Simulated",
	}
}

func TestAddTickRollingWindow(t *testing.T) {
	p := New("BTCUSDT", "Bitcoin/USDT", true, "", "")

	if p.AddTick(tickAt(0, time.Now())) {
		t.Error("zero-price tick should be rejected")
	}
	if p.AddTick(nil) {
		t.Error("nil tick should be rejected")
	}

	now := time.Now()
	for i := 0; i < maxHistorySize+50; i++ {
		if !p.AddTick(tickAt(45000+float64(i), now.Add(time.Duration(i)*time.Second))) {
			t.Fatalf("tick %d rejected", i)
		}
	}

	if got := p.HistoryLen(); got != maxHistorySize {
		t.Errorf("history length = %d, want %d", got, maxHistorySize)
	}

	// Oldest entries were dropped; the newest survives.
	latest := p.Latest()
	if latest == nil || latest.Price != 45000+float64(maxHistorySize+49) {
		t.Errorf("latest = %+v", latest)
	}
	history := p.History(0)
	if history[0].Price != 45000+50 {
		t.Errorf("oldest retained price = %v, want %v", history[0].Price, 45000+50.0)
	}
}

func TestHistoryLimit(t *testing.T) {
	p := New("BTCUSDT", "Bitcoin/USDT", true, "", "")
	now := time.Now()
	for i := 0; i < 10; i++ {
		p.AddTick(tickAt(100+float64(i), now))
	}

	if got := len(p.History(3)); got != 3 {
		t.Errorf("History(3) length = %d", got)
	}
	if got := len(p.History(100)); got != 10 {
		t.Errorf("History(100) length = %d", got)
	}
	last3 := p.History(3)
	if last3[2].Price != 109 {
		t.Errorf("History(3) newest = %v, want 109", last3[2].Price)
	}
}

func TestRangeStats(t *testing.T) {
	p := New("BTCUSDT", "Bitcoin/USDT", true, "", "")
	now := time.Now()

	p.AddTick(tickAt(44000, now.Add(-48*time.Hour))) // outside the window
	p.AddTick(tickAt(45000, now.Add(-time.Hour)))
	p.AddTick(tickAt(47000, now.Add(-30*time.Minute)))
	p.AddTick(tickAt(46000, now))

	stats := p.Range(24)
	if stats.Count != 3 {
		t.Fatalf("count = %d, want 3", stats.Count)
	}
	if stats.Min != 45000 || stats.Max != 47000 {
		t.Errorf("min/max = %v/%v", stats.Min, stats.Max)
	}
	if stats.Avg != 46000 {
		t.Errorf("avg = %v, want 46000", stats.Avg)
	}
}

func TestStreamingStateMachine(t *testing.T) {
	p := New("BTCUSDT", "Bitcoin/USDT", false, "", "")

	if p.StartStreaming() {
		t.Error("disabled pair should not start streaming")
	}

	p.Enable()
	if !p.StartStreaming() {
		t.Fatal("enabled pair should start streaming")
	}
	if !p.IsStreaming() {
		t.Error("pair should report streaming")
	}

	p.StopStreaming()
	if p.IsStreaming() {
		t.Error("pair should not report streaming after stop")
	}
}

func TestErrorThresholdMovesToMaintenance(t *testing.T) {
	p := New("BTCUSDT", "Bitcoin/USDT", true, "", "")
	p.UpdateConfig(Config{MaxErrors: 3})
	p.StartStreaming()

	for i := 0; i < 3; i++ {
		p.RecordError("fetch failed")
	}

	if p.Status() != StatusMaintenance {
		t.Errorf("status = %s, want maintenance", p.Status())
	}
	if p.IsStreaming() {
		t.Error("maintenance should stop streaming")
	}
	if p.StartStreaming() {
		t.Error("maintenance pair should not start streaming")
	}

	p.ResetErrors()
	if p.Status() != StatusEnabled {
		t.Errorf("status after reset = %s, want enabled", p.Status())
	}
	if p.ErrorCount() != 0 {
		t.Errorf("error count after reset = %d", p.ErrorCount())
	}
}

func TestAcceptedTickClearsErrors(t *testing.T) {
	p := New("BTCUSDT", "Bitcoin/USDT", true, "", "")
	p.RecordError("transient")
	p.RecordError("transient")

	p.AddTick(tickAt(45000, time.Now()))
	if p.ErrorCount() != 0 {
		t.Errorf("error count = %d, want 0 after accepted tick", p.ErrorCount())
	}
}

func TestManagerDefaultsAndLookup(t *testing.T) {
	m := NewManager()

	if got := len(m.All()); got != 7 {
		t.Fatalf("default pair count = %d, want 7", got)
	}
	if got := len(m.Enabled()); got != 2 {
		t.Errorf("enabled pair count = %d, want 2", got)
	}

	// Lookup is case-insensitive.
	if m.Get("btcusdt") == nil {
		t.Error("lowercase lookup failed")
	}

	btc := m.Get("BTCUSDT")
	if r := btc.Config().PriceRange; r.Min != 20_000 || r.Max != 200_000 {
		t.Errorf("BTC price range = %+v", r)
	}
	eth := m.Get("ETHUSDT")
	if r := eth.Config().PriceRange; r.Min != 0 || r.Max != 0 {
		t.Errorf("ETH should be unbounded, got %+v", r)
	}
}

func TestManagerAddRemove(t *testing.T) {
	m := NewManager()

	p := m.AddPair("DOGEUSDT", "Dogecoin/USDT", true, "#ba9f33", "")
	if p == nil || m.Get("DOGEUSDT") == nil {
		t.Fatal("added pair missing")
	}

	// Re-adding updates metadata in place.
	again := m.AddPair("DOGEUSDT", "Doge/USDT", false, "#ba9f33", "")
	if again != p {
		t.Error("re-add should return the existing pair")
	}
	if p.Enabled() {
		t.Error("re-add should apply the enabled flag")
	}
	if name, _, _ := p.Metadata(); name != "Doge/USDT" {
		t.Errorf("display name = %q, want updated", name)
	}

	if !m.RemovePair("DOGEUSDT") {
		t.Error("remove failed")
	}
	if m.RemovePair("DOGEUSDT") {
		t.Error("second remove should fail")
	}
}

func TestMetadataUpdateDuringStatusReads(t *testing.T) {
	m := NewManager()

	// Config imports may rewrite metadata while status snapshots are
	// being served.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			m.AddPair("BTCUSDT", "Bitcoin", true, "#f7931a", "fab fa-bitcoin")
		}
	}()
	for i := 0; i < 200; i++ {
		m.Get("BTCUSDT").GetStatus()
	}
	<-done

	if name, _, _ := m.Get("BTCUSDT").Metadata(); name != "Bitcoin" {
		t.Errorf("display name = %q", name)
	}
}

func TestConfigExportImportRoundTrip(t *testing.T) {
	m := NewManager()
	m.Get("BTCUSDT").UpdateConfig(Config{UpdateIntervalSec: 9, MaxErrors: 4})

	exported := m.ExportConfig()
	if exported.TotalPairs != 7 {
		t.Fatalf("exported pairs = %d", exported.TotalPairs)
	}

	fresh := NewManager()
	fresh.ImportConfig(exported)

	cfg := fresh.Get("BTCUSDT").Config()
	if cfg.UpdateIntervalSec != 9 || cfg.MaxErrors != 4 {
		t.Errorf("imported config = %+v", cfg)
	}

	// Importing an export is idempotent.
	fresh.ImportConfig(fresh.ExportConfig())
	cfg2 := fresh.Get("BTCUSDT").Config()
	if cfg2 != cfg {
		t.Errorf("second import changed config: %+v vs %+v", cfg2, cfg)
	}
}

func TestSummaryCounters(t *testing.T) {
	m := NewManager()
	m.StartAllStreaming()
	m.Get("BTCUSDT").AddTick(tickAt(45000, time.Now()))

	s := m.GetSummary()
	if s.TotalPairs != 7 || s.EnabledPairs != 2 || s.StreamingPairs != 2 {
		t.Errorf("summary = %+v", s)
	}
	if s.TotalDataPoints != 1 {
		t.Errorf("data points = %d, want 1", s.TotalDataPoints)
	}
}
