package marketdata

import (
	"errors"
	"math"
	"testing"
	"time"

	"licitacion-go/internal/signal"
)

func snap(ticker string, price, volume, bid, offer float64) signal.MarketSnapshot {
	return signal.MarketSnapshot{Ticker: ticker, Ts: time.Now(), LastPrice: price, Volume: volume, BidPrice: bid, OfferPrice: offer}
}

func TestProviderSnapshotMissing(t *testing.T) {
	p := NewProvider(5)
	if _, err := p.Snapshot("S17A6"); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if _, err := p.DollarGap(); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData for dollar gap, got %v", err)
	}
	vol, err := p.VolumeMetrics("S17A6")
	if err != nil || vol.Trend != signal.TrendUnknown || vol.PctChange != 0 {
		t.Fatalf("expected empty volume metrics, got %+v %v", vol, err)
	}
}

func TestProviderVolumeMetrics(t *testing.T) {
	p := NewProvider(30)
	for _, v := range []float64{150, 140, 130, 120, 110, 60} {
		p.Update(snap("S17A6", 100, v, 99.8, 100.2))
	}
	vol, err := p.VolumeMetrics("S17A6")
	if err != nil {
		t.Fatalf("VolumeMetrics returned error: %v", err)
	}
	if math.Abs(vol.AvgVolume-118.333333) > 1e-5 {
		t.Fatalf("unexpected average %.6f", vol.AvgVolume)
	}
	if vol.CurrentVolume != 60 {
		t.Fatalf("expected current volume 60, got %.2f", vol.CurrentVolume)
	}
	if vol.PctChange > -0.49 || vol.PctChange < -0.5 {
		t.Fatalf("expected ~-49.3%% change, got %.4f", vol.PctChange)
	}
	if vol.Trend != signal.TrendDecreasing {
		t.Fatalf("expected decreasing trend, got %s", vol.Trend)
	}
}

func TestProviderVolumeTrendStableAndUnknown(t *testing.T) {
	p := NewProvider(30)
	p.Update(snap("T15E7", 100, 100, 0, 0))
	p.Update(snap("T15E7", 100, 100, 0, 0))
	vol, _ := p.VolumeMetrics("T15E7")
	if vol.Trend != signal.TrendUnknown {
		t.Fatalf("expected unknown trend with two points, got %s", vol.Trend)
	}
	p.Update(snap("T15E7", 100, 101, 0, 0))
	vol, _ = p.VolumeMetrics("T15E7")
	if vol.Trend != signal.TrendStable {
		t.Fatalf("expected stable trend, got %s", vol.Trend)
	}
}

func TestProviderSpreadMetrics(t *testing.T) {
	p := NewProvider(30)
	p.Update(snap("TZX26", 100, 10, 99.9, 100.1)) // 20 bps
	p.Update(snap("TZX26", 100, 10, 99.9, 100.1))
	p.Update(snap("TZX26", 100, 10, 99.8, 100.2)) // 40 bps
	spread, err := p.SpreadMetrics("TZX26")
	if err != nil {
		t.Fatalf("SpreadMetrics returned error: %v", err)
	}
	if math.Abs(spread.CurrentBps-40) > 1e-9 {
		t.Fatalf("expected 40 bps, got %.6f", spread.CurrentBps)
	}
	if math.Abs(spread.AvgBps-80.0/3) > 1e-9 {
		t.Fatalf("unexpected average %.6f", spread.AvgBps)
	}
	if math.Abs(spread.PctIncrease-0.5) > 1e-9 {
		t.Fatalf("expected 50%% increase, got %.6f", spread.PctIncrease)
	}
	if math.Abs(spread.Percentile-200.0/3) > 1e-9 {
		t.Fatalf("expected percentile 66.67, got %.4f", spread.Percentile)
	}
}

func TestProviderSpreadWithoutHistory(t *testing.T) {
	p := NewProvider(30)
	p.Update(snap("D30A6", 100, 10, 0, 100.2))
	spread, err := p.SpreadMetrics("D30A6")
	if err != nil {
		t.Fatalf("SpreadMetrics returned error: %v", err)
	}
	if spread.Percentile != 50 || spread.PctIncrease != 0 {
		t.Fatalf("expected neutral spread metrics, got %+v", spread)
	}
	if _, err := p.SpreadMetrics("UNKNOWN"); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestProviderHistoryIsBounded(t *testing.T) {
	p := NewProvider(3)
	for _, v := range []float64{1000, 1000, 10, 10, 10} {
		p.Update(snap("S31L6", 100, v, 0, 0))
	}
	vol, _ := p.VolumeMetrics("S31L6")
	if vol.AvgVolume != 10 {
		t.Fatalf("expected old volumes evicted, average %.2f", vol.AvgVolume)
	}
	if got := p.Tickers(); len(got) != 1 || got[0] != "S31L6" {
		t.Fatalf("unexpected tickers %v", got)
	}
}

func TestProviderDollarGap(t *testing.T) {
	p := NewProvider(3)
	p.SetDollarRates(1495.91, 1459.42, time.Now())
	gap, err := p.DollarGap()
	if err != nil {
		t.Fatalf("DollarGap returned error: %v", err)
	}
	if math.Abs(gap.RelativeSpread-0.025) > 1e-4 {
		t.Fatalf("expected ~2.5%% gap, got %.6f", gap.RelativeSpread)
	}
}

func TestProviderMergesPartialFrames(t *testing.T) {
	p := NewProvider(30)
	for i := 0; i < 10; i++ {
		p.Update(snap("S17A6", 100, 1000, 99.9, 100.1))
	}

	// quotes only: no trade, no cumulative volume
	p.Update(signal.MarketSnapshot{Ticker: "S17A6", Ts: time.Now(), BidPrice: 99.8, OfferPrice: 100.2})
	got, err := p.Snapshot("S17A6")
	if err != nil {
		t.Fatalf("Snapshot returned error: %v", err)
	}
	if !got.HasPrice() || got.LastPrice != 100 || got.Volume != 1000 {
		t.Fatalf("expected last trade and volume to survive a quote update, got %+v", got)
	}
	if got.BidPrice != 99.8 || math.Abs(got.SpreadBps-40) > 1e-9 {
		t.Fatalf("expected the new quotes to apply, got %+v", got)
	}
	vol, _ := p.VolumeMetrics("S17A6")
	if vol.PctChange != 0 || vol.AvgVolume != 1000 || vol.CurrentVolume != 1000 {
		t.Fatalf("a quote update must not move volume metrics, got %+v", vol)
	}
	if n := p.tickers["S17A6"].volume.ring.Len(); n != 10 {
		t.Fatalf("expected 10 volume samples, got %d", n)
	}

	// trade only: the book stays as last quoted
	p.Update(signal.MarketSnapshot{Ticker: "S17A6", Ts: time.Now(), LastPrice: 101, HasLast: true})
	got, _ = p.Snapshot("S17A6")
	if got.LastPrice != 101 || !got.HasSpread || math.Abs(got.SpreadBps-40) > 1e-9 || got.Volume != 1000 {
		t.Fatalf("unexpected merged snapshot %+v", got)
	}
	spread, _ := p.SpreadMetrics("S17A6")
	if math.Abs(spread.CurrentBps-40) > 1e-9 {
		t.Fatalf("expected current spread 40 bps, got %+v", spread)
	}
	if n := p.tickers["S17A6"].spread.ring.Len(); n != 11 {
		t.Fatalf("a trade-only update must not add a spread sample, got %d", n)
	}

	// an explicit zero volume is a real print
	p.Update(signal.MarketSnapshot{Ticker: "S17A6", Ts: time.Now(), Volume: 0, HasVolume: true})
	if vol, _ := p.VolumeMetrics("S17A6"); vol.CurrentVolume != 0 || vol.PctChange >= 0 {
		t.Fatalf("expected a flagged zero volume to count, got %+v", vol)
	}
}

func TestProviderSamplesOncePerInterval(t *testing.T) {
	p := NewProvider(30, WithSampleInterval(time.Hour))
	loc := time.FixedZone("UTC-3", -3*3600)
	open := time.Date(2026, 1, 13, 11, 0, 0, 0, loc)

	for i := 0; i < 20; i++ {
		p.Update(signal.MarketSnapshot{
			Ticker: "S17A6", Ts: open.Add(time.Duration(i) * time.Minute),
			LastPrice: 100, BidPrice: 99.9, OfferPrice: 100.1, Volume: float64(1000 + 100*i),
		})
	}
	h := p.tickers["S17A6"]
	if n := h.volume.ring.Len(); n != 1 {
		t.Fatalf("expected one volume sample within the hour, got %d", n)
	}
	if last, _ := h.volume.ring.Last(); last != 2900 {
		t.Fatalf("expected the sample to track the newest volume, got %.0f", last)
	}
	if n := h.spread.ring.Len(); n != 1 {
		t.Fatalf("expected one spread sample within the hour, got %d", n)
	}

	p.Update(signal.MarketSnapshot{Ticker: "S17A6", Ts: open.Add(65 * time.Minute), LastPrice: 100, Volume: 3100})
	if n := h.volume.ring.Len(); n != 2 {
		t.Fatalf("expected a second sample in the next hour, got %d", n)
	}
	vol, _ := p.VolumeMetrics("S17A6")
	if vol.AvgVolume != 3000 || vol.CurrentVolume != 3100 {
		t.Fatalf("unexpected volume metrics %+v", vol)
	}
}
