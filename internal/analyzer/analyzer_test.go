package analyzer

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/RomanchenkoAS/ethusdt-monitor/internal/model"
)

var t0 = time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)

func points(n int, close float64) []model.ClosePoint {
	pts := make([]model.ClosePoint, n)
	for i := range pts {
		pts[i] = model.ClosePoint{OpenTime: t0.Add(time.Duration(i) * time.Minute), Close: close}
	}
	return pts
}

func TestWindowSizeInvariant(t *testing.T) {
	w := NewWindow(60)

	for k := 1; k <= 90; k++ {
		p := model.ClosePoint{OpenTime: t0.Add(time.Duration(k-1) * time.Minute), Close: float64(k)}
		if err := w.Append(p); err != nil {
			t.Fatalf("Append %d: %v", k, err)
		}
		want := k
		if want > 60 {
			want = 60
		}
		if w.Len() != want {
			t.Fatalf("after %d appends Len = %d, want %d", k, w.Len(), want)
		}
	}

	// After 90 appends the oldest surviving element is the 31st.
	anchor, ok := w.Anchor()
	if !ok {
		t.Fatal("full window has no anchor")
	}
	if anchor.Close != 31 {
		t.Errorf("anchor close = %v, want 31", anchor.Close)
	}
	if !anchor.OpenTime.Equal(t0.Add(30 * time.Minute)) {
		t.Errorf("anchor open time = %v, want %v", anchor.OpenTime, t0.Add(30*time.Minute))
	}
}

func TestWindowDuplicateIgnored(t *testing.T) {
	w := NewWindow(60)
	p := model.ClosePoint{OpenTime: t0, Close: 100}

	if err := w.Append(p); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Append(p); err != nil {
		t.Fatalf("duplicate Append: %v", err)
	}
	if w.Len() != 1 {
		t.Errorf("Len = %d, want 1", w.Len())
	}
}

func TestWindowGapInvalidates(t *testing.T) {
	w := NewWindow(60)
	if err := w.Seed(points(10, 100)); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	// Two minutes past the newest element: a candle went missing.
	gap := model.ClosePoint{OpenTime: t0.Add(11 * time.Minute), Close: 100}
	err := w.Append(gap)
	if !errors.Is(err, ErrWindowGap) {
		t.Fatalf("error = %v, want ErrWindowGap", err)
	}
	if w.Len() != 0 {
		t.Errorf("window kept %d stale points after a gap", w.Len())
	}

	// Reseeding with contiguous history restores the window.
	if err := w.Seed(points(60, 100)); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	if !w.Full() {
		t.Error("reseeded window not full")
	}
}

func TestSeedWithGapFails(t *testing.T) {
	pts := points(10, 100)
	pts[5].OpenTime = pts[5].OpenTime.Add(time.Minute) // now collides with pts[6]

	w := NewWindow(60)
	if err := w.Seed(pts); !errors.Is(err, ErrWindowGap) {
		t.Fatalf("error = %v, want ErrWindowGap", err)
	}
}

func TestEvaluateInsufficientHistory(t *testing.T) {
	a := New("ETHUSDT", "BTCUSDT", 60, 0.01)

	_, err := a.Evaluate(1800, 27000)
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("error = %v, want ErrInsufficientHistory", err)
	}

	// One full window is still not enough.
	if err := a.Seed("ETHUSDT", points(60, 1800)); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	_, err = a.Evaluate(1800, 27000)
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("error = %v, want ErrInsufficientHistory", err)
	}
}

func TestEvaluateResidualArithmetic(t *testing.T) {
	a := New("ETHUSDT", "BTCUSDT", 60, 0.01)
	if err := a.Seed("ETHUSDT", points(60, 1800)); err != nil {
		t.Fatalf("seed eth: %v", err)
	}
	if err := a.Seed("BTCUSDT", points(60, 27000)); err != nil {
		t.Fatalf("seed btc: %v", err)
	}

	// Anchor eth 1800 -> live 1820, anchor btc 27000 -> live 27100.
	sig, err := a.Evaluate(1820, 27100)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	const eps = 1e-9
	if got, want := sig.TargetReturn, (1800.0-1820.0)/1800.0; math.Abs(got-want) > eps {
		t.Errorf("TargetReturn = %v, want %v", got, want)
	}
	if got, want := sig.ReferenceReturn, (27000.0-27100.0)/27000.0; math.Abs(got-want) > eps {
		t.Errorf("ReferenceReturn = %v, want %v", got, want)
	}
	if got, want := sig.Residual, sig.TargetReturn-sig.ReferenceReturn; math.Abs(got-want) > eps {
		t.Errorf("Residual = %v, want %v", got, want)
	}
	// |−0.00741| < 0.01: below threshold.
	if sig.Exceeded {
		t.Errorf("Exceeded = true for residual %v", sig.Residual)
	}
}

func TestEvaluateThreshold(t *testing.T) {
	a := New("ETHUSDT", "BTCUSDT", 60, 0.01)
	if err := a.Seed("ETHUSDT", points(60, 1000)); err != nil {
		t.Fatal(err)
	}
	if err := a.Seed("BTCUSDT", points(60, 1000)); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name         string
		ethPrice     float64
		btcPrice     float64
		wantExceeded bool
	}{
		// eth_return −0.02, btc_return −0.005 -> residual −0.015.
		{"exceeds", 1020, 1005, true},
		// Symmetric positive residual.
		{"exceeds positive", 980, 995, true},
		// Equal moves cancel out.
		{"correlated move", 1050, 1050, false},
		// Exactly at threshold is no alert (strict inequality).
		{"at threshold", 1010, 1000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := a.Evaluate(tt.ethPrice, tt.btcPrice)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if sig.Exceeded != tt.wantExceeded {
				t.Errorf("residual %v: Exceeded = %v, want %v", sig.Residual, sig.Exceeded, tt.wantExceeded)
			}
		})
	}
}

func TestObserveUntrackedSymbol(t *testing.T) {
	a := New("ETHUSDT", "BTCUSDT", 60, 0.01)
	if err := a.Observe("DOGEUSDT", model.ClosePoint{OpenTime: t0, Close: 1}); err == nil {
		t.Error("expected error for untracked symbol")
	}
}

func TestReady(t *testing.T) {
	a := New("ETHUSDT", "BTCUSDT", 60, 0.01)
	if a.Ready() {
		t.Error("Ready with empty windows")
	}
	if err := a.Seed("ETHUSDT", points(60, 1800)); err != nil {
		t.Fatal(err)
	}
	if a.Ready() {
		t.Error("Ready with one window")
	}
	if err := a.Seed("BTCUSDT", points(60, 27000)); err != nil {
		t.Fatal(err)
	}
	if !a.Ready() {
		t.Error("not Ready with both windows full")
	}
}
