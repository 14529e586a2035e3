package analyzer

import (
	"errors"
	"fmt"
	"math"

	"github.com/RomanchenkoAS/ethusdt-monitor/internal/model"
)

// ErrInsufficientHistory is returned by Evaluate until both windows are
// full. Not a failure: the caller suppresses alerting and keeps going.
var ErrInsufficientHistory = errors.New("insufficient history")

// Signal is the divergence signal for one tick. All returns are signed
// fractions; positive means the price fell from its anchor. Scaling to
// percent is presentation only and never affects the threshold check.
type Signal struct {
	TargetReturn    float64
	ReferenceReturn float64
	Residual        float64 // TargetReturn - ReferenceReturn
	Exceeded        bool    // |Residual| > threshold
}

// Analyzer maintains the per-instrument trailing windows and computes
// the rolling residual between the target and reference instruments.
type Analyzer struct {
	target    string
	reference string
	threshold float64
	windows   map[string]*Window
}

// New creates an Analyzer for the target/reference pair with windows of
// windowSize closed candles and the given signed-fraction threshold.
func New(target, reference string, windowSize int, threshold float64) *Analyzer {
	return &Analyzer{
		target:    target,
		reference: reference,
		threshold: threshold,
		windows: map[string]*Window{
			target:    NewWindow(windowSize),
			reference: NewWindow(windowSize),
		},
	}
}

// Observe records a newly closed candle for symbol. O(1) amortized.
// ErrWindowGap means the window was invalidated and must be reseeded.
func (a *Analyzer) Observe(symbol string, p model.ClosePoint) error {
	w, ok := a.windows[symbol]
	if !ok {
		return fmt.Errorf("untracked symbol %q", symbol)
	}
	return w.Append(p)
}

// Seed replaces symbol's window with a contiguous ascending history,
// typically the last windowSize rows from storage.
func (a *Analyzer) Seed(symbol string, points []model.ClosePoint) error {
	w, ok := a.windows[symbol]
	if !ok {
		return fmt.Errorf("untracked symbol %q", symbol)
	}
	return w.Seed(points)
}

// Ready reports whether both windows are full.
func (a *Analyzer) Ready() bool {
	return a.windows[a.target].Full() && a.windows[a.reference].Full()
}

// Evaluate computes the signal from each window's anchor price to the
// given live prices. It mutates nothing; call it on every tick.
func (a *Analyzer) Evaluate(targetPrice, referencePrice float64) (Signal, error) {
	targetAnchor, ok := a.windows[a.target].Anchor()
	if !ok {
		return Signal{}, fmt.Errorf("%s window %d/%d: %w",
			a.target, a.windows[a.target].Len(), a.windows[a.target].capacity, ErrInsufficientHistory)
	}
	referenceAnchor, ok := a.windows[a.reference].Anchor()
	if !ok {
		return Signal{}, fmt.Errorf("%s window %d/%d: %w",
			a.reference, a.windows[a.reference].Len(), a.windows[a.reference].capacity, ErrInsufficientHistory)
	}

	sig := Signal{
		TargetReturn:    (targetAnchor.Close - targetPrice) / targetAnchor.Close,
		ReferenceReturn: (referenceAnchor.Close - referencePrice) / referenceAnchor.Close,
	}
	sig.Residual = sig.TargetReturn - sig.ReferenceReturn
	sig.Exceeded = math.Abs(sig.Residual) > a.threshold

	return sig, nil
}
