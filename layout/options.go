package layout

import (
	"time"

	"go.uber.org/zap"
)

// Options control spacing and the refine gate.
type Options struct {
	// PlaceholderSize is used for nodes that have not been measured.
	PlaceholderSize Size
	// RankGap is the vertical space between rows, NodeGap the horizontal
	// space between nodes in a row.
	RankGap float64
	NodeGap float64
	// Padding is added around the content when fitting the viewport.
	Padding float64
	// Debounce refines with the sizes known so far when not every node has
	// reported within the window. Zero waits for all nodes (or Flush).
	Debounce time.Duration
	// OnRefine is called after each refine pass, outside the engine lock.
	OnRefine func(*Layout)
	Logger   *zap.Logger
}

// Option configures Options.
type Option func(*Options)

// DefaultOptions returns the spacing used by the builder UI.
func DefaultOptions() Options {
	return Options{
		PlaceholderSize: Size{Width: 180, Height: 64},
		RankGap:         80,
		NodeGap:         48,
		Padding:         40,
		Logger:          zap.NewNop(),
	}
}

// WithPlaceholderSize sets the size used before measurement.
func WithPlaceholderSize(s Size) Option {
	return func(o *Options) { o.PlaceholderSize = s }
}

// WithSpacing sets the row and column gaps.
func WithSpacing(rankGap, nodeGap float64) Option {
	return func(o *Options) {
		o.RankGap = rankGap
		o.NodeGap = nodeGap
	}
}

// WithPadding sets the viewport padding.
func WithPadding(p float64) Option {
	return func(o *Options) { o.Padding = p }
}

// WithDebounce sets the refine debounce window.
func WithDebounce(d time.Duration) Option {
	return func(o *Options) { o.Debounce = d }
}

// WithRefineHook registers a callback run after every refine pass.
func WithRefineHook(fn func(*Layout)) Option {
	return func(o *Options) { o.OnRefine = fn }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

func buildOptions(opts []Option) Options {
	o := DefaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
