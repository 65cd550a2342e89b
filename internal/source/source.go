// Package source defines the presence source contract and polls every
// enabled source once per control-loop cycle.
package source

import (
	"context"

	"github.com/dokzlo13/statuslight/internal/status"
)

// Adapter reports the current presence status of one source.
//
// Poll never returns an error: any failure (network, auth, parse) is
// logged by the adapter and reported as status.Unknown.
type Adapter interface {
	Source() status.Source
	Poll(ctx context.Context) status.Status
}

// Func adapts a function to the Adapter interface.
type Func struct {
	Src status.Source
	Fn  func(ctx context.Context) status.Status
}

// Source implements Adapter.
func (f Func) Source() status.Source { return f.Src }

// Poll implements Adapter.
func (f Func) Poll(ctx context.Context) status.Status { return f.Fn(ctx) }

// Static returns an adapter that always reports st.
func Static(src status.Source, st status.Status) Adapter {
	return Func{Src: src, Fn: func(context.Context) status.Status { return st }}
}
