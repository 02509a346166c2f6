package worker

import (
	"context"

	"github.com/hibiken/asynq"
)

// Mux routes asynq task types to their handlers. The batch download worker
// is the only registrant today; the indirection keeps main free of asynq
// handler signatures.
type Mux struct{ mux *asynq.ServeMux }

func NewMux() *Mux { return &Mux{mux: asynq.NewServeMux()} }

func (m *Mux) HandleFunc(t string, h func(ctx context.Context, task *asynq.Task) error) {
	m.mux.HandleFunc(t, h)
}

func (m *Mux) Mux() *asynq.ServeMux { return m.mux }
