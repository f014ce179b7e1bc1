package memory

import (
	"context"
	"sync"

	ports "bms/internal/sheets"
)

// Grid is an in-memory GridReader for tests and dry runs.
type Grid struct {
	mu   sync.Mutex
	rows [][]any
	err  error
}

var _ ports.GridReader = (*Grid)(nil)

func New(rows [][]any) *Grid {
	return &Grid{rows: rows}
}

// Set replaces the grid returned by later reads.
func (g *Grid) Set(rows [][]any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rows = rows
}

// FailWith makes every later read return err. A nil err clears it.
func (g *Grid) FailWith(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

// ReadGrid returns a copy of the rows so callers cannot mutate the source.
func (g *Grid) ReadGrid(ctx context.Context) ([][]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	out := make([][]any, len(g.rows))
	for i, r := range g.rows {
		out[i] = append([]any(nil), r...)
	}
	return out, nil
}
