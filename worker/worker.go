// Package worker runs N independent goroutines over a shared molecule
// stream, each with its own Orchestrator and compiled rule appliers, per
// spec.md §4.8/§5. Grounded on the errgroup worker-pool pattern used in
// other_examples' opentelemetry-go-compile-instrumentation tool.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cx-luo/tautenum/chem"
	"github.com/cx-luo/tautenum/logging"
	"github.com/cx-luo/tautenum/orchestrator"
)

// MoleculeReader yields molecules until the stream is exhausted. Implementations
// must be safe for concurrent ReadNext calls from multiple worker goroutines,
// or MoleculeReader must be wrapped with NewLockedReader.
type MoleculeReader interface {
	// ReadNext returns the next molecule, or ok=false at end of stream.
	ReadNext() (mol chem.Molecule, ok bool, err error)
}

// MoleculeWriter accepts emitted molecules. Implementations must be safe for
// concurrent Write calls, or be wrapped with NewLockedWriter.
type MoleculeWriter interface {
	Write(mol chem.Molecule) error
}

// NewLockedReader wraps r so ReadNext is safe to call from multiple goroutines.
func NewLockedReader(r MoleculeReader) MoleculeReader { return &lockedReader{r: r} }

type lockedReader struct {
	mu sync.Mutex
	r  MoleculeReader
}

func (l *lockedReader) ReadNext() (chem.Molecule, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.ReadNext()
}

// NewLockedWriter wraps w so Write is safe to call from multiple goroutines.
func NewLockedWriter(w MoleculeWriter) MoleculeWriter { return &lockedWriter{w: w} }

type lockedWriter struct {
	mu sync.Mutex
	w  MoleculeWriter
}

func (l *lockedWriter) Write(mol chem.Molecule) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(mol)
}

// OrchestratorFactory builds one fresh Orchestrator per worker goroutine, so
// compiled rule appliers are never shared across goroutines (spec.md §5).
type OrchestratorFactory func() (*orchestrator.Orchestrator, error)

// Pool runs NumWorkers goroutines, each reading from Reader, preparing and
// processing every molecule through its own Orchestrator, and writing every
// resulting molecule to Writer.
type Pool struct {
	NumWorkers int
	Reader     MoleculeReader
	Writer     MoleculeWriter
	NewOrch    OrchestratorFactory

	// Prepare is called on every molecule read, before Orchestrator.Process;
	// normally a call to prepare.Molecule.
	Prepare func(chem.Molecule) (chem.Molecule, error)

	// OnError, if set, is called for any per-molecule error instead of
	// aborting the whole pool; returning a non-nil error still aborts.
	OnError func(mol chem.Molecule, err error) error

	// Log, if set, receives a start/stop line per worker goroutine tagged
	// with a generated worker_id, so a multi-worker run's log lines can be
	// told apart without relying on goroutine scheduling order.
	Log logging.Logger
}

// Run spawns p.NumWorkers goroutines via errgroup.Group and blocks until the
// reader is exhausted and every worker has drained to quiescence, or until
// one worker returns a fatal error (which cancels ctx for the others).
func (p *Pool) Run(ctx context.Context) error {
	if p.NumWorkers < 1 {
		return fmt.Errorf("worker: NumWorkers must be >= 1, got %d", p.NumWorkers)
	}

	reader := NewLockedReader(p.Reader)
	writer := NewLockedWriter(p.Writer)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.NumWorkers; i++ {
		g.Go(func() error {
			return p.runOne(gctx, reader, writer)
		})
	}
	return g.Wait()
}

func (p *Pool) runOne(ctx context.Context, reader MoleculeReader, writer MoleculeWriter) error {
	orch, err := p.NewOrch()
	if err != nil {
		return fmt.Errorf("worker: building orchestrator: %w", err)
	}

	workerID := uuid.New().String()
	log := p.Log
	if log != nil {
		log = log.With(logging.String("worker_id", workerID))
		log.Debug("worker starting")
		defer log.Debug("worker exiting")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		mol, ok, err := reader.ReadNext()
		if err != nil {
			return fmt.Errorf("worker: reading molecule: %w", err)
		}
		if !ok {
			return nil
		}

		if err := p.processOne(orch, writer, mol); err != nil {
			if p.OnError != nil {
				if handled := p.OnError(mol, err); handled != nil {
					return handled
				}
				continue
			}
			return err
		}
	}
}

func (p *Pool) processOne(orch *orchestrator.Orchestrator, writer MoleculeWriter, mol chem.Molecule) error {
	prepared := mol
	if p.Prepare != nil {
		var err error
		prepared, err = p.Prepare(mol)
		if err != nil {
			return fmt.Errorf("worker: preparing molecule %q: %w", mol.Title(), err)
		}
	}

	result, err := orch.Process(prepared)
	if err != nil {
		return fmt.Errorf("worker: processing molecule %q: %w", mol.Title(), err)
	}

	for _, out := range result.Molecules {
		if err := writer.Write(out); err != nil {
			return fmt.Errorf("worker: writing product of %q: %w", mol.Title(), err)
		}
	}
	return nil
}
