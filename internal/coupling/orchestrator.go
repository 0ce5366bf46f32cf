// Package coupling drives several engine adapters through a shared sequence
// of simulation steps, moving field data between their point sets in between.
package coupling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/san-kum/cosim/internal/engine"
	"github.com/san-kum/cosim/internal/pointset"
	"github.com/san-kum/cosim/internal/storage"
	"github.com/san-kum/cosim/internal/transfer"
)

var (
	ErrDuplicateEngine = errors.New("engine already registered")
	ErrEngineNotFound  = errors.New("engine not registered")
	ErrDuplicateStep   = errors.New("step name already used")
	ErrUnknownBaseStep = errors.New("base step was never completed")
	ErrNoData          = errors.New("no data for step")
	ErrState           = errors.New("operation not allowed in current phase")
)

// Phase is the orchestrator's position in the step lifecycle.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseStepPrepared
	PhaseStepRunning
	PhaseStepIngested
	PhaseTerminal
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseStepPrepared:
		return "step-prepared"
	case PhaseStepRunning:
		return "step-running"
	case PhaseStepIngested:
		return "step-ingested"
	case PhaseTerminal:
		return "terminal"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Run carries the identity and shared facilities of one coupling run. Store
// is optional; without it no step snapshots are written.
type Run struct {
	Name    string
	WorkDir string
	Log     *zap.Logger
	Store   *storage.Store
}

type engineEntry struct {
	adapter  engine.Adapter
	sets     map[string]*pointset.Set
	ingested map[string]bool
}

// Orchestrator sequences engines through steps. It is not safe for concurrent
// use; a coupling run is inherently serial.
type Orchestrator struct {
	run     Run
	engines map[string]*engineEntry
	names   []string

	steps   []string
	done    map[string]bool
	current string
	base    string
	phase   Phase
}

func New(run Run) *Orchestrator {
	if run.Log == nil {
		run.Log = zap.NewNop()
	}
	return &Orchestrator{
		run:     run,
		engines: make(map[string]*engineEntry),
		done:    make(map[string]bool),
	}
}

func (o *Orchestrator) Phase() Phase        { return o.phase }
func (o *Orchestrator) CurrentStep() string { return o.current }
func (o *Orchestrator) Steps() []string     { return append([]string(nil), o.steps...) }
func (o *Orchestrator) Engines() []string   { return append([]string(nil), o.names...) }

// AddEngine registers an adapter under a name. Engines can only be added
// before the first step begins.
func (o *Orchestrator) AddEngine(name string, a engine.Adapter) error {
	if o.phase != PhaseUninitialized {
		return fmt.Errorf("add engine in phase %s: %w", o.phase, ErrState)
	}
	if _, ok := o.engines[name]; ok {
		return fmt.Errorf("%s: %w", name, ErrDuplicateEngine)
	}
	o.engines[name] = &engineEntry{
		adapter:  a,
		sets:     make(map[string]*pointset.Set),
		ingested: make(map[string]bool),
	}
	o.names = append(o.names, name)
	return nil
}

// Set returns an engine's point set for a step, whether seeded, transferred
// onto, or ingested.
func (o *Orchestrator) Set(engineName, step string) (*pointset.Set, error) {
	e, ok := o.engines[engineName]
	if !ok {
		return nil, fmt.Errorf("%s: %w", engineName, ErrEngineNotFound)
	}
	set, ok := e.sets[step]
	if !ok {
		return nil, fmt.Errorf("engine %s step %s: %w", engineName, step, ErrNoData)
	}
	return set, nil
}

// BeginStep opens a new step. A step with a base clones each engine's
// geometry from that completed step as the frame for incoming field
// transfers; basing on an older completed step restarts the run from there.
// A step without a base starts with no staged geometry, so every engine
// bootstraps from seeded data or inputs already on disk.
func (o *Orchestrator) BeginStep(name, base string) error {
	switch o.phase {
	case PhaseUninitialized:
		if base != "" {
			return fmt.Errorf("first step cannot have base %q: %w", base, ErrUnknownBaseStep)
		}
	case PhaseStepIngested:
		if base != "" && !o.done[base] {
			return fmt.Errorf("%q: %w", base, ErrUnknownBaseStep)
		}
	default:
		return fmt.Errorf("begin step in phase %s: %w", o.phase, ErrState)
	}
	for _, s := range o.steps {
		if s == name {
			return fmt.Errorf("%q: %w", name, ErrDuplicateStep)
		}
	}
	if len(o.names) == 0 {
		return fmt.Errorf("no engines registered: %w", ErrState)
	}

	for _, n := range o.names {
		e := o.engines[n]
		if base == "" {
			continue
		}
		if src, ok := e.sets[base]; ok {
			e.sets[name] = src.CloneGeometry()
		}
	}

	o.steps = append(o.steps, name)
	o.current = name
	o.base = base
	o.phase = PhaseStepPrepared

	o.run.Log.Info("step begun",
		zap.String("run", o.run.Name),
		zap.String("step", name),
		zap.String("base", base))
	return nil
}

// Seed installs a point set as an engine's data for the current step. It is
// how the first step gets field values before any engine has run.
func (o *Orchestrator) Seed(engineName string, set *pointset.Set) error {
	if o.phase != PhaseStepPrepared {
		return fmt.Errorf("seed in phase %s: %w", o.phase, ErrState)
	}
	e, ok := o.engines[engineName]
	if !ok {
		return fmt.Errorf("%s: %w", engineName, ErrEngineNotFound)
	}
	e.sets[o.current] = set
	o.run.Log.Info("engine seeded",
		zap.String("engine", engineName),
		zap.String("step", o.current),
		zap.Int("points", set.Len()))
	return nil
}

// TransferField interpolates one field from the source engine's most recently
// ingested data onto the target engine's geometry for the current step. Once
// the source engine has ingested the current step its fresh output is used,
// so a producer can feed a consumer within the same step; before that the
// completed base step serves as the source.
func (o *Orchestrator) TransferField(from, field, to string, opts transfer.Options) error {
	if o.phase != PhaseStepPrepared && o.phase != PhaseStepRunning {
		return fmt.Errorf("transfer in phase %s: %w", o.phase, ErrState)
	}
	fromEntry, ok := o.engines[from]
	if !ok {
		return fmt.Errorf("%s: %w", from, ErrEngineNotFound)
	}
	toEntry, ok := o.engines[to]
	if !ok {
		return fmt.Errorf("%s: %w", to, ErrEngineNotFound)
	}
	if toEntry.ingested[o.current] {
		return fmt.Errorf("engine %s already completed step %s: %w", to, o.current, ErrState)
	}

	srcStep := ""
	switch {
	case fromEntry.ingested[o.current]:
		srcStep = o.current
	case o.base != "" && fromEntry.ingested[o.base]:
		srcStep = o.base
	default:
		return fmt.Errorf("engine %s has no ingested data to transfer from: %w", from, ErrNoData)
	}
	src := fromEntry.sets[srcStep]

	dst, ok := toEntry.sets[o.current]
	if !ok {
		return fmt.Errorf("engine %s has no geometry for step %s: %w", to, o.current, ErrNoData)
	}

	values, err := src.Values(srcStep, field)
	if err != nil {
		return fmt.Errorf("engine %s: %w", from, err)
	}
	mapped, err := transfer.Transfer(src, values, dst, opts)
	if err != nil {
		return fmt.Errorf("transfer %s from %s to %s: %w", field, from, to, err)
	}
	if err := dst.SetFieldOrdered(o.current, field, mapped); err != nil {
		return err
	}

	o.run.Log.Info("field transferred",
		zap.String("field", field),
		zap.String("from", from),
		zap.String("to", to),
		zap.String("source_step", srcStep),
		zap.String("step", o.current),
		zap.String("mode", opts.Mode.String()),
		zap.Int("points", len(mapped)))
	return nil
}

// RunStep prepares, invokes, and ingests one engine for the current step.
// When no data was staged for the engine the prepare phase is skipped, which
// lets an engine bootstrap from inputs already on disk. After every engine
// has ingested, the step is complete.
func (o *Orchestrator) RunStep(ctx context.Context, engineName string) error {
	if o.phase != PhaseStepPrepared && o.phase != PhaseStepRunning {
		return fmt.Errorf("run step in phase %s: %w", o.phase, ErrState)
	}
	e, ok := o.engines[engineName]
	if !ok {
		return fmt.Errorf("%s: %w", engineName, ErrEngineNotFound)
	}
	if e.ingested[o.current] {
		return fmt.Errorf("engine %s already completed step %s: %w", engineName, o.current, ErrState)
	}
	o.phase = PhaseStepRunning

	log := o.run.Log.With(zap.String("engine", engineName), zap.String("step", o.current))

	if staged, ok := e.sets[o.current]; ok {
		if err := e.adapter.Prepare(ctx, o.current, staged); err != nil {
			return fmt.Errorf("prepare %s step %s: %w", engineName, o.current, err)
		}
		log.Info("inputs prepared", zap.Int("points", staged.Len()))
	} else {
		log.Info("no staged data, prepare skipped")
	}

	start := time.Now()
	if err := e.adapter.Invoke(ctx, o.current); err != nil {
		return fmt.Errorf("invoke %s step %s: %w", engineName, o.current, err)
	}
	elapsed := time.Since(start)

	set, err := e.adapter.Ingest(ctx, o.current)
	if err != nil {
		return fmt.Errorf("ingest %s step %s: %w", engineName, o.current, err)
	}
	e.sets[o.current] = set
	e.ingested[o.current] = true
	log.Info("results ingested",
		zap.Int("points", set.Len()),
		zap.Duration("compute_time", elapsed))

	if o.run.Store != nil {
		if err := o.run.Store.Save(o.current, engineName, set, elapsed); err != nil {
			return fmt.Errorf("snapshot %s step %s: %w", engineName, o.current, err)
		}
	}

	if o.allIngested() {
		o.done[o.current] = true
		o.phase = PhaseStepIngested
		log.Info("step complete")
	}
	return nil
}

func (o *Orchestrator) allIngested() bool {
	for _, n := range o.names {
		if !o.engines[n].ingested[o.current] {
			return false
		}
	}
	return true
}

// Finish closes the run. Only a fully ingested step may be the last one.
func (o *Orchestrator) Finish() error {
	if o.phase != PhaseStepIngested {
		return fmt.Errorf("finish in phase %s: %w", o.phase, ErrState)
	}
	o.phase = PhaseTerminal
	o.run.Log.Info("run finished",
		zap.String("run", o.run.Name),
		zap.Int("steps", len(o.steps)))
	return nil
}
