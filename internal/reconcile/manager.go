package reconcile

import (
	"context"
	"fmt"
	"log/slog"
)

// Manager owns an ordered collection of controls and executes them
// strictly sequentially. Controls are appended and cleared by a
// single-threaded caller; the manager never shares them.
type Manager struct {
	controls []Control
	logger   *slog.Logger
}

// NewManager creates an empty manager.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{logger: logger}
}

// Append adds a control at the end of the sequence. Duplicate names
// are permitted; name lookups resolve to the first match.
func (m *Manager) Append(c Control) {
	m.controls = append(m.controls, c)
	m.logger.Debug("control registered", "name", c.Name(), "position", len(m.controls))
}

// Result summarizes one batch run.
type Result struct {
	Attempted int
	Succeeded int
	Failures  []Failure
}

// ReconcileAll runs every control in insertion order. A failing
// control never stops the batch: its error is logged, recorded in the
// result, and the next control runs. When at least one control failed
// the returned error is a *AggregateError carrying the counts and the
// first failure as its cause. An empty manager is a no-op.
func (m *Manager) ReconcileAll(ctx context.Context) (*Result, error) {
	result := &Result{Attempted: len(m.controls)}
	if len(m.controls) == 0 {
		m.logger.Warn("no controls registered, nothing to reconcile")
		return result, nil
	}

	m.logger.Info("starting batch reconciliation", "controls", len(m.controls))
	for i, control := range m.controls {
		m.logger.Info("reconciling control",
			"name", control.Name(), "position", fmt.Sprintf("%d/%d", i+1, len(m.controls)))

		if err := control.Reconcile(ctx); err != nil {
			m.logger.Error("control failed", "name", control.Name(), "error", err)
			result.Failures = append(result.Failures, Failure{Name: control.Name(), Err: err})
			continue
		}
		result.Succeeded++
	}

	m.logger.Info("batch reconciliation finished",
		"attempted", result.Attempted,
		"succeeded", result.Succeeded,
		"failed", len(result.Failures))

	if len(result.Failures) > 0 {
		return result, &AggregateError{
			Attempted: result.Attempted,
			Succeeded: result.Succeeded,
			Failures:  result.Failures,
		}
	}
	return result, nil
}

// ReconcileByName runs the first control with the given name. Unlike
// ReconcileAll there is no aggregation: a failure propagates directly,
// wrapped with the control's name.
func (m *Manager) ReconcileByName(ctx context.Context, name string) error {
	control := m.Get(name)
	if control == nil {
		return &NotFoundError{Name: name}
	}

	if err := control.Reconcile(ctx); err != nil {
		m.logger.Error("control failed", "name", name, "error", err)
		return fmt.Errorf("control %q: %w", name, err)
	}
	return nil
}

// Get returns the first control with the given name, or nil.
func (m *Manager) Get(name string) Control {
	for _, c := range m.controls {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// Contains reports whether a control with the given name is registered.
func (m *Manager) Contains(name string) bool {
	return m.Get(name) != nil
}

// Names returns the control names in insertion order, duplicates included.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.controls))
	for _, c := range m.controls {
		names = append(names, c.Name())
	}
	return names
}

// Count returns the number of registered controls.
func (m *Manager) Count() int {
	return len(m.controls)
}

// Clear removes every control.
func (m *Manager) Clear() {
	m.controls = nil
	m.logger.Debug("controls cleared")
}
