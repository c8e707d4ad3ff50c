// Package registry owns the set of loaded BPMN models and the live
// instance table, and drives startup recovery by replaying each unfinished
// instance's journal (spec §4.7 "on restart", §4.8).
package registry

import (
	"context"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/duragraph/duragraph/internal/domain/graph"
	"github.com/duragraph/duragraph/internal/domain/instance"
	"github.com/duragraph/duragraph/internal/domain/journal"
	"github.com/duragraph/duragraph/internal/infrastructure/scheduler"
	"github.com/duragraph/duragraph/internal/pkg/errors"
	"github.com/duragraph/duragraph/internal/pkg/eventbus"
)

// entry pairs a live instance with the model_key it was created from and a
// mutex enforcing the single-cooperative-task-per-instance invariant (spec
// §5): two goroutines must never call scheduler.Run on the same instance
// concurrently.
type entry struct {
	mu       sync.Mutex
	inst     *instance.Instance
	modelKey string
}

// Registry is the model registry and instance table of spec §4.8.
type Registry struct {
	mu        sync.RWMutex
	models    map[string]*graph.Model
	sources   map[string][]byte
	instances map[string]*entry

	journal   journal.Repository
	scheduler *scheduler.Scheduler
}

// New builds an empty Registry. Call LoadModel before CreateInstance.
func New(repo journal.Repository, sched *scheduler.Scheduler) *Registry {
	return &Registry{
		models:    make(map[string]*graph.Model),
		sources:   make(map[string][]byte),
		instances: make(map[string]*entry),
		journal:   repo,
		scheduler: sched,
	}
}

// LoadModel registers a parsed model under key (its file name, spec §4.8).
func (r *Registry) LoadModel(key string, model *graph.Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[key] = model
}

// LoadModelSource records the raw BPMN XML bytes key was parsed from, so
// GET /model/{name} (spec §6) can return the original document rather than
// a re-serialization of the in-memory graph.
func (r *Registry) LoadModelSource(key string, source []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[key] = source
}

// Model returns the model loaded under key.
func (r *Registry) Model(key string) (*graph.Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[key]
	return m, ok
}

// ModelSource returns the raw BPMN XML bytes key was parsed from.
func (r *Registry) ModelSource(key string) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[key]
	return s, ok
}

// ListModels returns every loaded model's key, sorted.
func (r *Registry) ListModels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.models))
	for k := range r.models {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ResolveModel adapts Model to scheduler.ModelResolver, looking a
// callActivity's calledElement up by process id across every loaded model
// (spec §4.6 step 1's "separately loaded model" path).
func (r *Registry) ResolveModel(processID string) (*graph.Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.models {
		if m.ProcessID == processID {
			return m, true
		}
	}
	return nil, false
}

// CreateInstance mints (or accepts) an id, creates the instance, registers
// it live, and drives it through the scheduler until it suspends or
// terminates (spec §4.8 create_instance).
func (r *Registry) CreateInstance(ctx context.Context, modelKey, id string, initialVars map[string]interface{}) (*instance.Instance, error) {
	model, ok := r.Model(modelKey)
	if !ok {
		return nil, errors.NotFound("model", modelKey)
	}

	inst, err := instance.New(id, modelKey, initialVars)
	if err != nil {
		return nil, err
	}

	e := &entry{inst: inst, modelKey: modelKey}
	r.mu.Lock()
	r.instances[inst.ID()] = e
	r.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := r.scheduler.Run(ctx, inst, model); err != nil {
		return nil, err
	}

	return inst, nil
}

// GetOrLoadInstance returns the live instance, rehydrating it from the
// journal on first access after a restart (spec §4.7, §4.8
// get_or_load_instance).
func (r *Registry) GetOrLoadInstance(ctx context.Context, id string) (*instance.Instance, *graph.Model, error) {
	r.mu.RLock()
	e, ok := r.instances[id]
	r.mu.RUnlock()
	if ok {
		model, _ := r.Model(e.modelKey)
		return e.inst, model, nil
	}

	return r.rehydrate(ctx, id)
}

// DeliverMessage enqueues msg on instance id and re-enters the scheduler so
// it is picked up this round if the target vertex is pending (spec §6
// task/form and task/receive routes, §4.5 message delivery). Locks the
// instance's entry for the duration, enforcing the single-cooperative-task
// invariant (spec §5) the same way CreateInstance and RecoverAll do.
func (r *Registry) DeliverMessage(ctx context.Context, id string, msg instance.Message) error {
	r.mu.RLock()
	e, ok := r.instances[id]
	r.mu.RUnlock()

	var model *graph.Model
	if ok {
		model, _ = r.Model(e.modelKey)
	} else {
		var err error
		_, model, err = r.rehydrate(ctx, id)
		if err != nil {
			return err
		}
		r.mu.RLock()
		e = r.instances[id]
		r.mu.RUnlock()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.inst.Enqueue(msg)
	return r.scheduler.Run(ctx, e.inst, model)
}

func (r *Registry) rehydrate(ctx context.Context, id string) (*instance.Instance, *graph.Model, error) {
	entries, err := r.journal.Load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if len(entries) == 0 {
		return nil, nil, errors.NotFound("instance", id)
	}

	events := make([]eventbus.Event, 0, len(entries))
	for _, en := range entries {
		if event, ok := journal.ToInstanceEvent(id, en); ok {
			events = append(events, event)
		}
	}

	inst, err := instance.Reconstruct(events)
	if err != nil {
		return nil, nil, err
	}
	inst.ClearEvents() // replay is state-only; never re-journal what was just loaded (spec §4.7)

	model, ok := r.Model(inst.ModelRef())
	if !ok {
		return nil, nil, errors.NotFound("model", inst.ModelRef())
	}

	r.mu.Lock()
	r.instances[id] = &entry{inst: inst, modelKey: inst.ModelRef()}
	r.mu.Unlock()

	return inst, model, nil
}

// Search intersects per-clause id sets produced by substring matches
// "attribute:value" against each live instance's string-valued variables
// (spec §4.8 search). Clauses are comma-separated and AND together; a
// clause with no "attribute:" prefix matches against every string
// variable's value instead of one named attribute. Only instances this
// process currently holds live are considered — the registry searches its
// own in-memory table, not the Postgres projection.
func (r *Registry) Search(query string) []string {
	clauses := splitSearchClauses(query)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []string
	for id, e := range r.instances {
		if matchesAllClauses(e.inst, clauses) {
			matches = append(matches, id)
		}
	}
	sort.Strings(matches)
	return matches
}

type searchClause struct {
	attribute string // empty means "match any string variable"
	value     string
}

func splitSearchClauses(query string) []searchClause {
	var clauses []searchClause
	for _, raw := range strings.Split(query, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if attr, val, ok := strings.Cut(raw, ":"); ok {
			clauses = append(clauses, searchClause{attribute: strings.TrimSpace(attr), value: strings.TrimSpace(val)})
		} else {
			clauses = append(clauses, searchClause{value: raw})
		}
	}
	return clauses
}

func matchesAllClauses(inst *instance.Instance, clauses []searchClause) bool {
	vars := inst.Variables()
	for _, c := range clauses {
		if !matchesClause(vars, c) {
			return false
		}
	}
	return true
}

func matchesClause(vars map[string]interface{}, c searchClause) bool {
	if c.attribute != "" {
		v, ok := vars[c.attribute]
		if !ok {
			return false
		}
		s, ok := v.(string)
		return ok && strings.Contains(s, c.value)
	}

	for _, v := range vars {
		s, ok := v.(string)
		if ok && strings.Contains(s, c.value) {
			return true
		}
	}
	return false
}

// RecoverAll replays every unfinished instance's journal and re-enters the
// scheduler for each, bounded by a worker pool (spec §4.7 "on restart").
func (r *Registry) RecoverAll(ctx context.Context, concurrency int) error {
	ids, err := r.journal.ListUnfinished(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}

	for _, id := range ids {
		g.Go(func() error {
			inst, model, err := r.rehydrate(gctx, id)
			if err != nil {
				return err
			}
			if inst.Status().IsTerminal() {
				return nil
			}

			r.mu.RLock()
			e := r.instances[id]
			r.mu.RUnlock()

			e.mu.Lock()
			defer e.mu.Unlock()
			return r.scheduler.Run(gctx, inst, model)
		})
	}

	return g.Wait()
}
