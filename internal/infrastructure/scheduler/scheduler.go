// Package scheduler drives a single BPMN instance's tokens through its
// model per the main loop in spec §4.5, dispatching call activities (§4.6)
// and journaling every effective transition (§4.7). Grounded on teacher
// internal/infrastructure/graph/engine.go's Engine.executePlan, generalized
// from a fixed DAG walk to the pending-set/outcome loop BPMN requires.
package scheduler

import (
	"context"

	"github.com/duragraph/duragraph/internal/domain/element"
	"github.com/duragraph/duragraph/internal/domain/graph"
	"github.com/duragraph/duragraph/internal/domain/instance"
	"github.com/duragraph/duragraph/internal/domain/journal"
	"github.com/duragraph/duragraph/internal/infrastructure/connector"
	"github.com/duragraph/duragraph/internal/pkg/errors"
	"github.com/duragraph/duragraph/internal/pkg/eventbus"
)

// ModelResolver looks up a separately loaded model by process id — the
// second resolution path for callActivity targets that are not nested
// sub-processes of the calling model (spec §4.6 step 1, §4.8).
type ModelResolver func(processID string) (*graph.Model, bool)

// Scheduler advances BPMN instances one at a time. A single Scheduler is
// shared process-wide; the per-instance serialization invariant (spec §5)
// is the caller's responsibility — Run must not be invoked concurrently for
// the same instance.
type Scheduler struct {
	connector    *connector.Runner
	systemVars   map[string]interface{}
	journal      journal.Repository
	bus          *eventbus.EventBus
	resolveModel ModelResolver
}

// New builds a Scheduler. resolveModel may be nil if callActivity targets
// are always nested sub-processes.
func New(conn *connector.Runner, systemVars map[string]interface{}, repo journal.Repository, bus *eventbus.EventBus, resolveModel ModelResolver) *Scheduler {
	if systemVars == nil {
		systemVars = map[string]interface{}{}
	}
	return &Scheduler{
		connector:    conn,
		systemVars:   systemVars,
		journal:      repo,
		bus:          bus,
		resolveModel: resolveModel,
	}
}

// mutatesVariables reports whether a vertex kind's run may write into
// instance variables, gating when a post-step snapshot must be journaled.
func mutatesVariables(kind graph.VertexKind) bool {
	switch kind {
	case graph.KindUserTask, graph.KindReceiveTask, graph.KindServiceTask,
		graph.KindSendTask, graph.KindBusinessRule, graph.KindCallActivity:
		return true
	default:
		return false
	}
}

// Run drives inst against model until it finishes, fails, or has no more
// progress to make with an empty inbox (spec §4.5 main loop). It is also
// the resume path: calling Run again on a waiting instance after Enqueue
// re-enters the loop.
func (s *Scheduler) Run(ctx context.Context, inst *instance.Instance, model *graph.Model) error {
	if len(inst.Pending()) == 0 && inst.Status() == instance.StatusRunning {
		for _, id := range model.StartEvents {
			inst.Enter(id)
		}
	}

	if inst.Status() == instance.StatusWaiting && inst.InboxLen() > 0 {
		if err := inst.TransitionTo(instance.StatusRunning); err != nil {
			return err
		}
	}

	sc := &stepContext{inst: inst, model: model, sched: s}

	for inst.Status() == instance.StatusRunning {
		if err := ctx.Err(); err != nil {
			_ = inst.TransitionTo(instance.StatusFailed)
			_ = s.commit(ctx, inst)
			return err
		}

		var deliverMsg *instance.Message
		if sc.nextDelivery != nil {
			deliverMsg = sc.nextDelivery
			sc.nextDelivery = nil
		}

		progressed := false
		allWaiting := true
		delivered := false

		for _, v := range inst.Pending() {
			vertex, ok := model.Vertex(v)
			if !ok {
				err := errors.ParseError(model.ProcessID, "pending vertex "+v+" not found in model")
				_ = inst.TransitionTo(instance.StatusFailed)
				_ = s.commit(ctx, inst)
				return err
			}

			if deliverMsg != nil && !delivered && v == deliverMsg.TaskID {
				sc.delivered = deliverMsg
			} else {
				sc.delivered = nil
			}
			sc.deliverTarget = v

			outcome, err := element.Run(ctx, vertex, model, sc)
			if err != nil {
				_ = inst.TransitionTo(instance.StatusFailed)
				_ = s.commit(ctx, inst)
				return err
			}

			if sc.delivered == nil && deliverMsg != nil && v == deliverMsg.TaskID {
				delivered = true
			}

			switch outcome.Kind {
			case element.OutcomeWaiting:
				continue
			case element.OutcomeDone:
				// A parallel-gateway join absorbed this token without
				// reaching its incoming-edge count yet. Leave it in
				// pending — completing it here would erase the arrival
				// the moment it is evaluated alone, so a second branch
				// landing on the join in a later round would see a
				// pending count reset to zero and the join would never
				// fire (spec §4.3, §8 Invariant 3).
				continue
			case element.OutcomeImmediate:
				if vertex.Kind == graph.KindParallelGateway && vertex.IncomingCount > 1 {
					inst.CompleteAll(v)
				} else {
					inst.Complete(v)
				}
				for _, e := range outcome.ChosenOutgoing {
					inst.Enter(e.Target)
				}
				progressed = true
				allWaiting = false
			}

			if mutatesVariables(vertex.Kind) && outcome.Kind == element.OutcomeImmediate {
				snapshot, err := instance.DeepCopyVars(inst.Variables())
				if err != nil {
					_ = inst.TransitionTo(instance.StatusFailed)
					_ = s.commit(ctx, inst)
					return err
				}
				inst.UpdateVariables(snapshot)
			}
		}

		if deliverMsg != nil {
			inst.MarkDelivered(*deliverMsg)
		}

		if len(inst.Pending()) == 0 {
			_ = inst.TransitionTo(instance.StatusFinished)
			return s.commit(ctx, inst)
		}

		if allWaiting && inst.InboxLen() == 0 {
			if err := inst.TransitionTo(instance.StatusWaiting); err != nil {
				return err
			}
			return s.commit(ctx, inst)
		}

		if !progressed && inst.InboxLen() > 0 {
			msg, ok := inst.PopInbox()
			if ok {
				sc.nextDelivery = &msg
			}
		}

		if err := s.commit(ctx, inst); err != nil {
			return err
		}
	}

	return nil
}

// invokeCallActivity resolves calledElement, runs a fresh child instance to
// completion, and returns its final variables (spec §4.6 steps 1 and 3).
func (s *Scheduler) invokeCallActivity(ctx context.Context, model *graph.Model, calledElement string, childVars map[string]interface{}) (map[string]interface{}, error) {
	childModel, ok := model.ResolveCalledElement(calledElement, s.resolveModel)
	if !ok {
		return nil, errors.NotFound("model", calledElement)
	}

	child, err := instance.New("", childModel.ProcessID, childVars)
	if err != nil {
		return nil, err
	}

	if err := s.Run(ctx, child, childModel); err != nil {
		return nil, err
	}

	// A child that does not reach StatusFinished synchronously — whether it
	// failed outright or suspended on a nested userTask/receiveTask — cannot
	// hand variables back to the parent inline, per spec §4.6 step 3's "run
	// it to completion": both cases surface as a callActivity failure (§7
	// Open Question decision #8).
	if child.Status() != instance.StatusFinished {
		return nil, errors.ChildFailure(calledElement, child.ID())
	}

	return child.Variables(), nil
}

// Cancel terminates inst and drains its inbox (spec §5 cancellation). Any
// in-flight connector call or child instance is expected to abort via the
// ctx passed to the Run call that is currently driving it; Cancel itself
// only needs to settle the instance's own state and journal.
func (s *Scheduler) Cancel(ctx context.Context, inst *instance.Instance) error {
	for {
		msg, ok := inst.PopInbox()
		if !ok {
			break
		}
		inst.MarkDelivered(msg)
	}
	if err := inst.TransitionTo(instance.StatusFailed); err != nil {
		return err
	}
	return s.commit(ctx, inst)
}

// commit flushes inst's uncommitted domain events to the journal and
// publishes them on the event bus (spec §4.7).
func (s *Scheduler) commit(ctx context.Context, inst *instance.Instance) error {
	events := inst.Events()
	if len(events) == 0 {
		return nil
	}

	entries := make([]journal.Entry, 0, len(events))
	for _, ev := range events {
		if entry, ok := journal.FromInstanceEvent(ev); ok {
			entries = append(entries, entry)
		}
	}

	if s.journal != nil {
		if err := s.journal.Append(ctx, inst.ID(), entries); err != nil {
			return err
		}
	}

	if s.bus != nil {
		for _, ev := range events {
			_ = s.bus.Publish(ctx, ev)
		}
	}

	inst.ClearEvents()
	return nil
}
