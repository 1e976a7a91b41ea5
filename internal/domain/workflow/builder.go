package workflow

import (
	"context"
	"fmt"
	"sort"
)

// GuardFunc decides whether a transition may be taken
type GuardFunc func(ctx context.Context) bool

// StateMachineBuilder builds state machines sharing one transition table
type StateMachineBuilder interface {
	// Configure returns the transition configuration of a state
	Configure(state State) StateConfiguration

	// Build creates a machine starting in initialState
	Build(initialState State) StateMachine
}

// StateConfiguration adds transitions leaving one state
type StateConfiguration interface {
	// Permit allows trigger to move to toState unconditionally
	Permit(trigger Trigger, toState State) StateConfiguration

	// PermitIf allows trigger to move to toState when guard passes.
	// Guards are tried in registration order.
	PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration
}

type transition struct {
	toState State
	guard   GuardFunc
}

func (t transition) allowed(ctx context.Context) bool {
	return t.guard == nil || t.guard(ctx)
}

type stateConfig struct {
	transitions map[Trigger][]transition
}

type builder struct {
	configurations map[State]*stateConfig
}

type machine struct {
	current        State
	configurations map[State]*stateConfig
}

// NewBuilder creates an empty builder
func NewBuilder() StateMachineBuilder {
	return &builder{configurations: make(map[State]*stateConfig)}
}

func (b *builder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}

	cfg, ok := b.configurations[state]
	if !ok {
		cfg = &stateConfig{transitions: make(map[Trigger][]transition)}
		b.configurations[state] = cfg
	}
	return cfg
}

// Build copies the transition table so later Configure calls do not leak into built machines
func (b *builder) Build(initialState State) StateMachine {
	if !initialState.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initialState))
	}

	configs := make(map[State]*stateConfig, len(b.configurations))
	for state, cfg := range b.configurations {
		transitions := make(map[Trigger][]transition, len(cfg.transitions))
		for trigger, ts := range cfg.transitions {
			transitions[trigger] = append([]transition(nil), ts...)
		}
		configs[state] = &stateConfig{transitions: transitions}
	}

	return &machine{current: initialState, configurations: configs}
}

func (c *stateConfig) Permit(trigger Trigger, toState State) StateConfiguration {
	return c.PermitIf(trigger, toState, nil)
}

func (c *stateConfig) PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}
	c.transitions[trigger] = append(c.transitions[trigger], transition{toState: toState, guard: guard})
	return c
}

func (m *machine) State() State {
	return m.current
}

func (m *machine) candidates(trigger Trigger) []transition {
	cfg, ok := m.configurations[m.current]
	if !ok {
		return nil
	}
	return cfg.transitions[trigger]
}

func (m *machine) CanFire(ctx context.Context, trigger Trigger) bool {
	for _, t := range m.candidates(trigger) {
		if t.allowed(ctx) {
			return true
		}
	}
	return false
}

func (m *machine) Fire(ctx context.Context, trigger Trigger) error {
	ts := m.candidates(trigger)
	if len(ts) == 0 {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, m.current)
	}

	for _, t := range ts {
		if t.allowed(ctx) {
			m.current = t.toState
			return nil
		}
	}
	return fmt.Errorf("%w: %s from %s", ErrGuardFailed, trigger, m.current)
}

// PermittedTriggers returns the configured triggers sorted by name
func (m *machine) PermittedTriggers() []Trigger {
	cfg, ok := m.configurations[m.current]
	if !ok {
		return []Trigger{}
	}

	triggers := make([]Trigger, 0, len(cfg.transitions))
	for trigger := range cfg.transitions {
		triggers = append(triggers, trigger)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers
}
