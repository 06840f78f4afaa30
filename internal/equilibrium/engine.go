// Package equilibrium decomposes an asset's market snapshot into five
// bounded forces and combines them into an equilibrium price, band, and
// tension score. Every operation is a pure function of its inputs and the
// engine's model; nothing is cached or shared between calls.
package equilibrium

import (
	"fmt"
	"runtime"
)

// Evaluation carries the intermediate and final values for one asset.
type Evaluation struct {
	Key          AssetKey          `json:"key"`
	CurrentPrice float64           `json:"current_price"`
	Inputs       Inputs            `json:"inputs"`
	Forces       ForceVector       `json:"forces"`
	Result       Result            `json:"result"`
	Override     *ScenarioOverride `json:"override,omitempty"`
}

// Engine runs the normalize → forces → evaluate pipeline with one model.
type Engine struct {
	model   Model
	workers int
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers bounds batch parallelism. Values below 1 fall back to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// NewEngine validates the model and returns an engine bound to it.
func NewEngine(model Model, opts ...Option) (*Engine, error) {
	if err := model.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{model: model}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = runtime.GOMAXPROCS(0)
	}
	return e, nil
}

// MustDefaultEngine returns an engine using DefaultModel.
func MustDefaultEngine() *Engine {
	e, err := NewEngine(DefaultModel())
	if err != nil {
		panic(fmt.Sprintf("default model rejected: %v", err))
	}
	return e
}

// Model returns the engine's parameter set.
func (e *Engine) Model() Model {
	return e.model
}

// Normalize runs only the field normalizer on a snapshot.
func (e *Engine) Normalize(s AssetSnapshot) Inputs {
	return normalize(extractFields(s, e.model.Normalizer), e.model.Normalizer)
}

// Evaluate computes the baseline equilibrium of one asset.
func (e *Engine) Evaluate(s AssetSnapshot) (Evaluation, error) {
	if err := s.Validate(); err != nil {
		return Evaluation{}, err
	}
	return e.run(s, extractFields(s, e.model.Normalizer), nil), nil
}

// Simulate evaluates one asset under a scenario override. The override is
// applied to the raw fields; the formulas are the ones Evaluate uses.
func (e *Engine) Simulate(s AssetSnapshot, o ScenarioOverride) (Evaluation, error) {
	if err := s.Validate(); err != nil {
		return Evaluation{}, err
	}
	if err := o.Validate(); err != nil {
		return Evaluation{}, &AssetError{Key: s.Key(), Err: err}
	}
	fields := o.apply(extractFields(s, e.model.Normalizer))
	return e.run(s, fields, &o), nil
}

// Compare evaluates an asset with and without an override.
func (e *Engine) Compare(s AssetSnapshot, o ScenarioOverride) (Comparison, error) {
	base, err := e.Evaluate(s)
	if err != nil {
		return Comparison{}, err
	}
	scenario, err := e.Simulate(s, o)
	if err != nil {
		return Comparison{}, err
	}
	return compare(base, scenario), nil
}

func (e *Engine) run(s AssetSnapshot, fields marketFields, o *ScenarioOverride) Evaluation {
	inputs := normalize(fields, e.model.Normalizer)
	forces := CalculateForces(inputs)
	return Evaluation{
		Key:          s.Key(),
		CurrentPrice: s.CurrentPrice,
		Inputs:       inputs,
		Forces:       forces,
		Result:       e.model.Evaluate(forces, s.CurrentPrice),
		Override:     o,
	}
}
