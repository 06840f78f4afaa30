package equilibrium

import (
	"errors"

	"golang.org/x/sync/errgroup"
)

// BatchResult holds the successful evaluations in input order and the
// per-asset failures that were excluded from them. Indices[i] is the input
// position of Evaluations[i].
type BatchResult struct {
	Evaluations []Evaluation  `json:"evaluations"`
	Indices     []int         `json:"-"`
	Failures    []*AssetError `json:"-"`
}

// ByKey indexes the successful evaluations by asset identity.
func (b BatchResult) ByKey() map[AssetKey]Evaluation {
	out := make(map[AssetKey]Evaluation, len(b.Evaluations))
	for _, ev := range b.Evaluations {
		out[ev.Key] = ev
	}
	return out
}

// EvaluateBatch evaluates every asset independently. A failing asset is
// reported in Failures and never aborts the others.
func (e *Engine) EvaluateBatch(assets []AssetSnapshot) BatchResult {
	return e.batch(assets, e.Evaluate)
}

// SimulateBatch applies the same override to every asset.
func (e *Engine) SimulateBatch(assets []AssetSnapshot, o ScenarioOverride) BatchResult {
	return e.batch(assets, func(s AssetSnapshot) (Evaluation, error) {
		return e.Simulate(s, o)
	})
}

func (e *Engine) batch(assets []AssetSnapshot, eval func(AssetSnapshot) (Evaluation, error)) BatchResult {
	evaluations := make([]Evaluation, len(assets))
	errs := make([]error, len(assets))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i := range assets {
		i := i
		g.Go(func() error {
			evaluations[i], errs[i] = eval(assets[i])
			return nil
		})
	}
	_ = g.Wait()

	result := BatchResult{
		Evaluations: make([]Evaluation, 0, len(assets)),
		Indices:     make([]int, 0, len(assets)),
	}
	for i, err := range errs {
		if err == nil {
			result.Evaluations = append(result.Evaluations, evaluations[i])
			result.Indices = append(result.Indices, i)
			continue
		}
		var assetErr *AssetError
		if !errors.As(err, &assetErr) {
			assetErr = &AssetError{Key: assets[i].Key(), Err: err}
		}
		result.Failures = append(result.Failures, assetErr)
	}
	return result
}
