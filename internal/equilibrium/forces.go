package equilibrium

// ForceVector holds the five named pressures on an asset's price, each
// within [-1, 1].
type ForceVector struct {
	Demand      float64 `json:"demand"`
	Supply      float64 `json:"supply"`
	Volatility  float64 `json:"volatility"`
	Liquidity   float64 `json:"liquidity"`
	Speculation float64 `json:"speculation"`
}

// Components returns the forces in canonical order.
func (f ForceVector) Components() [5]float64 {
	return [5]float64{f.Demand, f.Supply, f.Volatility, f.Liquidity, f.Speculation}
}

// ForceNames lists the forces in the order used by Components.
var ForceNames = [5]string{"demand", "supply", "volatility", "liquidity", "speculation"}

// CalculateForces maps normalized inputs to forces. Each force depends on
// its own input only. The unsigned volatility input is folded so that a calm
// asset sits at -1 and a maximally volatile one at +1.
func CalculateForces(in Inputs) ForceVector {
	return ForceVector{
		Demand:      clip(in.Demand, -1, 1),
		Supply:      clip(in.Supply, -1, 1),
		Volatility:  clip(2*in.Volatility-1, -1, 1),
		Liquidity:   clip(in.Liquidity, -1, 1),
		Speculation: clip(in.Speculation, -1, 1),
	}
}

// volatilityMagnitude recovers the unsigned volatility input from the force.
func (f ForceVector) volatilityMagnitude() float64 {
	return clip((f.Volatility+1)/2, 0, 1)
}

// liquidityLevel maps the liquidity force onto [0, 1].
func (f ForceVector) liquidityLevel() float64 {
	return clip((f.Liquidity+1)/2, 0, 1)
}
