package telemetry

// AccG is the acceleration triple in g units.
type AccG struct {
	Lateral      float64 `json:"lateral"`
	Vertical     float64 `json:"vertical"`
	Longitudinal float64 `json:"longitudinal"`
}

// Sample is one immutable snapshot of simulated vehicle physics. It is
// produced fresh on every poll tick and discarded after the tick;
// consumers keep their own copies of the fields they need for deltas.
type Sample struct {
	SpeedKmh float64 `json:"speedKmh"`
	Gear     int     `json:"gear"`
	Gas      float64 `json:"gas"`
	Brake    float64 `json:"brake"`
	AccG     AccG    `json:"accG"`

	// Body attitude in radians.
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`

	Fuel float64 `json:"fuel"`
}

// Source produces the latest physics snapshot. Sample is pull-based,
// returns synchronously and never errors; a source without live data
// returns the zero Sample.
type Source interface {
	Sample() Sample
}

// SourceFunc adapts a plain function to the Source interface.
type SourceFunc func() Sample

// Sample implements Source.
func (f SourceFunc) Sample() Sample {
	return f()
}
