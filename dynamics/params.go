package dynamics

// IntegrationParams collects the tuning knobs shared by constraint
// generation and solving for one step.
type IntegrationParams struct {
	// Dt is the timestep length in seconds.
	Dt float32

	// RestitutionVelocityThreshold is the minimum approach speed, along the
	// contact normal, below which restitution is ignored. Keeps resting
	// contacts from jittering.
	RestitutionVelocityThreshold float32

	// WarmstartCoeff scales the impulses carried over from the previous
	// step before they are re-applied. 1 keeps them whole, 0 disables
	// warm-starting entirely.
	WarmstartCoeff float32

	// VelocityIterations is how many solver sweeps run over the full
	// constraint set each step.
	VelocityIterations int

	// PredictionDistance is how far apart two shapes may be while still
	// producing (speculative) contact points worth solving.
	PredictionDistance float32
}

// NewIntegrationParams returns the default parameters: a 60Hz step with
// restitution suppressed below 1 m/s, full warm-starting, four velocity
// iterations and a 2mm prediction distance.
func NewIntegrationParams() IntegrationParams {
	return IntegrationParams{
		Dt:                           1.0 / 60.0,
		RestitutionVelocityThreshold: 1.0,
		WarmstartCoeff:               1.0,
		VelocityIterations:           4,
		PredictionDistance:           0.002,
	}
}

// InvDt returns 1/Dt, or 0 when the timestep is degenerate.
func (p IntegrationParams) InvDt() float32 {
	if p.Dt <= 0 {
		return 0
	}
	return 1.0 / p.Dt
}
