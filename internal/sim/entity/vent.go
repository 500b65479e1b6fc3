package entity

// Vent is a heat source attached to a body. Each frame it adds Rate to the body's temperature
// while the body is below Target.
type Vent struct {
	Body   *Body
	Target float64
	Rate   float64
}

func (v *Vent) Update() {
	if v.Body == nil || !v.Body.Alive() {
		return
	}
	if v.Body.Temperature() < v.Target {
		v.Body.Heat(v.Rate)
	}
}
