// Package stage defines the running stages a dataset instance can be bound
// to. The stage is fixed at construction time and determines which hook
// overrides the input package resolves.
package stage

// Stage is the phase of a training run.
type Stage int

const (
	Training Stage = iota
	Validating
	Testing
	Predicting
	SanityChecking
	Tuning
)

// Prefix returns the conventional hook-name prefix for the stage, e.g. the
// "predict" in a predict-stage load-data override. An unknown stage has no
// prefix and resolves to generic hooks only.
func (s Stage) Prefix() string {
	switch s {
	case Training:
		return "train"
	case Validating:
		return "val"
	case Testing:
		return "test"
	case Predicting:
		return "predict"
	case SanityChecking:
		return "sanity_check"
	case Tuning:
		return "tune"
	}
	return ""
}

func (s Stage) String() string {
	switch s {
	case Training:
		return "training"
	case Validating:
		return "validating"
	case Testing:
		return "testing"
	case Predicting:
		return "predicting"
	case SanityChecking:
		return "sanity-checking"
	case Tuning:
		return "tuning"
	}
	return "unknown"
}

// All lists every defined stage, in declaration order.
func All() []Stage {
	return []Stage{Training, Validating, Testing, Predicting, SanityChecking, Tuning}
}
