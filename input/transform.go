package input

// Transform rewrites a sample on its way out of an input. Transforms run
// outside the resolver, applied by the owning data module per stage.
type Transform func(Sample) (Sample, error)

// Compose chains transforms left to right into a single Transform. Composing
// nothing returns the identity.
func Compose(transforms ...Transform) Transform {
	return func(s Sample) (Sample, error) {
		var err error
		for _, t := range transforms {
			if t == nil {
				continue
			}
			if s, err = t(s); err != nil {
				return nil, err
			}
		}
		return s, nil
	}
}
