package policy

import (
	"github.com/ppiankov/fanguard/internal/helper"
	"github.com/ppiankov/fanguard/internal/model"
)

// Validator confirms that a reported success actually took effect.
type Validator interface {
	Validate(result model.WriteResult) bool
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(result model.WriteResult) bool

// Validate calls f(result).
func (f ValidatorFunc) Validate(result model.WriteResult) bool { return f(result) }

// ResultValidator trusts the executor's success flag.
var ResultValidator Validator = ValidatorFunc(func(r model.WriteResult) bool { return r.Success })

// ReadbackValidator requires target writes to read back within Tolerance
// percentage points of the requested value. Other commands fall back to
// the success flag.
type ReadbackValidator struct {
	Tolerance int
}

// Validate implements Validator.
func (v ReadbackValidator) Validate(r model.WriteResult) bool {
	if !r.Success {
		return false
	}
	if r.Command != model.SetChannelTarget {
		return true
	}
	requested, ok := helper.ToInt(r.Readback["requested"])
	if !ok {
		return false
	}
	actual, ok := helper.ToInt(r.Readback["target"])
	if !ok {
		return false
	}
	diff := requested - actual
	if diff < 0 {
		diff = -diff
	}
	return diff <= v.Tolerance
}
