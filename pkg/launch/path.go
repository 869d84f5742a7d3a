package launch

// minimalPath is the fixed module search path baked into every build:
// the root resource, the standard library resource, and the
// site-packages resource, in that order. Earlier entries shadow later
// ones during module resolution.
var minimalPath = []string{":/", ":/stdlib", ":/site-packages"}

// MinimalPath returns a copy of the fixed search path.
func MinimalPath() []string {
	return append([]string(nil), minimalPath...)
}

// BuildPath composes the module search path: the minimal entries
// first, then the caller-supplied extras in caller order.
func BuildPath(extra []string) []string {
	return append(MinimalPath(), extra...)
}
