package sliceutil

func Map[From any, To any](v []From, f func(From) To) []To {
	out := make([]To, len(v))
	for idx, elem := range v {
		out[idx] = f(elem)
	}
	return out
}

// Filter returns the elements of v that keep accepts, in order.
func Filter[T any](v []T, keep func(T) bool) []T {
	var out []T
	for _, elem := range v {
		if keep(elem) {
			out = append(out, elem)
		}
	}
	return out
}
