package util

// Ptr returns a pointer to the given value.
// Handy for optional struct fields initialized from literals.
func Ptr[T any](v T) *T {
	return &v
}
