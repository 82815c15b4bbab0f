package ledgercache

const (
	DefaultBatchWidth        = 40
	DefaultLedgerConcurrency = 16
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// chunk splits s into consecutive slices of at most n elements.
func chunk[T any](s []T, n int) [][]T {
	if n <= 0 {
		n = max(len(s), 1)
	}
	out := make([][]T, 0, (len(s)+n-1)/n)
	for len(s) > 0 {
		end := min(n, len(s))
		out = append(out, s[:end:end])
		s = s[end:]
	}
	return out
}
