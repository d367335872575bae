package placement

import "errors"

// ErrEmptyPool is returned by Pick when called with no candidates. The
// dispatcher must never reach this path — it is expected to short-circuit
// on an empty pool snapshot before calling Pick.
var ErrEmptyPool = errors.New("placement: cannot pick from an empty backend list")

// Pick selects an index into a slice of length n for the given key using
// FlipHash, then reduces it modulo n as a safety net — General already
// guarantees a value in [0, n), so the modulo is redundant given the
// contract, not load-bearing.
func Pick(key string, n int) (int, error) {
	if n <= 0 {
		return 0, ErrEmptyPool
	}
	h := General(key, uint64(n))
	return int(h % uint64(n)), nil
}
