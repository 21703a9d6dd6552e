// Package convid derives deterministic conversation ids from a pair of
// participant ids. Both derivations are pure and order-independent:
// Hash(a, b) == Hash(b, a) for every valid pair, and likewise for Concat.
package convid

import (
	"errors"
	"sort"

	"github.com/google/uuid"
)

// Namespace for name-based conversation ids. Fixed forever: changing it
// would re-key every existing conversation.
var namespace = uuid.MustParse("b4c1d9f2-8e5a-4f7b-9c3d-2a6e1f0b8d47")

// ErrInvalidPair is returned when either participant id is empty or the
// two ids are equal. Failing fast here keeps degenerate keys (empty or
// self-conversations) out of the store.
var ErrInvalidPair = errors.New("convid: invalid participant pair")

// Hash returns a name-based (SHA-1, version 5) UUID for the pair. Use this
// whenever the store enforces a UUID-typed primary key.
func Hash(a, b string) (string, error) {
	lo, hi, err := ordered(a, b)
	if err != nil {
		return "", err
	}
	return uuid.NewSHA1(namespace, []byte(lo+":"+hi)).String(), nil
}

// Concat returns the sorted pair joined with an underscore. Human-readable
// but leaks participant ids; only suitable for stores with free-form keys.
func Concat(a, b string) (string, error) {
	lo, hi, err := ordered(a, b)
	if err != nil {
		return "", err
	}
	return lo + "_" + hi, nil
}

func ordered(a, b string) (string, string, error) {
	if a == "" || b == "" || a == b {
		return "", "", ErrInvalidPair
	}
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0], pair[1], nil
}
