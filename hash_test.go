// Attributes checksum tests.
//
// The checksum is the only thing standing between a torn attributes file
// and a log that trusts a size it never reached. Open recomputes it with
// the algorithm named in the version file and discards the attributes on
// mismatch, so it must be deterministic, sensitive to every field, and
// fixed at 16 hex characters.
package vfslog

import (
	"regexp"
	"testing"
)

var hexPattern = regexp.MustCompile(`^[0-9a-f]{16}$`)

var algorithms = []int{AlgXXHash3, AlgFNV1a, AlgBlake2b}

func TestChecksumFormat(t *testing.T) {
	for _, alg := range algorithms {
		if got := checksum([]byte("test"), alg); !hexPattern.MatchString(got) {
			t.Errorf("alg %d: %q is not 16 hex chars", alg, got)
		}
		if got := checksum(nil, alg); !hexPattern.MatchString(got) {
			t.Errorf("alg %d: empty input gave %q", alg, got)
		}
	}
}

// TestChecksumDeterministic verifies that the same bytes always hash the
// same. Otherwise every reopen would discard the attributes and rescan.
func TestChecksumDeterministic(t *testing.T) {
	for _, alg := range algorithms {
		if checksum([]byte(`{"_o":57}`), alg) != checksum([]byte(`{"_o":57}`), alg) {
			t.Errorf("alg %d: not deterministic", alg)
		}
	}
}

// TestChecksumDetectsChange flips one digit of a recorded size.
func TestChecksumDetectsChange(t *testing.T) {
	for _, alg := range algorithms {
		if checksum([]byte(`{"_o":57}`), alg) == checksum([]byte(`{"_o":58}`), alg) {
			t.Errorf("alg %d: size change not detected", alg)
		}
	}
}

func TestChecksumAlgorithmsDiffer(t *testing.T) {
	a := checksum([]byte("foo"), AlgXXHash3)
	b := checksum([]byte("foo"), AlgFNV1a)
	c := checksum([]byte("foo"), AlgBlake2b)
	if a == b || a == c || b == c {
		t.Errorf("algorithms collide: xxh3=%q fnv=%q blake2b=%q", a, b, c)
	}
}

// TestChecksumInvalidAlgorithm returns an empty string, which never
// matches a stored checksum, so attributes written under an unknown
// algorithm are ignored rather than trusted.
func TestChecksumInvalidAlgorithm(t *testing.T) {
	if got := checksum([]byte("test"), 99); got != "" {
		t.Errorf("invalid alg = %q, want empty", got)
	}
}
