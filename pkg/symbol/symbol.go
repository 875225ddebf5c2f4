// Package symbol implements the base-64 symbol alphabet used by the
// constrained ingestion client. Each symbol is one printable character
// transmitted as a small integer path parameter; sequences of symbols fold
// into bounded non-negative integers via positional base-64 arithmetic.
package symbol

import (
	"errors"
	"fmt"
)

// Alphabet is the ordered symbol set. A symbol's index in this string is its
// base-64 digit value.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// Base is the radix of the positional encoding.
const Base = len(Alphabet)

// Terminator is the reserved end-of-sequence sentinel. It is never part of
// a decoded value; DecodeSequence stops folding when it meets one.
const Terminator = '='

// TerminatorIndex is the integer index clients send for the terminator.
const TerminatorIndex = Base

// DefaultValueCap bounds decoded values so oversized or malicious sequences
// saturate instead of corrupting storage.
const DefaultValueCap = int64(10_000_000_000_000) // 10^13

// ErrUnknownSymbol is returned when a character is outside the alphabet.
var ErrUnknownSymbol = errors.New("symbol: character not in alphabet")

// ErrBadIndex is returned when an integer index is outside [0, Base).
var ErrBadIndex = errors.New("symbol: index out of range")

// Mode selects how DecodeSequence treats characters outside the alphabet.
type Mode int

const (
	// Strict fails the whole decode on an undecodable character.
	Strict Mode = iota
	// Lenient skips undecodable characters.
	Lenient
)

// index maps alphabet characters back to their digit values.
var index = func() map[byte]int {
	m := make(map[byte]int, Base)
	for i := 0; i < Base; i++ {
		m[Alphabet[i]] = i
	}
	return m
}()

// Encode returns the alphabet character for digit value i.
func Encode(i int) (byte, error) {
	if i < 0 || i >= Base {
		return 0, fmt.Errorf("encoding symbol %d: %w", i, ErrBadIndex)
	}
	return Alphabet[i], nil
}

// Decode returns the digit value of an alphabet character.
func Decode(c byte) (int, error) {
	i, ok := index[c]
	if !ok {
		return 0, fmt.Errorf("decoding symbol %q: %w", c, ErrUnknownSymbol)
	}
	return i, nil
}

// DecodeSequence folds a symbol string into a non-negative integer,
// most-significant symbol first. Folding stops at the first Terminator; the
// input is truncated to maxLen symbols and the result saturates at cap
// rather than wrapping. A cap <= 0 selects DefaultValueCap.
func DecodeSequence(s string, maxLen int, cap int64, mode Mode) (int64, error) {
	if cap <= 0 {
		cap = DefaultValueCap
	}
	if maxLen > 0 && len(s) > maxLen {
		s = s[:maxLen]
	}

	var v int64
	for i := 0; i < len(s); i++ {
		if s[i] == Terminator {
			break
		}
		idx, ok := index[s[i]]
		if !ok {
			if mode == Lenient {
				continue
			}
			return 0, fmt.Errorf("decoding sequence at position %d: %w", i, ErrUnknownSymbol)
		}
		if v > (cap-int64(idx))/int64(Base) {
			return cap, nil
		}
		v = v*int64(Base) + int64(idx)
	}
	if v > cap {
		return cap, nil
	}
	return v, nil
}
