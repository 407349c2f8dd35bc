// Package base62 converts non-negative integers to short alphanumeric codes and back.
package base62

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Alphabet is digits, then lowercase, then uppercase letters.
const Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// DefaultMinLength is the padded width of auto-generated slugs.
const DefaultMinLength = 6

const base = 62

var (
	ErrInvalidCharacter = errors.New("base62: invalid character")
	ErrOverflow         = errors.New("base62: value overflows uint64")
	ErrInvalidAlphabet  = errors.New("base62: alphabet must contain 62 distinct ASCII symbols")
)

// Codec is an immutable encoder bound to one alphabet and minimum length.
// It is safe for concurrent use.
type Codec struct {
	alphabet  string
	index     [256]int16
	minLength int
}

var std = MustNewCodec(Alphabet, DefaultMinLength)

func NewCodec(alphabet string, minLength int) (*Codec, error) {
	if len(alphabet) != base {
		return nil, ErrInvalidAlphabet
	}
	if minLength < 1 {
		return nil, fmt.Errorf("base62: min length must be at least 1, got %d", minLength)
	}

	c := &Codec{alphabet: alphabet, minLength: minLength}
	for i := range c.index {
		c.index[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		ch := alphabet[i]
		if ch >= 0x80 || c.index[ch] != -1 {
			return nil, ErrInvalidAlphabet
		}
		c.index[ch] = int16(i)
	}
	return c, nil
}

func MustNewCodec(alphabet string, minLength int) *Codec {
	c, err := NewCodec(alphabet, minLength)
	if err != nil {
		panic(err)
	}
	return c
}

// MinLength returns the padding width used by Encode.
func (c *Codec) MinLength() int {
	return c.minLength
}

// Encode encodes n padded to the codec's minimum length.
func (c *Codec) Encode(n uint64) string {
	return c.EncodeMin(n, c.minLength)
}

// EncodeMin encodes n most-significant digit first and left-pads the result
// with the alphabet's first symbol until it is at least minLength long.
func (c *Codec) EncodeMin(n uint64, minLength int) string {
	// 62^11 > 2^64, so eleven digits always suffice.
	var buf [11]byte
	i := len(buf)
	for {
		i--
		buf[i] = c.alphabet[n%base]
		n /= base
		if n == 0 {
			break
		}
	}

	digits := buf[i:]
	if pad := minLength - len(digits); pad > 0 {
		return strings.Repeat(c.alphabet[:1], pad) + string(digits)
	}
	return string(digits)
}

// Decode reads s as a big-endian base-62 numeral. The empty string decodes to 0.
func (c *Codec) Decode(s string) (uint64, error) {
	var n uint64
	for i := 0; i < len(s); i++ {
		d := c.index[s[i]]
		if d < 0 {
			return 0, fmt.Errorf("%w %q at offset %d", ErrInvalidCharacter, s[i], i)
		}
		if n > (math.MaxUint64-uint64(d))/base {
			return 0, ErrOverflow
		}
		n = n*base + uint64(d)
	}
	return n, nil
}

// Encode encodes n with the standard alphabet.
func Encode(n uint64, minLength int) string {
	return std.EncodeMin(n, minLength)
}

// Decode decodes s with the standard alphabet.
func Decode(s string) (uint64, error) {
	return std.Decode(s)
}
