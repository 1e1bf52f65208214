package stats

import (
	"fmt"
	"strconv"
	"strings"
)

// ToInt coerces a raw stat token to an integer. Native ints pass
// through, floats truncate toward zero, and strings are trimmed,
// stripped of thousands separators, parsed as a float and truncated.
// Strings containing a dash or slash are composite values handled by
// MergeFraction and yield nil here, as does anything unparseable.
// Callers accumulate with a nil→0 fallback.
func ToInt(v interface{}) *int64 {
	switch val := v.(type) {
	case nil:
		return nil
	case int:
		n := int64(val)
		return &n
	case int32:
		n := int64(val)
		return &n
	case int64:
		return &val
	case float64:
		n := int64(val)
		return &n
	case string:
		return intFromToken(val)
	default:
		return nil
	}
}

func intFromToken(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(s, "-") || strings.Contains(s, "/") {
		return nil
	}
	return intFromHalf(s)
}

// intFromHalf parses one side of a composite token. Unlike intFromToken
// it tolerates a sign, since a split half never carries a separator.
func intFromHalf(s string) *int64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	n := int64(f)
	return &n
}

// MergeFraction sums the corresponding sides of two completions/attempts
// tokens. Each side decomposes into a (left, right) pair: a slash splits
// the token into two halves, a bare number is (n, nil), nil is (nil, nil).
// If both sides are fully absent the result is nil. The left sides sum
// with nil as zero; the right side is produced only if either input had
// one. Worked cases:
//
//	MergeFraction("10/15", "5/8") → "15/23"
//	MergeFraction("10/15", "7")   → "17/15"
//	MergeFraction(nil, "7/9")     → "7/9"
//	MergeFraction("7", "3")       → "10"
func MergeFraction(existing, incoming *string) *string {
	eLeft, eRight := fractionParts(existing)
	iLeft, iRight := fractionParts(incoming)

	if eLeft == nil && eRight == nil && iLeft == nil && iRight == nil {
		return nil
	}

	left := orZero(eLeft) + orZero(iLeft)
	if eRight != nil || iRight != nil {
		s := fmt.Sprintf("%d/%d", left, orZero(eRight)+orZero(iRight))
		return &s
	}
	s := strconv.FormatInt(left, 10)
	return &s
}

func fractionParts(s *string) (left, right *int64) {
	if s == nil {
		return nil, nil
	}
	token := strings.TrimSpace(*s)
	if strings.Contains(token, "/") {
		halves := strings.SplitN(token, "/", 2)
		return intFromHalf(halves[0]), intFromHalf(halves[1])
	}
	return intFromHalf(token), nil
}

func orZero(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
