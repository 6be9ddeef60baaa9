package table

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var reNumber = regexp.MustCompile(`^([+-]?(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?|[+-]?\.\d+)\s*(\D*)$`)

// ParseNumber reads a numeric cell, tolerating thousands separators and a
// trailing unit such as "ng/uL" or "x". Empty cells and lone dashes yield a
// nil value without error.
func ParseNumber(raw string) (*float64, error) {
	s := strings.TrimSpace(raw)
	switch s {
	case "", "-", "–", "—":
		return nil, nil
	}
	m := reNumber.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("not a number: %q", s)
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return nil, fmt.Errorf("not a number: %q", s)
	}
	return &v, nil
}
