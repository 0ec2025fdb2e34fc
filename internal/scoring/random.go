// Package scoring supplies the face and voice match percentages stored on
// attendance records.
package scoring

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"presensure/internal/attendance"
)

// Range is an inclusive percentage interval.
type Range struct {
	Min, Max int
}

// ParseRange reads "lo-hi", e.g. "92-97".
func ParseRange(s string) (Range, error) {
	lo, hi, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Range{}, fmt.Errorf("range %q: want lo-hi", s)
	}
	r := Range{}
	var err error
	if r.Min, err = strconv.Atoi(strings.TrimSpace(lo)); err != nil {
		return Range{}, fmt.Errorf("range %q: %w", s, err)
	}
	if r.Max, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
		return Range{}, fmt.Errorf("range %q: %w", s, err)
	}
	if r.Min < 0 || r.Max > 100 || r.Min > r.Max {
		return Range{}, fmt.Errorf("range %q: must satisfy 0 <= lo <= hi <= 100", s)
	}
	return r, nil
}

func (r Range) draw() int {
	return r.Min + rand.Intn(r.Max-r.Min+1)
}

var (
	DefaultFaceRange  = Range{Min: 92, Max: 97}
	DefaultVoiceRange = Range{Min: 90, Max: 97}
)

// Random draws placeholder scores uniformly from fixed ranges.
type Random struct {
	Face  Range
	Voice Range
}

// NewRandom returns a provider using the given ranges.
func NewRandom(face, voice Range) *Random {
	return &Random{Face: face, Voice: voice}
}

func (p *Random) Score(_ context.Context, _ attendance.CheckIn) (attendance.Scores, error) {
	return attendance.Scores{Face: p.Face.draw(), Voice: p.Voice.draw()}, nil
}
