package score

import "strings"

// Voice is an independent rhythmic line. Stave is the part-relative stave index; it is required
// whenever the owning part has more than one stave.
type Voice struct {
	Stave *int           `json:"stave,omitempty"`
	Time  *TimeSignature `json:"time,omitempty"`
	Notes []Note         `json:"notes"`
	Beams [][]int        `json:"beams,omitempty"` // groups of note indices
	Ties  []Tie          `json:"ties,omitempty"`
}

// Tie connects two notes of the same voice by index.
type Tie struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (v *Voice) HasStave() bool { return v.Stave != nil }

// StaveIndex returns the declared stave, or 0 when none is declared.
func (v *Voice) StaveIndex() int {
	if v.Stave == nil {
		return 0
	}
	return *v.Stave
}

func (v *Voice) Clone() *Voice {
	if v == nil {
		return nil
	}
	out := &Voice{Time: v.Time.clone()}
	if v.Stave != nil {
		s := *v.Stave
		out.Stave = &s
	}
	if v.Notes != nil {
		out.Notes = make([]Note, len(v.Notes))
		for i, n := range v.Notes {
			out.Notes[i] = n.clone()
		}
	}
	if v.Beams != nil {
		out.Beams = make([][]int, len(v.Beams))
		for i, b := range v.Beams {
			out.Beams[i] = append([]int(nil), b...)
		}
	}
	if v.Ties != nil {
		out.Ties = append([]Tie(nil), v.Ties...)
	}
	return out
}

// Note is a chord of one or more keys ("c/4", "f#/5") or a rest. Duration uses the short
// names w, h, q, 8, 16, 32; a trailing "r" also marks a rest ("qr").
type Note struct {
	Keys     []string `json:"keys"`
	Duration string   `json:"duration"`
	Dots     int      `json:"dots,omitempty"`
	Rest     bool     `json:"rest,omitempty"`
}

// IsRest reports whether the note is a rest.
func (n Note) IsRest() bool {
	return n.Rest || strings.HasSuffix(n.Duration, "r")
}

// BaseDuration strips rest and dot markers from Duration.
func (n Note) BaseDuration() string {
	d := strings.TrimSuffix(n.Duration, "r")
	d = strings.TrimRight(d, "d")
	if d == "" {
		return "q"
	}
	return d
}

// NumDots counts explicit dots plus "d" markers in Duration ("qd").
func (n Note) NumDots() int {
	d := strings.TrimSuffix(n.Duration, "r")
	return n.Dots + len(d) - len(strings.TrimRight(d, "d"))
}

var durationBeats = map[string]float64{
	"w": 4, "1": 4,
	"h": 2, "2": 2,
	"q": 1, "4": 1,
	"8": 0.5, "16": 0.25, "32": 0.125, "64": 0.0625,
}

// HasKnownDuration reports whether BaseDuration is one of the recognised short names.
func (n Note) HasKnownDuration() bool {
	_, ok := durationBeats[n.BaseDuration()]
	return ok
}

// Ticks returns the note length in quarter-note beats, dots included. Unknown durations count as
// a quarter; backends reject them before layout.
func (n Note) Ticks() float64 {
	base, ok := durationBeats[n.BaseDuration()]
	if !ok {
		base = 1
	}
	total, add := base, base
	for i := 0; i < n.NumDots(); i++ {
		add /= 2
		total += add
	}
	return total
}

func (n Note) clone() Note {
	out := n
	if n.Keys != nil {
		out.Keys = append([]string(nil), n.Keys...)
	}
	return out
}
