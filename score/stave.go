package score

import "fmt"

// ModifierKind tags the variant of a Modifier.
type ModifierKind string

const (
	ModifierClef ModifierKind = "clef"
	ModifierKey  ModifierKind = "key"
	ModifierTime ModifierKind = "time"
)

// Modifier is a clef, key-signature or time-signature decoration on a stave.
// Only the fields matching Kind are meaningful. A time modifier carries either a verbatim Time
// string ("C", "6/8") or a NumBeats/BeatValue descriptor.
type Modifier struct {
	Kind      ModifierKind `json:"type"`
	Clef      string       `json:"clef,omitempty"`
	Key       string       `json:"key,omitempty"`
	Time      string       `json:"time,omitempty"`
	NumBeats  int          `json:"num_beats,omitempty"`
	BeatValue int          `json:"beat_value,omitempty"`
}

// TimeString normalizes a time modifier to the string form drawn by the engine.
func (m Modifier) TimeString() string {
	if m.Time != "" {
		return m.Time
	}
	return fmt.Sprintf("%d/%d", m.NumBeats, m.BeatValue)
}

// Stave is a logical notation line. Clef, Key and time fields describe what is in effect for
// the measure; Modifiers lists what is actually displayed.
type Stave struct {
	Clef          string         `json:"clef,omitempty"`
	Key           string         `json:"key,omitempty"`
	TimeSignature string         `json:"time_signature,omitempty"`
	Time          *TimeSignature `json:"time,omitempty"`
	Modifiers     []Modifier     `json:"modifiers,omitempty"`
}

// AddModifier attaches m unless a modifier of the same kind is already attached.
// It reports whether m was added.
func (s *Stave) AddModifier(m Modifier) bool {
	if s.HasModifier(m.Kind) {
		return false
	}
	s.Modifiers = append(s.Modifiers, m)
	return true
}

// DeleteModifier removes the modifier of the given kind and reports whether one was attached.
func (s *Stave) DeleteModifier(kind ModifierKind) bool {
	for i, m := range s.Modifiers {
		if m.Kind == kind {
			s.Modifiers = append(s.Modifiers[:i:i], s.Modifiers[i+1:]...)
			return true
		}
	}
	return false
}

// Modifier looks up the attached modifier of the given kind.
func (s *Stave) Modifier(kind ModifierKind) (Modifier, bool) {
	for _, m := range s.Modifiers {
		if m.Kind == kind {
			return m, true
		}
	}
	return Modifier{}, false
}

func (s *Stave) HasModifier(kind ModifierKind) bool {
	_, ok := s.Modifier(kind)
	return ok
}

func (s *Stave) Clone() *Stave {
	if s == nil {
		return nil
	}
	out := *s
	out.Time = s.Time.clone()
	if s.Modifiers != nil {
		out.Modifiers = append([]Modifier(nil), s.Modifiers...)
	}
	return &out
}
