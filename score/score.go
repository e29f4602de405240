// Package score defines the in-memory score model consumed by the layout layer.
//
// A Score is an ordered list of Measures; each Measure holds Parts, each Part holds logical
// Staves and the Voices written on them. JSON tags follow the intermediate representation
// accepted by the IR backend ({"type": "document", "measures": [...]}).
package score

import "fmt"

// DocumentType is the discriminator carried by IR score objects.
const DocumentType = "document"

// Score is the structured intermediate representation of a whole piece.
type Score struct {
	Type     string     `json:"type"`
	Metadata Metadata   `json:"metadata,omitempty"`
	Measures []*Measure `json:"measures"`
}

// Metadata describes the piece as a whole.
type Metadata struct {
	Title    string `json:"title,omitempty"`
	Composer string `json:"composer,omitempty"`
}

// TimeSignature is a structured time descriptor, eg. 3/4.
type TimeSignature struct {
	NumBeats  int `json:"num_beats"`
	BeatValue int `json:"beat_value"`
}

func (t TimeSignature) String() string {
	return fmt.Sprintf("%d/%d", t.NumBeats, t.BeatValue)
}

// Measure is the smallest timed unit of a score.
type Measure struct {
	Time  *TimeSignature `json:"time,omitempty"`
	Parts []*Part        `json:"parts"`
}

func (m *Measure) NumParts() int { return len(m.Parts) }

// Part returns the i-th part or nil.
func (m *Measure) Part(i int) *Part {
	if i < 0 || i >= len(m.Parts) {
		return nil
	}
	return m.Parts[i]
}

// NumStaves counts staves over all parts.
func (m *Measure) NumStaves() int {
	n := 0
	for _, p := range m.Parts {
		n += len(p.Staves)
	}
	return n
}

// Stave returns the stave with absolute index s, counting through the parts in order.
// It returns nil when the measure has fewer staves.
func (m *Measure) Stave(s int) *Stave {
	if s < 0 {
		return nil
	}
	for _, p := range m.Parts {
		if s < len(p.Staves) {
			return p.Staves[s]
		}
		s -= len(p.Staves)
	}
	return nil
}

// Clone returns a deep copy that shares no mutable state with m.
func (m *Measure) Clone() *Measure {
	if m == nil {
		return nil
	}
	out := &Measure{Time: m.Time.clone()}
	if m.Parts != nil {
		out.Parts = make([]*Part, len(m.Parts))
		for i, p := range m.Parts {
			out.Parts[i] = p.Clone()
		}
	}
	return out
}

// Part is an instrumental or vocal group within a measure.
type Part struct {
	Name   string   `json:"name,omitempty"`
	Staves []*Stave `json:"staves"`
	Voices []*Voice `json:"voices"`
}

func (p *Part) NumStaves() int { return len(p.Staves) }
func (p *Part) NumVoices() int { return len(p.Voices) }

// Stave returns the part-relative stave i or nil.
func (p *Part) Stave(i int) *Stave {
	if i < 0 || i >= len(p.Staves) {
		return nil
	}
	return p.Staves[i]
}

// Voice returns the i-th voice or nil.
func (p *Part) Voice(i int) *Voice {
	if i < 0 || i >= len(p.Voices) {
		return nil
	}
	return p.Voices[i]
}

func (p *Part) Clone() *Part {
	if p == nil {
		return nil
	}
	out := &Part{Name: p.Name}
	if p.Staves != nil {
		out.Staves = make([]*Stave, len(p.Staves))
		for i, s := range p.Staves {
			out.Staves[i] = s.Clone()
		}
	}
	if p.Voices != nil {
		out.Voices = make([]*Voice, len(p.Voices))
		for i, v := range p.Voices {
			out.Voices[i] = v.Clone()
		}
	}
	return out
}

func (t *TimeSignature) clone() *TimeSignature {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
