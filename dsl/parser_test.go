package dsl_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/ByLCY/cantus/dsl"
	"github.com/ByLCY/cantus/score"
)

const sampleDSL = `
// Minuet in G, first two bars
score "Minuet" composer "Petzold" {
  measure {
    part "Piano" {
      stave clef treble key G time 3/4
      stave clef bass
      voice stave 0 { d/5:q g/4:8 a/4:8 b/4:q beam 1 2 }
      voice stave 1 { (g/3 b/3):h a/3:q }
    }
  }
  measure {
    part "Piano" {
      voice stave 0 { C/5:qd r:8  c/5:q tie 0 2 }
      voice stave 1 { a/3:hd }
    }
  }
  /* a key change */
  measure {
    part {
      stave key D time C
      stave
      voice stave 0 { f#/4:qdd r:8d }
    }
  }
}
`

func TestParseScore(t *testing.T) {
	ast, err := dsl.ParseString(sampleDSL)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if ast.Title != "Minuet" || ast.Composer != "Petzold" {
		t.Fatalf("unexpected header: %q %q", ast.Title, ast.Composer)
	}
	if len(ast.Measures) != 3 {
		t.Fatalf("expected 3 measures, got %d", len(ast.Measures))
	}
	part := ast.Measures[0].Parts[0]
	if part.Name != "Piano" || len(part.Staves) != 2 || len(part.Voices) != 2 {
		t.Fatalf("unexpected part: %+v", part)
	}
	first := part.Voices[0]
	if first.Stave == nil || *first.Stave != 0 {
		t.Fatalf("expected voice on stave 0")
	}
	if len(first.Items) != 5 || first.Items[4].Beam == nil {
		t.Fatalf("expected 4 notes and a beam, got %+v", first.Items)
	}
	chord := part.Voices[1].Items[0].Note.Head.Chord
	if !reflect.DeepEqual(chord, []string{"g/3", "b/3"}) {
		t.Fatalf("unexpected chord: %v", chord)
	}
}

func TestModel(t *testing.T) {
	ast, err := dsl.ParseString(sampleDSL)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	model, err := ast.Model()
	if err != nil {
		t.Fatalf("model failed: %v", err)
	}
	if model.Type != score.DocumentType || model.Metadata.Title != "Minuet" {
		t.Fatalf("unexpected score header: %+v", model)
	}

	m0 := model.Measures[0]
	if m0.Time == nil || m0.Time.String() != "3/4" {
		t.Fatalf("expected measure time 3/4, got %+v", m0.Time)
	}
	treble := m0.Stave(0)
	if treble.Clef != "treble" || treble.Key != "G" {
		t.Fatalf("unexpected stave: %+v", treble)
	}
	for _, kind := range []score.ModifierKind{score.ModifierClef, score.ModifierKey, score.ModifierTime} {
		if !treble.HasModifier(kind) {
			t.Fatalf("declared %s should be attached", kind)
		}
	}
	if bass := m0.Stave(1); bass.Clef != "bass" || bass.HasModifier(score.ModifierKey) {
		t.Fatalf("unexpected bass stave: %+v", bass)
	}
	upper := m0.Part(0).Voice(0)
	if !reflect.DeepEqual(upper.Beams, [][]int{{1, 2}}) {
		t.Fatalf("unexpected beams: %v", upper.Beams)
	}

	// 第二小节没有声明谱表：沿用谱号、调号与拍号，但不附加修饰
	m1 := model.Measures[1]
	if m1.NumStaves() != 2 {
		t.Fatalf("expected inherited 2 staves, got %d", m1.NumStaves())
	}
	if st := m1.Stave(0); st.Clef != "treble" || st.Key != "G" || st.Time == nil || len(st.Modifiers) != 0 {
		t.Fatalf("unexpected inherited stave: %+v", st)
	}
	notes := m1.Part(0).Voice(0).Notes
	if notes[0].Keys[0] != "c/5" || notes[0].NumDots() != 1 || !notes[1].IsRest() {
		t.Fatalf("unexpected notes: %+v", notes)
	}
	if ties := m1.Part(0).Voice(0).Ties; !reflect.DeepEqual(ties, []score.Tie{{From: 0, To: 2}}) {
		t.Fatalf("unexpected ties: %v", ties)
	}

	m2 := model.Measures[2]
	st := m2.Stave(0)
	if st.Key != "D" || st.Clef != "treble" || st.TimeSignature != "C" || st.Time.NumBeats != 4 {
		t.Fatalf("unexpected changed stave: %+v", st)
	}
	if !st.HasModifier(score.ModifierKey) || st.HasModifier(score.ModifierClef) {
		t.Fatalf("only declared modifiers should be attached: %+v", st.Modifiers)
	}
	if mod, _ := st.Modifier(score.ModifierTime); mod.TimeString() != "C" {
		t.Fatalf("unexpected time modifier: %+v", mod)
	}
	if bass := m2.Stave(1); bass.Clef != "bass" || bass.Key != "" {
		t.Fatalf("second stave should keep its own state: %+v", bass)
	}
	if n := m2.Part(0).Voice(0).Notes[0]; n.Duration != "q" || n.NumDots() != 2 {
		t.Fatalf("unexpected double dotted note: %+v", n)
	}
	if n := m2.Part(0).Voice(0).Notes[1]; n.Duration != "8" || n.NumDots() != 1 || !n.Rest {
		t.Fatalf("unexpected dotted rest: %+v", n)
	}
}

func TestModelErrors(t *testing.T) {
	cases := map[string]string{
		"beam out of range": `score { measure { part { voice { c/4:q beam 0 3 } } } }`,
		"tie to itself":     `score { measure { part { voice { c/4:q tie 0 0 } } } }`,
		"bad duration":      `score { measure { part { voice { c/4:x } } } }`,
		"bad time":          `score { measure { part { stave time 3/0 } } }`,
	}
	for name, src := range cases {
		ast, err := dsl.ParseString(src)
		if err != nil {
			t.Fatalf("%s: parse failed: %v", name, err)
		}
		if _, err := ast.Model(); err == nil {
			t.Fatalf("%s: expected model error", name)
		}
	}
}

func TestParseErrors(t *testing.T) {
	for _, src := range []string{
		`score {`,
		`score { measure { part { voice { c/4 } } } }`,
		`measure { }`,
	} {
		if _, err := dsl.Parse(strings.NewReader(src)); err == nil {
			t.Fatalf("expected parse error for %q", src)
		}
	}
}

func TestBackendSniff(t *testing.T) {
	b := dsl.NewBackend()
	for _, data := range []any{
		sampleDSL,
		[]byte("score {}"),
		"/* header */ score \"x\" {}",
	} {
		if !b.Sniff(data) {
			t.Fatalf("expected %q to be accepted", data)
		}
	}
	for _, data := range []any{
		`{"type": "document"}`,
		`<score-partwise/>`,
		"scores {}",
		"",
		42,
	} {
		if b.Sniff(data) {
			t.Fatalf("expected %#v to be rejected", data)
		}
	}
}

func TestBackend(t *testing.T) {
	b := dsl.NewBackend()
	if err := b.Parse(sampleDSL); err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !b.Valid() || b.NumMeasures() != 3 {
		t.Fatalf("expected 3 measures, got %d", b.NumMeasures())
	}
	if b.Metadata().Composer != "Petzold" {
		t.Fatalf("unexpected metadata: %+v", b.Metadata())
	}
	m, err := b.Measure(0)
	if err != nil {
		t.Fatalf("measure failed: %v", err)
	}
	m.Stave(1).AddModifier(score.Modifier{Kind: score.ModifierKey, Key: "G"})
	again, _ := b.Measure(0)
	if again.Stave(1).HasModifier(score.ModifierKey) {
		t.Fatalf("Measure should return copies")
	}
	if _, err := b.Measure(3); err == nil {
		t.Fatalf("expected out of range error")
	}
	if err := dsl.NewBackend().Parse(42); err == nil {
		t.Fatalf("expected error for non-text data")
	}
}
