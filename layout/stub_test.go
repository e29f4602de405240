package layout

import (
	"fmt"

	"github.com/ByLCY/cantus/score"
)

// stubEngine 是测试用的最小渲染引擎，避免引入 renderer 造成循环依赖。
// 音符宽度为 时值(拍) * 25，谱号/调号/拍号分别占 30/20/15。
type stubEngine struct {
	formatted []float64 // 每次 Format 的宽度
}

var _ Engine = (*stubEngine)(nil)

var stubModifierWidth = map[score.ModifierKind]float64{
	score.ModifierClef: 30,
	score.ModifierKey:  20,
	score.ModifierTime: 15,
}

type stubStave struct {
	x, y, w float64
	mods    []score.ModifierKind
	added   map[score.ModifierKind]int
}

func (s *stubStave) X() float64      { return s.x }
func (s *stubStave) Y() float64      { return s.y }
func (s *stubStave) Width() float64  { return s.w }
func (s *stubStave) Height() float64 { return 100 }
func (s *stubStave) NoteStartX() float64 {
	x := s.x
	for _, m := range s.mods {
		x += stubModifierWidth[m]
	}
	return x
}
func (s *stubStave) NoteEndX() float64 { return s.x + s.w }

func (s *stubStave) add(kind score.ModifierKind) {
	s.mods = append(s.mods, kind)
	s.added[kind]++
}

func (s *stubStave) AddClef(string)         { s.add(score.ModifierClef) }
func (s *stubStave) AddKeySignature(string) { s.add(score.ModifierKey) }
func (s *stubStave) AddTimeSignature(string) {
	s.add(score.ModifierTime)
}

func (s *stubStave) HasModifier(kind score.ModifierKind) bool { return s.added[kind] > 0 }

func (s *stubStave) Draw(surf Surface) error {
	rec(surf, "stave", fmt.Sprintf("%g,%g,%g", s.x, s.y, s.w))
	return nil
}

type stubVoice struct {
	width     float64
	formatted float64
}

func (v *stubVoice) Draw(surf Surface, st Stave) error {
	rec(surf, "voice", fmt.Sprintf("%g@%g", v.formatted, st.Y()))
	return nil
}

type stubObject struct{ name string }

func (o stubObject) Draw(surf Surface) error {
	rec(surf, "object", o.name)
	return nil
}

type stubConnector struct{ top, bottom Stave }

func (c stubConnector) Draw(surf Surface) error {
	rec(surf, "connector", fmt.Sprintf("%g-%g", c.top.Y(), c.bottom.Y()+c.bottom.Height()))
	return nil
}

func (e *stubEngine) NewStave(x, y, width float64) Stave {
	return &stubStave{x: x, y: y, w: width, added: map[score.ModifierKind]int{}}
}

func (e *stubEngine) NewVoice(v *score.Voice, _ []*score.Stave) (Voice, error) {
	w := 0.0
	for _, n := range v.Notes {
		w += n.Ticks() * 25
	}
	return &stubVoice{width: w}, nil
}

func (e *stubEngine) NewObjects(v *score.Voice, _ []*score.Stave, _ Voice) ([]Drawable, error) {
	var out []Drawable
	for range v.Beams {
		out = append(out, stubObject{name: "beam"})
	}
	for range v.Ties {
		out = append(out, stubObject{name: "tie"})
	}
	return out, nil
}

func (e *stubEngine) MinTotalWidth(voices []Voice) float64 {
	w := 0.0
	for _, v := range voices {
		w = max(w, v.(*stubVoice).width)
	}
	return w
}

func (e *stubEngine) Format(voices []Voice, width float64) error {
	e.formatted = append(e.formatted, width)
	for _, v := range voices {
		v.(*stubVoice).formatted = width
	}
	return nil
}

func (e *stubEngine) NewConnector(top, bottom Stave) Drawable {
	return stubConnector{top: top, bottom: bottom}
}

// recorder 记录绘制调用的顺序。
type recorder struct {
	calls []string
}

func (r *recorder) Size() (float64, float64) { return 500, 1000 }

func (r *recorder) count(kind string) int {
	n := 0
	for _, c := range r.calls {
		if len(c) >= len(kind) && c[:len(kind)] == kind {
			n++
		}
	}
	return n
}

func rec(s Surface, kind, detail string) {
	if r, ok := s.(*recorder); ok {
		r.calls = append(r.calls, kind+" "+detail)
	}
}

func intPtr(v int) *int { return &v }

// quarters 生成 n 个四分音符。
func quarters(n int) []score.Note {
	notes := make([]score.Note, n)
	for i := range notes {
		notes[i] = score.Note{Keys: []string{"c/4"}, Duration: "q"}
	}
	return notes
}

// singleStaveMeasure 生成只有一个谱表、一个声部的小节，声部宽度为 beats*25。
func singleStaveMeasure(st score.Stave, beats int) *score.Measure {
	return &score.Measure{Parts: []*score.Part{{
		Staves: []*score.Stave{&st},
		Voices: []*score.Voice{{Notes: quarters(beats)}},
	}}}
}

func newTestDocument(measures ...*score.Measure) *Document {
	doc, err := NewDocument(&score.Score{Type: score.DocumentType, Measures: measures}, DocumentOptions{})
	if err != nil {
		panic(err)
	}
	return doc
}

func newTestFormatter(doc *Document, width float64) (*LiquidFormatter, *stubEngine) {
	engine := &stubEngine{}
	f, err := NewLiquidFormatter(doc, FormatterOptions{Engine: engine, Width: width})
	if err != nil {
		panic(err)
	}
	return f, engine
}
