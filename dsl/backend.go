package dsl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ByLCY/cantus/score"
)

// Backend 实现 layout.Backend，读取文本乐谱记法。
type Backend struct {
	score *score.Score
	valid bool
}

// NewBackend 创建一个尚未解析的记法后端。
func NewBackend() *Backend { return &Backend{} }

func asString(data any) (string, bool) {
	switch v := data.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	default:
		return "", false
	}
}

// Sniff 只接受以 score 关键字开头的文本。
func (b *Backend) Sniff(data any) bool {
	s, ok := asString(data)
	return ok && LooksLikeScore(s)
}

func (b *Backend) Parse(data any) error {
	s, ok := asString(data)
	if !ok {
		return fmt.Errorf("乐谱记法必须是文本，实际为 %T", data)
	}
	ast, err := ParseString(s)
	if err != nil {
		return err
	}
	model, err := ast.Model()
	if err != nil {
		return err
	}
	b.score = model
	b.valid = true
	return nil
}

func (b *Backend) Valid() bool { return b.valid }

func (b *Backend) NumMeasures() int {
	if b.score == nil {
		return 0
	}
	return len(b.score.Measures)
}

// Measure 返回第 i 小节的副本。
func (b *Backend) Measure(i int) (*score.Measure, error) {
	if i < 0 || i >= b.NumMeasures() {
		return nil, fmt.Errorf("小节编号 %d 超出范围 [0, %d)", i, b.NumMeasures())
	}
	return b.score.Measures[i].Clone(), nil
}

func (b *Backend) Metadata() score.Metadata {
	if b.score == nil {
		return score.Metadata{}
	}
	return b.score.Metadata
}

// staveState 是某个谱表当前生效的属性。
type staveState struct {
	clef, key, time string
}

// Model 将语法树转换为小节模型。谱号、调号、拍号沿用到同一声部组同一谱表的后续小节，
// 修饰只附加在显式声明它们的小节上。
func (s *Score) Model() (*score.Score, error) {
	out := &score.Score{
		Type:     score.DocumentType,
		Metadata: score.Metadata{Title: string(s.Title), Composer: string(s.Composer)},
	}
	var state [][]staveState // 声部组 -> 谱表
	for mi, m := range s.Measures {
		measure := &score.Measure{}
		for pi, p := range m.Parts {
			if pi >= len(state) {
				state = append(state, nil)
			}
			part, err := p.model(&state[pi])
			if err != nil {
				return nil, fmt.Errorf("第 %d 小节: %w", mi, err)
			}
			measure.Parts = append(measure.Parts, part)
		}
		if len(measure.Parts) > 0 && len(measure.Parts[0].Staves) > 0 {
			if ts := measure.Parts[0].Staves[0].Time; ts != nil {
				t := *ts
				measure.Time = &t
			}
		}
		out.Measures = append(out.Measures, measure)
	}
	return out, nil
}

func (p *Part) model(prev *[]staveState) (*score.Part, error) {
	part := &score.Part{Name: string(p.Name)}
	if len(p.Staves) == 0 {
		if len(*prev) == 0 {
			*prev = []staveState{{clef: "treble"}}
		}
		for _, st := range *prev {
			stave, err := st.stave(nil)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", p.Pos, err)
			}
			part.Staves = append(part.Staves, stave)
		}
	} else {
		next := make([]staveState, len(p.Staves))
		for i, decl := range p.Staves {
			st := staveState{clef: "treble"}
			if i < len(*prev) {
				st = (*prev)[i]
			}
			for _, a := range decl.Attrs {
				switch {
				case a.Clef != nil:
					st.clef = *a.Clef
				case a.Key != nil:
					st.key = *a.Key
				case a.Time != nil:
					st.time = *a.Time
				}
			}
			stave, err := st.stave(decl.Attrs)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", decl.Pos, err)
			}
			part.Staves = append(part.Staves, stave)
			next[i] = st
		}
		*prev = next
	}

	for _, v := range p.Voices {
		voice, err := v.model()
		if err != nil {
			return nil, err
		}
		part.Voices = append(part.Voices, voice)
	}
	return part, nil
}

func (st staveState) stave(declared []*StaveAttr) (*score.Stave, error) {
	out := &score.Stave{Clef: st.clef, Key: st.key}
	var ts *score.TimeSignature
	if st.time != "" {
		parsed, symbol, err := parseTime(st.time)
		if err != nil {
			return nil, err
		}
		ts = parsed
		out.Time = parsed
		out.TimeSignature = symbol
	}
	for _, a := range declared {
		switch {
		case a.Clef != nil:
			out.AddModifier(score.Modifier{Kind: score.ModifierClef, Clef: st.clef})
		case a.Key != nil:
			out.AddModifier(score.Modifier{Kind: score.ModifierKey, Key: st.key})
		case a.Time != nil:
			out.AddModifier(score.Modifier{
				Kind:      score.ModifierTime,
				Time:      out.TimeSignature,
				NumBeats:  ts.NumBeats,
				BeatValue: ts.BeatValue,
			})
		}
	}
	return out, nil
}

// parseTime 解析 "3/4"、"C"（4/4）与 "C|"（2/2）。符号拍号额外返回符号本身。
func parseTime(v string) (*score.TimeSignature, string, error) {
	switch v {
	case "C":
		return &score.TimeSignature{NumBeats: 4, BeatValue: 4}, "C", nil
	case "C|":
		return &score.TimeSignature{NumBeats: 2, BeatValue: 2}, "C|", nil
	}
	num, den, ok := strings.Cut(v, "/")
	if !ok {
		return nil, "", fmt.Errorf("无法识别的拍号 %q", v)
	}
	n, err1 := strconv.Atoi(num)
	d, err2 := strconv.Atoi(den)
	if err1 != nil || err2 != nil || n <= 0 || d <= 0 {
		return nil, "", fmt.Errorf("无法识别的拍号 %q", v)
	}
	return &score.TimeSignature{NumBeats: n, BeatValue: d}, "", nil
}

var validDurations = map[string]bool{
	"w": true, "h": true, "q": true,
	"1": true, "2": true, "4": true, "8": true, "16": true, "32": true, "64": true,
}

func (v *Voice) model() (*score.Voice, error) {
	out := &score.Voice{}
	if v.Stave != nil {
		s := *v.Stave
		out.Stave = &s
	}
	var beams []*BeamGroup
	var ties []*TiePair
	for _, item := range v.Items {
		switch {
		case item.Note != nil:
			note, err := item.Note.model()
			if err != nil {
				return nil, err
			}
			out.Notes = append(out.Notes, note)
		case item.Beam != nil:
			beams = append(beams, item.Beam)
		case item.Tie != nil:
			ties = append(ties, item.Tie)
		}
	}
	n := len(out.Notes)
	for _, b := range beams {
		for _, idx := range b.Notes {
			if idx >= n {
				return nil, fmt.Errorf("%s: beam 引用了不存在的音符 %d", b.Pos, idx)
			}
		}
		out.Beams = append(out.Beams, append([]int(nil), b.Notes...))
	}
	for _, t := range ties {
		if t.From >= n || t.To >= n || t.From == t.To {
			return nil, fmt.Errorf("%s: tie %d %d 无效", t.Pos, t.From, t.To)
		}
		out.Ties = append(out.Ties, score.Tie{From: t.From, To: t.To})
	}
	return out, nil
}

func (n *Note) model() (score.Note, error) {
	raw := strings.Join(n.Duration, "")
	base := strings.TrimRight(raw, "d")
	if !validDurations[base] {
		return score.Note{}, fmt.Errorf("%s: 无法识别的时值 %q", n.Pos, raw)
	}
	out := score.Note{Duration: base, Dots: len(raw) - len(base)}
	switch {
	case n.Head.Rest:
		out.Rest = true
		out.Keys = []string{"b/4"}
	case len(n.Head.Chord) > 0:
		for _, k := range n.Head.Chord {
			out.Keys = append(out.Keys, strings.ToLower(k))
		}
	default:
		out.Keys = []string{strings.ToLower(n.Head.Pitch)}
	}
	return out, nil
}
