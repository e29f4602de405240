package musicxml

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/ByLCY/cantus/score"
)

// partState 保存一个声部组中沿用到后续小节的属性。
type partState struct {
	name     string
	staves   int
	clefs    map[int]string // 谱表编号（从 1 开始）-> 谱号
	key      string
	time     *score.TimeSignature
	timeSym  string
	declared declared
}

// declared 记录当前小节中 <attributes> 显式声明的内容。
type declared struct {
	clefs map[int]bool
	key   bool
	time  bool
}

func newPartState(name string) *partState {
	return &partState{name: name, staves: 1, clefs: map[int]string{}}
}

var majorKeys = map[int]string{
	-7: "Cb", -6: "Gb", -5: "Db", -4: "Ab", -3: "Eb", -2: "Bb", -1: "F",
	0: "C", 1: "G", 2: "D", 3: "A", 4: "E", 5: "B", 6: "F#", 7: "C#",
}

var minorKeys = map[int]string{
	-7: "Abm", -6: "Ebm", -5: "Bbm", -4: "Fm", -3: "Cm", -2: "Gm", -1: "Dm",
	0: "Am", 1: "Em", 2: "Bm", 3: "F#m", 4: "C#m", 5: "G#m", 6: "D#m", 7: "A#m",
}

// KeyName 将五度圈位置与调式转换为调号名称，例如 (1, "major") -> "G"。
func KeyName(fifths int, mode string) (string, bool) {
	if strings.EqualFold(mode, "minor") {
		k, ok := minorKeys[fifths]
		return k, ok
	}
	k, ok := majorKeys[fifths]
	return k, ok
}

// ClefName 将 <sign>/<line> 转换为谱号名称。
func ClefName(sign string, line int) string {
	switch strings.ToUpper(sign) {
	case "G":
		return "treble"
	case "F":
		return "bass"
	case "C":
		if line == 4 {
			return "tenor"
		}
		return "alto"
	case "PERCUSSION":
		return "percussion"
	default:
		return ""
	}
}

var durationTypes = map[string]string{
	"whole": "w", "half": "h", "quarter": "q", "eighth": "8",
	"16th": "16", "32nd": "32", "64th": "64",
}

func (p *partState) applyAttributes(attr *xmlquery.Node) error {
	if n := xmlquery.FindOne(attr, "staves"); n != nil {
		p.staves = max(1, intText(n, 1))
	}
	if k := xmlquery.FindOne(attr, "key"); k != nil {
		fifths := intText(xmlquery.FindOne(k, "fifths"), 0)
		name, ok := KeyName(fifths, text(xmlquery.FindOne(k, "mode")))
		if !ok {
			return fmt.Errorf("不支持的调号 fifths=%d", fifths)
		}
		p.key = name
		p.declared.key = true
	}
	if t := xmlquery.FindOne(attr, "time"); t != nil {
		ts := &score.TimeSignature{
			NumBeats:  intText(xmlquery.FindOne(t, "beats"), 4),
			BeatValue: intText(xmlquery.FindOne(t, "beat-type"), 4),
		}
		p.time = ts
		switch t.SelectAttr("symbol") {
		case "common":
			p.timeSym = "C"
		case "cut":
			p.timeSym = "C|"
		default:
			p.timeSym = ""
		}
		p.declared.time = true
	}
	for _, c := range xmlquery.Find(attr, "clef") {
		num := 1
		if v, err := strconv.Atoi(c.SelectAttr("number")); err == nil {
			num = v
		}
		name := ClefName(text(xmlquery.FindOne(c, "sign")), intText(xmlquery.FindOne(c, "line"), 0))
		if name == "" {
			return fmt.Errorf("不支持的谱号 %q", text(xmlquery.FindOne(c, "sign")))
		}
		p.clefs[num] = name
		p.declared.clefs[num] = true
	}
	return nil
}

// voiceBuilder 收集同一 <voice> 编号下的音符、连音梁与连线。
type voiceBuilder struct {
	voice      *score.Voice
	staff      int
	beam       []int
	pendingTie map[string]int // 音高 -> 起始音符编号
}

// measure 将一个 <measure> 转换为声部组。
func (p *partState) measure(mn *xmlquery.Node) (*score.Part, error) {
	p.declared = declared{clefs: map[int]bool{}}
	builders := map[string]*voiceBuilder{}
	var order []string

	for n := mn.FirstChild; n != nil; n = n.NextSibling {
		if n.Type != xmlquery.ElementNode {
			continue
		}
		switch n.Data {
		case "attributes":
			if err := p.applyAttributes(n); err != nil {
				return nil, err
			}
		case "note":
			if xmlquery.FindOne(n, "grace") != nil {
				continue
			}
			id := text(xmlquery.FindOne(n, "voice"))
			if id == "" {
				id = "1"
			}
			vb, ok := builders[id]
			if !ok {
				vb = &voiceBuilder{
					voice:      &score.Voice{},
					staff:      intText(xmlquery.FindOne(n, "staff"), 1),
					pendingTie: map[string]int{},
				}
				builders[id] = vb
				order = append(order, id)
			}
			if err := vb.add(n); err != nil {
				return nil, err
			}
		}
	}

	part := &score.Part{Name: p.name}
	for s := 1; s <= p.staves; s++ {
		part.Staves = append(part.Staves, p.stave(s))
	}
	for _, id := range order {
		vb := builders[id]
		if p.staves > 1 {
			idx := min(max(vb.staff, 1), p.staves) - 1
			vb.voice.Stave = &idx
		}
		if p.time != nil {
			t := *p.time
			vb.voice.Time = &t
		}
		part.Voices = append(part.Voices, vb.voice)
	}
	return part, nil
}

// stave 生成当前生效属性下的逻辑谱表；只有本小节声明过的属性才附加为修饰。
func (p *partState) stave(num int) *score.Stave {
	st := &score.Stave{Clef: p.clefs[num], Key: p.key, TimeSignature: p.timeSym}
	if st.Clef == "" {
		st.Clef = "treble"
	}
	if p.time != nil {
		t := *p.time
		st.Time = &t
	}
	if p.declared.clefs[num] {
		st.AddModifier(score.Modifier{Kind: score.ModifierClef, Clef: st.Clef})
	}
	if p.declared.key {
		st.AddModifier(score.Modifier{Kind: score.ModifierKey, Key: st.Key})
	}
	if p.declared.time && p.time != nil {
		st.AddModifier(score.Modifier{
			Kind:      score.ModifierTime,
			Time:      p.timeSym,
			NumBeats:  p.time.NumBeats,
			BeatValue: p.time.BeatValue,
		})
	}
	return st
}

func (vb *voiceBuilder) add(n *xmlquery.Node) error {
	key := "b/4"
	rest := xmlquery.FindOne(n, "rest") != nil
	if !rest {
		pitch := xmlquery.FindOne(n, "pitch")
		if pitch == nil {
			return fmt.Errorf("音符缺少 <pitch>")
		}
		key = pitchKey(pitch)
	}

	notes := vb.voice.Notes
	if xmlquery.FindOne(n, "chord") != nil && len(notes) > 0 {
		last := &notes[len(notes)-1]
		last.Keys = append(last.Keys, key)
		vb.tie(n, key, len(notes)-1)
		return nil
	}

	dur := "w"
	if t := text(xmlquery.FindOne(n, "type")); t != "" {
		d, ok := durationTypes[t]
		if !ok {
			return fmt.Errorf("不支持的时值类型 %q", t)
		}
		dur = d
	}
	note := score.Note{
		Keys:     []string{key},
		Duration: dur,
		Dots:     len(xmlquery.Find(n, "dot")),
		Rest:     rest,
	}
	idx := len(notes)
	vb.voice.Notes = append(notes, note)
	vb.tie(n, key, idx)

	for _, beam := range xmlquery.Find(n, "beam") {
		if num := beam.SelectAttr("number"); num != "" && num != "1" {
			continue
		}
		switch text(beam) {
		case "begin":
			vb.beam = []int{idx}
		case "continue":
			vb.beam = append(vb.beam, idx)
		case "end":
			vb.beam = append(vb.beam, idx)
			if len(vb.beam) > 1 {
				vb.voice.Beams = append(vb.voice.Beams, vb.beam)
			}
			vb.beam = nil
		}
	}
	return nil
}

// tie 先处理结束标记再处理起始标记，使连续的连线（stop 与 start 同时出现）能够衔接。
func (vb *voiceBuilder) tie(n *xmlquery.Node, key string, idx int) {
	ties := xmlquery.Find(n, "tie")
	for _, t := range ties {
		if t.SelectAttr("type") != "stop" {
			continue
		}
		if from, ok := vb.pendingTie[key]; ok && from != idx {
			vb.voice.Ties = append(vb.voice.Ties, score.Tie{From: from, To: idx})
			delete(vb.pendingTie, key)
		}
	}
	for _, t := range ties {
		if t.SelectAttr("type") == "start" {
			vb.pendingTie[key] = idx
		}
	}
}

// pitchKey 将 <pitch> 转换为 "c#/4" 形式的音高。
func pitchKey(pitch *xmlquery.Node) string {
	step := strings.ToLower(text(xmlquery.FindOne(pitch, "step")))
	acc := ""
	switch intText(xmlquery.FindOne(pitch, "alter"), 0) {
	case 1:
		acc = "#"
	case 2:
		acc = "##"
	case -1:
		acc = "b"
	case -2:
		acc = "bb"
	}
	return fmt.Sprintf("%s%s/%d", step, acc, intText(xmlquery.FindOne(pitch, "octave"), 4))
}
