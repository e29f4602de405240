package canvasrenderer

import (
	"sort"
	"strconv"
	"strings"

	"github.com/tdewolff/canvas"

	"github.com/ByLCY/cantus/errors"
	"github.com/ByLCY/cantus/layout"
	"github.com/ByLCY/cantus/score"
)

// 音符几何（排版单位）。
const (
	headRX      = 6.0
	headRY      = 4.5
	headWidth   = 2 * headRX
	dotWidth    = 6.0
	notePadding = 10.0
	stemLength  = 35.0
	stemWidth   = 1.2
	ledgerExtra = 4.0
)

// 各谱号最下一线的音级编号（八度 * 7 + 音名序号）。
var clefBottomStep = map[string]int{
	"treble":     30, // E4
	"bass":       18, // G2
	"alto":       24, // F3
	"tenor":      22, // D3
	"percussion": 30,
}

var letterIndex = map[byte]int{'c': 0, 'd': 1, 'e': 2, 'f': 3, 'g': 4, 'a': 5, 'b': 6}

var flagCount = map[string]int{"8": 1, "16": 2, "32": 3, "64": 4}

// pitch 是已经换算到谱表步数的音高。
type pitch struct {
	step       int
	accidental string
}

// parsePitch 解析 "c#/4" 形式的音高，并换算为相对 bottom 的步数。
func parsePitch(key string, bottom int) (pitch, error) {
	name, octave, ok := strings.Cut(strings.ToLower(strings.TrimSpace(key)), "/")
	if !ok || name == "" {
		return pitch{}, errors.New(errors.ErrCodeInvalidIR, "无法识别的音高 %q", key)
	}
	idx, ok := letterIndex[name[0]]
	if !ok {
		return pitch{}, errors.New(errors.ErrCodeInvalidIR, "无法识别的音名 %q", key)
	}
	acc := name[1:]
	switch acc {
	case "", "#", "##", "b", "bb", "n":
	default:
		return pitch{}, errors.New(errors.ErrCodeInvalidIR, "无法识别的变音记号 %q", key)
	}
	oct, err := strconv.Atoi(octave)
	if err != nil {
		return pitch{}, errors.New(errors.ErrCodeInvalidIR, "无法识别的八度 %q", key)
	}
	return pitch{step: oct*7 + idx - bottom, accidental: acc}, nil
}

// note 是声部中的一个音符或休止符，x 在 Format 后有效，其余绘制坐标在 Draw 后有效。
type note struct {
	source  score.Note
	pitches []pitch // 按步数从低到高
	tick    float64 // 在小节中的起始拍
	accW    float64

	x      float64 // 相对可排音符区域左端
	headX  float64
	stemX  float64
	tipY   float64
	up     bool
	beamed bool
}

func (n *note) rest() bool { return n.source.IsRest() }

func (n *note) minWidth() float64 {
	return n.accW + headWidth + float64(n.source.NumDots())*dotWidth + notePadding
}

func (n *note) hasStem() bool {
	d := n.source.BaseDuration()
	return !n.rest() && d != "w" && d != "1"
}

// avgStep 给出和弦的平均步数，休止符位于中线。
func (n *note) avgStep() float64 {
	if len(n.pitches) == 0 {
		return 4
	}
	sum := 0
	for _, p := range n.pitches {
		sum += p.step
	}
	return float64(sum) / float64(len(n.pitches))
}

// Voice 是 canvas 引擎的声部。
type Voice struct {
	notes []*note
	beams [][]int
	total float64

	formatted bool
	drawn     bool
	stave     *Stave // 最近一次绘制所在的谱表
}

var _ layout.Voice = (*Voice)(nil)

func newVoice(v *score.Voice, partStaves []*score.Stave) (*Voice, error) {
	if v == nil {
		return nil, errors.New(errors.ErrCodeInvalidArgument, "声部为空")
	}
	clef := "treble"
	if st := stavePtr(partStaves, v.StaveIndex()); st != nil && st.Clef != "" {
		clef = st.Clef
	}
	bottom, ok := clefBottomStep[clef]
	if !ok {
		bottom = clefBottomStep["treble"]
	}

	out := &Voice{}
	tick := 0.0
	for i, src := range v.Notes {
		n := &note{source: src, tick: tick}
		if !src.IsRest() {
			if len(src.Keys) == 0 {
				return nil, errors.New(errors.ErrCodeInvalidIR, "第 %d 个音符缺少音高", i)
			}
			for _, k := range src.Keys {
				p, err := parsePitch(k, bottom)
				if err != nil {
					return nil, err
				}
				n.pitches = append(n.pitches, p)
			}
			sort.Slice(n.pitches, func(a, b int) bool { return n.pitches[a].step < n.pitches[b].step })
			for _, p := range n.pitches {
				if p.accidental != "" {
					n.accW = accidentalWidth
					break
				}
			}
		}
		out.notes = append(out.notes, n)
		tick += src.Ticks()
	}
	out.total = tick

	for _, group := range v.Beams {
		if err := checkIndices(group, len(out.notes), "连音梁"); err != nil {
			return nil, err
		}
		out.beams = append(out.beams, append([]int(nil), group...))
		for _, i := range group {
			out.notes[i].beamed = true
		}
	}
	return out, nil
}

func stavePtr(staves []*score.Stave, i int) *score.Stave {
	if i < 0 || i >= len(staves) {
		return nil
	}
	return staves[i]
}

func checkIndices(idx []int, n int, what string) error {
	for _, i := range idx {
		if i < 0 || i >= n {
			return errors.New(errors.ErrCodeInvalidIR, "%s引用了不存在的音符 %d（共 %d 个）", what, i, n)
		}
	}
	return nil
}

// column 是多个声部在同一拍点上的音符集合。
type column struct {
	tick  float64
	width float64
}

// columns 合并全部声部的起始拍点，每列宽度取该列音符的最大最小宽度。
func columns(voices []*Voice) ([]column, float64) {
	widths := map[float64]float64{}
	end := 0.0
	for _, v := range voices {
		for _, n := range v.notes {
			widths[n.tick] = max(widths[n.tick], n.minWidth())
		}
		end = max(end, v.total)
	}
	out := make([]column, 0, len(widths))
	for tick, w := range widths {
		out = append(out, column{tick: tick, width: w})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].tick < out[j].tick })
	return out, end
}

func minTotalWidth(voices []*Voice) float64 {
	cols, _ := columns(voices)
	total := 0.0
	for _, c := range cols {
		total += c.width
	}
	return total
}

// format 按列摆放音符；多余宽度按每列持续的拍数分配。
func format(voices []*Voice, width float64) {
	cols, end := columns(voices)
	total := 0.0
	for _, c := range cols {
		total += c.width
	}
	slack := max(width-total, 0)

	pos := map[float64]float64{}
	x := 0.0
	for i, c := range cols {
		pos[c.tick] = x
		next := end
		if i+1 < len(cols) {
			next = cols[i+1].tick
		}
		x += c.width
		if end > 0 {
			x += slack * (next - c.tick) / end
		}
	}
	for _, v := range voices {
		for _, n := range v.notes {
			n.x = pos[n.tick]
		}
		v.formatted = true
	}
}

func voicesOf(in []layout.Voice) ([]*Voice, error) {
	out := make([]*Voice, 0, len(in))
	for _, lv := range in {
		v, ok := lv.(*Voice)
		if !ok || v == nil {
			return nil, errors.New(errors.ErrCodeRender, "canvas 引擎无法排版声部 %T", lv)
		}
		out = append(out, v)
	}
	return out, nil
}

// Draw 绘制声部。未经 Format 的声部按谱表的可排音符宽度单独排版。
func (v *Voice) Draw(s layout.Surface, stave layout.Stave) error {
	surf, err := surfaceOf(s)
	if err != nil {
		return err
	}
	st, ok := stave.(*Stave)
	if !ok || st == nil {
		return errors.New(errors.ErrCodeRender, "canvas 引擎无法在谱表 %T 上绘制声部", stave)
	}
	if !v.formatted {
		format([]*Voice{v}, st.NoteEndX()-st.NoteStartX())
	}

	start := st.NoteStartX()
	for _, n := range v.notes {
		n.headX = start + n.x + n.accW + headRX
		n.up = n.avgStep() < 4
		if n.hasStem() {
			n.stemX, n.tipY = stemFor(n, st)
		}
	}
	for _, group := range v.beams {
		levelBeam(v.notes, group, st)
	}
	for _, n := range v.notes {
		if err := drawNote(surf, st, n); err != nil {
			return err
		}
	}
	v.drawn = true
	v.stave = st
	return nil
}

// stemFor 计算符干的 x 与末端 y：符干向上时位于符头右侧，从最低音起；向下时相反。
func stemFor(n *note, st *Stave) (float64, float64) {
	low, high := n.pitches[0].step, n.pitches[len(n.pitches)-1].step
	if n.up {
		return n.headX + headRX - stemWidth/2, st.stepY(high) - stemLength
	}
	return n.headX - headRX + stemWidth/2, st.stepY(low) + stemLength
}

// levelBeam 统一连音梁内音符的符干方向，并把末端拉平到最远的一个。
func levelBeam(notes []*note, group []int, st *Stave) {
	var stemmed []*note
	sum := 0.0
	for _, i := range group {
		n := notes[i]
		if !n.hasStem() {
			continue
		}
		stemmed = append(stemmed, n)
		sum += n.avgStep()
	}
	if len(stemmed) < 2 {
		return
	}
	up := sum/float64(len(stemmed)) < 4
	tip := 0.0
	for k, n := range stemmed {
		n.up = up
		n.stemX, n.tipY = stemFor(n, st)
		if k == 0 || (up && n.tipY < tip) || (!up && n.tipY > tip) {
			tip = n.tipY
		}
	}
	for _, n := range stemmed {
		n.tipY = tip
	}
}

func drawNote(surf *Surface, st *Stave, n *note) error {
	if n.rest() {
		drawRest(surf, st, n)
		return nil
	}
	base := n.source.BaseDuration()
	hollow := base == "w" || base == "1" || base == "h" || base == "2"

	for _, p := range n.pitches {
		y := st.stepY(p.step)
		drawLedgers(surf, st, n.headX, p.step)
		head := canvas.Ellipse(headRX, headRY)
		if hollow {
			surf.Stroke(n.headX, y, head, 1.5)
		} else {
			surf.Fill(n.headX, y, head)
		}
		if err := drawAccidental(surf, n.headX-headRX-2, y, p.accidental); err != nil {
			return err
		}
		drawDots(surf, n, y, p.step)
	}

	if !n.hasStem() {
		return nil
	}
	edge := st.stepY(n.pitches[0].step)
	if !n.up {
		edge = st.stepY(n.pitches[len(n.pitches)-1].step)
	}
	surf.Line(n.stemX, edge, n.stemX, n.tipY, stemWidth)
	if !n.beamed {
		drawFlags(surf, n, flagCount[base])
	}
	return nil
}

// drawAccidental 在 x 左侧画变音记号，还原号用路径绘制。
func drawAccidental(surf *Surface, x, y float64, acc string) error {
	switch acc {
	case "":
		return nil
	case "n":
		surf.Line(x-6, y-9, x-6, y+4, 1.2)
		surf.Line(x-1, y-4, x-1, y+9, 1.2)
		surf.Line(x-6, y-2, x-1, y-4, 2.4)
		surf.Line(x-6, y+4, x-1, y+2, 2.4)
		return nil
	}
	return surf.Text(x, y+halfSpace, lineSpacing*1.6, acc, styleRegular, canvas.Right)
}

// drawLedgers 为五线之外的音符补充加线。
func drawLedgers(surf *Surface, st *Stave, x float64, step int) {
	for s := -2; s >= step; s -= 2 {
		y := st.stepY(s)
		surf.Line(x-headRX-ledgerExtra, y, x+headRX+ledgerExtra, y, lineWidth)
	}
	for s := 10; s <= step; s += 2 {
		y := st.stepY(s)
		surf.Line(x-headRX-ledgerExtra, y, x+headRX+ledgerExtra, y, lineWidth)
	}
}

// drawDots 在符头右侧画附点；线上的音符把附点移到上方间内。
func drawDots(surf *Surface, n *note, y float64, step int) {
	if step%2 == 0 {
		y -= halfSpace
	}
	for i := 0; i < n.source.NumDots(); i++ {
		surf.Fill(n.headX+headRX+4+float64(i)*dotWidth, y, canvas.Circle(1.6))
	}
}

func drawFlags(surf *Surface, n *note, count int) {
	dir := 1.0
	if !n.up {
		dir = -1
	}
	for i := 0; i < count; i++ {
		y := n.tipY + dir*float64(i)*7
		p := &canvas.Path{}
		p.MoveTo(0, 0)
		p.CubeTo(2, dir*8, 12, dir*10, 8, dir*22)
		surf.Stroke(n.stemX, y, p, 1.6)
	}
}

func drawRest(surf *Surface, st *Stave, n *note) {
	x := n.headX
	switch n.source.BaseDuration() {
	case "w", "1":
		// 全休止符挂在第四线下
		surf.Fill(x-headRX, st.stepY(6), canvas.Rectangle(headWidth, halfSpace))
	case "h", "2":
		// 二分休止符压在中线上
		surf.Fill(x-headRX, st.stepY(4)-halfSpace, canvas.Rectangle(headWidth, halfSpace))
	case "q", "4":
		p := &canvas.Path{}
		p.MoveTo(0, 0)
		p.LineTo(5, 7)
		p.LineTo(-1, 14)
		p.LineTo(5, 21)
		p.CubeTo(-3, 17, -4, 26, 2, 30)
		surf.Stroke(x-2, st.stepY(8), p, 2.4)
	default:
		count := flagCount[n.source.BaseDuration()]
		top := st.stepY(6)
		surf.Line(x+4, top, x-2, top+float64(count+1)*lineSpacing, 1.5)
		for i := 0; i < count; i++ {
			surf.Fill(x-2+float64(i)*-1.5, top+halfSpace+float64(i)*lineSpacing, canvas.Circle(2.5))
		}
	}
	drawDots(surf, n, st.stepY(5), 5)
}
