package layout

import (
	"github.com/charmbracelet/log"

	"github.com/ByLCY/cantus/errors"
	"github.com/ByLCY/cantus/score"
)

// probeStaveWidth 是测量谱表修饰占位时使用的固定宽度，只需足够大即可。
const probeStaveWidth = 500.0

// LayoutPolicy 由具体排版策略实现，提供谱表的水平几何与行块划分。
type LayoutPolicy interface {
	StaveX(m, s int) (float64, error)
	StaveWidth(m, s int) (float64, error)
	Block(b int) (*Block, error)
}

// StaveYPolicy 是可选接口，实现后覆盖默认的纵向堆叠规则。
// 实现中需要默认规则时可调用 Formatter.DefaultStaveY。
type StaveYPolicy interface {
	StaveY(m, s int) (float64, error)
}

// BlockFormatter 是渲染器依赖的行块排版接口，由 LiquidFormatter 实现。
type BlockFormatter interface {
	Block(b int) (*Block, error)
	Blocks() ([]*Block, error)
	Layout() (*Layout, error)
	DrawBlock(b int, s Surface) error
	Document() *Document
}

type staveKey struct{ m, s int }

// minWidthKey 区分同一小节在不同绘制选项下的最小宽度。
type minWidthKey struct {
	m    int
	opts MeasureOptions
}

// Formatter 持有几何缓存与修饰注入规则，并基于 LayoutPolicy 编排绘制。
// 所有缓存只增不减，条目一旦计算便不再重算。
type Formatter struct {
	doc    *Document
	policy LayoutPolicy
	engine Engine
	opts   FormatterOptions
	logger *log.Logger

	staves        map[staveKey]Stave
	building      map[staveKey]bool
	voices        map[int][]Voice
	objects       map[int][][]Drawable
	staveForVoice map[int][]int
	options       map[int]MeasureOptions
	minWidths     map[minWidthKey]float64
}

// NewFormatter 创建排版器基座。policy 为空时，所有几何请求都会返回 MethodNotImplemented。
func NewFormatter(doc *Document, policy LayoutPolicy, opts FormatterOptions) (*Formatter, error) {
	if doc == nil {
		return nil, errors.New(errors.ErrCodeInvalidArgument, "Formatter 需要 Document 参数")
	}
	opts = opts.merge(defaultFormatterOptions())
	if opts.Engine == nil {
		return nil, errors.New(errors.ErrCodeInvalidArgument, "Formatter 缺少渲染引擎 Engine")
	}
	return &Formatter{
		doc:           doc,
		policy:        policy,
		engine:        opts.Engine,
		opts:          opts,
		logger:        opts.Logger,
		staves:        map[staveKey]Stave{},
		building:      map[staveKey]bool{},
		voices:        map[int][]Voice{},
		objects:       map[int][][]Drawable{},
		staveForVoice: map[int][]int{},
		options:       map[int]MeasureOptions{},
		minWidths:     map[minWidthKey]float64{},
	}, nil
}

// Document 返回排版器私有的文档副本。
func (f *Formatter) Document() *Document { return f.doc }

func (f *Formatter) notImplemented() error {
	return errors.New(errors.ErrCodeMethodNotImplemented, "排版策略必须实现 StaveX 与 StaveWidth")
}

// MeasureOptions 返回小节的绘制选项，未设置时为零值。
func (f *Formatter) MeasureOptions(m int) MeasureOptions { return f.options[m] }

// SetMeasureOptions 供排版策略在计算行块时登记行首/曲首。
func (f *Formatter) SetMeasureOptions(m int, opts MeasureOptions) { f.options[m] = opts }

// Stave 返回第 m 小节第 s 个谱表（跨声部组的绝对编号）。
// 谱表不存在时返回 ok=false 且 err 为空，用于终止谱表遍历。
func (f *Formatter) Stave(m, s int) (Stave, bool, error) {
	key := staveKey{m, s}
	if st, ok := f.staves[key]; ok {
		return st, true, nil
	}
	if f.policy == nil {
		return nil, false, f.notImplemented()
	}
	if f.building[key] {
		return nil, false, errors.New(errors.ErrCodeFormatting, "谱表 (%d, %d) 在计算过程中被重复请求", m, s)
	}
	measure, err := f.doc.Measure(m)
	if err != nil {
		return nil, false, err
	}
	logical := measure.Stave(s)
	if logical == nil {
		return nil, false, nil
	}

	f.building[key] = true
	defer delete(f.building, key)

	if opts, ok := f.options[m]; ok {
		injectModifiers(logical, opts)
	}
	x, err := f.policy.StaveX(m, s)
	if err != nil {
		return nil, false, err
	}
	y, err := f.staveY(m, s)
	if err != nil {
		return nil, false, err
	}
	width, err := f.policy.StaveWidth(m, s)
	if err != nil {
		return nil, false, err
	}
	st := f.createStave(logical, x, y, width)
	f.staves[key] = st
	return st, true, nil
}

// staveY 计算谱表在行块内的纵向位置；策略实现了 StaveYPolicy 时以策略为准。
func (f *Formatter) staveY(m, s int) (float64, error) {
	if p, ok := f.policy.(StaveYPolicy); ok {
		return p.StaveY(m, s)
	}
	return f.DefaultStaveY(m, s)
}

// DefaultStaveY：首个谱表位于 0，其余紧贴上一个谱表的底部。
func (f *Formatter) DefaultStaveY(m, s int) (float64, error) {
	if s == 0 {
		return 0, nil
	}
	above, ok, err := f.Stave(m, s-1)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errors.New(errors.ErrCodeFormatting, "第 %d 小节缺少谱表 %d", m, s-1)
	}
	return above.Y() + above.Height(), nil
}

// injectModifiers 根据绘制选项为逻辑谱表补充修饰：行首补谱号与调号，曲首补拍号。
// 已存在的同类修饰不会重复添加。
func injectModifiers(st *score.Stave, opts MeasureOptions) {
	if opts.SystemStart && st.Clef != "" && !st.HasModifier(score.ModifierClef) {
		st.AddModifier(score.Modifier{Kind: score.ModifierClef, Clef: st.Clef})
	}
	if opts.SystemStart && st.Key != "" && !st.HasModifier(score.ModifierKey) {
		st.AddModifier(score.Modifier{Kind: score.ModifierKey, Key: st.Key})
	}
	if opts.PieceStart && st.TimeSignature != "" && !st.HasModifier(score.ModifierTime) {
		st.AddModifier(score.Modifier{Kind: score.ModifierTime, Time: st.TimeSignature})
	} else if opts.PieceStart && st.Time != nil && !st.HasModifier(score.ModifierTime) {
		st.AddModifier(score.Modifier{
			Kind:      score.ModifierTime,
			NumBeats:  st.Time.NumBeats,
			BeatValue: st.Time.BeatValue,
		})
	}
}

// createStave 由逻辑谱表生成引擎谱表，并附加其全部修饰。
func (f *Formatter) createStave(st *score.Stave, x, y, width float64) Stave {
	out := f.engine.NewStave(x, y, width)
	for _, mod := range st.Modifiers {
		switch mod.Kind {
		case score.ModifierClef:
			out.AddClef(mod.Clef)
		case score.ModifierKey:
			out.AddKeySignature(mod.Key)
		case score.ModifierTime:
			out.AddTimeSignature(mod.TimeString())
		}
	}
	return out
}

// Voices 返回第 m 小节的全部引擎声部，同时填充附属对象与声部所在谱表的缓存。
func (f *Formatter) Voices(m int) ([]Voice, error) {
	if v, ok := f.voices[m]; ok {
		return v, nil
	}
	measure, err := f.doc.Measure(m)
	if err != nil {
		return nil, err
	}
	var (
		voices   []Voice
		objects  [][]Drawable
		staveFor []int
	)
	partFirstStave := 0
	for i, part := range measure.Parts {
		partStaves := append([]*score.Stave(nil), part.Staves...)
		for j, voice := range part.Voices {
			stave, err := voiceStave(voice, len(partStaves), m, i, j)
			if err != nil {
				return nil, err
			}
			rv, err := f.engine.NewVoice(voice, partStaves)
			if err != nil {
				return nil, err
			}
			objs, err := f.engine.NewObjects(voice, partStaves, rv)
			if err != nil {
				return nil, err
			}
			voices = append(voices, rv)
			objects = append(objects, objs)
			staveFor = append(staveFor, stave+partFirstStave)
		}
		partFirstStave += len(partStaves)
	}
	f.voices[m] = voices
	f.objects[m] = objects
	f.staveForVoice[m] = staveFor
	return voices, nil
}

// voiceStave 确定声部在声部组内的谱表：单谱表声部组隐式为 0，多谱表时必须声明。
func voiceStave(v *score.Voice, numStaves, m, part, voice int) (int, error) {
	if numStaves == 0 {
		return 0, errors.New(errors.ErrCodeInvalidIR, "第 %d 小节声部组 %d 没有谱表，无法放置声部 %d", m, part, voice)
	}
	if numStaves == 1 {
		return 0, nil
	}
	if !v.HasStave() {
		return 0, errors.New(errors.ErrCodeInvalidIR, "第 %d 小节声部组 %d 的声部 %d 缺少 stave 属性", m, part, voice)
	}
	s := v.StaveIndex()
	if s < 0 || s >= numStaves {
		return 0, errors.New(errors.ErrCodeInvalidIR, "第 %d 小节声部组 %d 的声部 %d 指向不存在的谱表 %d", m, part, voice, s)
	}
	return s, nil
}

// VoiceObjects 返回与 Voices 顺序对应的附属对象。
func (f *Formatter) VoiceObjects(m int) ([][]Drawable, error) {
	if _, err := f.Voices(m); err != nil {
		return nil, err
	}
	return f.objects[m], nil
}

// StaveForVoice 返回每个声部所在的绝对谱表编号。
func (f *Formatter) StaveForVoice(m int) ([]int, error) {
	if _, err := f.Voices(m); err != nil {
		return nil, err
	}
	return f.staveForVoice[m], nil
}

// MinMeasureWidth 返回小节在当前绘制选项下的最小宽度：声部零空隙排版所需宽度，加上各谱表修饰占位的最大值。
// 修饰占位通过在固定大宽度下布置谱表副本（含行首/曲首注入的修饰），再测量总宽与可排音符区域之差得到。
// 结果按 (小节, 选项) 缓存，与调用顺序无关。
func (f *Formatter) MinMeasureWidth(m int) (float64, error) {
	key := minWidthKey{m, f.options[m]}
	if w, ok := f.minWidths[key]; ok {
		return w, nil
	}
	voices, err := f.Voices(m)
	if err != nil {
		return 0, err
	}
	minWidth := f.engine.MinTotalWidth(voices)

	measure, err := f.doc.Measure(m)
	if err != nil {
		return 0, err
	}
	maxExtra := 0.0
	for s := 0; s < measure.NumStaves(); s++ {
		st := measure.Stave(s).Clone()
		injectModifiers(st, key.opts)
		probe := f.createStave(st, 0, 0, probeStaveWidth)
		extra := probeStaveWidth - (probe.NoteEndX() - probe.NoteStartX())
		if extra > maxExtra {
			maxExtra = extra
		}
	}
	minWidth += maxExtra
	f.minWidths[key] = minWidth
	f.logger.Debug("小节最小宽度", "measure", m, "width", minWidth, "modifiers", maxExtra)
	return minWidth, nil
}

// cachedMinWidth 返回已按当前选项计算过的最小宽度，未计算时为 0。
func (f *Formatter) cachedMinWidth(m int) float64 {
	return f.minWidths[minWidthKey{m, f.options[m]}]
}

// Blocks 依次计算全部行块。
func (f *Formatter) Blocks() ([]*Block, error) {
	if f.policy == nil {
		return nil, f.notImplemented()
	}
	var out []*Block
	for b := 0; ; b++ {
		block, err := f.policy.Block(b)
		if err != nil {
			return nil, err
		}
		if block == nil {
			return out, nil
		}
		out = append(out, block)
	}
}

// Layout 计算全部行块并汇总每个小节的水平几何。
func (f *Formatter) Layout() (*Layout, error) {
	blocks, err := f.Blocks()
	if err != nil {
		return nil, err
	}
	res := &Layout{Blocks: blocks}
	for _, block := range blocks {
		for _, m := range block.Measures {
			x, err := f.policy.StaveX(m, 0)
			if err != nil {
				return nil, err
			}
			w, err := f.policy.StaveWidth(m, 0)
			if err != nil {
				return nil, err
			}
			res.Measures = append(res.Measures, MeasureGeometry{
				Measure:  m,
				Block:    block.Index,
				X:        x,
				Width:    w,
				MinWidth: f.cachedMinWidth(m),
			})
		}
	}
	return res, nil
}
