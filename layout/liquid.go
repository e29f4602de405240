package layout

import (
	"math"

	"github.com/ByLCY/cantus/errors"
)

const (
	blockMargin = 20.0 // 行块左右边距之和
	blockIndent = 10.0 // 行内首个小节的 x
)

// LiquidFormatter 按给定行宽把小节贪心地排成若干行，每个行块对应一行乐谱。
type LiquidFormatter struct {
	*Formatter

	width        float64
	blocks       []*Block
	measureX     map[int]float64
	measureWidth map[int]float64
}

var (
	_ LayoutPolicy   = (*LiquidFormatter)(nil)
	_ BlockFormatter = (*LiquidFormatter)(nil)
)

// NewLiquidFormatter 直接在 doc 上创建流式排版器。通常应使用 Document.Formatter，它会先复制文档。
func NewLiquidFormatter(doc *Document, opts FormatterOptions) (*LiquidFormatter, error) {
	lf := &LiquidFormatter{
		measureX:     map[int]float64{},
		measureWidth: map[int]float64{},
	}
	base, err := NewFormatter(doc, lf, opts)
	if err != nil {
		return nil, err
	}
	lf.Formatter = base
	lf.width = base.opts.Width
	return lf, nil
}

// SetWidth 设置行宽，只影响尚未计算的行块。
func (f *LiquidFormatter) SetWidth(width float64) *LiquidFormatter {
	f.width = width
	return f
}

// Width 返回当前行宽。
func (f *LiquidFormatter) Width() float64 { return f.width }

// Block 计算第 b 个行块。行块必须按顺序请求：第 b 块的起点依赖第 b-1 块的终点。
// 所有小节都已分配后返回 (nil, nil)。
func (f *LiquidFormatter) Block(b int) (*Block, error) {
	if b < 0 {
		return nil, errors.New(errors.ErrCodeInvalidArgument, "行块编号 %d 不能为负", b)
	}
	if b < len(f.blocks) {
		return f.blocks[b], nil
	}
	numMeasures := f.doc.NumMeasures()
	start := 0
	if n := len(f.blocks); n > 0 {
		start = f.blocks[n-1].Last() + 1
	}
	if b > len(f.blocks) {
		if start >= numMeasures {
			return nil, nil
		}
		return nil, errors.New(errors.ErrCodeFormatting, "请求行块 %d 之前必须先计算行块 %d", b, len(f.blocks))
	}
	if start >= numMeasures {
		return nil, nil
	}

	f.SetMeasureOptions(start, MeasureOptions{SystemStart: true, PieceStart: b == 0})
	startMin, err := f.MinMeasureWidth(start)
	if err != nil {
		return nil, err
	}

	block := &Block{Index: b}
	if startMin+blockMargin >= f.width {
		// 单个小节已超出行宽：只放这一个小节，并使用其最小宽度
		block.Width = startMin + blockMargin
		block.Measures = []int{start}
		f.measureX[start] = blockIndent
		f.measureWidth[start] = startMin
	} else {
		cur := start
		total := blockMargin
		for total < f.width && cur < numMeasures {
			w, err := f.MinMeasureWidth(cur)
			if err != nil {
				return nil, err
			}
			total += w
			cur++
		}
		end := cur - 1
		for m := start; m <= end; m++ {
			block.Measures = append(block.Measures, m)
		}
		f.distribute(block.Measures)
		block.Width = f.width
	}
	for _, m := range block.Measures {
		block.Options = append(block.Options, f.options[m])
	}

	height, err := f.blockHeight(start)
	if err != nil {
		return nil, err
	}
	block.Height = height
	f.blocks = append(f.blocks, block)
	f.logger.Debug("行块已计算", "block", b, "first", block.First(), "last", block.Last(), "width", block.Width, "height", block.Height)
	return block, nil
}

// distribute 先给每个小节分配向上取整的最小宽度，再把剩余宽度平均分配，
// 整除余数全部加到首个小节上；随后从 blockIndent 起累加 x。
func (f *LiquidFormatter) distribute(measures []int) {
	remaining := f.width - blockMargin
	for _, m := range measures {
		f.measureWidth[m] = math.Ceil(f.cachedMinWidth(m))
		remaining -= f.measureWidth[m]
	}
	count := float64(len(measures))
	extra := math.Floor(remaining / count)
	for _, m := range measures {
		f.measureWidth[m] += extra
	}
	remaining -= extra * count
	first := measures[0]
	f.measureWidth[first] += remaining

	f.measureX[first] = blockIndent
	for i := 1; i < len(measures); i++ {
		prev := measures[i-1]
		f.measureX[measures[i]] = f.measureX[prev] + f.measureWidth[prev]
	}
}

// blockHeight 以行块首个小节的谱表计算总高度，默认同一行块内各小节的谱表数与高度一致。
func (f *LiquidFormatter) blockHeight(m int) (float64, error) {
	var last Stave
	lastIndex := -1
	for i := 0; ; i++ {
		st, ok, err := f.Stave(m, i)
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		last, lastIndex = st, i
	}
	if last == nil {
		return 0, nil
	}
	y, err := f.staveY(m, lastIndex)
	if err != nil {
		return 0, err
	}
	return y + last.Height(), nil
}

// StaveX 返回小节的 x，小节必须已属于某个已计算的行块。
func (f *LiquidFormatter) StaveX(m, s int) (float64, error) {
	x, ok := f.measureX[m]
	if !ok {
		return 0, errors.New(errors.ErrCodeFormatting, "第 %d 小节不属于任何行块，无法创建谱表", m)
	}
	return x, nil
}

// StaveWidth 返回小节的宽度，小节必须已属于某个已计算的行块。
func (f *LiquidFormatter) StaveWidth(m, s int) (float64, error) {
	w, ok := f.measureWidth[m]
	if !ok {
		return 0, errors.New(errors.ErrCodeFormatting, "第 %d 小节不属于任何行块，无法创建谱表", m)
	}
	return w, nil
}
