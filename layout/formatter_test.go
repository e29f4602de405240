package layout

import (
	"reflect"
	"testing"

	"github.com/ByLCY/cantus/errors"
	"github.com/ByLCY/cantus/score"
)

func TestSingleMeasureBlock(t *testing.T) {
	doc := newTestDocument(singleStaveMeasure(score.Stave{Clef: "treble"}, 4))
	f, _ := newTestFormatter(doc, 500)

	block, err := f.Block(0)
	if err != nil {
		t.Fatalf("计算行块失败: %v", err)
	}
	if !reflect.DeepEqual(block.Measures, []int{0}) {
		t.Fatalf("期望行块只包含小节 0，实际 %v", block.Measures)
	}
	want := []MeasureOptions{{SystemStart: true, PieceStart: true}}
	if !reflect.DeepEqual(block.Options, want) {
		t.Fatalf("期望选项 %+v，实际 %+v", want, block.Options)
	}
	next, err := f.Block(1)
	if err != nil || next != nil {
		t.Fatalf("全部小节已分配后应返回 (nil, nil)，实际 (%v, %v)", next, err)
	}
}

func TestBlockDistributesExtraWidth(t *testing.T) {
	doc := newTestDocument(
		singleStaveMeasure(score.Stave{}, 4),
		singleStaveMeasure(score.Stave{}, 4),
		singleStaveMeasure(score.Stave{}, 4),
	)
	f, _ := newTestFormatter(doc, 500)

	block, err := f.Block(0)
	if err != nil {
		t.Fatalf("计算行块失败: %v", err)
	}
	if !reflect.DeepEqual(block.Measures, []int{0, 1, 2}) {
		t.Fatalf("期望 3 个小节，实际 %v", block.Measures)
	}
	if block.Width != 500 {
		t.Fatalf("行块宽度应等于行宽 500，实际 %g", block.Width)
	}
	wantX := []float64{10, 170, 330}
	for m := 0; m < 3; m++ {
		w, _ := f.StaveWidth(m, 0)
		x, _ := f.StaveX(m, 0)
		if w != 160 || x != wantX[m] {
			t.Fatalf("小节 %d 期望 x=%g w=160，实际 x=%g w=%g", m, wantX[m], x, w)
		}
	}
	if block.Options[1] != (MeasureOptions{}) {
		t.Fatalf("非行首小节不应带选项: %+v", block.Options[1])
	}
}

func TestBlockRemainderGoesToFirstMeasure(t *testing.T) {
	// 112.5 / 100 / 100：向上取整后剩余 167，平均 55，余数 2 加到首个小节
	first := singleStaveMeasure(score.Stave{}, 4)
	first.Parts[0].Voices[0].Notes = append(first.Parts[0].Voices[0].Notes, score.Note{Keys: []string{"d/4"}, Duration: "8"})
	doc := newTestDocument(first, singleStaveMeasure(score.Stave{}, 4), singleStaveMeasure(score.Stave{}, 4))
	f, _ := newTestFormatter(doc, 500)

	if _, err := f.Block(0); err != nil {
		t.Fatalf("计算行块失败: %v", err)
	}
	wantW := []float64{170, 155, 155}
	wantX := []float64{10, 180, 335}
	sum := 0.0
	for m := range wantW {
		w, _ := f.StaveWidth(m, 0)
		x, _ := f.StaveX(m, 0)
		if w != wantW[m] || x != wantX[m] {
			t.Fatalf("小节 %d 期望 x=%g w=%g，实际 x=%g w=%g", m, wantX[m], wantW[m], x, w)
		}
		sum += w
	}
	if sum != 480 {
		t.Fatalf("宽度之和应为 W-20=480，实际 %g", sum)
	}
}

func TestOversizedMeasureGetsOwnBlock(t *testing.T) {
	doc := newTestDocument(
		singleStaveMeasure(score.Stave{}, 24),
		singleStaveMeasure(score.Stave{}, 4),
	)
	f, _ := newTestFormatter(doc, 500)

	block, err := f.Block(0)
	if err != nil {
		t.Fatalf("计算行块失败: %v", err)
	}
	if !reflect.DeepEqual(block.Measures, []int{0}) {
		t.Fatalf("超宽小节应独占一行，实际 %v", block.Measures)
	}
	if block.Width != 620 {
		t.Fatalf("期望行块宽度 620，实际 %g", block.Width)
	}
	if w, _ := f.StaveWidth(0, 0); w != 600 {
		t.Fatalf("期望小节宽度为最小宽度 600，实际 %g", w)
	}
	if x, _ := f.StaveX(0, 0); x != 10 {
		t.Fatalf("期望小节 x=10，实际 %g", x)
	}
	next, err := f.Block(1)
	if err != nil {
		t.Fatalf("计算行块 1 失败: %v", err)
	}
	if next.First() != 1 || next.Options[0] != (MeasureOptions{SystemStart: true}) {
		t.Fatalf("行块 1 应从小节 1 开始且仅为行首: %+v", next)
	}
}

func TestBlocksPartitionMeasures(t *testing.T) {
	beats := []int{4, 7, 3, 9, 5, 5, 10, 2, 6, 8, 4}
	var measures []*score.Measure
	for _, b := range beats {
		measures = append(measures, singleStaveMeasure(score.Stave{Clef: "bass", Key: "F"}, b))
	}
	doc := newTestDocument(measures...)
	f, _ := newTestFormatter(doc, 400)

	blocks, err := f.Blocks()
	if err != nil {
		t.Fatalf("计算行块失败: %v", err)
	}
	next := 0
	for i, block := range blocks {
		if block.Index != i {
			t.Fatalf("行块编号错误: %d != %d", block.Index, i)
		}
		sum := 0.0
		for j, m := range block.Measures {
			if m != next {
				t.Fatalf("行块 %d 的小节不连续: %v", i, block.Measures)
			}
			next++
			w, err := f.StaveWidth(m, 0)
			if err != nil {
				t.Fatalf("小节 %d 没有宽度: %v", m, err)
			}
			sum += w
			wantOpts := MeasureOptions{SystemStart: j == 0, PieceStart: i == 0 && j == 0}
			if block.Options[j] != wantOpts {
				t.Fatalf("小节 %d 选项错误: %+v", m, block.Options[j])
			}
		}
		if len(block.Measures) > 1 && sum != 380 {
			t.Fatalf("行块 %d 宽度之和应为 380，实际 %g", i, sum)
		}
	}
	if next != len(beats) {
		t.Fatalf("行块未覆盖全部小节: %d/%d", next, len(beats))
	}
}

func TestBlockRequestsMustBeOrdered(t *testing.T) {
	doc := newTestDocument(
		singleStaveMeasure(score.Stave{}, 12),
		singleStaveMeasure(score.Stave{}, 12),
		singleStaveMeasure(score.Stave{}, 12),
	)
	f, _ := newTestFormatter(doc, 300)

	if _, err := f.Block(2); !errors.Is(err, errors.ErrCodeFormatting) {
		t.Fatalf("跳过前序行块应返回 FormattingError，实际 %v", err)
	}
	if _, err := f.Block(-1); !errors.Is(err, errors.ErrCodeInvalidArgument) {
		t.Fatalf("负数行块应返回 InvalidArgument，实际 %v", err)
	}
	if _, _, err := f.Stave(1, 0); !errors.Is(err, errors.ErrCodeFormatting) {
		t.Fatalf("未分配的小节请求谱表应返回 FormattingError，实际 %v", err)
	}
	b0, err := f.Block(0)
	if err != nil {
		t.Fatalf("计算行块 0 失败: %v", err)
	}
	again, _ := f.Block(0)
	if again != b0 {
		t.Fatalf("重复请求行块应返回缓存的同一实例")
	}
}

func TestModifiersInjectedOnce(t *testing.T) {
	doc := newTestDocument(
		singleStaveMeasure(score.Stave{Clef: "treble", Key: "G", TimeSignature: "3/4"}, 4),
		singleStaveMeasure(score.Stave{Clef: "treble", Key: "G", TimeSignature: "3/4"}, 16),
	)
	// 行宽小于任一小节，每个小节独占一行
	f, _ := newTestFormatter(doc, 180)

	blocks, err := f.Blocks()
	if err != nil {
		t.Fatalf("计算行块失败: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("期望 2 个行块，实际 %d", len(blocks))
	}
	// 谱号 30 + 调号 20 + 拍号 15
	if w, _ := f.MinMeasureWidth(0); w != 165 {
		t.Fatalf("曲首小节最小宽度应含全部修饰，实际 %g", w)
	}
	if w, _ := f.MinMeasureWidth(1); w != 450 {
		t.Fatalf("行首小节最小宽度应含谱号与调号，实际 %g", w)
	}

	for m, wantTime := range []bool{true, false} {
		st, ok, err := f.Stave(m, 0)
		if err != nil || !ok {
			t.Fatalf("获取谱表 (%d,0) 失败: %v", m, err)
		}
		stub := st.(*stubStave)
		if stub.added[score.ModifierClef] != 1 || stub.added[score.ModifierKey] != 1 {
			t.Fatalf("小节 %d 谱号/调号应恰好添加一次: %+v", m, stub.added)
		}
		if got := stub.added[score.ModifierTime] == 1; got != wantTime {
			t.Fatalf("小节 %d 拍号显示错误: %+v", m, stub.added)
		}
		again, _, _ := f.Stave(m, 0)
		if again != st {
			t.Fatalf("重复请求谱表应返回同一实例")
		}

		measure, _ := f.Document().Measure(m)
		mods := measure.Stave(0).Modifiers
		seen := map[score.ModifierKind]int{}
		for _, mod := range mods {
			seen[mod.Kind]++
		}
		for kind, n := range seen {
			if n != 1 {
				t.Fatalf("逻辑谱表上的修饰 %s 重复 %d 次", kind, n)
			}
		}
	}
}

func TestStaveStacking(t *testing.T) {
	m := &score.Measure{Parts: []*score.Part{
		{
			Staves: []*score.Stave{{Clef: "treble"}, {Clef: "bass"}},
			Voices: []*score.Voice{
				{Stave: intPtr(0), Notes: quarters(4)},
				{Stave: intPtr(1), Notes: quarters(2)},
			},
		},
		{
			Staves: []*score.Stave{{Clef: "alto"}},
			Voices: []*score.Voice{{Notes: quarters(3)}},
		},
	}}
	doc := newTestDocument(m)
	f, _ := newTestFormatter(doc, 500)

	block, err := f.Block(0)
	if err != nil {
		t.Fatalf("计算行块失败: %v", err)
	}
	if block.Height != 300 {
		t.Fatalf("三个谱表的行块高度应为 300，实际 %g", block.Height)
	}
	for s, wantY := range []float64{0, 100, 200} {
		st, ok, err := f.Stave(0, s)
		if err != nil || !ok {
			t.Fatalf("获取谱表 %d 失败: %v", s, err)
		}
		if st.Y() != wantY {
			t.Fatalf("谱表 %d 期望 y=%g，实际 %g", s, wantY, st.Y())
		}
	}
	if _, ok, err := f.Stave(0, 3); ok || err != nil {
		t.Fatalf("不存在的谱表应返回 ok=false 且无错误，实际 ok=%v err=%v", ok, err)
	}
	staveFor, err := f.StaveForVoice(0)
	if err != nil {
		t.Fatalf("获取声部谱表失败: %v", err)
	}
	if !reflect.DeepEqual(staveFor, []int{0, 1, 2}) {
		t.Fatalf("声部谱表映射错误: %v", staveFor)
	}
}

func TestVoicesRequireStaveInMultiStavePart(t *testing.T) {
	m := &score.Measure{Parts: []*score.Part{{
		Staves: []*score.Stave{{Clef: "treble"}, {Clef: "bass"}},
		Voices: []*score.Voice{{Notes: quarters(4)}},
	}}}
	doc := newTestDocument(m)
	f, _ := newTestFormatter(doc, 500)

	if _, err := f.Voices(0); !errors.Is(err, errors.ErrCodeInvalidIR) {
		t.Fatalf("缺少 stave 的声部应返回 InvalidIR，实际 %v", err)
	}
}

func TestVoicesAreCached(t *testing.T) {
	m := singleStaveMeasure(score.Stave{}, 4)
	m.Parts[0].Voices[0].Beams = [][]int{{0, 1}}
	m.Parts[0].Voices[0].Ties = []score.Tie{{From: 2, To: 3}}
	doc := newTestDocument(m)
	f, _ := newTestFormatter(doc, 500)

	v1, err := f.Voices(0)
	if err != nil {
		t.Fatalf("获取声部失败: %v", err)
	}
	v2, _ := f.Voices(0)
	if len(v1) != 1 || v1[0] != v2[0] {
		t.Fatalf("声部应被缓存")
	}
	objs, err := f.VoiceObjects(0)
	if err != nil {
		t.Fatalf("获取附属对象失败: %v", err)
	}
	if len(objs) != 1 || len(objs[0]) != 2 {
		t.Fatalf("期望 1 个声部带 2 个附属对象，实际 %v", objs)
	}
}

func TestFormatterWithoutPolicy(t *testing.T) {
	doc := newTestDocument(singleStaveMeasure(score.Stave{}, 4))
	f, err := NewFormatter(doc, nil, FormatterOptions{Engine: &stubEngine{}})
	if err != nil {
		t.Fatalf("创建排版器失败: %v", err)
	}
	if _, _, err := f.Stave(0, 0); !errors.Is(err, errors.ErrCodeMethodNotImplemented) {
		t.Fatalf("缺少排版策略应返回 MethodNotImplemented，实际 %v", err)
	}
	if err := f.DrawBlock(0, &recorder{}); !errors.Is(err, errors.ErrCodeMethodNotImplemented) {
		t.Fatalf("缺少排版策略时绘制应返回 MethodNotImplemented，实际 %v", err)
	}
	if _, err := NewFormatter(doc, nil, FormatterOptions{}); !errors.Is(err, errors.ErrCodeInvalidArgument) {
		t.Fatalf("缺少引擎应返回 InvalidArgument，实际 %v", err)
	}
	if _, err := NewFormatter(nil, nil, FormatterOptions{Engine: &stubEngine{}}); !errors.Is(err, errors.ErrCodeInvalidArgument) {
		t.Fatalf("缺少文档应返回 InvalidArgument，实际 %v", err)
	}
}

func TestLayoutCollectsGeometry(t *testing.T) {
	doc := newTestDocument(
		singleStaveMeasure(score.Stave{}, 4),
		singleStaveMeasure(score.Stave{}, 4),
	)
	f, _ := newTestFormatter(doc, 500)

	res, err := f.Layout()
	if err != nil {
		t.Fatalf("排版失败: %v", err)
	}
	if len(res.Blocks) != 1 || len(res.Measures) != 2 {
		t.Fatalf("排版结果错误: %+v", res)
	}
	if g := res.Measures[1]; g.X != 250 || g.Width != 240 || g.MinWidth != 100 {
		t.Fatalf("小节 1 几何错误: %+v", g)
	}
	data, err := MarshalDebugJSON(res)
	if err != nil || len(data) == 0 {
		t.Fatalf("编码调试 JSON 失败: %v", err)
	}
}

func TestMinMeasureWidthQueryDoesNotChangePartition(t *testing.T) {
	newDoc := func() *Document {
		return newTestDocument(
			singleStaveMeasure(score.Stave{Clef: "treble"}, 4),
			singleStaveMeasure(score.Stave{Clef: "treble"}, 4),
			singleStaveMeasure(score.Stave{Clef: "treble"}, 1),
		)
	}
	partition := func(f *LiquidFormatter) [][]int {
		t.Helper()
		blocks, err := f.Blocks()
		if err != nil {
			t.Fatalf("计算行块失败: %v", err)
		}
		var out [][]int
		for _, b := range blocks {
			out = append(out, b.Measures)
		}
		return out
	}

	plain, _ := newTestFormatter(newDoc(), 140)
	want := partition(plain)
	if !reflect.DeepEqual(want, [][]int{{0}, {1}, {2}}) {
		t.Fatalf("行首谱号计入宽度后每个小节应独占一行，实际 %v", want)
	}

	queried, _ := newTestFormatter(newDoc(), 140)
	if w, _ := queried.MinMeasureWidth(1); w != 100 {
		t.Fatalf("未设置选项时最小宽度不含注入修饰，实际 %g", w)
	}
	if got := partition(queried); !reflect.DeepEqual(got, want) {
		t.Fatalf("提前查询最小宽度改变了分行: %v != %v", got, want)
	}
	if w, _ := queried.MinMeasureWidth(1); w != 130 {
		t.Fatalf("行首小节最小宽度应含谱号，实际 %g", w)
	}
	measure, _ := queried.Document().Measure(2)
	if n := len(measure.Stave(0).Modifiers); n != 1 {
		t.Fatalf("测量不应修改逻辑谱表，期望仅 1 个注入的谱号，实际 %d", n)
	}
}

func TestSetWidthAffectsPendingBlocks(t *testing.T) {
	var measures []*score.Measure
	for i := 0; i < 6; i++ {
		measures = append(measures, singleStaveMeasure(score.Stave{}, 4))
	}
	doc := newTestDocument(measures...)
	f, err := doc.Formatter(FormatterLiquid, FormatterOptions{Engine: &stubEngine{}, Width: 200})
	if err != nil {
		t.Fatalf("创建排版器失败: %v", err)
	}
	b0, err := f.Block(0)
	if err != nil {
		t.Fatalf("计算行块 0 失败: %v", err)
	}
	if !reflect.DeepEqual(b0.Measures, []int{0, 1}) || b0.Width != 200 {
		t.Fatalf("行宽 200 时行块 0 应为 [0 1]，实际 %+v", b0)
	}

	if got := f.SetWidth(400); got != f {
		t.Fatalf("SetWidth 应返回接收者以便链式调用")
	}
	if f.Width() != 400 {
		t.Fatalf("行宽未更新: %g", f.Width())
	}
	b1, err := f.Block(1)
	if err != nil {
		t.Fatalf("计算行块 1 失败: %v", err)
	}
	if !reflect.DeepEqual(b1.Measures, []int{2, 3, 4, 5}) || b1.Width != 400 {
		t.Fatalf("新行宽应只作用于后续行块，实际 %+v", b1)
	}
	if again, _ := f.Block(0); again != b0 || again.Width != 200 {
		t.Fatalf("已计算的行块不应受 SetWidth 影响: %+v", again)
	}
	sum := 0.0
	for _, m := range b1.Measures {
		w, _ := f.StaveWidth(m, 0)
		sum += w
	}
	if sum != 380 {
		t.Fatalf("行块 1 宽度之和应为 380，实际 %g", sum)
	}
}
