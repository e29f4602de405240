package layout

import (
	"github.com/ByLCY/cantus/errors"
	"github.com/ByLCY/cantus/score"
)

// 绘制选项（见 MeasureOptions）：
//   - SystemStart：行首，总是显示谱号与调号，并用连接线连接全部谱表
//   - PieceStart：乐曲开头，额外显示拍号
//   - 默认：只绘制谱表上已有的修饰

// DrawBlock 绘制第 b 个行块中的全部小节。
func (f *Formatter) DrawBlock(b int, s Surface) error {
	if f.policy == nil {
		return f.notImplemented()
	}
	block, err := f.policy.Block(b)
	if err != nil {
		return err
	}
	if block == nil {
		return errors.New(errors.ErrCodeFormatting, "行块 %d 不存在", b)
	}
	for _, m := range block.Measures {
		var staves []Stave
		for i := 0; ; i++ {
			st, ok, err := f.Stave(m, i)
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			staves = append(staves, st)
		}
		measure, err := f.doc.Measure(m)
		if err != nil {
			return err
		}
		if err := f.drawMeasure(measure, staves, s, f.options[m]); err != nil {
			return err
		}
	}
	f.logger.Debug("行块已绘制", "block", b, "measures", len(block.Measures))
	return nil
}

func (f *Formatter) drawMeasure(measure *score.Measure, staves []Stave, s Surface, opts MeasureOptions) error {
	start := 0
	for _, part := range measure.Parts {
		n := part.NumStaves()
		end := min(start+n, len(staves))
		if err := f.drawPart(part, staves[min(start, end):end], s, opts); err != nil {
			return err
		}
		start += n
	}
	if (opts.SystemStart || opts.PieceStart) && len(staves) > 1 {
		connector := f.engine.NewConnector(staves[0], staves[len(staves)-1])
		if err := connector.Draw(s); err != nil {
			return err
		}
	}
	return nil
}

func (f *Formatter) drawPart(part *score.Part, rendered []Stave, s Surface, opts MeasureOptions) error {
	staves := part.Staves
	if opts.SystemStart {
		// 行首重新确认谱号，与 injectModifiers 相互独立
		for i, st := range staves {
			if st.Clef == "" {
				continue
			}
			st.DeleteModifier(score.ModifierClef)
			st.AddModifier(score.Modifier{Kind: score.ModifierClef, Clef: st.Clef})
			if i < len(rendered) && !rendered[i].HasModifier(score.ModifierClef) {
				rendered[i].AddClef(st.Clef)
			}
		}
	}

	// 谱表编号 -> 该谱表上的声部
	voicesForStave := make([][]*score.Voice, len(staves))
	if len(staves) == 1 {
		voicesForStave[0] = part.Voices
	} else {
		for j, voice := range part.Voices {
			if !voice.HasStave() {
				return errors.New(errors.ErrCodeInvalidIR, "多谱表声部组中的声部 %d 缺少 stave 属性", j)
			}
			idx := voice.StaveIndex()
			if idx < 0 || idx >= len(staves) {
				return errors.New(errors.ErrCodeInvalidIR, "声部 %d 指向不存在的谱表 %d", j, idx)
			}
			voicesForStave[idx] = append(voicesForStave[idx], voice)
		}
	}

	for _, rs := range rendered {
		if err := rs.Draw(s); err != nil {
			return err
		}
	}
	for i, group := range voicesForStave {
		if len(group) == 0 || i >= len(rendered) {
			continue
		}
		rs := rendered[i]
		voices := make([]Voice, len(group))
		for j, v := range group {
			rv, err := f.engine.NewVoice(v, staves)
			if err != nil {
				return err
			}
			voices[j] = rv
		}
		if err := f.engine.Format(voices, rs.NoteEndX()-rs.NoteStartX()); err != nil {
			return err
		}
		for j, rv := range voices {
			if err := rv.Draw(s, rs); err != nil {
				return err
			}
			objs, err := f.engine.NewObjects(group[j], staves, rv)
			if err != nil {
				return err
			}
			for _, obj := range objs {
				if err := obj.Draw(s); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
