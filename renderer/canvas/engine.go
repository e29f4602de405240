package canvasrenderer

import (
	"github.com/ByLCY/cantus/errors"
	"github.com/ByLCY/cantus/layout"
	"github.com/ByLCY/cantus/score"
)

// Engine 实现 layout.Engine，绘制到 *Surface 上。
type Engine struct{}

var _ layout.Engine = (*Engine)(nil)

func NewEngine() *Engine { return &Engine{} }

func (e *Engine) NewStave(x, y, width float64) layout.Stave { return newStave(x, y, width) }

func (e *Engine) NewVoice(v *score.Voice, partStaves []*score.Stave) (layout.Voice, error) {
	rv, err := newVoice(v, partStaves)
	if err != nil {
		return nil, err
	}
	return rv, nil
}

// NewObjects 返回声部的连音梁与连线。voice 必须是同一声部由 NewVoice 转换得到的结果。
func (e *Engine) NewObjects(v *score.Voice, partStaves []*score.Stave, voice layout.Voice) ([]layout.Drawable, error) {
	rv, ok := voice.(*Voice)
	if !ok || rv == nil {
		return nil, errors.New(errors.ErrCodeRender, "canvas 引擎无法处理声部 %T", voice)
	}
	var out []layout.Drawable
	for _, group := range rv.beams {
		if len(group) < 2 {
			continue
		}
		out = append(out, beam{voice: rv, notes: group})
	}
	for _, t := range v.Ties {
		if err := checkIndices([]int{t.From, t.To}, len(rv.notes), "连线"); err != nil {
			return nil, err
		}
		if t.From == t.To {
			return nil, errors.New(errors.ErrCodeInvalidIR, "连线不能连接音符 %d 自身", t.From)
		}
		out = append(out, tie{voice: rv, from: t.From, to: t.To})
	}
	return out, nil
}

// MinTotalWidth 合并全部声部的拍点，返回零空隙时的总宽度。无法识别的声部按 0 计。
func (e *Engine) MinTotalWidth(voices []layout.Voice) float64 {
	var own []*Voice
	for _, lv := range voices {
		if v, ok := lv.(*Voice); ok && v != nil {
			own = append(own, v)
		}
	}
	return minTotalWidth(own)
}

func (e *Engine) Format(voices []layout.Voice, width float64) error {
	own, err := voicesOf(voices)
	if err != nil {
		return err
	}
	format(own, width)
	return nil
}

func (e *Engine) NewConnector(top, bottom layout.Stave) layout.Drawable {
	return connector{top: top, bottom: bottom}
}
