package canvasrenderer

import (
	"github.com/tdewolff/canvas"

	"github.com/ByLCY/cantus/errors"
	"github.com/ByLCY/cantus/layout"
)

const (
	beamThickness = 5.0
	beamGap       = 7.0
	tieLift       = 8.0
)

// beam 在声部绘制之后，用已拉平的符干末端画连音梁。
type beam struct {
	voice *Voice
	notes []int
}

func (b beam) Draw(s layout.Surface) error {
	surf, err := surfaceOf(s)
	if err != nil {
		return err
	}
	if !b.voice.drawn {
		return errors.New(errors.ErrCodeRender, "连音梁所在声部尚未绘制")
	}
	var stemmed []*note
	count := 0
	for _, i := range b.notes {
		n := b.voice.notes[i]
		if !n.hasStem() {
			continue
		}
		c := max(flagCount[n.source.BaseDuration()], 1)
		if len(stemmed) == 0 || c < count {
			count = c
		}
		stemmed = append(stemmed, n)
	}
	if len(stemmed) < 2 {
		return nil
	}
	first, last := stemmed[0], stemmed[len(stemmed)-1]
	dir := 1.0
	if !first.up {
		dir = -1
	}
	for i := 0; i < count; i++ {
		y := first.tipY + dir*float64(i)*beamGap
		if !first.up {
			y -= beamThickness
		}
		surf.Fill(first.stemX-stemWidth/2, y, canvas.Rectangle(last.stemX-first.stemX+stemWidth, beamThickness))
	}
	return nil
}

// tie 连接同一声部中两个音符的符头。
type tie struct {
	voice    *Voice
	from, to int
}

func (t tie) Draw(s layout.Surface) error {
	surf, err := surfaceOf(s)
	if err != nil {
		return err
	}
	if !t.voice.drawn {
		return errors.New(errors.ErrCodeRender, "连线所在声部尚未绘制")
	}
	from, to := t.voice.notes[t.from], t.voice.notes[t.to]
	if len(from.pitches) == 0 || from.source.IsRest() || to.source.IsRest() {
		return nil
	}
	st := t.voice.stave
	// 弧线朝符干的反方向弯曲
	dir := -1.0
	if from.up {
		dir = 1
	}
	step := from.pitches[0].step
	if !from.up {
		step = from.pitches[len(from.pitches)-1].step
	}
	x1 := from.headX + headRX
	x2 := to.headX - headRX
	y := st.stepY(step) + dir*headRY
	dx := x2 - x1
	p := &canvas.Path{}
	p.MoveTo(0, 0)
	p.CubeTo(dx/4, dir*tieLift, 3*dx/4, dir*tieLift, dx, 0)
	surf.Stroke(x1, y, p, 1.4)
	return nil
}
