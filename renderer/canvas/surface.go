package canvasrenderer

import (
	"image/color"

	"github.com/tdewolff/canvas"

	"github.com/ByLCY/cantus/layout"
)

// Surface 是一个行块的绘制目标。坐标以排版单位给出，原点为行块左上角，
// 绘制时按 scale（毫米/单位）换算到画布。
type Surface struct {
	ctx           *canvas.Context
	fonts         *fontSet
	scale         float64
	x0, y0        float64
	width, height float64
	ink           color.Color
}

var _ layout.Surface = (*Surface)(nil)

func (s *Surface) Size() (float64, float64) { return s.width, s.height }

func (s *Surface) at(x, y float64) (float64, float64) {
	return (s.x0 + x) * s.scale, (s.y0 + y) * s.scale
}

func (s *Surface) scaled(p *canvas.Path) *canvas.Path {
	return p.Transform(canvas.Identity.Scale(s.scale, s.scale))
}

// Line 绘制一条线段，w 为线宽（排版单位）。
func (s *Surface) Line(x1, y1, x2, y2, w float64) {
	p := &canvas.Path{}
	p.MoveTo(0, 0)
	p.LineTo(x2-x1, y2-y1)
	s.Stroke(x1, y1, p, w)
}

// Stroke 以 (x, y) 为原点描边路径。
func (s *Surface) Stroke(x, y float64, p *canvas.Path, w float64) {
	s.ctx.SetFillColor(canvas.Transparent)
	s.ctx.SetStrokeColor(s.ink)
	s.ctx.SetStrokeWidth(w * s.scale)
	px, py := s.at(x, y)
	s.ctx.DrawPath(px, py, s.scaled(p))
}

// Fill 以 (x, y) 为原点填充路径。
func (s *Surface) Fill(x, y float64, p *canvas.Path) {
	s.ctx.SetFillColor(s.ink)
	s.ctx.SetStrokeColor(canvas.Transparent)
	s.ctx.SetStrokeWidth(0)
	px, py := s.at(x, y)
	s.ctx.DrawPath(px, py, s.scaled(p))
}

// Text 在基线 (x, y) 处绘制文本，size 为字号（排版单位）。
func (s *Surface) Text(x, y, size float64, text string, style textStyle, align canvas.TextAlign) error {
	face, err := s.fonts.face(style, size*s.scale, s.ink)
	if err != nil {
		return err
	}
	px, py := s.at(x, y)
	s.ctx.DrawText(px, py, canvas.NewTextLine(face, text, align))
	return nil
}
