package canvasrenderer

import (
	"strings"

	"github.com/tdewolff/canvas"

	"github.com/ByLCY/cantus/errors"
	"github.com/ByLCY/cantus/layout"
	"github.com/ByLCY/cantus/score"
)

// 谱表几何（排版单位）。五线位于 topLine 与 bottomLine 之间，上下各留四个间距给加线。
const (
	lineSpacing  = 10.0
	halfSpace    = lineSpacing / 2
	topLine      = 4 * lineSpacing
	bottomLine   = topLine + 4*lineSpacing
	staveHeight  = bottomLine + 4*lineSpacing
	startPadding = 5.0
	endPadding   = 10.0
	modifierGap  = 5.0

	clefWidth       = 30.0
	accidentalWidth = 9.0
	timeWidth       = 20.0

	lineWidth   = 1.0
	barWidth    = 1.2
	staffSymbol = 20.0 // 拍号数字的字号
)

// 调号在高音谱号下的位置（以最下一线为 0 的步数）。
var (
	sharpSteps = []int{8, 5, 9, 6, 3, 7, 4}
	flatSteps  = []int{4, 7, 3, 6, 2, 5, 1}
)

// 其他谱号相对高音谱号的调号位移。
var clefKeyShift = map[string]int{
	"bass":  -2,
	"alto":  -1,
	"tenor": 1,
}

var keyFifths = map[string]int{
	"Cb": -7, "Gb": -6, "Db": -5, "Ab": -4, "Eb": -3, "Bb": -2, "F": -1,
	"C": 0, "G": 1, "D": 2, "A": 3, "E": 4, "B": 5, "F#": 6, "C#": 7,
	"Abm": -7, "Ebm": -6, "Bbm": -5, "Fm": -4, "Cm": -3, "Gm": -2, "Dm": -1,
	"Am": 0, "Em": 1, "Bm": 2, "F#m": 3, "C#m": 4, "G#m": 5, "D#m": 6, "A#m": 7,
}

// keyAccidentals 返回调号的升降号个数，sharp 表示升号。未知调号视为无升降。
func keyAccidentals(key string) (count int, sharp bool) {
	f, ok := keyFifths[strings.TrimSpace(key)]
	if !ok {
		return 0, false
	}
	if f < 0 {
		return -f, false
	}
	return f, true
}

// Stave 是 canvas 引擎的谱表，修饰按 谱号、调号、拍号 的顺序排列。
type Stave struct {
	x, y, width float64

	clef    string
	key     string
	timeSig string
	mods    map[score.ModifierKind]bool
}

var _ layout.Stave = (*Stave)(nil)

func newStave(x, y, width float64) *Stave {
	return &Stave{x: x, y: y, width: width, mods: map[score.ModifierKind]bool{}}
}

func (s *Stave) X() float64      { return s.x }
func (s *Stave) Y() float64      { return s.y }
func (s *Stave) Width() float64  { return s.width }
func (s *Stave) Height() float64 { return staveHeight }

// NoteStartX 扣除起始留白与全部修饰占位。
func (s *Stave) NoteStartX() float64 { return s.x + startPadding + s.modifierWidth() }

func (s *Stave) NoteEndX() float64 { return s.x + s.width - endPadding }

func (s *Stave) AddClef(clef string) {
	s.clef = clef
	s.mods[score.ModifierClef] = true
}

func (s *Stave) AddKeySignature(key string) {
	s.key = key
	s.mods[score.ModifierKey] = true
}

func (s *Stave) AddTimeSignature(sig string) {
	s.timeSig = sig
	s.mods[score.ModifierTime] = true
}

func (s *Stave) HasModifier(kind score.ModifierKind) bool { return s.mods[kind] }

func (s *Stave) modifierWidth() float64 {
	w := 0.0
	if s.mods[score.ModifierClef] {
		w += clefWidth + modifierGap
	}
	if s.mods[score.ModifierKey] {
		if n, _ := keyAccidentals(s.key); n > 0 {
			w += float64(n)*accidentalWidth + modifierGap
		}
	}
	if s.mods[score.ModifierTime] {
		w += timeWidth + modifierGap
	}
	return w
}

func (s *Stave) bottom() float64 { return s.y + bottomLine }

// stepY 将以最下一线为 0 的步数换算为 y。
func (s *Stave) stepY(step int) float64 { return s.bottom() - float64(step)*halfSpace }

func (s *Stave) Draw(ls layout.Surface) error {
	surf, err := surfaceOf(ls)
	if err != nil {
		return err
	}
	for i := 0; i < 5; i++ {
		y := s.y + topLine + float64(i)*lineSpacing
		surf.Line(s.x, y, s.x+s.width, y, lineWidth)
	}
	surf.Line(s.x, s.y+topLine, s.x, s.bottom(), barWidth)
	surf.Line(s.x+s.width, s.y+topLine, s.x+s.width, s.bottom(), barWidth)

	x := s.x + startPadding
	if s.mods[score.ModifierClef] {
		s.drawClef(surf, x)
		x += clefWidth + modifierGap
	}
	if s.mods[score.ModifierKey] {
		n, sharp := keyAccidentals(s.key)
		if n > 0 {
			if err := s.drawKey(surf, x, n, sharp); err != nil {
				return err
			}
			x += float64(n)*accidentalWidth + modifierGap
		}
	}
	if s.mods[score.ModifierTime] {
		if err := s.drawTime(surf, x); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stave) drawClef(surf *Surface, x float64) {
	switch s.clef {
	case "bass":
		// 圆点落在 F 线（第四线），右侧两点夹住该线
		y := s.stepY(6)
		surf.Fill(x+6, y, canvas.Circle(3.5))
		arc := &canvas.Path{}
		arc.MoveTo(0, 0)
		arc.CubeTo(10, -12, 22, 0, 4, 26)
		surf.Stroke(x+4, y, arc, 2.5)
		surf.Fill(x+25, y-halfSpace, canvas.Circle(1.5))
		surf.Fill(x+25, y+halfSpace, canvas.Circle(1.5))
	case "alto", "tenor":
		y := s.stepY(4)
		if s.clef == "tenor" {
			y = s.stepY(6)
		}
		top, bot := s.y+topLine, s.bottom()
		surf.Line(x+3, top, x+3, bot, 4)
		surf.Line(x+9, top, x+9, bot, 1.5)
		bracket := &canvas.Path{}
		bracket.MoveTo(0, top-y)
		bracket.CubeTo(16, top-y, 16, -2, 0, 0)
		bracket.CubeTo(16, 2, 16, bot-y, 0, bot-y)
		surf.Stroke(x+11, y, bracket, 2)
	case "percussion":
		top, bot := s.stepY(6), s.stepY(2)
		surf.Line(x+8, top, x+8, bot, 4)
		surf.Line(x+16, top, x+16, bot, 4)
	default:
		// 高音谱号：螺旋绕 G 线（第二线）
		y := s.stepY(2)
		p := &canvas.Path{}
		p.MoveTo(2, 6)
		p.CubeTo(-10, 0, 0, -14, 10, -8)
		p.CubeTo(18, -2, 14, 12, 6, 12)
		p.CubeTo(-8, 12, -6, -14, 4, -28)
		p.CubeTo(12, -40, 20, -52, 12, -56)
		p.CubeTo(6, -58, 4, -40, 8, -26)
		p.LineTo(14, 20)
		surf.Stroke(x+8, y, p, 2)
		surf.Fill(x+12, y+22, canvas.Circle(3))
	}
}

func (s *Stave) drawKey(surf *Surface, x float64, n int, sharp bool) error {
	steps, glyph := flatSteps, "b"
	if sharp {
		steps, glyph = sharpSteps, "#"
	}
	shift := clefKeyShift[s.clef]
	for i := 0; i < n && i < len(steps); i++ {
		y := s.stepY(steps[i]+shift) + halfSpace
		if err := surf.Text(x+float64(i)*accidentalWidth, y, lineSpacing*1.6, glyph, styleRegular, canvas.Left); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stave) drawTime(surf *Surface, x float64) error {
	cx := x + timeWidth/2
	switch s.timeSig {
	case "C", "C|":
		if err := surf.Text(cx, s.stepY(4)+halfSpace*1.5, staffSymbol*1.2, "C", styleBold, canvas.Center); err != nil {
			return err
		}
		if s.timeSig == "C|" {
			surf.Line(cx, s.stepY(9), cx, s.stepY(-1), 1.5)
		}
		return nil
	}
	num, den, ok := strings.Cut(s.timeSig, "/")
	if !ok {
		return surf.Text(cx, s.stepY(4)+halfSpace*1.5, staffSymbol, s.timeSig, styleBold, canvas.Center)
	}
	if err := surf.Text(cx, s.stepY(4)-1, staffSymbol, num, styleBold, canvas.Center); err != nil {
		return err
	}
	return surf.Text(cx, s.bottom()-1, staffSymbol, den, styleBold, canvas.Center)
}

// connector 是行首连接全部谱表的竖线。
type connector struct {
	top, bottom layout.Stave
}

func (c connector) Draw(ls layout.Surface) error {
	surf, err := surfaceOf(ls)
	if err != nil {
		return err
	}
	x := c.top.X()
	surf.Line(x, c.top.Y()+topLine, x, c.bottom.Y()+bottomLine, barWidth*1.5)
	return nil
}

func surfaceOf(ls layout.Surface) (*Surface, error) {
	surf, ok := ls.(*Surface)
	if !ok || surf == nil {
		return nil, errors.New(errors.ErrCodeRender, "canvas 引擎无法绘制到 %T", ls)
	}
	return surf, nil
}
