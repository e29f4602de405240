package layout

import "github.com/ByLCY/cantus/score"

// Surface 是渲染引擎的绘制目标，具体类型由引擎定义。
type Surface interface {
	Size() (width, height float64)
}

// Drawable 表示可以直接绘制的对象，例如连音梁、连线或谱表连接线。
type Drawable interface {
	Draw(s Surface) error
}

// Stave 是引擎侧已经确定坐标的谱表。
type Stave interface {
	X() float64
	Y() float64
	Width() float64
	Height() float64
	// NoteStartX/NoteEndX 给出可排音符区域的左右边界（扣除谱号、调号、拍号等占位）。
	NoteStartX() float64
	NoteEndX() float64

	AddClef(clef string)
	AddKeySignature(key string)
	AddTimeSignature(sig string)
	HasModifier(kind score.ModifierKind) bool

	Draw(s Surface) error
}

// Voice 是引擎侧的声部，在 Format 之后才能绘制。
type Voice interface {
	Draw(s Surface, stave Stave) error
}

// Engine 负责把逻辑乐谱转换为可绘制对象，并提供音符间距的计算。
type Engine interface {
	NewStave(x, y, width float64) Stave
	// NewVoice 根据所属声部组的全部谱表转换声部。
	NewVoice(v *score.Voice, partStaves []*score.Stave) (Voice, error)
	// NewObjects 返回声部的附属对象（连音梁、连线），需在声部绘制之后绘制。
	NewObjects(v *score.Voice, partStaves []*score.Stave, voice Voice) ([]Drawable, error)
	// MinTotalWidth 预先计算一组声部在没有多余空隙时所需的最小宽度。
	MinTotalWidth(voices []Voice) float64
	// Format 将一组声部联合排版到给定宽度。
	Format(voices []Voice, width float64) error
	NewConnector(top, bottom Stave) Drawable
}
