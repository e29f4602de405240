package layout

// 该文件定义行块与排版结果，供排版计算、绘制编排与调试 JSON 共用。

// MeasureOptions 记录小节的绘制选项。
//   - SystemStart：行首，必须重新显示谱号与调号，并连接所有谱表
//   - PieceStart：乐曲开头，额外显示拍号
type MeasureOptions struct {
	SystemStart bool `json:"system_start"`
	PieceStart  bool `json:"piece_start"`
}

// Block 是排在同一视觉行上的一段连续小节。
type Block struct {
	Index    int              `json:"index"`
	Width    float64          `json:"width"`
	Height   float64          `json:"height"`
	Measures []int            `json:"measures"`
	Options  []MeasureOptions `json:"options"` // 与 Measures 一一对应
}

// First 返回行块的首个小节编号。
func (b *Block) First() int { return b.Measures[0] }

// Last 返回行块的最后一个小节编号。
func (b *Block) Last() int { return b.Measures[len(b.Measures)-1] }

// Layout 汇总全部行块与每个小节的水平几何。
type Layout struct {
	Blocks   []*Block          `json:"blocks"`
	Measures []MeasureGeometry `json:"measures"`
}

// MeasureGeometry 记录小节所在行块以及 x/宽度。
type MeasureGeometry struct {
	Measure  int     `json:"measure"`
	Block    int     `json:"block"`
	X        float64 `json:"x"`
	Width    float64 `json:"width"`
	MinWidth float64 `json:"minWidth"`
}
