package layout

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ByLCY/cantus/dsl"
	"github.com/ByLCY/cantus/errors"
	"github.com/ByLCY/cantus/musicxml"
	"github.com/ByLCY/cantus/score"
)

// Backend 将外部乐谱数据转换为小节模型。
type Backend interface {
	// Sniff 判断 data 是否为该后端支持的格式。
	Sniff(data any) bool
	Parse(data any) error
	Valid() bool
	NumMeasures() int
	Measure(i int) (*score.Measure, error)
}

// MetadataProvider 由能够提供标题、作曲者等信息的后端实现。
type MetadataProvider interface {
	Metadata() score.Metadata
}

// BackendKind 枚举内置的后端变体。
type BackendKind int

const (
	BackendAuto     BackendKind = iota // 按 DefaultBackends 顺序探测
	BackendIR                          // 结构化中间表示 {type: "document"}
	BackendMusicXML                    // MusicXML score-partwise
	BackendScoreDSL                    // 文本乐谱记法
)

func (k BackendKind) String() string {
	switch k {
	case BackendAuto:
		return "auto"
	case BackendIR:
		return "ir"
	case BackendMusicXML:
		return "musicxml"
	case BackendScoreDSL:
		return "dsl"
	default:
		return fmt.Sprintf("backend(%d)", int(k))
	}
}

// DefaultBackends 返回自动探测时依次尝试的后端。
func DefaultBackends() []BackendKind {
	return []BackendKind{BackendIR, BackendMusicXML, BackendScoreDSL}
}

func newBackend(kind BackendKind) (Backend, error) {
	switch kind {
	case BackendIR:
		return &irBackend{}, nil
	case BackendMusicXML:
		return musicxml.NewBackend(), nil
	case BackendScoreDSL:
		return dsl.NewBackend(), nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidArgument, "未知的后端类型 %s", kind)
	}
}

// irBackend 直接读取结构化的乐谱对象，或读取另一个 Document（用于复制文档）。
type irBackend struct {
	source *Document
	score  *score.Score
	valid  bool
}

var _ Backend = (*irBackend)(nil)

// AppearsIR 判断 data 是否像一个中间表示文档。
func AppearsIR(data any) bool {
	switch v := data.(type) {
	case *Document:
		return v != nil
	case *score.Score:
		return v != nil && v.Type == score.DocumentType
	case score.Score:
		return v.Type == score.DocumentType
	case map[string]any:
		t, _ := v["type"].(string)
		return t == score.DocumentType
	case []byte:
		return sniffJSONType(v)
	case string:
		return sniffJSONType([]byte(v))
	default:
		return false
	}
}

func sniffJSONType(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return false
	}
	return probe.Type == score.DocumentType
}

func (b *irBackend) Sniff(data any) bool { return AppearsIR(data) }

func (b *irBackend) Parse(data any) error {
	if !AppearsIR(data) {
		return errors.New(errors.ErrCodeInvalidArgument, "IR 对象必须是合法的文档")
	}
	switch v := data.(type) {
	case *Document:
		// 一等文档：先触发全部小节，复制时逐个克隆
		for i := 0; i < v.NumMeasures(); i++ {
			if _, err := v.Measure(i); err != nil {
				return err
			}
		}
		b.source = v
	case *score.Score:
		b.score = v
	case score.Score:
		b.score = &v
	case map[string]any:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("编码 IR 对象失败: %w", err)
		}
		if err := b.decode(raw); err != nil {
			return err
		}
	case []byte:
		if err := b.decode(v); err != nil {
			return err
		}
	case string:
		if err := b.decode([]byte(v)); err != nil {
			return err
		}
	}
	if b.score != nil {
		for i, m := range b.score.Measures {
			if err := checkMeasure(m); err != nil {
				return fmt.Errorf("第 %d 小节: %w", i, err)
			}
		}
	}
	b.valid = true
	return nil
}

// checkMeasure 拒绝结构不完整的小节：空的声部组、谱表、声部，以及无法识别的时值。
func checkMeasure(m *score.Measure) error {
	if m == nil {
		return fmt.Errorf("小节为空")
	}
	for p, part := range m.Parts {
		if part == nil {
			return fmt.Errorf("声部组 %d 为空", p)
		}
		for s, st := range part.Staves {
			if st == nil {
				return fmt.Errorf("声部组 %d 的谱表 %d 为空", p, s)
			}
		}
		for v, voice := range part.Voices {
			if voice == nil {
				return fmt.Errorf("声部组 %d 的声部 %d 为空", p, v)
			}
			for n, note := range voice.Notes {
				if !note.HasKnownDuration() {
					return fmt.Errorf("声部组 %d 声部 %d 的音符 %d 时值 %q 无法识别", p, v, n, note.Duration)
				}
			}
		}
	}
	return nil
}

func (b *irBackend) decode(raw []byte) error {
	var s score.Score
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("解析 IR JSON 失败: %w", err)
	}
	b.score = &s
	return nil
}

func (b *irBackend) Valid() bool { return b.valid }

func (b *irBackend) NumMeasures() int {
	if b.source != nil {
		return b.source.NumMeasures()
	}
	if b.score == nil {
		return 0
	}
	return len(b.score.Measures)
}

// Measure 返回第 i 小节的独立副本，调用方的数据不会被排版修改。
func (b *irBackend) Measure(i int) (*score.Measure, error) {
	if i < 0 || i >= b.NumMeasures() {
		return nil, errors.New(errors.ErrCodeInvalidArgument, "小节编号 %d 超出范围 [0, %d)", i, b.NumMeasures())
	}
	if b.source != nil {
		m, err := b.source.Measure(i)
		if err != nil {
			return nil, err
		}
		return m.Clone(), nil
	}
	return b.score.Measures[i].Clone(), nil
}

func (b *irBackend) Metadata() score.Metadata {
	if b.source != nil {
		return b.source.Metadata()
	}
	if b.score == nil {
		return score.Metadata{}
	}
	return b.score.Metadata
}
