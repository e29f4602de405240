// Package musicxml 将 MusicXML（score-partwise）读取为小节模型。
//
// 各声部组（<part>）的第 i 个 <measure> 合并为一个小节。<attributes> 中声明的
// 谱号、调号与拍号会沿用到之后的小节，但只在声明它们的小节上作为修饰出现。
package musicxml

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/ByLCY/cantus/score"
)

var (
	exprParts    = xpath.MustCompile("/score-partwise/part")
	exprMeasures = xpath.MustCompile("measure")
	exprTitle    = xpath.MustCompile("/score-partwise/work/work-title")
	exprMovement = xpath.MustCompile("/score-partwise/movement-title")
	exprComposer = xpath.MustCompile("/score-partwise/identification/creator[@type='composer']")
	exprPartName = xpath.MustCompile("/score-partwise/part-list/score-part")
)

// Backend 实现 layout.Backend。
type Backend struct {
	measures []*score.Measure
	meta     score.Metadata
	valid    bool
}

// NewBackend 创建一个尚未解析的 MusicXML 后端。
func NewBackend() *Backend { return &Backend{} }

func asBytes(data any) ([]byte, bool) {
	switch v := data.(type) {
	case []byte:
		return v, true
	case string:
		return []byte(v), true
	default:
		return nil, false
	}
}

// Sniff 仅接受根元素为 score-partwise 的 XML 文本。
func (b *Backend) Sniff(data any) bool {
	raw, ok := asBytes(data)
	if !ok {
		return false
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '<' {
		return false
	}
	doc, err := xmlquery.Parse(bytes.NewReader(raw))
	if err != nil {
		return false
	}
	root := rootElement(doc)
	return root != nil && root.Data == "score-partwise"
}

func rootElement(doc *xmlquery.Node) *xmlquery.Node {
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return n
		}
	}
	return nil
}

// Parse 解析全部声部组，并按小节编号合并。
func (b *Backend) Parse(data any) error {
	raw, ok := asBytes(data)
	if !ok {
		return fmt.Errorf("MusicXML 数据必须是文本，实际为 %T", data)
	}
	doc, err := xmlquery.Parse(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("解析 MusicXML 失败: %w", err)
	}

	b.meta = score.Metadata{Title: text(xmlquery.QuerySelector(doc, exprTitle))}
	if b.meta.Title == "" {
		b.meta.Title = text(xmlquery.QuerySelector(doc, exprMovement))
	}
	b.meta.Composer = text(xmlquery.QuerySelector(doc, exprComposer))

	names := map[string]string{}
	for _, sp := range xmlquery.QuerySelectorAll(doc, exprPartName) {
		names[sp.SelectAttr("id")] = text(xmlquery.FindOne(sp, "part-name"))
	}

	parts := xmlquery.QuerySelectorAll(doc, exprParts)
	if len(parts) == 0 {
		return fmt.Errorf("MusicXML 中没有 <part>")
	}
	var measures []*score.Measure
	for pi, partNode := range parts {
		nodes := xmlquery.QuerySelectorAll(partNode, exprMeasures)
		if pi == 0 {
			measures = make([]*score.Measure, len(nodes))
			for i := range measures {
				measures[i] = &score.Measure{}
			}
		} else if len(nodes) != len(measures) {
			return fmt.Errorf("声部组 %q 有 %d 个小节，与首个声部组的 %d 个不一致",
				partNode.SelectAttr("id"), len(nodes), len(measures))
		}
		st := newPartState(names[partNode.SelectAttr("id")])
		for i, mn := range nodes {
			part, err := st.measure(mn)
			if err != nil {
				return fmt.Errorf("声部组 %q 第 %s 小节: %w", partNode.SelectAttr("id"), mn.SelectAttr("number"), err)
			}
			measures[i].Parts = append(measures[i].Parts, part)
			if measures[i].Time == nil && st.time != nil {
				t := *st.time
				measures[i].Time = &t
			}
		}
	}
	b.measures = measures
	b.valid = true
	return nil
}

func (b *Backend) Valid() bool { return b.valid }

func (b *Backend) NumMeasures() int { return len(b.measures) }

// Measure 返回第 i 小节的副本。
func (b *Backend) Measure(i int) (*score.Measure, error) {
	if i < 0 || i >= len(b.measures) {
		return nil, fmt.Errorf("小节编号 %d 超出范围 [0, %d)", i, len(b.measures))
	}
	return b.measures[i].Clone(), nil
}

// Metadata 返回 work-title（或 movement-title）与作曲者。
func (b *Backend) Metadata() score.Metadata { return b.meta }

func text(n *xmlquery.Node) string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.InnerText())
}

func intText(n *xmlquery.Node, def int) int {
	if n == nil {
		return def
	}
	v, err := strconv.Atoi(strings.TrimSpace(n.InnerText()))
	if err != nil {
		return def
	}
	return v
}
