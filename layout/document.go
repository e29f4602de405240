package layout

import (
	"github.com/charmbracelet/log"

	"github.com/ByLCY/cantus/errors"
	"github.com/ByLCY/cantus/score"
)

// Document 是由后端生成的小节容器，小节在首次访问时才会实例化并缓存。
type Document struct {
	kind     BackendKind
	backend  Backend
	measures map[int]*score.Measure
	logger   *log.Logger
}

// NewDocument 根据数据选择后端并解析。
// opts.Backend 强制指定后端；否则按 DefaultBackends 顺序选择第一个接受数据的后端。
func NewDocument(data any, opts DocumentOptions) (*Document, error) {
	if data == nil {
		return nil, errors.New(errors.ErrCodeInvalidArgument, "文档数据为空")
	}
	kinds := DefaultBackends()
	if opts.Backend != BackendAuto {
		kinds = []BackendKind{opts.Backend}
	}
	logger := loggerOr(opts.Logger)

	for _, kind := range kinds {
		backend, err := newBackend(kind)
		if err != nil {
			return nil, err
		}
		if !backend.Sniff(data) {
			continue
		}
		if err := backend.Parse(data); err != nil {
			return nil, errors.Wrap(errors.ErrCodeParse, err, "无法解析文档数据（%s）", kind)
		}
		if !backend.Valid() {
			return nil, errors.New(errors.ErrCodeParse, "无法解析文档数据（%s）", kind)
		}
		logger.Debug("已选择后端", "backend", kind, "measures", backend.NumMeasures())
		return &Document{
			kind:     kind,
			backend:  backend,
			measures: map[int]*score.Measure{},
			logger:   logger,
		}, nil
	}
	return nil, errors.Wrap(errors.ErrCodeParse,
		errors.New(errors.ErrCodeInvalidArgument, "没有后端接受该数据"),
		"不支持的文档数据")
}

// Backend 返回实际使用的后端类型。
func (d *Document) Backend() BackendKind { return d.kind }

// NumMeasures 返回文档中的小节总数。
func (d *Document) NumMeasures() int { return d.backend.NumMeasures() }

// Measure 返回第 i 小节（从 0 开始）。首次访问后缓存，之后总是返回同一实例。
func (d *Document) Measure(i int) (*score.Measure, error) {
	if m, ok := d.measures[i]; ok {
		return m, nil
	}
	m, err := d.backend.Measure(i)
	if err != nil {
		return nil, err
	}
	d.measures[i] = m
	return m, nil
}

// Metadata 返回后端提供的乐曲信息，后端不支持时为空。
func (d *Document) Metadata() score.Metadata {
	if p, ok := d.backend.(MetadataProvider); ok {
		return p.Metadata()
	}
	return score.Metadata{}
}

// Copy 通过 IR 后端复制文档，副本拥有独立的小节缓存。
func (d *Document) Copy() (*Document, error) {
	return NewDocument(d, DocumentOptions{Backend: BackendIR, Logger: d.logger})
}

// Formatter 基于文档副本创建排版器（排版时可能为谱表添加谱号等修饰）。
// 返回的流式排版器可通过 SetWidth 链式调整行宽。
func (d *Document) Formatter(kind FormatterKind, opts FormatterOptions) (*LiquidFormatter, error) {
	doc, err := d.Copy()
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = d.logger
	}
	if kind != FormatterLiquid {
		d.logger.Warn("未知的排版策略，改用流式排版", "kind", int(kind))
	}
	return NewLiquidFormatter(doc, opts)
}
