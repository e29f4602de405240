package canvasrenderer

import (
	"bytes"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"
	"github.com/tdewolff/canvas/renderers/svg"

	"github.com/ByLCY/cantus/binding"
	"github.com/ByLCY/cantus/errors"
	"github.com/ByLCY/cantus/layout"
	"github.com/ByLCY/cantus/renderer"
	"github.com/ByLCY/cantus/score"
)

// Format 选择输出格式。
type Format string

const (
	FormatPDF Format = "pdf"
	FormatSVG Format = "svg"
)

// ParseFormat 解析输出格式名称，不区分大小写。
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPDF, FormatSVG:
		return f, nil
	case "":
		return FormatPDF, nil
	}
	return "", errors.New(errors.ErrCodeInvalidArgument, "不支持的输出格式 %q", s)
}

// 页面版式（排版单位）。
const (
	pageMargin   = 20.0
	blockGap     = 10.0
	headerHeight = 60.0
	titleSize    = 24.0
	composerSize = 12.0
	creator      = "cantus"
)

// Options 配置 canvas 渲染器。
type Options struct {
	Width      float64 // 行宽（排版单位），<=0 时使用 layout.DefaultLineWidth
	Scale      float64 // 每个排版单位对应的毫米数，<=0 时使用 layout.DefaultUnitScale
	Format     Format
	HideHeader bool // 不绘制标题与作曲者
	Data       any  // 标题中 ${path} 占位符的取值来源
	Logger     *log.Logger
}

// Renderer 通过 github.com/tdewolff/canvas 排版并输出乐谱。
type Renderer struct {
	opts   Options
	engine *Engine
	fonts  *fontSet
	logger *log.Logger
}

var _ renderer.Renderer = (*Renderer)(nil)

// NewRenderer 创建渲染器，零值选项输出 PDF。
func NewRenderer(opts Options) *Renderer {
	if opts.Scale <= 0 {
		opts.Scale = layout.DefaultUnitScale
	}
	if opts.Width <= 0 {
		opts.Width = layout.DefaultLineWidth
	}
	if opts.Format == "" {
		opts.Format = FormatPDF
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Renderer{
		opts:   opts,
		engine: NewEngine(),
		fonts:  newFontSet(),
		logger: logger,
	}
}

// Engine 返回渲染器使用的排版引擎。
func (r *Renderer) Engine() *Engine { return r.engine }

func (r *Renderer) formatter(doc *layout.Document) (layout.BlockFormatter, error) {
	if doc == nil {
		return nil, errors.New(errors.ErrCodeInvalidArgument, "文档为空")
	}
	f, err := doc.Formatter(layout.FormatterLiquid, layout.FormatterOptions{
		Engine: r.engine,
		Logger: r.logger,
	})
	if err != nil {
		return nil, err
	}
	return f.SetWidth(r.opts.Width), nil
}

// Layout 只计算行块与小节几何，不输出文件。
func (r *Renderer) Layout(doc *layout.Document) (*layout.Layout, error) {
	f, err := r.formatter(doc)
	if err != nil {
		return nil, err
	}
	return f.Layout()
}

// Render 将全部行块自上而下排在一张画布上，并按 Options.Format 输出。
func (r *Renderer) Render(doc *layout.Document) ([]byte, error) {
	f, err := r.formatter(doc)
	if err != nil {
		return nil, err
	}
	blocks, err := f.Blocks()
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, errors.New(errors.ErrCodeRender, "文档没有可渲染的小节")
	}

	meta := binding.Metadata(doc.Metadata(), r.opts.Data)
	header := 0.0
	if !r.opts.HideHeader && (meta.Title != "" || meta.Composer != "") {
		header = headerHeight
	}
	width, height := 0.0, header
	for i, b := range blocks {
		width = max(width, b.Width)
		if i > 0 {
			height += blockGap
		}
		height += b.Height
	}
	s := r.opts.Scale
	pageW, pageH := (width+2*pageMargin)*s, (height+2*pageMargin)*s

	c := canvas.New(pageW, pageH)
	ctx := canvas.NewContext(c)
	ctx.SetCoordSystem(canvas.CartesianIV) // 使坐标与排版保持左上角为原点
	ctx.SetFillColor(canvas.White)
	ctx.DrawPath(0, 0, canvas.Rectangle(pageW, pageH))

	if header > 0 {
		surf := r.surface(ctx, pageMargin, pageMargin, width, header)
		if err := drawHeader(surf, meta); err != nil {
			return nil, err
		}
	}
	y := pageMargin + header
	for _, b := range blocks {
		surf := r.surface(ctx, pageMargin, y, b.Width, b.Height)
		if err := f.DrawBlock(b.Index, surf); err != nil {
			return nil, err
		}
		y += b.Height + blockGap
	}
	r.logger.Debug("乐谱已绘制", "blocks", len(blocks), "width_mm", pageW, "height_mm", pageH)
	return r.write(c, pageW, pageH, meta)
}

func (r *Renderer) surface(ctx *canvas.Context, x0, y0, w, h float64) *Surface {
	return &Surface{
		ctx:    ctx,
		fonts:  r.fonts,
		scale:  r.opts.Scale,
		x0:     x0,
		y0:     y0,
		width:  w,
		height: h,
		ink:    canvas.Black,
	}
}

func drawHeader(surf *Surface, meta score.Metadata) error {
	w, _ := surf.Size()
	if meta.Title != "" {
		if err := surf.Text(w/2, titleSize+5, titleSize, meta.Title, styleBold, canvas.Center); err != nil {
			return err
		}
	}
	if meta.Composer != "" {
		if err := surf.Text(w, headerHeight-10, composerSize, meta.Composer, styleItalic, canvas.Right); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) write(c *canvas.Canvas, w, h float64, meta score.Metadata) ([]byte, error) {
	var buf bytes.Buffer
	switch r.opts.Format {
	case FormatSVG:
		writer := svg.New(&buf, w, h, nil)
		c.RenderTo(writer)
		if err := writer.Close(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeRender, err, "写入 SVG 失败")
		}
	case FormatPDF:
		writer := pdf.New(&buf, w, h, nil)
		writer.SetInfo(meta.Title, "", "", meta.Composer, creator)
		c.RenderTo(writer)
		if err := writer.Close(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeRender, err, "写入 PDF 失败")
		}
	default:
		return nil, errors.New(errors.ErrCodeInvalidArgument, "不支持的输出格式 %q", r.opts.Format)
	}
	return buf.Bytes(), nil
}
