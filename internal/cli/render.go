package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/ByLCY/cantus/binding"
	"github.com/ByLCY/cantus/errors"
	"github.com/ByLCY/cantus/layout"
	canvasrenderer "github.com/ByLCY/cantus/renderer/canvas"
)

// renderOpts 保存 render 命令的参数，只有显式给出的参数会覆盖配置文件。
type renderOpts struct {
	config  string
	data    string
	width   length
	scale   float64
	format  string
	out     string
	noTitle bool
}

func newRenderCmd() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render <pattern>...",
		Short: "将乐谱渲染为 PDF、SVG 或排版 JSON",
		Long: `render 支持 doublestar 通配符（例如 "scores/**/*.xml"），每个输入生成 <out>/<名称>.<format>。
输入可以是 MusicXML（score-partwise）、结构化 JSON（{"type": "document"}）或文本乐谱记法。`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			return runRender(cmd.Context(), args, cfg, opts.data)
		},
	}

	cmd.Flags().StringVarP(&opts.config, "config", "c", "", "toml 配置文件")
	cmd.Flags().StringVar(&opts.data, "data", "", "用于替换标题中 ${path} 的 JSON 文件")
	cmd.Flags().Var(&opts.width, "width", `行宽，排版单位数字或长度（例如 "180mm"）`)
	cmd.Flags().Float64Var(&opts.scale, "scale", layout.DefaultUnitScale, "每个排版单位的毫米数")
	cmd.Flags().StringVarP(&opts.format, "format", "f", string(canvasrenderer.FormatPDF), "输出格式: pdf, svg, json")
	cmd.Flags().StringVarP(&opts.out, "out", "o", ".", "输出目录")
	cmd.Flags().BoolVar(&opts.noTitle, "no-title", false, "不绘制标题与作曲者")
	return cmd
}

// resolve 合并默认值、配置文件与显式给出的命令行参数。
func (o *renderOpts) resolve(cmd *cobra.Command) (config, error) {
	cfg := defaultConfig()
	if o.config != "" {
		loaded, err := loadConfig(o.config)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	flags := cmd.Flags()
	if flags.Changed("width") {
		cfg.Width = o.width
	}
	if flags.Changed("scale") {
		cfg.Scale = o.scale
	}
	if flags.Changed("format") {
		cfg.Format = o.format
	}
	if flags.Changed("out") {
		cfg.Out = o.out
	}
	if flags.Changed("no-title") {
		show := !o.noTitle
		cfg.Title = &show
	}
	cfg.Format = strings.ToLower(cfg.Format)
	return cfg, cfg.validate()
}

// expandInputs 展开通配符，保持参数顺序并去重。没有通配符的参数原样保留。
func expandInputs(patterns []string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	for _, pattern := range patterns {
		matches := []string{pattern}
		if strings.ContainsAny(pattern, "*?[{") {
			var err error
			matches, err = doublestar.FilepathGlob(pattern)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidArgument, err, "无效的通配符 %q", pattern)
			}
			if len(matches) == 0 {
				return nil, errors.New(errors.ErrCodeInvalidArgument, "%q 没有匹配的文件", pattern)
			}
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out, nil
}

func loadBindingData(path string) (any, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidArgument, err, "读取 %s 失败", path)
	}
	defer f.Close()
	data, err := binding.Decode(f)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidArgument, err, "解析 %s 失败", path)
	}
	return data, nil
}

// openDocument 读取文件并按内容自动选择后端。
func openDocument(ctx context.Context, path string) (*layout.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidArgument, err, "读取 %s 失败", path)
	}
	doc, err := layout.NewDocument(data, layout.DocumentOptions{Logger: loggerFromContext(ctx)})
	if err != nil {
		return nil, errors.Wrap(errors.GetCode(err), err, "无法打开 %s", path)
	}
	return doc, nil
}

func outputPath(dir, input, format string) string {
	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(dir, name+"."+format)
}

func runRender(ctx context.Context, patterns []string, cfg config, dataPath string) error {
	logger := loggerFromContext(ctx)
	inputs, err := expandInputs(patterns)
	if err != nil {
		return err
	}
	data, err := loadBindingData(dataPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Out, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeConfig, err, "无法创建输出目录 %s", cfg.Out)
	}

	opts := canvasrenderer.Options{
		Width:      cfg.lineWidth(),
		Scale:      cfg.Scale,
		HideHeader: !cfg.showTitle(),
		Data:       data,
		Logger:     logger,
	}
	if cfg.Format != formatJSON {
		opts.Format = canvasrenderer.Format(cfg.Format)
	}
	r := canvasrenderer.NewRenderer(opts)

	for _, input := range inputs {
		prog := newProgress(logger)
		doc, err := openDocument(ctx, input)
		if err != nil {
			return err
		}
		var out []byte
		if cfg.Format == formatJSON {
			res, err := r.Layout(doc)
			if err != nil {
				return err
			}
			out, err = layout.MarshalDebugJSON(res)
			if err != nil {
				return errors.Wrap(errors.ErrCodeRender, err, "编码排版结果失败")
			}
		} else if out, err = r.Render(doc); err != nil {
			return err
		}
		path := outputPath(cfg.Out, input, cfg.Format)
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return errors.Wrap(errors.ErrCodeRender, err, "写入 %s 失败", path)
		}
		prog.done("已生成", "input", input, "output", path, "measures", doc.NumMeasures())
	}
	return nil
}
