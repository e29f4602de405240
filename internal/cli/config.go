package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/ByLCY/cantus/errors"
	"github.com/ByLCY/cantus/layout"
	canvasrenderer "github.com/ByLCY/cantus/renderer/canvas"
)

// formatJSON 输出排版结果 JSON，而不是绘制乐谱。
const formatJSON = "json"

// config 是 --config 指向的 toml 文件，命令行参数优先于文件中的值：
//
//	width  = "180mm"  # 或排版单位数字，例如 720
//	scale  = 0.25     # 每个排版单位的毫米数
//	format = "svg"    # pdf | svg | json
//	out    = "build"
//	title  = false
type config struct {
	Width  length  `toml:"width"`
	Scale  float64 `toml:"scale"`
	Format string  `toml:"format"`
	Out    string  `toml:"out"`
	Title  *bool   `toml:"title"`
}

func defaultConfig() config {
	return config{
		Scale:  layout.DefaultUnitScale,
		Format: string(canvasrenderer.FormatPDF),
		Out:    ".",
	}
}

// length 允许 width 写成数字或带单位的字符串。
type length struct {
	layout.Length
}

func (l *length) UnmarshalTOML(v any) error {
	switch x := v.(type) {
	case int64:
		l.Length = layout.Length{Value: float64(x)}
	case float64:
		l.Length = layout.Length{Value: x}
	case string:
		return l.Set(x)
	default:
		return fmt.Errorf("width 必须是数字或长度字符串，得到 %T", v)
	}
	return nil
}

// Set 解析 "180mm"、"7in" 或 "500" 形式的长度。
func (l *length) Set(s string) error {
	parsed, err := layout.ParseLength(s)
	if err != nil {
		return fmt.Errorf("无法解析长度 %q", s)
	}
	if parsed.Value < 0 {
		return fmt.Errorf("长度 %q 不能为负", s)
	}
	l.Length = parsed
	return nil
}

func (l *length) String() string {
	if l.IsZero() {
		return ""
	}
	return fmt.Sprintf("%g%s", l.Value, layout.UnitToString(l.Unit))
}

func (l *length) Type() string { return "length" }

// loadConfig 读取 toml 配置，未出现的键保留默认值。
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(errors.ErrCodeConfig, err, "读取配置 %s 失败", path)
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, errors.Wrap(errors.ErrCodeConfig, err, "解析配置 %s 失败", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, errors.New(errors.ErrCodeConfig, "配置 %s 含有未知的键: %s", path, strings.Join(keys, ", "))
	}
	return cfg, cfg.validate()
}

func (c config) validate() error {
	if c.Scale <= 0 {
		return errors.New(errors.ErrCodeConfig, "scale 必须为正数，得到 %g", c.Scale)
	}
	switch strings.ToLower(c.Format) {
	case string(canvasrenderer.FormatPDF), string(canvasrenderer.FormatSVG), formatJSON:
	default:
		return errors.New(errors.ErrCodeConfig, "不支持的输出格式 %q（可选 pdf、svg、json）", c.Format)
	}
	return nil
}

// lineWidth 返回排版单位下的行宽，未设置时为 0（使用默认行宽）。
func (c config) lineWidth() float64 {
	if c.Width.IsZero() {
		return 0
	}
	return c.Width.ToUnits(c.Scale)
}

func (c config) showTitle() bool { return c.Title == nil || *c.Title }
