package layout

import "github.com/charmbracelet/log"

// DefaultLineWidth 是流式排版的默认行宽。
const DefaultLineWidth = 500.0

// DocumentOptions 控制文档构建。
type DocumentOptions struct {
	Backend BackendKind // 非 BackendAuto 时只尝试该后端
	Logger  *log.Logger
}

// FormatterKind 选择排版策略。
type FormatterKind int

const (
	FormatterLiquid FormatterKind = iota // 按行宽贪心分行（默认）
)

// FormatterOptions 配置排版阶段所需的依赖，例如渲染引擎。
type FormatterOptions struct {
	Engine Engine
	Width  float64 // 行宽，<=0 时使用 DefaultLineWidth
	Logger *log.Logger
}

func defaultFormatterOptions() FormatterOptions {
	return FormatterOptions{
		Width:  DefaultLineWidth,
		Logger: log.Default(),
	}
}

// merge 将 o 中显式设置的字段浅合并到 base 之上。
func (o FormatterOptions) merge(base FormatterOptions) FormatterOptions {
	if o.Engine != nil {
		base.Engine = o.Engine
	}
	if o.Width > 0 {
		base.Width = o.Width
	}
	if o.Logger != nil {
		base.Logger = o.Logger
	}
	return base
}

func loggerOr(l *log.Logger) *log.Logger {
	if l != nil {
		return l
	}
	return log.Default()
}
