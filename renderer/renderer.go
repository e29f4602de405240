package renderer

import "github.com/ByLCY/cantus/layout"

// Renderer 将文档排版并输出为最终文件，例如 PDF 或 SVG。
// Render 返回生成的二进制数据以及可能的错误。
type Renderer interface {
	Render(doc *layout.Document) ([]byte, error)
}
