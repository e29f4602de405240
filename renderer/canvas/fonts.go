package canvasrenderer

import (
	"fmt"
	"image/color"
	"sync"

	"github.com/tdewolff/canvas"

	"github.com/ByLCY/cantus/fonts"
	"github.com/ByLCY/cantus/layout"
)

type textStyle int

const (
	styleRegular textStyle = iota
	styleBold
	styleItalic
)

var styleFonts = map[textStyle]struct {
	name  string
	style canvas.FontStyle
}{
	styleRegular: {fonts.Regular, canvas.FontRegular},
	styleBold:    {fonts.Bold, canvas.FontBold},
	styleItalic:  {fonts.Italic, canvas.FontItalic},
}

// fontSet 按样式缓存已加载的字体族，可在多次渲染间共享。
type fontSet struct {
	mu       sync.Mutex
	families map[textStyle]*canvas.FontFamily
}

func newFontSet() *fontSet {
	return &fontSet{families: map[textStyle]*canvas.FontFamily{}}
}

// face 返回给定样式与字号（毫米）的字体。
func (f *fontSet) face(style textStyle, sizeMM float64, col color.Color) (*canvas.FontFace, error) {
	family, err := f.family(style)
	if err != nil {
		return nil, err
	}
	return family.Face(toPt(sizeMM), col, styleFonts[style].style, canvas.FontNormal), nil
}

func (f *fontSet) family(style textStyle) (*canvas.FontFamily, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if family, ok := f.families[style]; ok {
		return family, nil
	}
	entry, ok := styleFonts[style]
	if !ok {
		return nil, fmt.Errorf("未知的文字样式 %d", style)
	}
	data, err := fonts.Load(entry.name)
	if err != nil {
		return nil, err
	}
	family := canvas.NewFontFamily(entry.name)
	if err := family.LoadFont(data, 0, entry.style); err != nil {
		return nil, fmt.Errorf("加载字体 %s 失败: %w", entry.name, err)
	}
	f.families[style] = family
	return family, nil
}

// toPt 将毫米(mm)转换为点(pt)。
func toPt(mm float64) float64 { return mm * layout.MmToPt }
