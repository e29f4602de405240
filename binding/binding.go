// Package binding 将乐曲信息中的 ${path} 占位符替换为外部 JSON 数据中的值，
// 例如标题 "Sonata No. ${opus}" 配合 {"opus": 13}。
package binding

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/ByLCY/cantus/score"
)

var placeholder = regexp.MustCompile(`\$\{([^}]+)\}`)

// Decode 读取 JSON 数据，数字保留原始写法。
func Decode(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var data any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("读取绑定数据失败: %w", err)
	}
	return data, nil
}

// Metadata 返回替换占位符之后的乐曲信息，meta 本身不会被修改。
func Metadata(meta score.Metadata, data any) score.Metadata {
	return score.Metadata{
		Title:    Interpolate(meta.Title, data),
		Composer: Interpolate(meta.Composer, data),
	}
}

// Interpolate 将文本中的 ${path.to.value} 或 ${list[0]} 替换为 data 中的值。
// data 为空或路径不存在时保留原占位符。
func Interpolate(text string, data any) string {
	if data == nil || !strings.Contains(text, "${") {
		return text
	}
	return placeholder.ReplaceAllStringFunc(text, func(match string) string {
		path := strings.TrimSpace(match[2 : len(match)-1])
		if path == "" {
			return match
		}
		if val, ok := lookup(data, path); ok {
			return fmt.Sprint(val)
		}
		return match
	})
}

func lookup(data any, path string) (any, bool) {
	current := data
	for _, segment := range strings.Split(path, ".") {
		name, indexes, ok := splitSegment(segment)
		if !ok {
			return nil, false
		}
		if name != "" {
			m, isMap := current.(map[string]any)
			if !isMap {
				return nil, false
			}
			if current, ok = m[name]; !ok {
				return nil, false
			}
		}
		for _, idx := range indexes {
			list, isList := current.([]any)
			if !isList || idx < 0 || idx >= len(list) {
				return nil, false
			}
			current = list[idx]
		}
	}
	// 对象与数组不做展开
	switch current.(type) {
	case map[string]any, []any, nil:
		return nil, false
	}
	return current, true
}

// splitSegment 拆分 "name[1][2]" 形式的路径段。
func splitSegment(segment string) (string, []int, bool) {
	i := strings.IndexByte(segment, '[')
	if i == -1 {
		return segment, nil, true
	}
	name, rest := segment[:i], segment[i:]
	var indexes []int
	for rest != "" {
		if rest[0] != '[' {
			return "", nil, false
		}
		end := strings.IndexByte(rest, ']')
		if end == -1 {
			return "", nil, false
		}
		idx, err := strconv.Atoi(rest[1:end])
		if err != nil {
			return "", nil, false
		}
		indexes = append(indexes, idx)
		rest = rest[end+1:]
	}
	return name, indexes, true
}
