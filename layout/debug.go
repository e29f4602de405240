package layout

import (
	"encoding/json"
	"os"
)

// MarshalDebugJSON 将排版结果编码为缩进 JSON。
func MarshalDebugJSON(res *Layout) ([]byte, error) {
	return json.MarshalIndent(res, "", "  ")
}

// WriteDebugJSON 将排版结果输出为 JSON，便于调试或可视化。
func WriteDebugJSON(res *Layout, path string) error {
	if res == nil {
		return nil
	}
	data, err := MarshalDebugJSON(res)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
