package knowledge

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document 是索引中的一条文档：标签（栏目名或节日名）加正文。
type Document struct {
	Label string
	Text  string
}

// LoadCorpus 从 YAML 文件加载文档集。
// 文件形如 map[标签]内容，内容为字符串或字符串列表（列表按行拼接）。
// 返回的文档按标签排序，保证重建索引时文档 ID 稳定。
func LoadCorpus(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse corpus file: %w", err)
	}

	docs := make([]Document, 0, len(raw))
	for label, content := range raw {
		docs = append(docs, Document{Label: label, Text: renderContent(content)})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Label < docs[j].Label })
	return docs, nil
}

// renderContent 将 YAML 值渲染为正文。列表项逐行拼接，其余类型原样格式化。
func renderContent(content any) string {
	switch v := content.(type) {
	case []any:
		lines := make([]string, 0, len(v))
		for _, item := range v {
			lines = append(lines, fmt.Sprint(item))
		}
		return strings.Join(lines, "\n")
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
