package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/AuroraRetail/AssistantCore/knowledge"
)

// HolidayInfoName 是节日推荐工具的注册名。
const HolidayInfoName = "holiday_info_tool"

// HolidayInfoTool 按节日名检索礼品推荐。
// 相似检索只取最佳匹配：节日语料一条对应一个节日，返回多条只会干扰 LLM。
type HolidayInfoTool struct {
	index *knowledge.Index
}

// NewHolidayInfoTool 基于节日推荐索引创建工具。
func NewHolidayInfoTool(index *knowledge.Index) *HolidayInfoTool {
	return &HolidayInfoTool{index: index}
}

// Name 实现 Tool 接口。
func (t *HolidayInfoTool) Name() string { return HolidayInfoName }

// Description 实现 Tool 接口。
func (t *HolidayInfoTool) Description() string {
	return "Looks up gift recommendations for a holiday. Input is the holiday name " +
		"(e.g. 'Новий рік'); returns recommended gift categories for that holiday."
}

// Parameters 实现 Tool 接口。
func (t *HolidayInfoTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"key": {"type": "string", "description": "Holiday name to look up"}
		},
		"required": ["key"]
	}`)
}

// Terminal 实现 Tool 接口。
func (t *HolidayInfoTool) Terminal() bool { return false }

// holidayArgs 是 LLM 传入的参数结构。
type holidayArgs struct {
	Key string `json:"key"`
}

// Call 检索与 key 最接近的节日并返回其推荐内容。
func (t *HolidayInfoTool) Call(ctx context.Context, args string) (string, error) {
	var parsed holidayArgs
	if err := json.Unmarshal([]byte(args), &parsed); err != nil {
		return "", fmt.Errorf("invalid holiday lookup arguments: %w", err)
	}
	if parsed.Key == "" {
		return "No matching holiday information found.", nil
	}

	docs, err := t.index.Search(ctx, parsed.Key, 1)
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return "No matching holiday information found.", nil
	}
	return fmt.Sprintf("Information for '%s': %s", docs[0].Label, docs[0].Text), nil
}
