package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AuroraRetail/AssistantCore/knowledge"
)

// ShopInfoName 是店铺信息工具的注册名。
const ShopInfoName = "shop_info_tool"

// ShopInfoTool 返回店铺的全部背景资料。
// 语料很小且希望 LLM 获得完整上下文，所以不做相似度过滤，整体返回。
type ShopInfoTool struct {
	index *knowledge.Index
}

// NewShopInfoTool 基于店铺资料索引创建工具。
func NewShopInfoTool(index *knowledge.Index) *ShopInfoTool {
	return &ShopInfoTool{index: index}
}

// Name 实现 Tool 接口。
func (t *ShopInfoTool) Name() string { return ShopInfoName }

// Description 实现 Tool 接口。
func (t *ShopInfoTool) Description() string {
	return "Returns general information about the Aurora store: address, opening hours, " +
		"delivery, payment and return policy. Use when the customer asks about the shop itself."
}

// Parameters 实现 Tool 接口。该工具无参数。
func (t *ShopInfoTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}

// Terminal 实现 Tool 接口。结果仍需 LLM 组织成回答。
func (t *ShopInfoTool) Terminal() bool { return false }

// Call 拼接并返回全部店铺资料。
func (t *ShopInfoTool) Call(ctx context.Context, args string) (string, error) {
	docs := t.index.Documents()
	if len(docs) == 0 {
		return "No shop information available.", nil
	}

	sections := make([]string, 0, len(docs))
	for _, doc := range docs {
		sections = append(sections, fmt.Sprintf("**%s**\n%s", doc.Label, doc.Text))
	}
	return strings.Join(sections, "\n\n"), nil
}
