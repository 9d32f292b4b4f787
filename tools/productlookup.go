package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/AuroraRetail/AssistantCore/product"
)

// ProductLookupName 是商品详情工具的注册名。
const ProductLookupName = "product_lookup_tool"

// DetailStore 抽象商品详情查询，便于测试替换。
type DetailStore interface {
	LookupDetails(ctx context.Context, ids []string) (map[string]product.Detail, error)
}

// ProductLookupTool 按商品 ID 查询展示信息（名称、链接、图片）。
// 这是终结工具：查询结果直接作为本轮的用户可见载荷，循环不再让 LLM 复述。
type ProductLookupTool struct {
	store DetailStore
}

// NewProductLookupTool 基于商品库创建工具。
func NewProductLookupTool(store DetailStore) *ProductLookupTool {
	return &ProductLookupTool{store: store}
}

// Name 实现 Tool 接口。
func (t *ProductLookupTool) Name() string { return ProductLookupName }

// Description 实现 Tool 接口。
func (t *ProductLookupTool) Description() string {
	return "Returns display details (title, website link, image link) for the given product IDs. " +
		"Call this as the final step when the customer should see product cards."
}

// Parameters 实现 Tool 接口。
func (t *ProductLookupTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"product_ids": {
				"type": "array",
				"items": {"type": "string"},
				"description": "Product IDs to look up"
			}
		},
		"required": ["product_ids"]
	}`)
}

// Terminal 实现 Tool 接口。详情载荷即最终回复。
func (t *ProductLookupTool) Terminal() bool { return true }

// lookupArgs 是 LLM 传入的参数结构。
type lookupArgs struct {
	ProductIDs []string `json:"product_ids"`
}

// Call 查询全部 ID 并返回 id -> 详情 的 JSON 映射。
// 库中不存在的 ID 被省略，而不是生成错误条目。
func (t *ProductLookupTool) Call(ctx context.Context, args string) (string, error) {
	var parsed lookupArgs
	if err := json.Unmarshal([]byte(args), &parsed); err != nil {
		return "", fmt.Errorf("invalid product lookup arguments: %w", err)
	}

	details, err := t.store.LookupDetails(ctx, parsed.ProductIDs)
	if err != nil {
		return "", err
	}

	// 保留非 ASCII 字符（商品名多为乌克兰语），不做 HTML 转义
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(details); err != nil {
		return "", fmt.Errorf("failed to encode product details: %w", err)
	}
	return buf.String(), nil
}
