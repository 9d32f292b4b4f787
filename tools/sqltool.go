package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
)

// ProductQueryName 是商品数据库查询工具的注册名。
const ProductQueryName = "sql_db_tool"

// writeQueryTemplate 指导 LLM 根据问题生成首个查询。
var writeQueryTemplate = prompts.NewPromptTemplate(`
Given an input question, create a syntactically correct {{.dialect}} query to run to help find the answer.
Unless the user specifies a specific number of examples they wish to obtain, always limit your query to at most {{.top_k}} results.
Never query for all the columns from a table, only ask for the few relevant columns given the question.
Pay attention to use only the column names that you can see in the schema description. Be careful not to query for columns that do not exist.
If a client asks for a product recommendation without a detailed description, choose a random product from the database using RANDOM.
ALWAYS write queries with the product name in noun infinitive form when searching for a specific product.
Always return ProductID.
Only generate read-only SELECT statements.

Only use the following tables:
{{.table_info}}

Recent conversation:
{{.history}}

Question: {{.question}}

Respond with a JSON object of the form {"query": "..."}.
`, []string{"dialect", "top_k", "table_info", "history", "question"})

// rephraseQueryTemplate 在空结果后指导 LLM 换一种查询方式。
var rephraseQueryTemplate = prompts.NewPromptTemplate(`
The following {{.dialect}} queries were already tried for the question below and returned no rows:
{{.attempted}}

Question: {{.question}}

Write one alternative read-only SELECT query for the same question. Try synonyms of the search term,
different letter casing (first letter capitalized, lowercase, all uppercase) or a translated form of
the product name. Do not repeat any query listed above. Always return ProductID and limit the query
to at most {{.top_k}} results.

Only use the following tables:
{{.table_info}}

Respond with a JSON object of the form {"query": "..."}.
`, []string{"dialect", "attempted", "question", "top_k", "table_info"})

// QueryStore 抽象商品库的结构化查询通道。
type QueryStore interface {
	Dialect() string
	SchemaInfo(ctx context.Context) (string, error)
	Query(ctx context.Context, query string) (result string, rows int, err error)
}

// ProductQueryConfig 控制查询生成与重试行为。
type ProductQueryConfig struct {
	TopK        int     // 单次查询的最大返回行数
	MaxAttempts int     // 空结果后的最大改写尝试次数
	Temperature float64 // 查询生成的采样温度
}

// ProductQueryTool 将自然语言问题转为 SQL 并在商品库执行。
//
// 失败处理约定：任何内部错误（连接失败、语法错误、LLM 出错）都转换为
// 描述性结果文本返回，而不向 Agent 循环抛出，保证循环总能拿到可用的工具输出。
type ProductQueryTool struct {
	llm    llms.Model
	store  QueryStore
	cfg    ProductQueryConfig
	logger *slog.Logger
}

// NewProductQueryTool 创建查询工具。
func NewProductQueryTool(llm llms.Model, store QueryStore, cfg ProductQueryConfig, logger *slog.Logger) *ProductQueryTool {
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProductQueryTool{llm: llm, store: store, cfg: cfg, logger: logger}
}

// Name 实现 Tool 接口。
func (t *ProductQueryTool) Name() string { return ProductQueryName }

// Description 实现 Tool 接口。
func (t *ProductQueryTool) Description() string {
	return "Searches the product database. Input is a natural-language question about product " +
		"availability, price, quantity or category; returns matching rows as text. " +
		"An empty result means nothing was found."
}

// Parameters 实现 Tool 接口。
func (t *ProductQueryTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"question": {"type": "string", "description": "Natural-language question about products"}
		},
		"required": ["question"]
	}`)
}

// Terminal 实现 Tool 接口。查询结果由 LLM 加工后再回复用户。
func (t *ProductQueryTool) Terminal() bool { return false }

// queryArgs 是 LLM 传入的参数结构。
type queryArgs struct {
	Question string `json:"question"`
}

// queryOutput 是查询生成调用的结构化输出。
type queryOutput struct {
	Query string `json:"query"`
}

// Call 执行完整的 生成 -> 执行 -> 空结果改写重试 流程。
func (t *ProductQueryTool) Call(ctx context.Context, args string) (string, error) {
	var parsed queryArgs
	if err := json.Unmarshal([]byte(args), &parsed); err != nil {
		return "", fmt.Errorf("invalid query arguments: %w", err)
	}
	history := ConversationFromContext(ctx)

	schema, err := t.store.SchemaInfo(ctx)
	if err != nil {
		t.logger.Warn("schema introspection failed", "error", err)
		return fmt.Sprintf("Database error: %v", err), nil
	}

	query, err := t.writeQuery(ctx, parsed.Question, history, schema)
	if err != nil {
		t.logger.Warn("query generation failed", "error", err)
		return fmt.Sprintf("Query generation error: %v", err), nil
	}

	attempted := map[string]bool{normalizeQuery(query): true}
	attemptedOrder := []string{query}

	result, rows, err := t.store.Query(ctx, query)
	if err != nil {
		t.logger.Warn("query execution failed", "query", query, "error", err)
		return fmt.Sprintf("Query error: %v", err), nil
	}
	t.logger.Info("product query executed", "query", query, "rows", rows)

	// 空结果进入有界改写重试：同义词、大小写变体、翻译形式。
	// 与已尝试查询完全相同的改写直接跳过，不消耗一次执行。
	for attempt := 1; rows == 0 && attempt <= t.cfg.MaxAttempts; attempt++ {
		alt, genErr := t.rephraseQuery(ctx, parsed.Question, schema, attemptedOrder)
		if genErr != nil {
			t.logger.Warn("query rephrase failed", "attempt", attempt, "error", genErr)
			break
		}
		if attempted[normalizeQuery(alt)] {
			t.logger.Info("skipping duplicate rephrased query", "attempt", attempt, "query", alt)
			continue
		}
		attempted[normalizeQuery(alt)] = true
		attemptedOrder = append(attemptedOrder, alt)

		result, rows, err = t.store.Query(ctx, alt)
		if err != nil {
			t.logger.Warn("query execution failed", "query", alt, "error", err)
			return fmt.Sprintf("Query error: %v", err), nil
		}
		t.logger.Info("rephrased query executed", "attempt", attempt, "query", alt, "rows", rows)
	}

	return result, nil
}

// writeQuery 让 LLM 生成首个查询，并结构化保证 ProductID 被选出。
func (t *ProductQueryTool) writeQuery(ctx context.Context, question, history, schema string) (string, error) {
	prompt, err := writeQueryTemplate.Format(map[string]any{
		"dialect":    t.store.Dialect(),
		"top_k":      t.cfg.TopK,
		"table_info": schema,
		"history":    history,
		"question":   question,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render query prompt: %w", err)
	}
	return t.generateQuery(ctx, prompt)
}

// rephraseQuery 让 LLM 在已尝试查询均为空后给出替代查询。
func (t *ProductQueryTool) rephraseQuery(ctx context.Context, question, schema string, attempted []string) (string, error) {
	prompt, err := rephraseQueryTemplate.Format(map[string]any{
		"dialect":    t.store.Dialect(),
		"attempted":  strings.Join(attempted, "\n"),
		"question":   question,
		"top_k":      t.cfg.TopK,
		"table_info": schema,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render rephrase prompt: %w", err)
	}
	return t.generateQuery(ctx, prompt)
}

// generateQuery 以 JSON 模式调用 LLM 并解析出查询文本。
func (t *ProductQueryTool) generateQuery(ctx context.Context, prompt string) (string, error) {
	resp, err := t.llm.GenerateContent(ctx,
		[]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)},
		llms.WithJSONMode(),
		llms.WithTemperature(t.cfg.Temperature),
	)
	if err != nil {
		return "", fmt.Errorf("llm generate error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from llm")
	}

	var out queryOutput
	if err := json.Unmarshal([]byte(resp.Choices[0].Content), &out); err != nil {
		return "", fmt.Errorf("malformed query output: %w", err)
	}
	query := strings.TrimSpace(out.Query)
	if query == "" {
		return "", fmt.Errorf("llm produced an empty query")
	}
	return ensureProductID(query), nil
}

// ensureProductID 保证查询投影包含商品 ID 列。
// LLM 偶尔会省略 ProductID，此处做结构化改写而不是依赖提示词。
// 只检查 SELECT 与 FROM 之间的投影段：WHERE 条件里出现 ProductID
// 不代表它被选出。
func ensureProductID(query string) string {
	upper := strings.ToUpper(query)
	idx := strings.Index(upper, "SELECT")
	if idx < 0 {
		return query
	}
	end := idx + len("SELECT")

	projection := upper[end:]
	if fromIdx := strings.Index(projection, "FROM"); fromIdx >= 0 {
		projection = projection[:fromIdx]
	}
	if strings.Contains(projection, "PRODUCTID") {
		return query
	}
	return query[:end] + " ProductID," + query[end:]
}

// normalizeQuery 将查询折叠为比较键：去除首尾空白并压缩内部空白。
// 重复判定按查询全文比较，不做语义比较。
func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
