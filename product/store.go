// Package product 封装商品库的只读访问：
// 结构化查询执行（供 SQL 工具使用）与按 ID 的展示信息查询。
package product

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3" // sqlite3 驱动
	"github.com/tmc/langchaingo/tools/sqldatabase"
	_ "github.com/tmc/langchaingo/tools/sqldatabase/sqlite3" // 注册 sqlite3 引擎
)

// Detail 是商品的展示信息。
type Detail struct {
	Title    string `json:"title"`
	URL      string `json:"website_link"`
	ImageURL string `json:"image_link"`
}

// Store 持有商品库的两个访问通道：
//   - sqldb: langchaingo 的 SQLDatabase，用于向 LLM 描述 schema（方言、建表语句、示例行）
//   - db: 原生连接，用于执行查询并感知结果行数
type Store struct {
	sqldb *sqldatabase.SQLDatabase
	db    *sql.DB
}

// NewStore 打开指定路径的 SQLite 商品库。
// 查询连接以 query_only 模式打开：前缀校验挡不住 CTE 包裹的写语句，
// 只读连接保证任何写操作都在执行时被数据库本身拒绝。
func NewStore(path string) (*Store, error) {
	sqldb, err := sqldatabase.NewSQLDatabaseWithDSN("sqlite3", path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open product database: %w", err)
	}
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_query_only=true", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open product database: %w", err)
	}
	return &Store{sqldb: sqldb, db: db}, nil
}

// Dialect 返回底层数据库方言名称（用于查询生成提示词）。
func (s *Store) Dialect() string {
	return s.sqldb.Dialect()
}

// SchemaInfo 返回所有表的结构描述（建表语句加示例行）。
func (s *Store) SchemaInfo(ctx context.Context) (string, error) {
	return s.sqldb.TableInfo(ctx, s.sqldb.TableNames())
}

// ErrMutatingQuery 表示查询包含写操作，商品库按策略只读。
var ErrMutatingQuery = fmt.Errorf("mutating statements are not permitted")

// Query 执行只读查询，返回制表符分隔的结果文本与行数。
// 行数为 0 表示合法的空结果，调用方据此触发重试策略。
func (s *Store) Query(ctx context.Context, query string) (string, int, error) {
	if !isReadOnly(query) {
		return "", 0, ErrMutatingQuery
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return "", 0, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", 0, fmt.Errorf("query failed: %w", err)
	}

	var b strings.Builder
	b.WriteString(strings.Join(cols, "\t"))

	count := 0
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return "", count, fmt.Errorf("scan failed: %w", err)
		}
		fields := make([]string, len(cols))
		for i, v := range values {
			fields[i] = formatValue(v)
		}
		b.WriteString("\n")
		b.WriteString(strings.Join(fields, "\t"))
		count++
	}
	if err := rows.Err(); err != nil {
		return "", count, fmt.Errorf("query failed: %w", err)
	}

	if count == 0 {
		return "", 0, nil
	}
	return b.String(), count, nil
}

// LookupDetails 批量查询商品展示信息。
// 库中不存在的 ID 直接从结果中省略，不作为错误处理。
func (s *Store) LookupDetails(ctx context.Context, ids []string) (map[string]Detail, error) {
	out := make(map[string]Detail, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(
		"SELECT ProductID, ProductTitle, ProductURL, ProductImage FROM StockTable WHERE ProductID IN (%s)",
		strings.Join(placeholders, ", "),
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("detail lookup failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, title, url, image string
		if err := rows.Scan(&id, &title, &url, &image); err != nil {
			return nil, fmt.Errorf("detail lookup failed: %w", err)
		}
		out[id] = Detail{Title: title, URL: url, ImageURL: image}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("detail lookup failed: %w", err)
	}
	return out, nil
}

// Close 释放底层连接。
func (s *Store) Close() error {
	s.sqldb.Close()
	return s.db.Close()
}

// isReadOnly 粗粒度校验查询为只读语句，给出明确的拒绝错误。
// CTE 包裹的写语句能通过该前缀校验，由只读连接在执行时兜底拒绝。
func isReadOnly(query string) bool {
	q := strings.ToUpper(strings.TrimSpace(query))
	return strings.HasPrefix(q, "SELECT") || strings.HasPrefix(q, "WITH")
}

// formatValue 将扫描出的任意值转为文本。
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}
