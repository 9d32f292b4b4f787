// Package knowledge 提供店铺资料与节日推荐的语义索引。
// 索引基于 chromem-go 持久化存储，并通过源文件哈希边车决定重建还是复用。
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"

	chromem "github.com/philippgille/chromem-go"
)

// Builder 负责建立或加载持久化的语义索引。
// 索引构建应在进程启动阶段一次性完成，Index 本身在运行期只读。
type Builder struct {
	db       *chromem.DB
	indexDir string
	embed    chromem.EmbeddingFunc
	logger   *slog.Logger
}

// NewBuilder 打开（或创建）索引目录下的向量库。
// embed 为查询与入库共用的向量化函数。
func NewBuilder(indexDir string, embed chromem.EmbeddingFunc, logger *slog.Logger) (*Builder, error) {
	db, err := chromem.NewPersistentDB(indexDir, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{db: db, indexDir: indexDir, embed: embed, logger: logger}, nil
}

// Index 是一份已就绪的语义索引。
// 文档集常驻内存（语料很小），向量检索走 chromem 集合。
type Index struct {
	name string
	col  *chromem.Collection
	docs []Document
}

// Build 为指定语料建立索引。
//
// 重建判定：
//  1. 语料文件当前哈希与边车中记录的哈希不一致 -> 重建
//  2. 哈希一致但磁盘上的集合缺失或文档数不符 -> 重建
//  3. 其余情况复用已持久化的集合，不再调用向量化接口
func (b *Builder) Build(ctx context.Context, name, corpusPath string) (*Index, error) {
	docs, err := LoadCorpus(corpusPath)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("corpus %s is empty", corpusPath)
	}

	currentHash, err := fileHash(corpusPath)
	if err != nil {
		return nil, err
	}
	hashes, err := loadHashSidecar(b.indexDir)
	if err != nil {
		return nil, err
	}
	key := filepath.Base(corpusPath)

	col, err := b.db.GetOrCreateCollection(name, nil, b.embed)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %q: %w", name, err)
	}

	rebuild := hashes[key] != currentHash
	if !rebuild && col.Count() != len(docs) {
		// 哈希没变但集合不完整（例如索引目录被清理过）
		rebuild = true
	}

	if rebuild {
		b.logger.Info("rebuilding similarity index", "collection", name, "documents", len(docs))
		if col.Count() > 0 {
			if err := b.db.DeleteCollection(name); err != nil {
				return nil, fmt.Errorf("failed to reset collection %q: %w", name, err)
			}
			col, err = b.db.GetOrCreateCollection(name, nil, b.embed)
			if err != nil {
				return nil, fmt.Errorf("failed to recreate collection %q: %w", name, err)
			}
		}

		records := make([]chromem.Document, 0, len(docs))
		for i, doc := range docs {
			records = append(records, chromem.Document{
				ID:       fmt.Sprintf("%s-%03d", name, i),
				Content:  doc.Text,
				Metadata: map[string]string{"label": doc.Label},
			})
		}
		if err := col.AddDocuments(ctx, records, runtime.NumCPU()); err != nil {
			return nil, fmt.Errorf("failed to index corpus %q: %w", name, err)
		}

		hashes[key] = currentHash
		if err := saveHashSidecar(b.indexDir, hashes); err != nil {
			return nil, err
		}
	} else {
		b.logger.Info("reusing similarity index", "collection", name, "documents", col.Count())
	}

	return &Index{name: name, col: col, docs: docs}, nil
}

// Search 返回与 key 语义最接近的至多 k 篇文档，按相似度降序。
func (idx *Index) Search(ctx context.Context, key string, k int) ([]Document, error) {
	if k <= 0 {
		k = 1
	}
	if k > len(idx.docs) {
		k = len(idx.docs)
	}
	results, err := idx.col.Query(ctx, key, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	out := make([]Document, 0, len(results))
	for _, r := range results {
		out = append(out, Document{Label: r.Metadata["label"], Text: r.Content})
	}
	return out, nil
}

// Documents 返回索引内的全部文档（加载顺序）。
func (idx *Index) Documents() []Document {
	out := make([]Document, len(idx.docs))
	copy(out, idx.docs)
	return out
}

// Name 返回集合名称。
func (idx *Index) Name() string {
	return idx.name
}
