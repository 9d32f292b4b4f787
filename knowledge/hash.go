package knowledge

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// hashSidecarName 是索引目录下记录源文件哈希的边车文件名。
const hashSidecarName = "file_hashes.yaml"

// fileHash 计算文件内容的 md5 十六进制摘要，用于探测源文件变化。
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for hashing: %w", err)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// loadHashSidecar 读取索引目录中的哈希表；文件不存在视为空表。
func loadHashSidecar(indexDir string) (map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(indexDir, hashSidecarName))
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read hash sidecar: %w", err)
	}

	hashes := map[string]string{}
	if err := yaml.Unmarshal(data, &hashes); err != nil {
		return nil, fmt.Errorf("failed to parse hash sidecar: %w", err)
	}
	return hashes, nil
}

// saveHashSidecar 写回哈希表。key 为源文件基础名。
func saveHashSidecar(indexDir string, hashes map[string]string) error {
	data, err := yaml.Marshal(hashes)
	if err != nil {
		return fmt.Errorf("failed to marshal hash sidecar: %w", err)
	}
	if err := os.MkdirAll(indexDir, 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(indexDir, hashSidecarName), data, 0644); err != nil {
		return fmt.Errorf("failed to write hash sidecar: %w", err)
	}
	return nil
}
