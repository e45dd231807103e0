package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"stonk_db/internal/feature/ingestion/domain/entity"
	"stonk_db/internal/feature/ingestion/usecase"
)

// FileAssetCatalog は銘柄設定ファイル（JSON または YAML）から追跡対象の銘柄を読み込みます。
// 実行のたびに読み直すため、ファイルの変更は次回の実行から反映されます。
type FileAssetCatalog struct {
	path string
}

var _ usecase.AssetCatalog = (*FileAssetCatalog)(nil)

// NewFileAssetCatalog は新しい FileAssetCatalog を作成します。
func NewFileAssetCatalog(path string) *FileAssetCatalog {
	return &FileAssetCatalog{path: path}
}

// Load はファイルを読み込み、すべての必須フィールドを検証します。
func (c *FileAssetCatalog) Load(ctx context.Context) ([]entity.AssetInfo, error) {
	b, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("read asset list: %w", err)
	}
	assets, err := ParseAssetList(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.path, err)
	}
	return assets, nil
}

// ParseAssetList は [{name, symbol, base_symbol, quote_symbol, type}, ...] を解析します。
// JSON は YAML のサブセットとして扱います。未知のフィールドは警告のみで無視します。
func ParseAssetList(b []byte) ([]entity.AssetInfo, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse asset list: %w", err)
	}
	if doc.Kind == 0 {
		return nil, fmt.Errorf("asset list is empty")
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("asset list must be a list, got line %d", root.Line)
	}

	assets := make([]entity.AssetInfo, 0, len(root.Content))
	seen := make(map[string]int, len(root.Content))
	for i, item := range root.Content {
		a, err := parseAsset(item)
		if err != nil {
			return nil, fmt.Errorf("asset #%d (line %d): %w", i+1, item.Line, err)
		}
		if prev, dup := seen[a.Symbol]; dup {
			return nil, fmt.Errorf("asset #%d (line %d): duplicate symbol %q (first at #%d)", i+1, item.Line, a.Symbol, prev)
		}
		seen[a.Symbol] = i + 1
		assets = append(assets, a)
	}
	return assets, nil
}

func parseAsset(n *yaml.Node) (entity.AssetInfo, error) {
	if n.Kind != yaml.MappingNode {
		return entity.AssetInfo{}, fmt.Errorf("expected a mapping")
	}

	var a entity.AssetInfo
	fields := map[string]*string{
		"name":         &a.Name,
		"symbol":       &a.Symbol,
		"base_symbol":  &a.BaseSymbol,
		"quote_symbol": &a.QuoteSymbol,
		"type":         &a.Type,
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i].Value, n.Content[i+1]
		dst, ok := fields[key]
		if !ok {
			slog.Warn("ignoring unknown asset field", "field", key, "line", n.Content[i].Line)
			continue
		}
		if val.Kind != yaml.ScalarNode {
			return entity.AssetInfo{}, fmt.Errorf("field %q must be a string", key)
		}
		*dst = strings.TrimSpace(val.Value)
	}

	var missing []string
	for _, k := range []string{"name", "symbol", "base_symbol", "quote_symbol", "type"} {
		if *fields[k] == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return entity.AssetInfo{}, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return a, nil
}
