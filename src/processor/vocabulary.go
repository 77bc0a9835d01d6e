package processor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// OtherCategory 固定词表模式下未见过的承运人
const OtherCategory = "other"

// Vocabulary 由数据决定的类别集合
type Vocabulary struct {
	Carriers  []string `json:"carriers"`
	Phenomena []string `json:"phenomena"`
}

// BuildVocabulary 扫描批次得到排序后的类别集合
func BuildVocabulary(rows []FeatureRow) Vocabulary {
	carriers := make(map[string]struct{})
	phenomena := make(map[string]struct{})
	for _, r := range rows {
		carriers[r.Flight.Carrier] = struct{}{}
		for _, p := range r.Phenomena {
			phenomena[p] = struct{}{}
		}
	}
	return Vocabulary{Carriers: sortedKeys(carriers), Phenomena: sortedKeys(phenomena)}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// LoadVocabulary 文件不存在时返回 (nil, nil)
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取词表失败: %w", err)
	}
	var v Vocabulary
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("解析词表 %s 失败: %w", path, err)
	}
	v.normalize()
	return &v, nil
}

// SaveVocabulary 以缩进 JSON 写入
func SaveVocabulary(path string, v Vocabulary) error {
	v.normalize()
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("创建词表目录失败: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("写入词表失败: %w", err)
	}
	return nil
}

// normalize 去重并排序，保证列顺序与文件中的顺序无关
func (v *Vocabulary) normalize() {
	dedupe := func(in []string) []string {
		set := make(map[string]struct{}, len(in))
		for _, s := range in {
			if s != "" {
				set[s] = struct{}{}
			}
		}
		return sortedKeys(set)
	}
	v.Carriers = dedupe(v.Carriers)
	v.Phenomena = dedupe(v.Phenomena)
}
