package processor

import (
	"FlightDelayDataset/src/config"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// PhenomenonDecoder 从 METAR 报文中提取天气现象，如 "-SHRA" -> showers_light_rain
type PhenomenonDecoder struct {
	pattern     *regexp.Regexp
	codes       map[string]string
	intensities map[string]string
}

// NewPhenomenonDecoder 由代码表构造；报文按 强度? 描述符? 两字母现象 切分
func NewPhenomenonDecoder(dcfg *config.DataConfig) (*PhenomenonDecoder, error) {
	intensities := make([]string, 0, len(dcfg.Intensities))
	for _, in := range dcfg.Intensities {
		intensities = append(intensities, regexp.QuoteMeta(in.Code))
	}
	descriptors := make([]string, 0, len(dcfg.Descriptors))
	for _, d := range dcfg.Descriptors {
		descriptors = append(descriptors, regexp.QuoteMeta(d))
	}

	expr := fmt.Sprintf(`(%s)?(%s)?([A-Z]{2})`, strings.Join(intensities, "|"), strings.Join(descriptors, "|"))
	pattern, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("天气现象表达式 %q 无效: %w", expr, err)
	}

	return &PhenomenonDecoder{
		pattern:     pattern,
		codes:       dcfg.PhenomenonTable(),
		intensities: dcfg.IntensityTable(),
	}, nil
}

// Decode 返回去重排序后的现象名称；无匹配返回 nil
func (d *PhenomenonDecoder) Decode(report string) []string {
	if report == "" {
		return nil
	}

	found := make(map[string]struct{})
	for _, m := range d.pattern.FindAllStringSubmatch(report, -1) {
		intensity, descriptor, code := m[1], m[2], m[3]
		name, ok := d.codes[code]
		if !ok {
			continue
		}
		if label, ok := d.intensities[intensity]; ok && intensity != "" {
			name = label + "_" + name
		}
		if label, ok := d.codes[descriptor]; ok && descriptor != "" {
			name = label + "_" + name
		}
		found[name] = struct{}{}
	}

	if len(found) == 0 {
		return nil
	}
	names := make([]string, 0, len(found))
	for n := range found {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
