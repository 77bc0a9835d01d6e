package processor

import (
	"sort"

	"go.uber.org/zap"
)

// 行级丢弃原因
const (
	ReasonMissingField      = "missing_mandatory_field"
	ReasonOutOfRange        = "out_of_range"
	ReasonCancelledDiverted = "cancelled_or_diverted"
	ReasonCarrierFiltered   = "carrier_filtered"
	ReasonExcludedYear      = "excluded_year"
	ReasonMalformedDatetime = "malformed_datetime"
	ReasonNoWeatherMatch    = "no_weather_match"
)

// StageReport 每个阶段的行数统计
type StageReport struct {
	Stage   string
	RowsIn  int
	RowsOut int
	Dropped map[string]int
}

func newReport(stage string, rowsIn int) *StageReport {
	return &StageReport{Stage: stage, RowsIn: rowsIn, Dropped: make(map[string]int)}
}

func (r *StageReport) drop(reason string) {
	r.Dropped[reason]++
}

func (r *StageReport) merge(counts map[string]int) {
	for k, v := range counts {
		r.Dropped[k] += v
	}
}

// TotalDropped 各原因丢弃数之和
func (r *StageReport) TotalDropped() int {
	n := 0
	for _, v := range r.Dropped {
		n += v
	}
	return n
}

// DominantReason 丢弃最多的原因，数量相同取字典序最小；无丢弃返回空串
func (r *StageReport) DominantReason() string {
	reasons := make([]string, 0, len(r.Dropped))
	for k, v := range r.Dropped {
		if v > 0 {
			reasons = append(reasons, k)
		}
	}
	if len(reasons) == 0 {
		return ""
	}
	sort.Slice(reasons, func(i, j int) bool {
		a, b := r.Dropped[reasons[i]], r.Dropped[reasons[j]]
		if a != b {
			return a > b
		}
		return reasons[i] < reasons[j]
	})
	return reasons[0]
}

// Fields 日志字段
func (r *StageReport) Fields() []zap.Field {
	return []zap.Field{
		zap.String("stage", r.Stage),
		zap.Int("rows_in", r.RowsIn),
		zap.Int("rows_out", r.RowsOut),
		zap.Int("rows_dropped", r.TotalDropped()),
		zap.String("dominant_reason", r.DominantReason()),
		zap.Any("dropped", r.Dropped),
	}
}
