package processor

import (
	"sort"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// EncodeResult 输出表及编码统计
type EncodeResult struct {
	Table           dataframe.DataFrame
	Report          *StageReport
	UnseenCarriers  int // 固定词表模式下归入 carrier_other 的行数
	UnseenPhenomena int // 固定词表中不存在而被忽略的现象次数
}

// Encoder 把 FeatureRow 展开成固定列顺序的表
type Encoder struct {
	cfg SynthesisConfig
}

func NewEncoder(cfg SynthesisConfig) *Encoder {
	return &Encoder{cfg: cfg}
}

// oneHotGroup 一个类别列及其全部取值
type oneHotGroup struct {
	prefix     string
	categories []string
	value      func(FeatureRow) string
}

func intCategories(lo, hi int) []string {
	out := make([]string, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, strconv.Itoa(i))
	}
	return out
}

// groups 列组顺序即输出顺序
func (e *Encoder) groups(carriers []string) []oneHotGroup {
	return []oneHotGroup{
		{"month", intCategories(1, 12), func(r FeatureRow) string { return strconv.Itoa(r.Flight.Month) }},
		{"day_of_week", intCategories(1, 7), func(r FeatureRow) string { return strconv.Itoa(r.Flight.DayOfWeek) }},
		{"carrier", carriers, func(r FeatureRow) string { return r.Flight.Carrier }},
		{"departure_bin", e.cfg.TimeOfDay.Categories(false), func(r FeatureRow) string { return r.DepartureBin }},
		{"day_period", e.cfg.PartOfMonth.Categories(false), func(r FeatureRow) string { return r.DayPeriod }},
		{"season", SeasonCategories(), func(r FeatureRow) string { return r.Season }},
		{"wind_speed_category", e.cfg.Bins.WindSpeed.Categories(true), func(r FeatureRow) string { return r.WindCategory }},
		{"visibility_category", e.cfg.Bins.Visibility.Categories(true), func(r FeatureRow) string { return r.VisibilityCat }},
		{"precipitation_category", e.cfg.Bins.Precipitation.Categories(true), func(r FeatureRow) string { return r.PrecipitationCat }},
		{"pressure_category", e.cfg.Bins.Pressure.Categories(true), func(r FeatureRow) string { return r.PressureCategory }},
	}
}

// SortRows 按离港时刻排序，相同时刻按原始行号
func SortRows(rows []FeatureRow) []FeatureRow {
	sorted := make([]FeatureRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.Departure.Equal(b.Departure) {
			return a.Departure.Before(b.Departure)
		}
		return a.Flight.Index < b.Flight.Index
	})
	return sorted
}

// Encode 第二阶段：按词表生成固定列。fixed 为 true 时词表不可扩展，
// 未见过的承运人写入 carrier_other，未见过的现象被忽略。
func (e *Encoder) Encode(rows []FeatureRow, vocab Vocabulary, fixed bool) EncodeResult {
	rows = SortRows(rows)
	n := len(rows)
	res := EncodeResult{Report: newReport("encode", n)}

	carriers := append([]string{}, vocab.Carriers...)
	knownCarrier := make(map[string]bool, len(carriers))
	for _, c := range carriers {
		knownCarrier[c] = true
	}
	if fixed {
		carriers = append(carriers, OtherCategory)
		for i := range rows {
			if !knownCarrier[rows[i].Flight.Carrier] {
				rows[i].Flight.Carrier = OtherCategory
				res.UnseenCarriers++
			}
		}
	}

	cols := make([]series.Series, 0, 64)

	labels := make([]string, n)
	depMin := make([]int, n)
	for i, r := range rows {
		labels[i] = r.Label
		depMin[i] = r.DepMin
	}
	cols = append(cols,
		series.New(labels, series.String, "label"),
		series.New(depMin, series.Int, "dep_min"),
	)

	floatCols := []struct {
		name  string
		value func(FeatureRow) float64
	}{
		{"dep_sin", func(r FeatureRow) float64 { return r.DepSin }},
		{"dep_cos", func(r FeatureRow) float64 { return r.DepCos }},
		{"doy_sin", func(r FeatureRow) float64 { return r.DoySin }},
		{"doy_cos", func(r FeatureRow) float64 { return r.DoyCos }},
		{"scheduled_elapsed_time", func(r FeatureRow) float64 { return r.Flight.ScheduledElapsed }},
		{"temperature", func(r FeatureRow) float64 { return r.Weather.Temperature }},
		{"wind_direction", func(r FeatureRow) float64 { return r.Weather.WindDirection }},
		{"wind_speed", func(r FeatureRow) float64 { return r.Weather.WindSpeed }},
		{"altimeter", func(r FeatureRow) float64 { return r.Weather.Altimeter }},
		{"pressure", func(r FeatureRow) float64 { return r.Weather.Pressure }},
		{"precipitation", func(r FeatureRow) float64 { return r.Weather.Precipitation }},
		{"visibility", func(r FeatureRow) float64 { return r.Weather.Visibility }},
		{"cloud_height", func(r FeatureRow) float64 { return r.Weather.CloudHeight }},
		{"crosswind_component", func(r FeatureRow) float64 { return r.Crosswind }},
		{"ceiling_height", func(r FeatureRow) float64 { return r.Ceiling }},
		{"cloud_coverage_score", func(r FeatureRow) float64 { return r.CloudScore }},
	}
	for _, fc := range floatCols {
		values := make([]float64, n)
		for i, r := range rows {
			values[i] = fc.value(r)
		}
		cols = append(cols, series.New(values, series.Float, fc.name))
	}

	boolCols := []struct {
		name  string
		value func(FeatureRow) bool
	}{
		{"freezing_conditions", func(r FeatureRow) bool { return r.Freezing }},
		{"ifr_conditions", func(r FeatureRow) bool { return r.IFR }},
		{"mvfr_conditions", func(r FeatureRow) bool { return r.MVFR }},
		{"has_precipitation", func(r FeatureRow) bool { return r.HasPrecip }},
		{"low_pressure", func(r FeatureRow) bool { return r.LowPressure }},
		{"is_holiday_or_weekend", func(r FeatureRow) bool { return r.HolidayOrWeekend }},
	}
	for _, bc := range boolCols {
		values := make([]bool, n)
		for i, r := range rows {
			values[i] = bc.value(r)
		}
		cols = append(cols, series.New(values, series.Bool, bc.name))
	}

	for _, g := range e.groups(carriers) {
		cols = append(cols, oneHot(g, rows)...)
	}

	known := make(map[string]bool, len(vocab.Phenomena))
	for _, p := range vocab.Phenomena {
		known[p] = true
	}
	presence := make(map[string][]bool, len(vocab.Phenomena))
	for _, p := range vocab.Phenomena {
		presence[p] = make([]bool, n)
	}
	for i, r := range rows {
		for _, p := range r.Phenomena {
			if !known[p] {
				res.UnseenPhenomena++
				continue
			}
			presence[p][i] = true
		}
	}
	for _, p := range vocab.Phenomena {
		cols = append(cols, series.New(presence[p], series.Bool, "weather_"+p))
	}

	res.Table = dataframe.New(cols...)
	res.Report.RowsOut = n
	return res
}

// oneHot 每个类别一列，每行恰有一列为 true
func oneHot(g oneHotGroup, rows []FeatureRow) []series.Series {
	index := make(map[string]int, len(g.categories))
	values := make([][]bool, len(g.categories))
	for i, c := range g.categories {
		index[c] = i
		values[i] = make([]bool, len(rows))
	}
	for i, r := range rows {
		if k, ok := index[g.value(r)]; ok {
			values[k][i] = true
		}
	}

	out := make([]series.Series, len(g.categories))
	for i, c := range g.categories {
		out[i] = series.New(values[i], series.Bool, g.prefix+"_"+c)
	}
	return out
}
