package processor

import (
	"FlightDelayDataset/src/config"
	"FlightDelayDataset/src/utils"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
)

// ErrMissingColumn 输入缺少必需列，属于配置错误
var ErrMissingColumn = errors.New("缺少必需列")

// 降水量 "T"(微量) 记为 0.001
const traceAmount = 0.001

// 无论配置如何，构造记录都离不开这些列
var (
	flightStructural  = []string{"year", "month", "day_of_month", "day_of_week", "carrier", "scheduled_departure_time", "departure_delay"}
	weatherStructural = []string{"datetime"}
)

var (
	flightIntColumns   = []string{"year", "month", "day_of_month", "day_of_week", "scheduled_departure_time"}
	flightFloatColumns = []string{"scheduled_elapsed_time", "departure_delay", "cancelled", "diverted"}
	weatherNumColumns  = []string{"temperature", "wind_direction", "wind_speed", "altimeter", "pressure", "precipitation", "visibility", "cloud_height"}
)

// Normalizer 列名规范化、类型转换与行过滤
type Normalizer struct {
	flights      config.TableSchema
	weather      config.TableSchema
	carriers     map[string]struct{}
	excludeYears map[int]struct{}
}

// NewNormalizer 根据配置构造；carriers 为空表示不过滤承运人
func NewNormalizer(cfg *config.Config, dcfg *config.DataConfig) *Normalizer {
	n := &Normalizer{
		flights:      dcfg.Flights,
		weather:      dcfg.Weather,
		carriers:     make(map[string]struct{}, len(cfg.Filters.Carriers)),
		excludeYears: make(map[int]struct{}, len(cfg.Filters.ExcludeYears)),
	}
	for _, c := range cfg.Filters.Carriers {
		n.carriers[strings.ToUpper(strings.TrimSpace(c))] = struct{}{}
	}
	for _, y := range cfg.Filters.ExcludeYears {
		n.excludeYears[y] = struct{}{}
	}
	return n
}

// canonicalize 重命名列并检查必需列，返回合并后的必需列集合
func canonicalize(df dataframe.DataFrame, schema *config.TableSchema, structural []string) (dataframe.DataFrame, []string, error) {
	if df.Err != nil {
		return df, nil, df.Err
	}

	for _, m := range schema.Columns {
		if m.Source == m.Name || !utils.HasColumn(df, m.Source) || utils.HasColumn(df, m.Name) {
			continue
		}
		df = df.Rename(m.Name, m.Source)
		if df.Err != nil {
			return df, nil, fmt.Errorf("重命名列 %s 失败: %w", m.Source, df.Err)
		}
	}

	mandatory := make([]string, 0, len(structural)+len(schema.Mandatory))
	for _, name := range append(append([]string{}, structural...), schema.Mandatory...) {
		if !utils.Contains(mandatory, name) {
			mandatory = append(mandatory, name)
		}
	}

	var missing []string
	for _, name := range mandatory {
		if !utils.HasColumn(df, name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return df, nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return df, mandatory, nil
}

// numericColumn 列不存在返回 nil；"M"、空串与无法解析的值为 NaN
func numericColumn(df dataframe.DataFrame, name string, trace bool) []float64 {
	if !utils.HasColumn(df, name) {
		return nil
	}
	records := df.Col(name).Records()
	out := make([]float64, len(records))
	for i, s := range records {
		out[i] = parseNumber(s, trace)
	}
	return out
}

func parseNumber(s string, trace bool) float64 {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || s == "M":
		return math.NaN()
	case trace && s == "T":
		return traceAmount
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) {
		return math.NaN()
	}
	return f
}

// stringColumn 列不存在返回 nil；NA 与 "M" 记为空串
func stringColumn(df dataframe.DataFrame, name string) []string {
	if !utils.HasColumn(df, name) {
		return nil
	}
	col := df.Col(name)
	out := make([]string, col.Len())
	for i := range out {
		e := col.Elem(i)
		if e.IsNA() {
			continue
		}
		if v := strings.TrimSpace(e.String()); v != "M" {
			out[i] = v
		}
	}
	return out
}

func at(values []float64, i int) float64 {
	if values == nil {
		return math.NaN()
	}
	return values[i]
}

func toInt(f float64) (int, bool) {
	if math.IsNaN(f) || f != math.Trunc(f) || math.Abs(f) > 1e9 {
		return 0, false
	}
	return int(f), true
}

// nullMasks 为每个必需列计算逐行的缺失标记
func nullMasks(df dataframe.DataFrame, mandatory []string, numeric func(string) []float64, integral map[string]bool) [][]bool {
	masks := make([][]bool, 0, len(mandatory))
	for _, name := range mandatory {
		mask := make([]bool, df.Nrow())
		if values := numeric(name); values != nil {
			for i, v := range values {
				_, ok := toInt(v)
				mask[i] = math.IsNaN(v) || (integral[name] && !ok)
			}
		} else {
			for i, v := range stringColumn(df, name) {
				mask[i] = v == ""
			}
		}
		masks = append(masks, mask)
	}
	return masks
}

func anyNull(masks [][]bool, i int) bool {
	for _, m := range masks {
		if m[i] {
			return true
		}
	}
	return false
}

// NormalizeFlights 航班表 -> FlightRecord；行级问题只计数不报错
func (n *Normalizer) NormalizeFlights(df dataframe.DataFrame) ([]FlightRecord, *StageReport, error) {
	df, mandatory, err := canonicalize(df, &n.flights, flightStructural)
	if err != nil {
		return nil, nil, fmt.Errorf("航班表: %w", err)
	}

	nums := make(map[string][]float64)
	integral := make(map[string]bool)
	for _, name := range flightIntColumns {
		nums[name] = numericColumn(df, name, false)
		integral[name] = true
	}
	for _, name := range flightFloatColumns {
		nums[name] = numericColumn(df, name, false)
	}
	masks := nullMasks(df, mandatory, func(name string) []float64 { return nums[name] }, integral)
	carriers := stringColumn(df, "carrier")

	report := newReport("normalize_flights", df.Nrow())
	records := make([]FlightRecord, 0, df.Nrow())

	for i := 0; i < df.Nrow(); i++ {
		if anyNull(masks, i) {
			report.drop(ReasonMissingField)
			continue
		}
		if c := at(nums["cancelled"], i); !math.IsNaN(c) && c != 0 {
			report.drop(ReasonCancelledDiverted)
			continue
		}
		if d := at(nums["diverted"], i); !math.IsNaN(d) && d != 0 {
			report.drop(ReasonCancelledDiverted)
			continue
		}

		year, _ := toInt(nums["year"][i])
		month, _ := toInt(nums["month"][i])
		day, _ := toInt(nums["day_of_month"][i])
		dow, _ := toInt(nums["day_of_week"][i])
		dep, _ := toInt(nums["scheduled_departure_time"][i])

		if dep == 2400 {
			dep = 0
		}
		if dow < 1 || dow > 7 {
			report.drop(ReasonOutOfRange)
			continue
		}

		carrier := strings.ToUpper(carriers[i])
		if len(n.carriers) > 0 {
			if _, ok := n.carriers[carrier]; !ok {
				report.drop(ReasonCarrierFiltered)
				continue
			}
		}

		records = append(records, FlightRecord{
			Index:              i,
			Year:               year,
			Month:              month,
			DayOfMonth:         day,
			DayOfWeek:          dow,
			Carrier:            carrier,
			ScheduledDeparture: dep,
			ScheduledElapsed:   at(nums["scheduled_elapsed_time"], i),
			DepartureDelay:     nums["departure_delay"][i],
		})
	}

	report.RowsOut = len(records)
	return records, report, nil
}

// NormalizeWeather 气象表 -> WeatherObservation，保持输入顺序
func (n *Normalizer) NormalizeWeather(df dataframe.DataFrame) ([]WeatherObservation, *StageReport, error) {
	df, mandatory, err := canonicalize(df, &n.weather, weatherStructural)
	if err != nil {
		return nil, nil, fmt.Errorf("气象表: %w", err)
	}

	nums := make(map[string][]float64)
	for _, name := range weatherNumColumns {
		nums[name] = numericColumn(df, name, name == "precipitation")
	}
	masks := nullMasks(df, mandatory, func(name string) []float64 { return nums[name] }, nil)
	stamps := stringColumn(df, "datetime")
	covers := stringColumn(df, "cloud_cover")
	reports := stringColumn(df, "metar_report")

	report := newReport("normalize_weather", df.Nrow())
	obs := make([]WeatherObservation, 0, df.Nrow())

	for i := 0; i < df.Nrow(); i++ {
		if anyNull(masks, i) {
			report.drop(ReasonMissingField)
			continue
		}
		ts, err := utils.ParseTime(stamps[i])
		if err != nil {
			report.drop(ReasonMissingField)
			continue
		}
		if _, ok := n.excludeYears[ts.Year()]; ok {
			report.drop(ReasonExcludedYear)
			continue
		}

		o := WeatherObservation{
			Timestamp:     ts,
			Temperature:   at(nums["temperature"], i),
			WindDirection: at(nums["wind_direction"], i),
			WindSpeed:     at(nums["wind_speed"], i),
			Altimeter:     at(nums["altimeter"], i),
			Pressure:      at(nums["pressure"], i),
			Precipitation: at(nums["precipitation"], i),
			Visibility:    at(nums["visibility"], i),
			CloudHeight:   at(nums["cloud_height"], i),
		}
		if covers != nil {
			o.CloudCover = strings.ToUpper(covers[i])
		}
		if reports != nil {
			o.Report = reports[i]
		}
		obs = append(obs, o)
	}

	report.RowsOut = len(obs)
	return obs, report, nil
}
