package processor

import (
	"FlightDelayDataset/src/calendar"
	"FlightDelayDataset/src/config"
	"context"
	"fmt"
	"math"
	"time"
)

// UnlimitedCeiling 无云底 (非 BKN/OVC) 时的云底高
const UnlimitedCeiling = 99999.0

// 标准海平面气压，低于此值为低压
const standardPressure = 1013.25

var coverageScore = map[string]float64{
	"CLR": 0, "SKC": 0, "FEW": 2, "SCT": 4, "BKN": 6, "OVC": 8,
}

// SynthesisConfig 特征派生所需的全部常量，运行期只读
type SynthesisConfig struct {
	RunwayHeading   float64
	LabelPolicy     string
	OnTimeTolerance float64
	TimeOfDay       Binner
	PartOfMonth     Binner
	Bins            WeatherBins
	Workers         int
}

// NewSynthesisConfig 由运行配置构造
func NewSynthesisConfig(cfg *config.Config) SynthesisConfig {
	return SynthesisConfig{
		RunwayHeading:   cfg.Synthesis.RunwayHeading,
		LabelPolicy:     cfg.Synthesis.LabelPolicy,
		OnTimeTolerance: cfg.Synthesis.OnTimeTolerance,
		TimeOfDay:       timeOfDayBinner(cfg.Synthesis.TimeOfDayEdges),
		PartOfMonth:     partOfMonthBinner(cfg.Synthesis.PartOfMonth),
		Bins:            DefaultWeatherBins(),
		Workers:         cfg.Synthesis.Workers,
	}
}

// LabelCategories 标签策略对应的全部取值
func LabelCategories(policy string) []string {
	if policy == config.LabelThreeWay {
		return []string{"early", "ontime", "delayed"}
	}
	return []string{"delayed", "not_delayed"}
}

// Label 按策略给延误分类
func Label(delay float64, policy string, tolerance float64) string {
	if policy == config.LabelThreeWay {
		switch {
		case delay < 0:
			return "early"
		case delay <= tolerance:
			return "ontime"
		default:
			return "delayed"
		}
	}
	if delay > 0 {
		return "delayed"
	}
	return "not_delayed"
}

// MinutesSinceMidnight HHMM -> 分钟
func MinutesSinceMidnight(hhmm int) int {
	return 60*(hhmm/100) + hhmm%100
}

// Cyclical 周期量的 (sin, cos) 编码
func Cyclical(value, period float64) (float64, float64) {
	angle := 2 * math.Pi * value / period
	return math.Sin(angle), math.Cos(angle)
}

// IsLeapYear 格里高利历闰年
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInYear 闰年 366，平年 365
func DaysInYear(year int) int {
	if IsLeapYear(year) {
		return 366
	}
	return 365
}

// Season 北半球季节
func Season(month int) string {
	switch month {
	case 12, 1, 2:
		return "winter"
	case 3, 4, 5:
		return "spring"
	case 6, 7, 8:
		return "summer"
	default:
		return "fall"
	}
}

// SeasonCategories 季节取值
func SeasonCategories() []string {
	return []string{"winter", "spring", "summer", "fall"}
}

// Crosswind 侧风分量；风向或风速缺测为 NaN
func Crosswind(direction, speed, runwayHeading float64) float64 {
	if math.IsNaN(direction) || math.IsNaN(speed) {
		return math.NaN()
	}
	angle := math.Mod(math.Abs(direction-runwayHeading), 360)
	if angle > 180 {
		angle = 360 - angle
	}
	return speed * math.Sin(angle*math.Pi/180)
}

// Ceiling BKN/OVC 且云高已知时取云高，否则视为无限
func Ceiling(cover string, height float64) float64 {
	if (cover == "BKN" || cover == "OVC") && !math.IsNaN(height) {
		return height
	}
	return UnlimitedCeiling
}

// FlightCategory IFR: 云底 < 1000 或能见度 < 3；MVFR: 云底 [1000,3000) 或能见度 [3,5)
func FlightCategory(ceiling, visibility float64) (ifr, mvfr bool) {
	ifr = ceiling < 1000 || visibility < 3
	mvfr = (ceiling >= 1000 && ceiling < 3000) || (visibility >= 3 && visibility < 5)
	return ifr, mvfr
}

// Synthesizer 逐条记录派生特征
type Synthesizer struct {
	cfg      SynthesisConfig
	calendar calendar.HolidayCalendar
	decoder  *PhenomenonDecoder
}

// NewSynthesizer 日历不能为空
func NewSynthesizer(cfg SynthesisConfig, cal calendar.HolidayCalendar, decoder *PhenomenonDecoder) (*Synthesizer, error) {
	if cal == nil {
		return nil, calendar.ErrNoCalendar
	}
	if decoder == nil {
		return nil, fmt.Errorf("天气现象解析器为空")
	}
	return &Synthesizer{cfg: cfg, calendar: cal, decoder: decoder}, nil
}

// HolidayOrWeekend 节假日或周六周日；日期非法返回 false
func (s *Synthesizer) HolidayOrWeekend(f FlightRecord) bool {
	if f.Month < 1 || f.Month > 12 || f.DayOfMonth < 1 || f.Year < 1 ||
		f.DayOfMonth > daysIn(f.Year, time.Month(f.Month)) {
		return false
	}
	if f.DayOfWeek == 6 || f.DayOfWeek == 7 {
		return true
	}
	return s.calendar.IsHoliday(time.Date(f.Year, time.Month(f.Month), f.DayOfMonth, 0, 0, 0, 0, time.UTC))
}

// Derive 单条记录的全部特征，不依赖其他记录
func (s *Synthesizer) Derive(m MergedRecord) FeatureRow {
	f, w := m.Flight, m.Weather
	row := FeatureRow{MergedRecord: m}

	row.Label = Label(f.DepartureDelay, s.cfg.LabelPolicy, s.cfg.OnTimeTolerance)

	row.DepMin = MinutesSinceMidnight(f.ScheduledDeparture)
	row.DepSin, row.DepCos = Cyclical(float64(row.DepMin), 1440)
	row.DoySin, row.DoyCos = Cyclical(float64(m.Departure.YearDay()), float64(DaysInYear(f.Year)))
	row.DepartureBin, _ = s.cfg.TimeOfDay.Assign(float64(row.DepMin))
	row.DayPeriod, _ = s.cfg.PartOfMonth.Assign(float64(f.DayOfMonth))
	row.Season = Season(f.Month)
	row.HolidayOrWeekend = s.HolidayOrWeekend(f)

	row.Crosswind = Crosswind(w.WindDirection, w.WindSpeed, s.cfg.RunwayHeading)
	row.Ceiling = Ceiling(w.CloudCover, w.CloudHeight)
	row.CloudScore = coverageScore[w.CloudCover]
	row.IFR, row.MVFR = FlightCategory(row.Ceiling, w.Visibility)
	row.Freezing = w.Temperature <= 0
	row.HasPrecip = w.Precipitation > 0
	row.LowPressure = w.Pressure < standardPressure

	row.WindCategory, _ = s.cfg.Bins.WindSpeed.Assign(w.WindSpeed)
	row.VisibilityCat, _ = s.cfg.Bins.Visibility.Assign(w.Visibility)
	row.PrecipitationCat, _ = s.cfg.Bins.Precipitation.Assign(w.Precipitation)
	row.PressureCategory, _ = s.cfg.Bins.Pressure.Assign(w.Pressure)

	row.Phenomena = s.decoder.Decode(w.Report)
	return row
}

// Synthesize 并发对每条记录调用 Derive，输出顺序与输入一致
func (s *Synthesizer) Synthesize(ctx context.Context, merged []MergedRecord) ([]FeatureRow, *StageReport, error) {
	report := newReport("synthesize", len(merged))
	rows := make([]FeatureRow, len(merged))

	err := parallelRanges(ctx, len(merged), s.cfg.Workers, func(ctx context.Context, _, lo, hi int) error {
		for i := lo; i < hi; i++ {
			if (i-lo)%cancelCheckEvery == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			rows[i] = s.Derive(merged[i])
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("派生特征中断: %w", err)
	}

	report.RowsOut = len(rows)
	return rows, report, nil
}
