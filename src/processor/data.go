// data.go
package processor

import (
	"time"
)

// FlightRecord 规范化后的航班计划
type FlightRecord struct {
	Index              int // 原始行号，用于稳定排序
	Year               int
	Month              int
	DayOfMonth         int
	DayOfWeek          int    // 1=周一 ... 7=周日
	Carrier            string // 承运人代码
	ScheduledDeparture int    // HHMM
	ScheduledElapsed   float64
	DepartureDelay     float64 // 分钟，提前为负
}

// WeatherObservation 一条气象观测，缺测的数值为 NaN
type WeatherObservation struct {
	Timestamp     time.Time
	Temperature   float64
	WindDirection float64
	WindSpeed     float64
	Altimeter     float64
	Pressure      float64
	Precipitation float64
	Visibility    float64
	CloudCover    string
	CloudHeight   float64
	Report        string // 原始 METAR 报文
}

// MergedRecord 航班与最近观测的匹配结果
type MergedRecord struct {
	Flight     FlightRecord
	Weather    WeatherObservation
	Departure  time.Time     // 计划离港时刻
	MatchDelta time.Duration // 观测时间 - 离港时间
}

// FeatureRow 单条记录派生出的全部特征
type FeatureRow struct {
	MergedRecord

	Label            string
	DepMin           int
	DepSin, DepCos   float64
	DoySin, DoyCos   float64
	DepartureBin     string
	DayPeriod        string
	Season           string
	HolidayOrWeekend bool

	Crosswind   float64
	Ceiling     float64
	CloudScore  float64
	Freezing    bool
	IFR         bool
	MVFR        bool
	HasPrecip   bool
	LowPressure bool

	WindCategory     string
	VisibilityCat    string
	PrecipitationCat string
	PressureCategory string

	Phenomena []string // 去重并排序的天气现象名称
}
