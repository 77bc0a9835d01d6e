package processor

import (
	"math"
)

// Unknown 缺测或越界值的类别
const Unknown = "unknown"

// Binner 按边界把数值分到有序类别；len(Edges) == len(Labels)+1。
// Right 为 true 时区间为 (a,b]，IncludeLowest 让第一个区间包含左端点；
// Right 为 false 时区间为 [a,b)。
type Binner struct {
	Edges         []float64
	Labels        []string
	Right         bool
	IncludeLowest bool
}

// Assign 返回 v 所属类别；NaN 或越界返回 ("unknown", false)
func (b Binner) Assign(v float64) (string, bool) {
	if math.IsNaN(v) || len(b.Edges) < 2 {
		return Unknown, false
	}
	for i := 0; i < len(b.Labels); i++ {
		lo, hi := b.Edges[i], b.Edges[i+1]
		var in bool
		if b.Right {
			in = v > lo && v <= hi
			if i == 0 && b.IncludeLowest && v == lo {
				in = true
			}
		} else {
			in = v >= lo && v < hi
		}
		if in {
			return b.Labels[i], true
		}
	}
	return Unknown, false
}

// Categories 全部类别，可选附加 unknown
func (b Binner) Categories(withUnknown bool) []string {
	out := append([]string{}, b.Labels...)
	if withUnknown {
		out = append(out, Unknown)
	}
	return out
}

// WeatherBins 气象量的有序分类边界
type WeatherBins struct {
	WindSpeed     Binner
	Visibility    Binner
	Precipitation Binner
	Pressure      Binner
}

// DefaultWeatherBins 风速(节)、能见度(英里)、降水(英寸)、气压(百帕)
func DefaultWeatherBins() WeatherBins {
	inf := math.Inf(1)
	return WeatherBins{
		WindSpeed: Binner{
			Edges:         []float64{0, 10, 20, 30, inf},
			Labels:        []string{"calm", "light", "moderate", "strong"},
			Right:         true,
			IncludeLowest: true,
		},
		Visibility: Binner{
			Edges:         []float64{0, 1, 3, 5, 10, inf},
			Labels:        []string{"very_poor", "poor", "marginal", "good", "excellent"},
			Right:         true,
			IncludeLowest: true,
		},
		Precipitation: Binner{
			Edges:         []float64{0, 0.01, 0.1, 0.5, inf},
			Labels:        []string{"none", "trace", "light", "heavy"},
			Right:         true,
			IncludeLowest: true,
		},
		Pressure: Binner{
			Edges:         []float64{0, 1000, 1013.25, 1030, inf},
			Labels:        []string{"very_low", "low", "normal", "high"},
			Right:         true,
			IncludeLowest: true,
		},
	}
}

// timeOfDayBinner 一天内的分钟数，左闭右开
func timeOfDayBinner(edges []int) Binner {
	return Binner{
		Edges:  []float64{0, float64(edges[0]), float64(edges[1]), float64(edges[2]), 1440},
		Labels: []string{"night", "morning", "afternoon", "evening"},
	}
}

// partOfMonthBinner 日 <= t0 为 early，<= t1 为 mid，其余 late
func partOfMonthBinner(thresholds []int) Binner {
	return Binner{
		Edges:  []float64{0, float64(thresholds[0]), float64(thresholds[1]), 31},
		Labels: []string{"early", "mid", "late"},
		Right:  true,
	}
}
