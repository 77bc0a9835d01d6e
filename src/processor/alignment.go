package processor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrMalformedDatetime 年月日或 HHMM 不构成合法时刻
var ErrMalformedDatetime = errors.New("非法的离港时间")

// 每处理这么多条航班检查一次 ctx
const cancelCheckEvery = 1024

// DepartureInstant 由年月日与 HHMM 计算 UTC 离港时刻，不做日期进位
func DepartureInstant(f FlightRecord) (time.Time, error) {
	hh, mm := f.ScheduledDeparture/100, f.ScheduledDeparture%100
	switch {
	case f.ScheduledDeparture < 0 || hh > 23 || mm > 59:
		return time.Time{}, fmt.Errorf("%w: 时刻 %04d", ErrMalformedDatetime, f.ScheduledDeparture)
	case f.Year < 1 || f.Year > 9999 || f.Month < 1 || f.Month > 12:
		return time.Time{}, fmt.Errorf("%w: %d-%d", ErrMalformedDatetime, f.Year, f.Month)
	case f.DayOfMonth < 1 || f.DayOfMonth > daysIn(f.Year, time.Month(f.Month)):
		return time.Time{}, fmt.Errorf("%w: %d-%02d-%02d", ErrMalformedDatetime, f.Year, f.Month, f.DayOfMonth)
	}
	return time.Date(f.Year, time.Month(f.Month), f.DayOfMonth, hh, mm, 0, 0, time.UTC), nil
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// weatherIndex 按时间升序排列的只读观测序列
type weatherIndex struct {
	obs   []WeatherObservation
	times []int64 // 微秒
}

func newWeatherIndex(observations []WeatherObservation) *weatherIndex {
	obs := make([]WeatherObservation, len(observations))
	copy(obs, observations)
	sort.SliceStable(obs, func(i, j int) bool {
		return obs[i].Timestamp.Before(obs[j].Timestamp)
	})

	times := make([]int64, len(obs))
	for i, o := range obs {
		times[i] = o.Timestamp.UnixMicro()
	}
	return &weatherIndex{obs: obs, times: times}
}

// nearest 二分查找 |Δ| 最小的观测；距离相同取较早者，时间相同取排序靠前者
func (w *weatherIndex) nearest(t int64) (int, int64, bool) {
	n := len(w.times)
	if n == 0 {
		return 0, 0, false
	}

	i := sort.Search(n, func(k int) bool { return w.times[k] >= t })
	best := -1
	if i < n {
		best = i
	}
	if i > 0 {
		prev := w.times[i-1]
		j := sort.Search(i, func(k int) bool { return w.times[k] >= prev })
		if best < 0 || t-w.times[j] <= w.times[best]-t {
			best = j
		}
	}
	return best, w.times[best] - t, true
}

// Aligner 航班与气象观测的最近邻时间匹配
type Aligner struct {
	threshold time.Duration
	workers   int
}

// NewAligner threshold 为允许的最大时间差
func NewAligner(threshold time.Duration, workers int) *Aligner {
	return &Aligner{threshold: threshold, workers: workers}
}

// Align 为每个航班匹配最近的观测；超出阈值或时间非法的航班被丢弃并计数。
// 输出保持航班输入顺序。
func (a *Aligner) Align(ctx context.Context, flights []FlightRecord, weather []WeatherObservation) ([]MergedRecord, *StageReport, error) {
	report := newReport("align", len(flights))
	index := newWeatherIndex(weather)
	limit := a.threshold.Microseconds()

	slots := make([]MergedRecord, len(flights))
	matched := make([]bool, len(flights))
	workers := a.workers
	if workers < 1 {
		workers = 1
	}
	drops := make([]map[string]int, workers)

	err := parallelRanges(ctx, len(flights), workers, func(ctx context.Context, worker, lo, hi int) error {
		counts := make(map[string]int)
		drops[worker] = counts
		for i := lo; i < hi; i++ {
			if (i-lo)%cancelCheckEvery == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}

			dep, err := DepartureInstant(flights[i])
			if err != nil {
				counts[ReasonMalformedDatetime]++
				continue
			}
			idx, delta, ok := index.nearest(dep.UnixMicro())
			if !ok || delta > limit || delta < -limit {
				counts[ReasonNoWeatherMatch]++
				continue
			}
			slots[i] = MergedRecord{
				Flight:     flights[i],
				Weather:    index.obs[idx],
				Departure:  dep,
				MatchDelta: time.Duration(delta) * time.Microsecond,
			}
			matched[i] = true
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("匹配气象观测中断: %w", err)
	}

	for _, counts := range drops {
		report.merge(counts)
	}

	merged := make([]MergedRecord, 0, len(flights))
	for i, ok := range matched {
		if ok {
			merged = append(merged, slots[i])
		}
	}
	report.RowsOut = len(merged)
	return merged, report, nil
}

// MatchStats 匹配时间差 (分钟，取绝对值) 的汇总
type MatchStats struct {
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	Median float64
	StdDev float64
}

// SummarizeMatches 统计匹配距离，空输入返回零值
func SummarizeMatches(merged []MergedRecord) MatchStats {
	if len(merged) == 0 {
		return MatchStats{}
	}
	minutes := make([]float64, len(merged))
	for i, m := range merged {
		minutes[i] = math.Abs(m.MatchDelta.Minutes())
	}
	sort.Float64s(minutes)

	s := MatchStats{
		Count:  len(minutes),
		Min:    floats.Min(minutes),
		Max:    floats.Max(minutes),
		Mean:   stat.Mean(minutes, nil),
		Median: stat.Quantile(0.5, stat.Empirical, minutes, nil),
	}
	if len(minutes) > 1 {
		s.StdDev = stat.StdDev(minutes, nil)
	}
	return s
}
