package processor

import (
	"FlightDelayDataset/src/config"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFlights(t *testing.T) {
	df := frame(t, flightHeader,
		[]string{"2024", "3", "15", "5", "aa", "1430", "12", "0", "0", "180"},  // 保留，承运人转大写
		[]string{"2024", "3", "15", "5", "DL", "2400", "-3", "0.0", "0", "95"}, // 2400 -> 0
		[]string{"2024", "3", "15", "5", "B6", "1000", "", "0", "0", "120"},    // 缺延误
		[]string{"2024", "3", "15", "5", "B6", "1000", "4", "1", "0", "120"},   // 取消
		[]string{"2024", "3", "15", "5", "B6", "1000", "4", "0", "1", "120"},   // 备降
		[]string{"2024", "3", "15", "9", "B6", "1000", "4", "0", "0", "120"},   // 星期越界
		[]string{"2024", "3.5", "15", "5", "B6", "1000", "4", "0", "0", "120"}, // 月份不是整数
		[]string{"2024", "x", "15", "5", "B6", "1000", "4", "0", "0", "120"},   // 无法解析
	)

	n := NewNormalizer(testConfig(), config.DefaultDataConfig())
	recs, rep, err := n.NormalizeFlights(df)
	require.NoError(t, err)

	require.Len(t, recs, 2)
	assert.Equal(t, FlightRecord{
		Index: 0, Year: 2024, Month: 3, DayOfMonth: 15, DayOfWeek: 5, Carrier: "AA",
		ScheduledDeparture: 1430, ScheduledElapsed: 180, DepartureDelay: 12,
	}, recs[0])
	assert.Equal(t, 0, recs[1].ScheduledDeparture)
	assert.Equal(t, 1, recs[1].Index)

	assert.Equal(t, 8, rep.RowsIn)
	assert.Equal(t, 2, rep.RowsOut)
	assert.Equal(t, map[string]int{
		ReasonMissingField:      3,
		ReasonCancelledDiverted: 2,
		ReasonOutOfRange:        1,
	}, rep.Dropped)
	assert.Equal(t, ReasonMissingField, rep.DominantReason())
}

func TestNormalizeFlightsCanonicalAndCarrierFilter(t *testing.T) {
	// 已经是规范列名，且没有 cancelled/diverted 列
	df := frame(t,
		[]string{"year", "month", "day_of_month", "day_of_week", "carrier", "scheduled_departure_time", "departure_delay", "scheduled_elapsed_time"},
		[]string{"2024", "3", "15", "5", "AA", "900", "0", "60"},
		[]string{"2024", "3", "15", "5", "WN", "900", "0", "60"},
	)
	cfg := testConfig()
	cfg.Filters.Carriers = []string{"aa", "DL"}

	recs, rep, err := NewNormalizer(cfg, config.DefaultDataConfig()).NormalizeFlights(df)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "AA", recs[0].Carrier)
	assert.Equal(t, 1, rep.Dropped[ReasonCarrierFiltered])
}

func TestNormalizeMissingColumnIsFatal(t *testing.T) {
	df := frame(t, []string{"YEAR", "MONTH"}, []string{"2024", "3"})
	_, _, err := NewNormalizer(testConfig(), config.DefaultDataConfig()).NormalizeFlights(df)
	require.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "carrier")

	w := frame(t, []string{"tmpc"}, []string{"1"})
	_, _, err = NewNormalizer(testConfig(), config.DefaultDataConfig()).NormalizeWeather(w)
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestNormalizeWeather(t *testing.T) {
	df := frame(t, weatherHeader,
		[]string{"2024-03-15 14:10", "12.5", "80", "15", "30.01", "1012.0", "T", "10.00", "bkn", "800", "KJFK 151410Z -RA BR"},
		[]string{"2024-03-15 13:50", "M", "M", "M", "M", "M", "M", "M", "M", "M", "M"},
		[]string{"not a time", "1", "1", "1", "1", "1", "1", "1", "CLR", "", ""},
		[]string{"2020-06-01 00:00", "1", "1", "1", "1", "1", "0", "1", "CLR", "", ""},
		[]string{"", "1", "1", "1", "1", "1", "0", "1", "CLR", "", ""},
	)
	cfg := testConfig()
	cfg.Filters.ExcludeYears = []int{2020, 2021}

	obs, rep, err := NewNormalizer(cfg, config.DefaultDataConfig()).NormalizeWeather(df)
	require.NoError(t, err)
	require.Len(t, obs, 2)

	first := obs[0]
	assert.Equal(t, time.Date(2024, 3, 15, 14, 10, 0, 0, time.UTC), first.Timestamp)
	assert.Equal(t, 12.5, first.Temperature)
	assert.Equal(t, traceAmount, first.Precipitation)
	assert.Equal(t, "BKN", first.CloudCover)
	assert.Equal(t, 800.0, first.CloudHeight)
	assert.Equal(t, "KJFK 151410Z -RA BR", first.Report)

	missing := obs[1]
	assert.True(t, math.IsNaN(missing.Temperature))
	assert.True(t, math.IsNaN(missing.Precipitation))
	assert.Equal(t, "", missing.CloudCover)
	assert.Equal(t, "", missing.Report)

	assert.Equal(t, 2, rep.Dropped[ReasonMissingField])
	assert.Equal(t, 1, rep.Dropped[ReasonExcludedYear])
}

func TestNormalizeCustomMapping(t *testing.T) {
	dcfg := config.DefaultDataConfig()
	dcfg.Weather.SetColumn("obs_time", "datetime")
	df := frame(t, []string{"obs_time"}, []string{"2024-03-15T14:10:00Z"})

	obs, _, err := NewNormalizer(testConfig(), dcfg).NormalizeWeather(df)
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.True(t, math.IsNaN(obs[0].WindSpeed), "缺少的可选列为 NaN")
}
