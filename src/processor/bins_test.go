package processor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimeOfDayBinsTotalAndExclusive(t *testing.T) {
	b := timeOfDayBinner([]int{360, 720, 1080})

	counts := make(map[string]int)
	for m := 0; m < 1440; m++ {
		label, ok := b.Assign(float64(m))
		assert.True(t, ok, "minute %d", m)
		counts[label]++
	}
	assert.Equal(t, map[string]int{"night": 360, "morning": 360, "afternoon": 360, "evening": 360}, counts)

	cases := map[int]string{0: "night", 359: "night", 360: "morning", 719: "morning", 720: "afternoon", 1079: "afternoon", 1080: "evening", 1439: "evening"}
	for m, want := range cases {
		got, _ := b.Assign(float64(m))
		assert.Equal(t, want, got, "minute %d", m)
	}

	_, ok := b.Assign(1440)
	assert.False(t, ok)
}

func TestPartOfMonthBins(t *testing.T) {
	b := partOfMonthBinner([]int{10, 20})
	for d := 1; d <= 31; d++ {
		got, ok := b.Assign(float64(d))
		assert.True(t, ok)
		switch {
		case d <= 10:
			assert.Equal(t, "early", got, "day %d", d)
		case d <= 20:
			assert.Equal(t, "mid", got, "day %d", d)
		default:
			assert.Equal(t, "late", got, "day %d", d)
		}
	}
}

func TestWeatherBins(t *testing.T) {
	bins := DefaultWeatherBins()
	cases := []struct {
		name string
		b    Binner
		v    float64
		want string
	}{
		{"wind lowest", bins.WindSpeed, 0, "calm"},
		{"wind 10", bins.WindSpeed, 10, "calm"},
		{"wind 10.5", bins.WindSpeed, 10.5, "light"},
		{"wind 30", bins.WindSpeed, 30, "moderate"},
		{"wind 45", bins.WindSpeed, 45, "strong"},
		{"wind negative", bins.WindSpeed, -1, Unknown},
		{"wind missing", bins.WindSpeed, math.NaN(), Unknown},
		{"vis 0", bins.Visibility, 0, "very_poor"},
		{"vis 1", bins.Visibility, 1, "very_poor"},
		{"vis 3", bins.Visibility, 3, "poor"},
		{"vis 5", bins.Visibility, 5, "marginal"},
		{"vis 10", bins.Visibility, 10, "good"},
		{"vis 11", bins.Visibility, 11, "excellent"},
		{"precip 0", bins.Precipitation, 0, "none"},
		{"precip trace", bins.Precipitation, traceAmount, "none"},
		{"precip 0.05", bins.Precipitation, 0.05, "trace"},
		{"precip 0.5", bins.Precipitation, 0.5, "light"},
		{"precip 2", bins.Precipitation, 2, "heavy"},
		{"pressure 1000", bins.Pressure, 1000, "very_low"},
		{"pressure 1013.25", bins.Pressure, 1013.25, "low"},
		{"pressure 1020", bins.Pressure, 1020, "normal"},
		{"pressure 1031", bins.Pressure, 1031, "high"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := tc.b.Assign(tc.v)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestBinnerCategories(t *testing.T) {
	b := DefaultWeatherBins().WindSpeed
	assert.Equal(t, []string{"calm", "light", "moderate", "strong"}, b.Categories(false))
	assert.Equal(t, []string{"calm", "light", "moderate", "strong", Unknown}, b.Categories(true))
}
