package processor

import (
	"FlightDelayDataset/src/calendar"
	"FlightDelayDataset/src/config"
	"FlightDelayDataset/src/storage"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const flightsCSV = `YEAR,MONTH,DAY_OF_MONTH,DAY_OF_WEEK,OP_UNIQUE_CARRIER,CRS_DEP_TIME,DEP_DELAY,CANCELLED,DIVERTED,CRS_ELAPSED_TIME
2024,3,15,5,AA,1430,12,0,0,180
2024,3,15,5,DL,2300,-4,0,0,95
2024,3,15,5,B6,1000,,0,0,120
2024,7,4,4,AA,1345,0,0,0,150
2024,3,15,5,WN,1415,3,1,0,60
`

const weatherCSV = `valid,tmpc,drct,sknt,alti,mslp,p01i,vsby,skyc1,skyl1,metar
2024-03-15 14:10,14.1,130,12,29.92,1009.5,T,2.00,OVC,900,KJFK 151410Z 13012KT 2SM -RA BR OVC009
2024-03-15 13:50,13.5,120,10,29.93,1010.1,0.00,3.00,BKN,1200,KJFK 151350Z 12010KT 3SM BR BKN012
2024-07-04 13:51,30.0,200,8,30.01,1016.0,0.00,10.00,CLR,,KJFK 041351Z 20008KT 10SM CLR
`

type pipelineFixture struct {
	cfg  *config.Config
	dir  string
	flog *storage.Logger
}

func newPipelineFixture(t *testing.T, flights, weather string) pipelineFixture {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "flights.csv"), []byte(flights), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "weather.csv"), []byte(weather), 0644))

	cfg := testConfig()
	cfg.Input.Flights = filepath.Join(dir, "flights.csv")
	cfg.Input.Weather = filepath.Join(dir, "weather.csv")
	cfg.Output.Path = filepath.Join(dir, "out", "features.csv")
	return pipelineFixture{cfg: cfg, dir: dir, flog: storage.NewTestLogger(t)}
}

func (f pipelineFixture) run(t *testing.T) (*Output, []byte) {
	t.Helper()
	p, err := NewPipeline(f.cfg, config.DefaultDataConfig(), f.flog)
	require.NoError(t, err)
	out, err := p.Run(context.Background())
	require.NoError(t, err)
	data, err := os.ReadFile(f.cfg.Output.Path)
	require.NoError(t, err)
	return out, data
}

func TestPipelineEndToEnd(t *testing.T) {
	fx := newPipelineFixture(t, flightsCSV, weatherCSV)
	out, data := fx.run(t)

	df := out.Table
	require.NoError(t, df.Err)
	require.Equal(t, 2, df.Nrow())
	assert.NotEmpty(t, out.RunID)

	// 第一行为 3 月 15 日 14:30 的航班，匹配 14:10 的观测
	assert.Equal(t, []string{"delayed", "not_delayed"}, df.Col("label").Records())
	assert.Equal(t, []string{"870", "825"}, df.Col("dep_min").Records())
	assert.Equal(t, 14.1, df.Col("temperature").Float()[0])
	assert.Equal(t, []bool{true, true}, boolColumn(t, df, "departure_bin_afternoon"))
	assert.Equal(t, []bool{true, false}, boolColumn(t, df, "season_spring"))
	assert.Equal(t, []bool{false, true}, boolColumn(t, df, "season_summer"))
	assert.Equal(t, []bool{false, true}, boolColumn(t, df, "is_holiday_or_weekend"))
	assert.Equal(t, []bool{true, false}, boolColumn(t, df, "weather_light_rain"))
	assert.Equal(t, []bool{true, false}, boolColumn(t, df, "weather_mist"))
	assert.Equal(t, []bool{true, false}, boolColumn(t, df, "ifr_conditions"))

	// 没有匹配的航班不出现在输出中，并计入 no_weather_match
	require.Len(t, out.Reports, 5)
	assert.Equal(t, "align", out.Reports[2].Stage)
	assert.Equal(t, 1, out.Reports[2].Dropped[ReasonNoWeatherMatch])
	assert.Equal(t, 1, out.Reports[0].Dropped[ReasonMissingField])
	assert.Equal(t, 1, out.Reports[0].Dropped[ReasonCancelledDiverted])
	assert.Equal(t, 2, out.Match.Count)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "label,dep_min,dep_sin,dep_cos,"))
	assert.True(t, strings.HasPrefix(lines[1], "delayed,870,"))
}

func TestPipelineDeterministic(t *testing.T) {
	fx := newPipelineFixture(t, flightsCSV, weatherCSV)
	first, a := fx.run(t)
	second, b := fx.run(t)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, string(a), string(b))

	fx.cfg.Output.Vocabulary = filepath.Join(fx.dir, "vocabulary.json")
	_, c := fx.run(t)
	_, d := fx.run(t)
	assert.Equal(t, string(c), string(d))
	assert.FileExists(t, fx.cfg.Output.Vocabulary)

	header := strings.SplitN(string(c), "\n", 2)[0]
	assert.Contains(t, header, "carrier_other")
}

func TestPipelineFixedVocabularyKeepsSchema(t *testing.T) {
	fx := newPipelineFixture(t, flightsCSV, weatherCSV)
	fx.cfg.Output.Vocabulary = filepath.Join(fx.dir, "vocabulary.json")
	first, _ := fx.run(t)

	// 第二批只有一个新承运人
	other := "YEAR,MONTH,DAY_OF_MONTH,DAY_OF_WEEK,OP_UNIQUE_CARRIER,CRS_DEP_TIME,DEP_DELAY,CANCELLED,DIVERTED,CRS_ELAPSED_TIME\n" +
		"2024,3,15,5,NK,1400,30,0,0,100\n"
	require.NoError(t, os.WriteFile(fx.cfg.Input.Flights, []byte(other), 0644))
	second, _ := fx.run(t)

	assert.Equal(t, first.Table.Names(), second.Table.Names())
	assert.Equal(t, []bool{true}, boolColumn(t, second.Table, "carrier_other"))
}

func TestPipelineXLSXOutput(t *testing.T) {
	fx := newPipelineFixture(t, flightsCSV, weatherCSV)
	fx.cfg.Output.Path = filepath.Join(fx.dir, "features.xlsx")
	out, data := fx.run(t)
	assert.Equal(t, 2, out.Table.Nrow())
	assert.True(t, len(data) > 0)
}

func TestPipelineFatalErrors(t *testing.T) {
	t.Run("calendar coverage", func(t *testing.T) {
		fx := newPipelineFixture(t, flightsCSV, weatherCSV)
		fx.cfg.Calendar.FromYear = 2025
		p, err := NewPipeline(fx.cfg, config.DefaultDataConfig(), fx.flog)
		require.NoError(t, err)
		_, err = p.Run(context.Background())
		assert.ErrorIs(t, err, calendar.ErrCalendarCoverage)
		assert.NoFileExists(t, fx.cfg.Output.Path)
	})

	t.Run("missing column", func(t *testing.T) {
		fx := newPipelineFixture(t, "YEAR,MONTH\n2024,3\n", weatherCSV)
		p, err := NewPipeline(fx.cfg, config.DefaultDataConfig(), fx.flog)
		require.NoError(t, err)
		_, err = p.Run(context.Background())
		assert.ErrorIs(t, err, ErrMissingColumn)
	})

	t.Run("unknown calendar", func(t *testing.T) {
		cfg := testConfig()
		cfg.Calendar.Name = "XX"
		_, err := NewPipeline(cfg, config.DefaultDataConfig(), nil)
		assert.ErrorIs(t, err, calendar.ErrUnknownCalendar)
	})

	t.Run("no calendar", func(t *testing.T) {
		_, err := NewPipelineWithCalendar(testConfig(), config.DefaultDataConfig(), nil, nil)
		assert.ErrorIs(t, err, calendar.ErrNoCalendar)
	})

	t.Run("missing input", func(t *testing.T) {
		cfg := testConfig()
		cfg.Input.Flights = filepath.Join(t.TempDir(), "absent.csv")
		cfg.Input.Weather = cfg.Input.Flights
		p, err := NewPipeline(cfg, config.DefaultDataConfig(), nil)
		require.NoError(t, err)
		_, err = p.Run(context.Background())
		assert.Error(t, err)
	})
}

func TestPipelineEmptyWeather(t *testing.T) {
	fx := newPipelineFixture(t, flightsCSV, "valid,tmpc\n")
	p, err := NewPipeline(fx.cfg, config.DefaultDataConfig(), fx.flog)
	require.NoError(t, err)
	out, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, out.Table.Nrow())
	assert.Equal(t, 3, out.Reports[2].Dropped[ReasonNoWeatherMatch])
}
