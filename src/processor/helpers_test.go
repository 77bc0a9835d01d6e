package processor

import (
	"FlightDelayDataset/src/config"
	"math"
	"testing"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Input.Delimiter = ","
	cfg.Input.Encoding = "utf-8"
	cfg.Alignment.Threshold = 2 * time.Hour
	cfg.Alignment.Workers = 3
	cfg.Synthesis.RunwayHeading = 40
	cfg.Synthesis.TimeOfDayEdges = []int{360, 720, 1080}
	cfg.Synthesis.PartOfMonth = []int{10, 20}
	cfg.Synthesis.LabelPolicy = config.LabelBinary
	cfg.Synthesis.OnTimeTolerance = 15
	cfg.Synthesis.Workers = 2
	cfg.Calendar.Name = "US"
	return cfg
}

// frame 以字符串列构造原始表
func frame(t *testing.T, header []string, rows ...[]string) dataframe.DataFrame {
	t.Helper()
	cols := make([][]string, len(header))
	for _, r := range rows {
		require.Len(t, r, len(header))
		for i, v := range r {
			cols[i] = append(cols[i], v)
		}
	}
	list := make([]series.Series, len(header))
	for i, h := range header {
		if cols[i] == nil {
			cols[i] = []string{}
		}
		list[i] = series.New(cols[i], series.String, h)
	}
	df := dataframe.New(list...)
	require.NoError(t, df.Err)
	return df
}

var flightHeader = []string{
	"YEAR", "MONTH", "DAY_OF_MONTH", "DAY_OF_WEEK", "OP_UNIQUE_CARRIER",
	"CRS_DEP_TIME", "DEP_DELAY", "CANCELLED", "DIVERTED", "CRS_ELAPSED_TIME",
}

var weatherHeader = []string{
	"valid", "tmpc", "drct", "sknt", "alti", "mslp", "p01i", "vsby", "skyc1", "skyl1", "metar",
}

func obsAt(ts time.Time) WeatherObservation {
	nan := math.NaN()
	return WeatherObservation{
		Timestamp: ts, Temperature: nan, WindDirection: nan, WindSpeed: nan,
		Altimeter: nan, Pressure: nan, Precipitation: nan, Visibility: nan, CloudHeight: nan,
	}
}

func flightAt(index, year, month, day, hhmm int) FlightRecord {
	dow := int(time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC).Weekday())
	if dow == 0 {
		dow = 7
	}
	return FlightRecord{
		Index: index, Year: year, Month: month, DayOfMonth: day, DayOfWeek: dow,
		Carrier: "AA", ScheduledDeparture: hhmm, ScheduledElapsed: 180, DepartureDelay: 5,
	}
}
