package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalidConfig 配置取值不合法（阈值、分箱边界、标签策略等）
var ErrInvalidConfig = errors.New("配置不合法")

// 标签策略
const (
	LabelBinary   = "binary"    // delayed / not_delayed
	LabelThreeWay = "three_way" // early / ontime / delayed
)

// EnvPrefix 环境变量覆盖前缀，例如 FDD_ALIGNMENT_THRESHOLD=90m
const EnvPrefix = "FDD"

// Config 结构体定义了流水线的运行配置 (config.json)
type Config struct {
	DataDir string `mapstructure:"data_dir"` // 数据根目录，相对路径基于此目录

	Input struct {
		Flights   string `mapstructure:"flights"`    // 航班计划表
		Weather   string `mapstructure:"weather"`    // 气象观测表
		Delimiter string `mapstructure:"delimiter"`  // 分隔符
		Encoding  string `mapstructure:"encoding"`   // 文本编码，如 utf-8 / gbk
		SheetName string `mapstructure:"sheet_name"` // xlsx 输入时读取的工作表
	} `mapstructure:"input"`

	Output struct {
		Path       string `mapstructure:"path"`       // 输出文件，.csv 或 .xlsx
		Vocabulary string `mapstructure:"vocabulary"` // 类别词表文件，空表示按批次生成
	} `mapstructure:"output"`

	Alignment struct {
		Threshold time.Duration `mapstructure:"threshold"` // 最大允许时间差
		Workers   int           `mapstructure:"workers"`   // 并发匹配的 goroutine 数
	} `mapstructure:"alignment"`

	Synthesis struct {
		RunwayHeading   float64 `mapstructure:"runway_heading"`
		TimeOfDayEdges  []int   `mapstructure:"time_of_day_edges"`
		PartOfMonth     []int   `mapstructure:"part_of_month"`
		LabelPolicy     string  `mapstructure:"label_policy"`
		OnTimeTolerance float64 `mapstructure:"ontime_tolerance"`
		Workers         int     `mapstructure:"workers"`
	} `mapstructure:"synthesis"`

	Calendar struct {
		Name     string `mapstructure:"name"`
		FromYear int    `mapstructure:"from_year"`
		ToYear   int    `mapstructure:"to_year"`
	} `mapstructure:"calendar"`

	Filters struct {
		Carriers     []string `mapstructure:"carriers"`
		ExcludeYears []int    `mapstructure:"exclude_years"`
	} `mapstructure:"filters"`

	LogName    string `mapstructure:"log_name"`
	LogMaxSize string `mapstructure:"log_max_size"`
	Schedule   string `mapstructure:"schedule"` // cron 表达式，例如 "@every 1h"
}

// ColumnMapping 原始列名到规范列名的映射
type ColumnMapping struct {
	Source string `mapstructure:"source"`
	Name   string `mapstructure:"name"`
}

// TableSchema 一张输入表的列约定
type TableSchema struct {
	Columns   []ColumnMapping `mapstructure:"columns"`
	Mandatory []string        `mapstructure:"mandatory"`
}

// CodeName 报文代码及其名称
type CodeName struct {
	Code string `mapstructure:"code"`
	Name string `mapstructure:"name"`
}

// DataConfig 数据映射配置 (dataconfig.json)
type DataConfig struct {
	Flights     TableSchema `mapstructure:"flights"`
	Weather     TableSchema `mapstructure:"weather"`
	Phenomena   []CodeName  `mapstructure:"phenomena"`
	Descriptors []string    `mapstructure:"descriptors"`
	Intensities []CodeName  `mapstructure:"intensities"`
}

var (
	once               sync.Once
	instance           *Config
	dataConfigInstance *DataConfig
	onceErr            error
	mu                 sync.RWMutex
)

// LoadConfig 只加载一次配置，后续调用返回同一实例
func LoadConfig(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	once.Do(func() {
		instance, dataConfigInstance, onceErr = Load(jsonFolder, jsonFile, dataJsonFile)
	})
	return instance, dataConfigInstance, onceErr
}

// Load 读取并校验两个配置文件
func Load(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	dataConfigFile := filepath.Join(jsonFolder, dataJsonFile)

	if err := checkFile(configFile); err != nil {
		return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := checkFile(dataConfigFile); err != nil {
		return nil, nil, fmt.Errorf("读取数据配置文件失败: %w", err)
	}

	cfgChan := make(chan *Config, 1)
	dcfgChan := make(chan *DataConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configFile, cfgChan, errChan)
	go parseDataConfig(dataConfigFile, dcfgChan, errChan)

	cfg, dcfg, err := waitForResults(cfgChan, dcfgChan, errChan)
	if err != nil {
		return nil, nil, err
	}

	cfg.resolvePaths(jsonFolder)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, dcfg, nil
}

func checkFile(filePath string) error {
	if _, err := os.Stat(filePath); err != nil {
		return fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return nil
}

func newViper(filePath string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(filePath)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", ".")
	v.SetDefault("input.delimiter", ",")
	v.SetDefault("input.encoding", "utf-8")
	v.SetDefault("input.sheet_name", "Sheet1")
	v.SetDefault("output.path", "features.csv")
	v.SetDefault("output.vocabulary", "")
	v.SetDefault("alignment.threshold", "2h")
	v.SetDefault("alignment.workers", 4)
	v.SetDefault("synthesis.runway_heading", 40.0)
	v.SetDefault("synthesis.time_of_day_edges", []int{360, 720, 1080})
	v.SetDefault("synthesis.part_of_month", []int{10, 20})
	v.SetDefault("synthesis.label_policy", LabelBinary)
	v.SetDefault("synthesis.ontime_tolerance", 15.0)
	v.SetDefault("synthesis.workers", 4)
	v.SetDefault("calendar.name", "US")
	v.SetDefault("calendar.from_year", 0)
	v.SetDefault("calendar.to_year", 0)
	v.SetDefault("filters.carriers", []string{})
	v.SetDefault("filters.exclude_years", []int{})
	v.SetDefault("log_name", "app.log")
	v.SetDefault("log_max_size", "10 * 1024 * 1024")
	v.SetDefault("schedule", "")
}

func parseConfig(filePath string, resultChan chan<- *Config, errChan chan<- error) {
	v := newViper(filePath)
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		errChan <- fmt.Errorf("解析Config失败: %w", err)
		return
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		errChan <- fmt.Errorf("解析Config失败: %w", err)
		return
	}
	resultChan <- &cfg
}

func parseDataConfig(filePath string, resultChan chan<- *DataConfig, errChan chan<- error) {
	v := newViper(filePath)
	if err := v.ReadInConfig(); err != nil {
		errChan <- fmt.Errorf("解析DataConfig失败: %w", err)
		return
	}
	var dcfg DataConfig
	if err := v.Unmarshal(&dcfg); err != nil {
		errChan <- fmt.Errorf("解析DataConfig失败: %w", err)
		return
	}
	dcfg.fillDefaults()
	resultChan <- &dcfg
}

func waitForResults(
	cfgChan <-chan *Config,
	dcfgChan <-chan *DataConfig,
	errChan <-chan error,
) (*Config, *DataConfig, error) {
	var (
		cfg    *Config
		dcfg   *DataConfig
		errors []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
		case d := <-dcfgChan:
			dcfg = d
		case err := <-errChan:
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return nil, nil, combineErrors(errors)
	}

	if cfg == nil || dcfg == nil {
		return nil, nil, fmt.Errorf("部分配置未加载成功")
	}

	return cfg, dcfg, nil
}

func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}

	msg := "配置加载遇到多个错误:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

// resolvePaths 把相对路径挂到 data_dir 下；data_dir 本身相对于配置目录
func (c *Config) resolvePaths(jsonFolder string) {
	if !filepath.IsAbs(c.DataDir) {
		c.DataDir = filepath.Join(jsonFolder, c.DataDir)
	}
	join := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(c.DataDir, p)
	}
	c.Input.Flights = join(c.Input.Flights)
	c.Input.Weather = join(c.Input.Weather)
	c.Output.Path = join(c.Output.Path)
	c.Output.Vocabulary = join(c.Output.Vocabulary)
}

// Validate 校验配置；任何错误都是致命的
func (c *Config) Validate() error {
	var problems []string

	if c.Input.Flights == "" || c.Input.Weather == "" {
		problems = append(problems, "input.flights 与 input.weather 均不能为空")
	}
	if c.Alignment.Threshold <= 0 {
		problems = append(problems, fmt.Sprintf("alignment.threshold 必须为正: %v", c.Alignment.Threshold))
	}
	if len(c.Synthesis.TimeOfDayEdges) != 3 || !sort.IntsAreSorted(c.Synthesis.TimeOfDayEdges) ||
		c.Synthesis.TimeOfDayEdges[0] <= 0 || c.Synthesis.TimeOfDayEdges[2] >= 1440 {
		problems = append(problems, fmt.Sprintf("synthesis.time_of_day_edges 需要3个升序边界且位于(0,1440): %v", c.Synthesis.TimeOfDayEdges))
	}
	if len(c.Synthesis.PartOfMonth) != 2 || c.Synthesis.PartOfMonth[0] >= c.Synthesis.PartOfMonth[1] {
		problems = append(problems, fmt.Sprintf("synthesis.part_of_month 需要2个升序阈值: %v", c.Synthesis.PartOfMonth))
	}
	switch c.Synthesis.LabelPolicy {
	case LabelBinary, LabelThreeWay:
	default:
		problems = append(problems, fmt.Sprintf("未知的 synthesis.label_policy: %q", c.Synthesis.LabelPolicy))
	}
	if c.Calendar.FromYear > 0 && c.Calendar.ToYear > 0 && c.Calendar.FromYear > c.Calendar.ToYear {
		problems = append(problems, fmt.Sprintf("calendar 年份范围颠倒: %d > %d", c.Calendar.FromYear, c.Calendar.ToYear))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// DefaultDataConfig 返回内置的列映射与报文代码表
func DefaultDataConfig() *DataConfig {
	dc := &DataConfig{}
	dc.fillDefaults()
	return dc
}

func (dc *DataConfig) fillDefaults() {
	if len(dc.Flights.Columns) == 0 {
		dc.Flights.Columns = []ColumnMapping{
			{"YEAR", "year"},
			{"MONTH", "month"},
			{"DAY_OF_MONTH", "day_of_month"},
			{"DAY_OF_WEEK", "day_of_week"},
			{"OP_UNIQUE_CARRIER", "carrier"},
			{"CRS_DEP_TIME", "scheduled_departure_time"},
			{"DEP_DELAY", "departure_delay"},
			{"CANCELLED", "cancelled"},
			{"DIVERTED", "diverted"},
			{"CRS_ELAPSED_TIME", "scheduled_elapsed_time"},
		}
	}
	if len(dc.Flights.Mandatory) == 0 {
		dc.Flights.Mandatory = []string{
			"year", "month", "day_of_month", "day_of_week", "carrier",
			"scheduled_departure_time", "scheduled_elapsed_time", "departure_delay",
		}
	}
	if len(dc.Weather.Columns) == 0 {
		dc.Weather.Columns = []ColumnMapping{
			{"valid", "datetime"},
			{"tmpc", "temperature"},
			{"drct", "wind_direction"},
			{"sknt", "wind_speed"},
			{"alti", "altimeter"},
			{"mslp", "pressure"},
			{"p01i", "precipitation"},
			{"vsby", "visibility"},
			{"skyc1", "cloud_cover"},
			{"skyl1", "cloud_height"},
			{"metar", "metar_report"},
		}
	}
	if len(dc.Weather.Mandatory) == 0 {
		dc.Weather.Mandatory = []string{"datetime"}
	}
	if len(dc.Phenomena) == 0 {
		dc.Phenomena = []CodeName{
			{"RA", "rain"}, {"SN", "snow"}, {"DZ", "drizzle"}, {"SG", "snow_grains"},
			{"IC", "ice_crystals"}, {"PL", "ice_pellets"}, {"GR", "hail"}, {"GS", "small_hail"},
			{"UP", "unknown_precipitation"}, {"BR", "mist"}, {"FG", "fog"}, {"FU", "smoke"},
			{"VA", "volcanic_ash"}, {"DU", "dust"}, {"SA", "sand"}, {"HZ", "haze"},
			{"PY", "spray"}, {"PO", "dust_whirls"}, {"SQ", "squalls"}, {"FC", "funnel_cloud"},
			{"SS", "sandstorm"}, {"DS", "duststorm"}, {"TS", "thunderstorm"}, {"SH", "showers"},
			{"FZ", "freezing"}, {"MI", "shallow"}, {"PR", "partial"}, {"BC", "patches"},
			{"DR", "drifting"}, {"BL", "blowing"},
		}
	}
	if len(dc.Descriptors) == 0 {
		dc.Descriptors = []string{"MI", "PR", "BC", "DR", "BL", "SH", "TS", "FZ"}
	}
	if len(dc.Intensities) == 0 {
		dc.Intensities = []CodeName{{"-", "light"}, {"+", "heavy"}, {"VC", "vicinity"}}
	}
}

// RenameMap 返回某张表的 原始列名 -> 规范列名
func (ts *TableSchema) RenameMap() map[string]string {
	mu.RLock()
	defer mu.RUnlock()
	m := make(map[string]string, len(ts.Columns))
	for _, c := range ts.Columns {
		m[c.Source] = c.Name
	}
	return m
}

// SetColumn 覆盖或新增一条列映射
func (ts *TableSchema) SetColumn(source, name string) {
	mu.Lock()
	defer mu.Unlock()
	for i := range ts.Columns {
		if ts.Columns[i].Source == source {
			ts.Columns[i].Name = name
			return
		}
	}
	ts.Columns = append(ts.Columns, ColumnMapping{Source: source, Name: name})
}

// PhenomenonTable 返回 两字母代码 -> 名称
func (dc *DataConfig) PhenomenonTable() map[string]string {
	mu.RLock()
	defer mu.RUnlock()
	m := make(map[string]string, len(dc.Phenomena))
	for _, p := range dc.Phenomena {
		m[p.Code] = p.Name
	}
	return m
}

// IntensityTable 返回 强度前缀 -> 名称
func (dc *DataConfig) IntensityTable() map[string]string {
	mu.RLock()
	defer mu.RUnlock()
	m := make(map[string]string, len(dc.Intensities))
	for _, p := range dc.Intensities {
		m[p.Code] = p.Name
	}
	return m
}
