package processor

import (
	"FlightDelayDataset/src/calendar"
	"FlightDelayDataset/src/config"
	"FlightDelayDataset/src/datasource/file"
	"FlightDelayDataset/src/storage"
	"context"
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Pipeline 规范化 -> 时间对齐 -> 特征派生 -> 编码输出，严格顺序执行
type Pipeline struct {
	cfg      *config.Config
	dcfg     *config.DataConfig
	calendar calendar.HolidayCalendar
	logger   *storage.Logger
}

// Output 一次运行的结果
type Output struct {
	RunID   string
	Table   dataframe.DataFrame
	Reports []*StageReport
	Match   MatchStats
}

// NewPipeline 日历在此构造，未配置或未知名称直接失败
func NewPipeline(cfg *config.Config, dcfg *config.DataConfig, logger *storage.Logger) (*Pipeline, error) {
	cal, err := calendar.New(cfg.Calendar.Name, cfg.Calendar.FromYear, cfg.Calendar.ToYear)
	if err != nil {
		return nil, err
	}
	return NewPipelineWithCalendar(cfg, dcfg, cal, logger)
}

// NewPipelineWithCalendar 注入自定义日历
func NewPipelineWithCalendar(cfg *config.Config, dcfg *config.DataConfig, cal calendar.HolidayCalendar, logger *storage.Logger) (*Pipeline, error) {
	if cal == nil {
		return nil, calendar.ErrNoCalendar
	}
	if logger == nil {
		logger = storage.NewNopLogger()
	}
	return &Pipeline{cfg: cfg, dcfg: dcfg, calendar: cal, logger: logger}, nil
}

// Run 读取输入文件、处理并写出结果
func (p *Pipeline) Run(ctx context.Context) (*Output, error) {
	opts := file.Options{
		Delimiter: p.cfg.Input.Delimiter,
		Encoding:  p.cfg.Input.Encoding,
		SheetName: p.cfg.Input.SheetName,
	}

	flights, err := file.ReadTable(p.cfg.Input.Flights, opts)
	if err != nil {
		return nil, fmt.Errorf("读取航班表失败: %w", err)
	}
	weather, err := file.ReadTable(p.cfg.Input.Weather, opts)
	if err != nil {
		return nil, fmt.Errorf("读取气象表失败: %w", err)
	}

	out, err := p.Process(ctx, flights, weather)
	if err != nil {
		return nil, err
	}

	if err := file.WriteTable(out.Table, p.cfg.Output.Path); err != nil {
		return nil, fmt.Errorf("写出结果失败: %w", err)
	}
	p.logger.Info("数据集已生成",
		zap.String("run_id", out.RunID),
		zap.String("path", p.cfg.Output.Path),
		zap.Int("rows", out.Table.Nrow()),
		zap.Int("columns", out.Table.Ncol()),
	)
	return out, nil
}

// Process 对内存中的两张原始表执行全部阶段
func (p *Pipeline) Process(ctx context.Context, flightsDF, weatherDF dataframe.DataFrame) (*Output, error) {
	out := &Output{RunID: uuid.NewString()}
	log := p.logger.With(zap.String("run_id", out.RunID))
	record := func(r *StageReport, extra ...zap.Field) {
		out.Reports = append(out.Reports, r)
		log.Info("阶段完成", append(r.Fields(), extra...)...)
	}

	// 1. 规范化
	normalizer := NewNormalizer(p.cfg, p.dcfg)
	flights, rep, err := normalizer.NormalizeFlights(flightsDF)
	if err != nil {
		return nil, err
	}
	record(rep)
	weather, rep, err := normalizer.NormalizeWeather(weatherDF)
	if err != nil {
		return nil, err
	}
	record(rep)

	// 2. 时间对齐
	if len(weather) == 0 {
		log.Warning("气象表为空，所有航班都将无法匹配")
	}
	aligner := NewAligner(p.cfg.Alignment.Threshold, p.cfg.Alignment.Workers)
	merged, rep, err := aligner.Align(ctx, flights, weather)
	if err != nil {
		return nil, err
	}
	out.Match = SummarizeMatches(merged)
	record(rep,
		zap.Int("match_count", out.Match.Count),
		zap.Float64("match_min_minutes", out.Match.Min),
		zap.Float64("match_max_minutes", out.Match.Max),
		zap.Float64("match_mean_minutes", out.Match.Mean),
		zap.Float64("match_median_minutes", out.Match.Median),
	)

	years := make([]int, len(merged))
	for i, m := range merged {
		years[i] = m.Flight.Year
	}
	if err := calendar.CheckCoverage(p.calendar, years); err != nil {
		return nil, err
	}

	// 3. 特征派生
	decoder, err := NewPhenomenonDecoder(p.dcfg)
	if err != nil {
		return nil, err
	}
	synth, err := NewSynthesizer(NewSynthesisConfig(p.cfg), p.calendar, decoder)
	if err != nil {
		return nil, err
	}
	rows, rep, err := synth.Synthesize(ctx, merged)
	if err != nil {
		return nil, err
	}
	record(rep)

	// 4. 编码
	vocab, fixed, err := p.vocabulary(rows, log)
	if err != nil {
		return nil, err
	}
	res := NewEncoder(NewSynthesisConfig(p.cfg)).Encode(rows, vocab, fixed)
	if res.Table.Err != nil {
		return nil, fmt.Errorf("生成输出表失败: %w", res.Table.Err)
	}
	record(res.Report,
		zap.Int("columns", res.Table.Ncol()),
		zap.Bool("fixed_vocabulary", fixed),
		zap.Int("unseen_carriers", res.UnseenCarriers),
		zap.Int("unseen_phenomena", res.UnseenPhenomena),
	)

	out.Table = res.Table
	return out, nil
}

// vocabulary 配置了词表文件时：存在则加载，否则保存本批词表；两种情况都按固定词表编码
func (p *Pipeline) vocabulary(rows []FeatureRow, log *storage.Logger) (Vocabulary, bool, error) {
	batch := BuildVocabulary(rows)
	path := p.cfg.Output.Vocabulary
	if path == "" {
		return batch, false, nil
	}

	saved, err := LoadVocabulary(path)
	if err != nil {
		return Vocabulary{}, false, err
	}
	if saved != nil {
		log.Info("使用固定词表", zap.String("path", path),
			zap.Int("carriers", len(saved.Carriers)), zap.Int("phenomena", len(saved.Phenomena)))
		return *saved, true, nil
	}

	if err := SaveVocabulary(path, batch); err != nil {
		return Vocabulary{}, false, err
	}
	log.Info("已保存本批词表", zap.String("path", path))
	return batch, true, nil
}
