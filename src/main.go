package main

import (
	"FlightDelayDataset/src/config"
	"FlightDelayDataset/src/datasource/file"
	"FlightDelayDataset/src/processor"
	"FlightDelayDataset/src/storage"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron"
	"go.uber.org/zap"
)

func main() {
	configDir := flag.String("config", "./config", "配置目录，包含 config.json 与 dataconfig.json")
	once := flag.Bool("once", false, "只运行一次后退出")
	watch := flag.Bool("watch", false, "输入文件变化时重新生成")
	addr := flag.String("http", "", "实时日志服务地址，例如 :8080")
	flag.Parse()

	cfg, dcfg, err := config.LoadConfig(*configDir, "config.json", "dataconfig.json")
	if err != nil {
		log.Fatal("加载配置失败: ", err)
	}

	// 初始化日志系统
	logger, err := storage.NewLogger(cfg.LogName)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Close()

	a, err := newApp(cfg, dcfg, logger)
	if err != nil {
		logger.Error("初始化流水线失败", zap.Error(err))
		logger.Close()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once || (!*watch && cfg.Schedule == "") {
		if err := a.runOnce(ctx); err != nil {
			logger.Close()
			os.Exit(1)
		}
		return
	}

	if *addr != "" {
		srv := startWebUI(logger, *addr)
		defer srv.Close()
	}

	// 启动时先生成一次
	a.runOnce(ctx)

	if cfg.Schedule != "" {
		c, err := a.schedule(ctx)
		if err != nil {
			logger.Error("创建定时任务失败", zap.Error(err))
			os.Exit(1)
		}
		c.Start()
		defer c.Stop()
		logger.Info("定时任务已启动", zap.String("schedule", cfg.Schedule))
	}

	if *watch {
		go func() {
			if err := a.watch(ctx); err != nil {
				logger.Error("文件监听失败", zap.Error(err))
				stop()
			}
		}()
		logger.Info("正在监听输入文件", zap.String("flights", cfg.Input.Flights), zap.String("weather", cfg.Input.Weather))
	}

	waitForShutdown(ctx, logger)
}

// app 串行执行流水线；定时任务与文件监听可能同时触发
type app struct {
	cfg      *config.Config
	logger   *storage.Logger
	pipeline *processor.Pipeline
	mu       sync.Mutex
}

func newApp(cfg *config.Config, dcfg *config.DataConfig, logger *storage.Logger) (*app, error) {
	p, err := processor.NewPipeline(cfg, dcfg, logger)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, pipeline: p}, nil
}

// runOnce 运行一次流水线并检查日志轮转
func (a *app) runOnce(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	t1 := time.Now()
	out, err := a.pipeline.Run(ctx)
	if err != nil {
		a.logger.Error("生成数据集失败", zap.Error(err))
	} else {
		a.logger.Info("数据处理完成", zap.String("run_id", out.RunID), zap.Duration("elapsed", time.Since(t1)))
	}

	if rerr := a.logger.CheckRotate(a.cfg); rerr != nil {
		a.logger.Warning("日志轮转失败", zap.Error(rerr))
	}
	return err
}

// schedule 按 cfg.Schedule 定时重跑
func (a *app) schedule(ctx context.Context) (*cron.Cron, error) {
	c := cron.New()
	err := c.AddFunc(a.cfg.Schedule, func() {
		a.logger.Info("开始定时生成", zap.String("schedule", a.cfg.Schedule))
		a.runOnce(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("无效的定时表达式 %q: %w", a.cfg.Schedule, err)
	}
	return c, nil
}

// watch 输入文件变化后重跑，直到 ctx 结束
func (a *app) watch(ctx context.Context) error {
	monitor, err := file.NewFileMonitor(a.cfg.Input.Flights, a.cfg.Input.Weather)
	if err != nil {
		return err
	}
	defer monitor.Close()

	return monitor.Watch(ctx, func(path string) {
		a.logger.Info("输入文件已更新", zap.String("path", path))
		a.runOnce(ctx)
	})
}

// logsHandler 把订阅到的日志逐行推送给客户端
func logsHandler(logger *storage.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		if flusher != nil {
			flusher.Flush()
		}

		logChan := logger.Subscribe()
		for {
			select {
			case msg := <-logChan:
				if _, err := fmt.Fprintln(w, msg); err != nil {
					return
				}
				if flusher != nil {
					flusher.Flush()
				}
			case <-r.Context().Done():
				return
			}
		}
	}
}

// startWebUI 启动实时日志服务
func startWebUI(logger *storage.Logger, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/logs", logsHandler(logger))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("日志服务退出", zap.Error(err))
		}
	}()
	return srv
}

func waitForShutdown(ctx context.Context, logger *storage.Logger) {
	<-ctx.Done()
	logger.Info("收到退出信号，正在关闭...")
}
