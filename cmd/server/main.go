// Aurora 零售助手服务端入口。
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	chromem "github.com/philippgille/chromem-go"
	"github.com/spf13/cobra"

	"github.com/AuroraRetail/AssistantCore/agent"
	"github.com/AuroraRetail/AssistantCore/ai"
	"github.com/AuroraRetail/AssistantCore/api"
	"github.com/AuroraRetail/AssistantCore/knowledge"
	"github.com/AuroraRetail/AssistantCore/product"
	"github.com/AuroraRetail/AssistantCore/tools"
)

func main() {
	var (
		configPath string
		addr       string
	)

	root := &cobra.Command{
		Use:           "assistant-server",
		Short:         "Aurora retail-store conversational assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, addr)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")
	root.Flags().StringVar(&addr, "addr", "", "listen address override (defaults to server.addr)")

	if err := root.Execute(); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

// run 完成全部装配并启动 HTTP 服务。
func run(configPath, addrOverride string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using environment variables")
	}

	cfg, err := ai.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if addrOverride != "" {
		cfg.Server.Addr = addrOverride
	}

	// 商品库
	store, err := product.NewStore(cfg.Data.ProductDB)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("product database opened", "path", cfg.Data.ProductDB)

	// 模型服务与向量化函数
	svc := ai.NewService(cfg)
	embedder, err := svc.Embedder()
	if err != nil {
		return err
	}
	embedFunc := chromem.EmbeddingFunc(func(ctx context.Context, text string) ([]float32, error) {
		return embedder.EmbedQuery(ctx, text)
	})

	// 语义索引：启动阶段一次性建立（或复用磁盘上的索引）
	builder, err := knowledge.NewBuilder(cfg.Data.IndexDir, embedFunc, logger)
	if err != nil {
		return err
	}
	bootCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	shopIndex, err := builder.Build(bootCtx, "shop_info", cfg.Data.ShopInfo)
	if err != nil {
		return fmt.Errorf("failed to build shop info index: %w", err)
	}
	holidayIndex, err := builder.Build(bootCtx, "holidays", cfg.Data.Recommendations)
	if err != nil {
		return fmt.Errorf("failed to build holiday index: %w", err)
	}

	// 工具注册表：封闭的四件套
	sqlLLM, err := svc.Model(cfg.SQLTool.Model)
	if err != nil {
		return err
	}
	registry := tools.NewRegistry()
	for _, t := range []tools.Tool{
		tools.NewProductQueryTool(sqlLLM, store, tools.ProductQueryConfig{
			TopK:        cfg.SQLTool.TopK,
			MaxAttempts: cfg.SQLTool.MaxAttempts,
			Temperature: cfg.SQLTool.Temperature,
		}, logger),
		tools.NewShopInfoTool(shopIndex),
		tools.NewHolidayInfoTool(holidayIndex),
		tools.NewProductLookupTool(store),
	} {
		if err := registry.Register(t); err != nil {
			return err
		}
	}
	logger.Info("tool registry ready", "tools", registry.Names())

	// Agent 循环与对话编排
	mainLLM, err := svc.Model(cfg.DefaultModel)
	if err != nil {
		return err
	}
	loop := agent.NewLoop(mainLLM, registry, agent.Config{
		MaxSteps:    cfg.Agent.MaxSteps,
		Temperature: svc.ModelTemperature(cfg.DefaultModel),
	}, logger)

	var sessions ai.SessionStore
	if cfg.HistoryDir != "" {
		sessions, err = ai.NewFileStore(cfg.HistoryDir, logger)
		if err != nil {
			return err
		}
		logger.Info("using file session store", "dir", cfg.HistoryDir)
	} else {
		sessions = ai.NewMemoryStore()
		logger.Info("using in-memory session store")
	}

	chat := ai.NewChat(sessions, loop, cfg.Agent.MaxHistoryTurns, logger)
	handler := api.NewHandler(chat, logger)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.Routes(cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
