package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"time"

	"mexcSniperBot/config"
	"mexcSniperBot/internal/adapters/enrichment"
	"mexcSniperBot/internal/adapters/logger"
	"mexcSniperBot/internal/adapters/mexcclient"
	"mexcSniperBot/internal/adapters/sqlite"
	"mexcSniperBot/internal/app"
	"mexcSniperBot/internal/domain"
	"mexcSniperBot/internal/execution"
	"mexcSniperBot/internal/pattern"
	"mexcSniperBot/internal/ports"
	"mexcSniperBot/internal/position"
	"mexcSniperBot/internal/registry"
	"mexcSniperBot/internal/safety"
	"mexcSniperBot/internal/scheduler"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err) // Also log to stderr
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()
	appLogger.Info(context.Background(), "Database repository initialized")

	// 4. Initialize Exchange Client (MEXC Adapter)
	exchangeClient, err := mexcclient.New(mexcclient.Config{
		APIKey:      cfg.APIKey,
		SecretKey:   cfg.SecretKey,
		APIBaseURL:  cfg.APIBaseURL,
		WebBaseURL:  cfg.WebBaseURL,
		Logger:      appLogger,
		HTTPTimeout: cfg.HTTPTimeout,
		MaxAttempts: cfg.RetryMaxAttempts,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize MEXC client")
		log.Fatalf("FATAL: Failed to initialize MEXC client: %v", err)
	}
	appLogger.Info(context.Background(), "MEXC client initialized")

	// 5. Initialize Confidence Enhancer (optional, LLM-backed)
	var enhancer ports.ConfidenceEnhancer
	if cfg.OpenAIAPIKey != "" {
		enh, err := enrichment.New(enrichment.Config{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
			Logger:  appLogger,
		})
		if err != nil {
			appLogger.Error(context.Background(), err, "FATAL: Failed to initialize confidence enhancer")
			log.Fatalf("FATAL: Failed to initialize confidence enhancer: %v", err)
		}
		enhancer = enh
		appLogger.Info(context.Background(), "Confidence enhancer initialized", map[string]interface{}{"model": cfg.OpenAIModel})
	} else {
		appLogger.Info(context.Background(), "Confidence enhancer disabled, no API key configured")
	}

	// 6. Initialize Core Components
	sched := scheduler.New(appLogger)

	reg, err := registry.New(registry.Config{
		GraceWindow:          cfg.ExpiryGraceWindow,
		MaxConcurrentTargets: cfg.MaxConcurrentTargets,
	}, appLogger, repo)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize target registry")
		log.Fatalf("FATAL: Failed to initialize target registry: %v", err)
	}

	analyzer, err := pattern.NewAnalyzer(
		pattern.Config{MinAdvanceNotice: time.Duration(cfg.TargetAdvanceHours * float64(time.Hour))},
		appLogger,
		pattern.NewCalculator(appLogger, enhancer),
		pattern.NewHistory(appLogger, repo))
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize pattern analyzer")
		log.Fatalf("FATAL: Failed to initialize pattern analyzer: %v", err)
	}

	coordinator, err := safety.New(appLogger, repo.Alerts(), safety.DefaultThresholds())
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize safety coordinator")
		log.Fatalf("FATAL: Failed to initialize safety coordinator: %v", err)
	}

	volatility := safety.NewVolatilityTracker(10*time.Minute, 10.0)

	positionManager, err := position.NewManager(position.Config{
		CheckInterval:            cfg.PositionCheckInterval,
		DefaultStopLossPercent:   cfg.DefaultStopLossPercent,
		DefaultTakeProfitPercent: cfg.DefaultTakeProfitPercent,
	}, appLogger, exchangeClient, exchangeClient, repo.Positions(), repo.Trades(), sched, volatility.Observe)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize position manager")
		log.Fatalf("FATAL: Failed to initialize position manager: %v", err)
	}

	strategies := domain.NewStrategyStore()
	conditions := func(symbol string) domain.TradingConditions {
		return domain.TradingConditions{
			RapidPriceMovement: volatility.RapidMovement(symbol),
			Volatility:         volatility.Volatility(symbol),
			PortfolioRisk:      positionManager.Exposure() / cfg.BuyAmountUSDT,
		}
	}

	orchestrator, err := execution.New(execution.Config{
		BuyAmountUSDT:  cfg.BuyAmountUSDT,
		MaxGateRetries: cfg.RetryMaxAttempts,
		SubmitTimeout:  cfg.HTTPTimeout,
	}, appLogger, exchangeClient, exchangeClient, coordinator, reg, positionManager, strategies,
		conditions, execution.NewPerformanceTracker())
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize execution orchestrator")
		log.Fatalf("FATAL: Failed to initialize execution orchestrator: %v", err)
	}

	// 7. Initialize Application Service
	sniperService, err := app.New(cfg, appLogger, exchangeClient, reg, analyzer, orchestrator,
		coordinator, positionManager, sched, strategies)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize sniper service")
		log.Fatalf("FATAL: Failed to initialize sniper service: %v", err)
	}
	appLogger.Info(context.Background(), "Sniper service initialized")

	// 8. Start the Service
	// Use context.Background() as the base context for the application run
	if err := sniperService.Start(context.Background()); err != nil {
		appLogger.Error(context.Background(), err, "Sniper service exited with error")
		log.Fatalf("FATAL: Sniper service exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
