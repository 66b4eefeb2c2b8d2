package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"code_duel/internal/api"
	"code_duel/internal/app/judge"
	"code_duel/internal/app/scoring"
	"code_duel/internal/app/service"
	"code_duel/internal/app/worker"
	"code_duel/internal/common/security"
	"code_duel/internal/domain/repository"
	"code_duel/internal/platform/config"
	"code_duel/internal/platform/database"
	"code_duel/internal/platform/judge0"
	"code_duel/internal/platform/logger"
	"code_duel/internal/platform/notify"
	"code_duel/internal/platform/queue"

	"go.uber.org/zap"
)

func main() {
	// 1. Load Configuration
	config.Load()
	cfg := config.AppConfig
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	defer logger.Sync()
	log := logger.L()

	// 2. Initialize JWT
	security.InitJWT(cfg.JWTKey)

	// 3. Initialize Storage
	var store *repository.Store
	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		store = repository.NewMemoryStore()
		log.Warn("memory_store_enabled", zap.String("note", "state is lost on restart"))
	default:
		if err := database.Connect(); err != nil {
			log.Fatal("postgres_connect_failed", zap.Error(err))
		}
		defer database.Close()
		if cfg.DBAutoMigrate {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := database.Migrate(ctx, database.DB)
			cancel()
			if err != nil {
				log.Fatal("schema_migration_failed", zap.Error(err))
			}
		}
		store = repository.NewPgStore(database.DB)
	}

	// 4. Initialize Redis
	if err := queue.ConnectRedis(); err != nil {
		log.Fatal("redis_connect_failed", zap.Error(err))
	}
	defer queue.CloseRedis()

	judgeQueue := queue.NewJudgeQueue(queue.RDB, cfg.JudgeQueueName)
	locker := queue.NewLocker(queue.RDB, "judge_lock:", time.Duration(cfg.JudgeLockTTLSeconds)*time.Second)
	notifier := notify.NewRedisNotifier(queue.RDB, "")
	drafts := repository.NewRedisDraftRepository(queue.RDB, cfg.DraftTTL)

	// 5. Initialize Judge
	judgeClient := judge0.NewClient(cfg.JudgeBaseURL,
		judge0.WithRapidAPI(cfg.JudgeAPIKey, cfg.JudgeAPIHost),
		judge0.WithMaxConnsPerHost(cfg.JudgeWorkers*2),
	)
	dispatcher := judge.NewDispatcher(judgeClient, store.Problems, judge.Options{
		PollInterval: cfg.JudgePollInterval,
		Timeout:      cfg.JudgeTimeout,
	})

	// 6. Initialize Services
	completionService := service.NewCompletionService(store, notifier, nil)
	evaluationService := service.NewEvaluationService(store, dispatcher, completionService, notifier,
		scoring.Policy{ClampNegative: cfg.ScoreClampNegative}, nil)
	services := api.Services{
		Matchmaking: service.NewMatchmakingService(store.Rooms, notifier, service.MatchmakingOptions{
			RoomCodeAttempts: cfg.RoomCodeAttempts,
			ClaimAttempts:    cfg.QuickplayClaimAttempts,
		}),
		Matches:     service.NewMatchService(store, notifier, nil),
		Submissions: service.NewSubmissionService(store, judgeQueue, evaluationService, notifier, nil),
		Drafts:      service.NewDraftService(store, drafts, nil),
	}

	// 7. Initialize Judge Worker
	judgeWorker := worker.NewJudgeWorker(judgeQueue, locker, evaluationService, worker.Options{
		Concurrency: cfg.JudgeWorkers,
		MaxAttempts: cfg.JudgeMaxAttempts,
	})
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	var workerWG sync.WaitGroup
	workerWG.Add(1)
	go func() {
		defer workerWG.Done()
		judgeWorker.Start(workerCtx)
	}()

	// 8. Initialize Router & HTTP Server
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      api.NewRouter(services, cfg.CORSOrigins...),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 9. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("server_starting", zap.String("port", cfg.APIPort), zap.String("store", cfg.StoreBackend))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server_listen_failed", zap.String("port", cfg.APIPort), zap.Error(err))
		}
	}()

	<-stop

	log.Info("server_shutting_down")
	workerCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server_shutdown_failed", zap.Error(err))
	}
	workerWG.Wait()

	log.Info("server_stopped")
}
