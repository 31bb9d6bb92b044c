package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Fi44er/tron_bot/config"
	"github.com/Fi44er/tron_bot/db"
	"github.com/Fi44er/tron_bot/internal/bot"
	"github.com/Fi44er/tron_bot/internal/ledger"
	"github.com/Fi44er/tron_bot/internal/notify"
	"github.com/Fi44er/tron_bot/internal/repository"
	"github.com/Fi44er/tron_bot/internal/server"
	"github.com/Fi44er/tron_bot/internal/service"
	"github.com/Fi44er/tron_bot/internal/worker"
	"github.com/Fi44er/tron_bot/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		utils.InitLogger("info").Fatal("Failed to load config: ", err)
	}
	logger := utils.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.ConnectDb(cfg.DB_URL, logger)
	if err != nil {
		logger.Fatal(err)
	}
	if err := db.Migrate(database, true, logger); err != nil {
		logger.Fatal(err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		logger.Fatal(err)
	}
	defer sqlDB.Close()

	cipher, err := utils.NewKeyCipher(cfg.EncryptionKey)
	if err != nil {
		logger.Fatal("Failed to init key cipher: ", err)
	}

	tron, err := ledger.NewClient(ledger.ClientConfig{
		BaseURL:     cfg.TronAPIURL,
		APIKey:      cfg.TronAPIKey,
		RPS:         cfg.TronRPS,
		TreasuryKey: cfg.TronPrivateKey,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create TRON client: ", err)
	}
	logger.Infof("Treasury address: %s", tron.TreasuryAddress())

	telegramBot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		logger.Fatal("Failed to create bot API: ", err)
	}

	repo := repository.NewRepository(database, logger)
	notifier := notify.NewTelegramNotifier(telegramBot, logger)
	messages := notify.Messages{ExplorerURL: cfg.TronExplorerURL}

	deposits := worker.NewDepositReconciler(repo, tron, cipher, notifier, messages, worker.DepositOptions{
		ConfirmationThreshold: cfg.ConfirmationThreshold,
		ForwardRate:           cfg.DepositToMainWalletRate,
		PageSize:              cfg.TransferPageSize,
		BatchSize:             cfg.WalletBatchSize,
		BatchPause:            cfg.WalletBatchPause,
		AdminChatID:           cfg.AdminChatID,
	}, logger)

	withdrawals := worker.NewWithdrawalReconciler(repo, tron, notifier, messages, worker.WithdrawalOptions{
		TreasuryKey:  tron.TreasuryKey(),
		SubmitExpiry: cfg.SubmitExpiry,
	}, logger)

	locker, closeLocker := newLocker(ctx, cfg.RedisURL, logger)
	defer closeLocker()

	scheduler := worker.NewScheduler(locker, cfg.RunTimeout, logger)
	if err := scheduler.Every(cfg.DepositInterval(), deposits); err != nil {
		logger.Fatal(err)
	}
	if err := scheduler.Every(cfg.WithdrawalInterval(), withdrawals); err != nil {
		logger.Fatal(err)
	}

	metricsServer := server.New(cfg.MetricsAddr, sqlDB, logger)
	go func() {
		if err := metricsServer.Start(); err != nil {
			logger.Errorf("Metrics server stopped: %v", err)
		}
	}()

	// Catch up right away instead of waiting a full interval.
	go func() {
		_ = scheduler.RunOnce(ctx, deposits)
		_ = scheduler.RunOnce(ctx, withdrawals)
	}()
	scheduler.Start()

	svc := service.NewService(repo, tron, cipher, &cfg, logger)
	bot.NewBot(telegramBot, svc, logger, &cfg).Start(ctx)

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	scheduler.Stop(shutdownCtx)
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Metrics server shutdown: %v", err)
	}
	logger.Info("Bye")
}

// newLocker uses Redis for the single-flight run lock when REDIS_URL is set,
// otherwise an in-process lock.
func newLocker(ctx context.Context, url string, logger *utils.Logger) (worker.RunLocker, func()) {
	if url == "" {
		logger.Warn("REDIS_URL is empty, run lock is local to this process")
		return worker.NewLocalLocker(), func() {}
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		logger.Fatal("Invalid REDIS_URL: ", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to connect to redis: ", err)
	}
	logger.Info("✅ Redis connected")

	return worker.NewRedisLocker(client), func() { _ = client.Close() }
}
