// Package app はridehubの起動処理とサブコマンドの実装を提供する。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hitoshi/ridehub/internal/auth"
	"github.com/hitoshi/ridehub/internal/config"
	"github.com/hitoshi/ridehub/internal/database"
	"github.com/hitoshi/ridehub/internal/handler"
	"github.com/hitoshi/ridehub/internal/logger"
	"github.com/hitoshi/ridehub/internal/metrics"
	"github.com/hitoshi/ridehub/internal/middleware"
	"github.com/hitoshi/ridehub/internal/model"
	"github.com/hitoshi/ridehub/internal/repository"
	"github.com/hitoshi/ridehub/internal/security"
	"github.com/hitoshi/ridehub/internal/user"
	"github.com/hitoshi/ridehub/internal/validation"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. 設定読み込み前にもログを使えるようにする
	logger.SetupDefault(w, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	// 2. .envと環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. .envでLOG_LEVELが指定された場合に備えて再設定する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "5000"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("env", cfg.AppEnv),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg, args[1:])
	case CommandSeed:
		return runSeed(cfg)
	default:
		return runServe(cfg)
	}
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(ctx context.Context, databaseURL string) (*sqlx.DB, error) {
	db, err := database.Open(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return db, nil
}

// newUserService はユーザーサービスを依存関係込みで構築する。
func newUserService(cfg *config.Config, repo repository.UserRepository, collector metrics.MetricsCollector) *user.Service {
	return user.NewService(
		repo,
		auth.NewBcryptHasher(cfg.BcryptSaltRound),
		validation.New(),
		security.NewProfileSanitizer(),
		collector,
	)
}

// rateLimiterConfig はreq/min単位の設定をreq/secのレートに変換する。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rl := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rl.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rl.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitLogin > 0 {
		rl.LoginRate = rate.Limit(float64(cfg.RateLimitLogin) / 60.0)
		rl.LoginBurst = cfg.RateLimitLogin
	}
	return rl
}

// buildRouter は全依存関係をワイヤリングしてHTTPハンドラーを構築する。
// 返却するRateLimiterはシャットダウン時にStopすること。
func buildRouter(cfg *config.Config, db *sqlx.DB, reg *prometheus.Registry) (http.Handler, *middleware.RateLimiter, *user.Service) {
	// 1. メトリクス
	collector := metrics.NewCollector(reg)

	// 2. リポジトリ
	userRepo := repository.NewPostgresUserRepo(db)

	// 3. ドメインサービス
	userService := newUserService(cfg, userRepo, collector)
	tokenService := auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  cfg.JWTAccessSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.JWTAccessTTL,
		RefreshTTL:    cfg.JWTRefreshTTL,
		Issuer:        cfg.JWTIssuer,
	})
	authService := auth.NewService(userRepo, auth.NewBcryptHasher(cfg.BcryptSaltRound), tokenService, collector)

	// 4. ルーター
	rateLimiter := middleware.NewRateLimiter(rateLimiterConfig(cfg))
	deps := &handler.RouterDeps{
		TokenVerifier:     authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.IsProduction(),
			CookieDomain: cfg.CookieDomain,
		},
		Logger:         slog.Default(),
		HealthChecker:  db,
		Metrics:        collector,
		MetricsHandler: metrics.Handler(reg),

		AuthService: handler.NewAuthServiceAdapter(authService),
		AuthCookies: auth.NewCookieWriter(auth.CookieConfig{
			Production: cfg.IsProduction(),
			Domain:     cfg.CookieDomain,
		}),
		UserService: handler.NewUserServiceAdapter(userService),
	}

	return handler.NewRouter(deps), rateLimiter, userService
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SUPER_ADMIN_EMAILが設定されている場合は起動時にSUPER_ADMINを作成する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router, rateLimiter, userService := buildRouter(cfg, db, reg)
	defer rateLimiter.Stop()

	if err := seedSuperAdmin(ctx, cfg, userService); err != nil {
		return err
	}

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down API server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// argsが"down"の場合は直近のマイグレーションを1つ戻し、それ以外は未適用分をすべて適用する。
func runMigrate(cfg *config.Config, args []string) error {
	down := len(args) > 0 && args[0] == "down"

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		slog.Bool("down", down),
	)

	var (
		version uint
		err     error
	)
	if down {
		version, err = database.RollbackMigration(cfg.DatabaseURL)
	} else {
		version, err = database.RunMigrations(cfg.DatabaseURL)
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runSeed はSUPER_ADMINアカウントを作成して終了する。
func runSeed(cfg *config.Config) error {
	if cfg.SuperAdminEmail == "" || cfg.SuperAdminPassword == "" {
		return errors.New("SUPER_ADMIN_EMAIL and SUPER_ADMIN_PASSWORD are required for seed")
	}

	ctx := context.Background()
	db, err := openDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	userService := newUserService(cfg, repository.NewPostgresUserRepo(db), nil)
	return seedSuperAdmin(ctx, cfg, userService)
}

// superAdminSeeder はSUPER_ADMINの作成インターフェース。*user.Serviceがこれを満たす。
type superAdminSeeder interface {
	SeedSuperAdmin(ctx context.Context, email, password string) (*model.User, bool, error)
}

// seedSuperAdmin は設定されたSUPER_ADMINが存在しない場合に作成する。
// メールアドレスまたはパスワードが未設定の場合は何もしない。
func seedSuperAdmin(ctx context.Context, cfg *config.Config, seeder superAdminSeeder) error {
	if cfg.SuperAdminEmail == "" || cfg.SuperAdminPassword == "" {
		return nil
	}

	u, created, err := seeder.SeedSuperAdmin(ctx, cfg.SuperAdminEmail, cfg.SuperAdminPassword)
	if err != nil {
		return fmt.Errorf("failed to seed super admin: %w", err)
	}
	if created {
		slog.Info("super admin created", slog.String("user_id", u.ID))
	} else {
		slog.Info("super admin already exists", slog.String("user_id", u.ID))
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
// 解析できないURLは全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
