package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/MarkoPoloResearchLab/tontine/internal/httpapi"
	"github.com/MarkoPoloResearchLab/tontine/internal/notify"
	"github.com/MarkoPoloResearchLab/tontine/internal/oplog"
	"github.com/MarkoPoloResearchLab/tontine/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/tontine/pkg/tontine"
	"github.com/glebarez/sqlite"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	flagDatabaseURL    = "database-url"
	flagListenAddr     = "listen-addr"
	flagSigningKey     = "jwt-signing-key"
	flagTokenIssuer    = "jwt-issuer"
	flagTokenTTL       = "token-ttl"
	flagAllowedOrigins = "allowed-origins"
	flagNotifyBuffer   = "notify-buffer"
	flagDebug          = "debug"

	configKeyDatabaseURL    = "database_url"
	configKeyListenAddr     = "listen_addr"
	configKeySigningKey     = "jwt_signing_key"
	configKeyTokenIssuer    = "jwt_issuer"
	configKeyTokenTTL       = "token_ttl"
	configKeyAllowedOrigins = "allowed_origins"
	configKeyNotifyBuffer   = "notify_buffer"
	configKeyDebug          = "debug"

	envPrefix = "TONTINE"

	defaultDatabaseURL    = "sqlite:///tmp/tontine.db"
	defaultListenAddr     = ":8080"
	defaultAllowedOrigins = "http://localhost:3000"
	defaultNotifyBuffer   = 256

	driverPostgres = "postgres"
	driverSQLite   = "sqlite"

	notifyDrainTimeout = 5 * time.Second
)

type runtimeConfig struct {
	DatabaseURL  string
	NotifyBuffer int
	HTTP         httpapi.Config
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "tontined: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "tontined",
		Short:         "Tontine and corridor HTTP API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, viper.New(), cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "PostgreSQL or SQLite connection string")
	cmd.Flags().String(flagListenAddr, defaultListenAddr, "HTTP listen address")
	cmd.Flags().String(flagSigningKey, "", "HS256 key used to sign bearer credentials")
	cmd.Flags().String(flagTokenIssuer, "", "issuer claim for bearer credentials")
	cmd.Flags().Duration(flagTokenTTL, 0, "bearer credential lifetime")
	cmd.Flags().String(flagAllowedOrigins, defaultAllowedOrigins, "comma-separated CORS origins")
	cmd.Flags().Int(flagNotifyBuffer, defaultNotifyBuffer, "queued notifications before delivery falls behind; 0 delivers inline")
	cmd.Flags().Bool(flagDebug, false, "expose internal error details in responses")

	return cmd
}

func loadConfig(cmd *cobra.Command, settings *viper.Viper, cfg *runtimeConfig) error {
	settings.SetEnvPrefix(envPrefix)
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()

	bindings := map[string]string{
		configKeyDatabaseURL:    flagDatabaseURL,
		configKeyListenAddr:     flagListenAddr,
		configKeySigningKey:     flagSigningKey,
		configKeyTokenIssuer:    flagTokenIssuer,
		configKeyTokenTTL:       flagTokenTTL,
		configKeyAllowedOrigins: flagAllowedOrigins,
		configKeyNotifyBuffer:   flagNotifyBuffer,
		configKeyDebug:          flagDebug,
	}
	for key, flag := range bindings {
		if err := settings.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = strings.TrimSpace(settings.GetString(configKeyDatabaseURL))
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	cfg.NotifyBuffer = settings.GetInt(configKeyNotifyBuffer)
	if cfg.NotifyBuffer < 0 {
		return fmt.Errorf("notify buffer must not be negative")
	}
	cfg.HTTP = httpapi.Config{
		ListenAddr:     settings.GetString(configKeyListenAddr),
		AllowedOrigins: httpapi.ParseAllowedOrigins(settings.GetString(configKeyAllowedOrigins)),
		SigningKey:     settings.GetString(configKeySigningKey),
		TokenIssuer:    settings.GetString(configKeyTokenIssuer),
		TokenTTL:       settings.GetDuration(configKeyTokenTTL),
		Debug:          settings.GetBool(configKeyDebug),
	}
	return cfg.HTTP.Validate()
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	zapLogger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	gormDB, cleanup, driver, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer func() { _ = cleanup() }()

	if err := gormstore.AutoMigrate(ctx, gormDB); err != nil {
		return err
	}
	zapLogger.Info("database ready", zap.String("driver", driver))

	store := gormstore.New(gormDB)
	dispatcher, err := notify.NewDispatcher(tontine.NewStoreNotifier(store), zapLogger, cfg.NotifyBuffer)
	if err != nil {
		return fmt.Errorf("notification dispatcher: %w", err)
	}
	dispatcher.Start()
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), notifyDrainTimeout)
		defer cancel()
		if closeErr := dispatcher.Close(drainCtx); closeErr != nil {
			zapLogger.Warn("notification drain incomplete", zap.Error(closeErr))
		}
	}()

	service, err := tontine.NewService(store, time.Now,
		tontine.WithOperationLogger(oplog.New(zapLogger)),
		tontine.WithNotifier(dispatcher),
	)
	if err != nil {
		return fmt.Errorf("tontine service init: %w", err)
	}
	return httpapi.Run(ctx, cfg.HTTP, service, zapLogger)
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, string, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, "", err
	}

	var db *gorm.DB
	gormConfig := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	switch driver {
	case driverPostgres:
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
	case driverSQLite:
		db, err = gorm.Open(sqlite.Open(sqlitePath), gormConfig)
	default:
		return nil, nil, "", fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, "", err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, "", err
	}
	if driver == driverSQLite {
		// SQLite allows a single writer.
		sqlDB.SetMaxOpenConns(1)
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, driver, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return driverPostgres, "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		parsed, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := parsed.Path
		if path == "" {
			path = parsed.Host
		}
		if path == "" || path == "/" {
			path = "tontine.db"
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return driverSQLite, sqlitePath, err
	}
	sqlitePath, err := normalizeSQLitePath(dsn)
	return driverSQLite, sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(".", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	return path, nil
}
