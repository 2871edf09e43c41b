package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/asaidimu/go-tabula/api"
	"github.com/asaidimu/go-tabula/dashboard"
	"github.com/asaidimu/go-tabula/sqlite"
	"github.com/gorilla/handlers"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type config struct {
	addr     string
	dataPath string
	dbPath   string
	prefix   string
	tables   string
	strict   bool
	dev      bool
}

func parseFlags() config {
	var cfg config
	flag.StringVar(&cfg.addr, "addr", ":8080", "HTTP listen address")
	flag.StringVar(&cfg.dataPath, "data", "", "JSON dataset file (defaults to the bundled sample)")
	flag.StringVar(&cfg.dbPath, "sqlite", "", "SQLite database to load the dataset from")
	flag.StringVar(&cfg.prefix, "prefix", "", "table name prefix in the SQLite database")
	flag.StringVar(&cfg.tables, "tables", "", "comma separated SQLite tables to mount as extra views")
	flag.BoolVar(&cfg.strict, "strict", false, "reject views that reference unknown fields")
	flag.BoolVar(&cfg.dev, "dev", false, "development logging")
	flag.Parse()
	return cfg
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopmentConfig().Build()
	}
	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"
	return zapConfig.Build()
}

func main() {
	cfg := parseFlags()

	logger, err := newLogger(cfg.dev)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalog, closeSource, err := buildCatalog(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build catalog", zap.Error(err))
	}
	defer closeSource()

	server := api.NewServer(catalog, logger)
	httpSrv := &http.Server{
		Addr:              cfg.addr,
		Handler:           handlers.LoggingHandler(os.Stdout, server.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("Starting API server", zap.String("address", cfg.addr), zap.Int("views", len(catalog.Boards())))
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Server failed", zap.Error(err))
	}
	logger.Info("Server stopped")
}

// buildCatalog loads the dataset from the configured source and mounts the
// boards. The returned func releases the database, if one was opened.
func buildCatalog(ctx context.Context, cfg config, logger *zap.Logger) (*dashboard.Catalog, func(), error) {
	noop := func() {}
	options := dashboard.DefaultCatalogOptions()
	options.Strict = cfg.strict
	options.Logger = logger

	if cfg.dbPath == "" {
		ds, err := loadDataset(cfg.dataPath)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("Dataset loaded", zap.String("source", sourceName(cfg.dataPath)), zap.Int("records", ds.Size()))
		catalog, err := dashboard.NewCatalog(ds, options)
		return catalog, noop, err
	}

	db, err := sql.Open("sqlite3", cfg.dbPath)
	if err != nil {
		return nil, noop, err
	}
	closeDB := func() { db.Close() }

	source := sqlite.NewSource(db, logger, &sqlite.SourceOptions{TablePrefix: cfg.prefix})
	ds, err := dashboard.LoadSQLite(ctx, source, logger)
	if err != nil {
		closeDB()
		return nil, noop, err
	}
	logger.Info("Dataset loaded", zap.String("source", cfg.dbPath), zap.Int("records", ds.Size()))

	catalog, err := dashboard.NewCatalog(ds, options)
	if err != nil {
		closeDB()
		return nil, noop, err
	}
	for _, table := range strings.Split(cfg.tables, ",") {
		if table = strings.TrimSpace(table); table == "" {
			continue
		}
		if _, err := catalog.MountTable(ctx, source, table); err != nil {
			closeDB()
			return nil, noop, err
		}
	}
	return catalog, closeDB, nil
}

func loadDataset(path string) (*dashboard.Dataset, error) {
	if path == "" {
		return dashboard.SampleDataset()
	}
	return dashboard.LoadDatasetFile(path)
}

func sourceName(path string) string {
	if path == "" {
		return "sample"
	}
	return path
}
