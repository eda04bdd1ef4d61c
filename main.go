package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/metrico/tablepipe/config"
	"github.com/metrico/tablepipe/logger"
	"github.com/metrico/tablepipe/model"
	"github.com/metrico/tablepipe/repository"
	"github.com/metrico/tablepipe/router"
	"github.com/metrico/tablepipe/service"
	"github.com/metrico/tablepipe/stdin"
)

// initFlags initializes the command line flags
func initFlags() *model.CommandLineFlags {
	appFlags := &model.CommandLineFlags{}
	appFlags.Config = flag.String("config", "", "Service configuration file. Default none")
	appFlags.Tables = flag.String("tables", "", "Table definitions file. Overrides the configuration")
	appFlags.Host = flag.String("host", "", "API host. Default 0.0.0.0")
	appFlags.Port = flag.String("port", "", "API port. Default 8123")
	appFlags.Stdin = flag.Bool("stdin", false, "Render one page of rows read from STDIN. Default false")
	appFlags.Format = flag.String("format", "", "STDIN row format: ndjson, json, lineproto, parquet. Default ndjson")
	appFlags.Output = flag.String("output", "JSON", "STDIN output format: JSON, CSVWithNames, TSVWithNames, TSV. Default JSON")
	appFlags.Search = flag.String("search", "", "STDIN search text or clause")
	appFlags.Sort = flag.String("sort", "", "STDIN sort column")
	appFlags.Order = flag.String("order", "", "STDIN sort order, asc or desc")
	appFlags.Page = flag.Int("page", 1, "STDIN page number")
	appFlags.Rows = flag.Int("rows", 0, "STDIN rows per page. Default from configuration")
	flag.Parse()
	return appFlags
}

var appFlags *model.CommandLineFlags

func main() {
	appFlags = initFlags()
	config.InitConfig(*appFlags.Config)
	logger.Init(logger.Config{Level: config.Config.Log.Level, Format: config.Config.Log.Format})
	settings := service.SettingsFromConfig(config.Config)

	tablesFile := config.Config.Tables
	if *appFlags.Tables != "" {
		tablesFile = *appFlags.Tables
	}
	var tables *model.Config
	if tablesFile != "" {
		var err error
		if tables, err = config.LoadTables(tablesFile); err != nil {
			logger.Error("failed to load table definitions", "file", tablesFile, "error", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *appFlags.Stdin {
		if err := stdin.Run(ctx, appFlags, tables, settings, os.Stdin, os.Stdout); err != nil {
			logger.Error("stdin failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if tables == nil {
		logger.Error("no table definitions, set -tables or tables in the configuration")
		os.Exit(1)
	}
	repo := repository.NewTablesRepository()
	defer repo.Close()
	if err := service.LoadTables(ctx, repo, tables, settings); err != nil {
		logger.Error("failed to load tables", "error", err)
		os.Exit(1)
	}

	host, port := config.Config.Server.Host, config.Config.Server.Port
	if *appFlags.Host != "" {
		host = *appFlags.Host
	}
	if *appFlags.Port != "" {
		port = *appFlags.Port
	}
	srv := &http.Server{Addr: host + ":" + port, Handler: router.NewRouter(repo)}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	logger.Info("tablepipe API running", "addr", srv.Addr, "tables", repo.Names())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic(err)
	}
}
