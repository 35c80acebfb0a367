package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/extractionengine/internal/auditlog"
	"github.com/ternarybob/extractionengine/internal/common"
	"github.com/ternarybob/extractionengine/internal/confidence"
	"github.com/ternarybob/extractionengine/internal/heuristic"
	"github.com/ternarybob/extractionengine/internal/jobrunner"
	"github.com/ternarybob/extractionengine/internal/jobstate"
	"github.com/ternarybob/extractionengine/internal/llmclient"
	"github.com/ternarybob/extractionengine/internal/maintenance"
	"github.com/ternarybob/extractionengine/internal/orchestrator"
	"github.com/ternarybob/extractionengine/internal/parsergen"
	"github.com/ternarybob/extractionengine/internal/parserexec"
	"github.com/ternarybob/extractionengine/internal/repository"
	badgerdb "github.com/ternarybob/extractionengine/internal/storage/badger"
	"github.com/ternarybob/extractionengine/internal/textsource"
	"github.com/ternarybob/extractionengine/internal/validationgen"
)

var (
	configPath  = flag.String("config", "", "Configuration file path")
	configPathC = flag.String("c", "", "Configuration file path (shorthand)")
	showVersion = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("extractionengine version %s\n", common.GetVersion())
		os.Exit(0)
	}

	path := *configPath
	if path == "" {
		path = *configPathC
	}
	if path == "" {
		if _, err := os.Stat("extractionengine.toml"); err == nil {
			path = "extractionengine.toml"
		}
	}

	// Startup sequence (REQUIRED ORDER): load config, init logger, print
	// banner, then wire components.
	config, err := common.LoadFromFile(path)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Err(err).Str("path", path).Msg("failed to load configuration")
		os.Exit(1)
	}

	logger := common.SetupLogger(config)
	common.PrintBanner(config, logger)
	defer common.Stop()

	engine, err := wire(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to wire application components")
	}
	defer engine.close()

	if err := engine.janitor.Start(config.Jobs.MaintenanceCron); err != nil {
		logger.Fatal().Err(err).Msg("failed to start maintenance schedule")
	}

	logger.Info().Msg("extractionengine ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	engine.janitor.Stop(ctx)
	common.PrintShutdownBanner(logger)
}

// application bundles every wired component that needs an orderly close.
type application struct {
	orchestrator *orchestrator.Orchestrator
	janitor      *maintenance.Janitor
	db           *badgerdb.DB
}

func (a *application) close() {
	if a.db != nil {
		a.db.Close()
	}
}

// wire constructs the engine's components (state store, repository, text
// source, LLM client, job runner, audit sink, maintenance janitor) and
// assembles the orchestrator (component J) behind its interfaces. The
// batch PDF report renderer is not wired here.
func wire(config *common.Config, logger arbor.ILogger) (*application, error) {
	db, err := badgerdb.Open(config.Repository.Root+"/.state", logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}

	repo, err := repository.New(config.Repository.Root, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open parser repository: %w", err)
	}

	textSource := textsource.NewExtractor(logger)
	heuristicExtractor := heuristic.NewExtractor()
	llm := llmclient.NewProviderFactory(&config.Gemini, &config.Claude, &config.LLM, logger)
	executor := parserexec.NewExecutor()
	calc := confidence.NewCalculator()
	parserGen := parsergen.NewGenerator()
	validGen := validationgen.NewGenerator()

	tracker := jobstate.NewTracker(db, logger)
	jobs := jobrunner.New(tracker, repo, llm, parserGen, validGen, logger, config.Jobs.WorkerConcurrency)
	audit := auditlog.NewSink(db, logger)

	thresholds := orchestrator.Thresholds{
		Accept:               config.Extraction.Accept,
		HeuristicFailure:     config.Extraction.HeuristicFailure,
		PerItemBudgetSeconds: config.Extraction.PerItemBudgetSeconds,
		Slack:                config.Extraction.Slack,
	}

	orch := orchestrator.New(textSource, heuristicExtractor, llm, repo, executor, calc, jobs, logger, thresholds).WithAuditSink(audit)

	staleThreshold := parseDurationOr(config.Repository.StaleJobThreshold, 30*time.Minute)
	quarantineRetention := parseDurationOr(config.Repository.QuarantineRetention, 168*time.Hour)
	janitor := maintenance.New(tracker, repo, logger, staleThreshold, quarantineRetention)

	return &application{orchestrator: orch, janitor: janitor, db: db}, nil
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
