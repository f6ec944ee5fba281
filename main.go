package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/beatrizuezu/maria-quiteria/config"
	"github.com/beatrizuezu/maria-quiteria/internal/engine"
	"github.com/beatrizuezu/maria-quiteria/internal/scraper"
	"github.com/beatrizuezu/maria-quiteria/logger"
	"github.com/beatrizuezu/maria-quiteria/services/archive"
	"github.com/beatrizuezu/maria-quiteria/services/cache"
	"github.com/beatrizuezu/maria-quiteria/services/publisher"
	"github.com/beatrizuezu/maria-quiteria/services/worker"
)

var (
	initialDateFlag string
	configFlag      string
	loopFlag        bool
)

var rootCmd = &cobra.Command{
	Use:   "maria-quiteria",
	Short: "Scrapes public spending data from the Feira de Santana city portals",
	PersistentPreRun: func(*cobra.Command, []string) {
		godotenv.Load()
		logger.Init()
	},
}

var crawlCmd = &cobra.Command{
	Use:   "crawl [spider...]",
	Short: "Run the given spiders (all of them when none is named)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runCrawl(args)
	},
}

var spidersCmd = &cobra.Command{
	Use:   "spiders",
	Short: "List the available spiders",
	Run: func(*cobra.Command, []string) {
		for _, name := range scraper.Names() {
			defaults, _ := scraper.Defaults(name)
			fmt.Printf("%-26s since %s  %s\n", name, defaults.StartDate.Format("2006-01-02"), defaults.URL)
		}
	},
}

func init() {
	crawlCmd.Flags().StringVar(&initialDateFlag, "initial-date", "", "crawl from this date (YYYY-MM-DD) instead of each portal's default")
	crawlCmd.Flags().StringVar(&configFlag, "config", "", "path to a portals YAML file with per-spider overrides")
	crawlCmd.Flags().BoolVar(&loopFlag, "loop", false, "keep crawling on the configured interval instead of running once")
	rootCmd.AddCommand(crawlCmd, spidersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCrawl(names []string) error {
	log := logger.Default

	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	spiders, err := buildSpiders(names)
	if err != nil {
		return err
	}
	if len(spiders) == 0 {
		return fmt.Errorf("no spiders enabled")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Int("spiders", len(spiders)).
		Bool("loop", loopFlag).
		Msg("Starting crawl")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	memcache := cache.NewMemcacheService(cfg.MemcacheAddr)
	logger.Info("Using memcache at %s", cfg.MemcacheAddr)

	redisPublisher := publisher.NewRedisPublisher(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream, cfg.RedisStreamMaxLength)
	defer redisPublisher.Close()
	logger.Info("Publishing to Redis at %s (db %d, stream prefix %q)", cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)

	sqliteArchive, err := archive.NewSQLiteArchive(cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("opening archive at %s: %w", cfg.SQLitePath, err)
	}
	defer sqliteArchive.Close()

	fetchEngine := engine.New(engine.Options{
		Timeout:    cfg.RequestTimeout,
		Workers:    cfg.WorkerCount,
		Retries:    cfg.RequestRetries,
		RetryDelay: cfg.RetryDelay,
		BlockTime:  cfg.BlockTime,
		Cache:      memcache,
	})

	w := worker.NewWorker(ctx, spiders, fetchEngine, redisPublisher, sqliteArchive, cfg.CrawlInterval, !loopFlag)
	w.Start()

	log.Info().Msg("Shutting down")
	return nil
}

// buildSpiders resolves the spiders to run and their portal configuration.
// Precedence, lowest to highest: built-in defaults, the portals file, the
// --initial-date flag.
func buildSpiders(names []string) ([]scraper.Spider, error) {
	if len(names) == 0 {
		names = scraper.Names()
	}

	var portals map[string]config.Portal
	if configFlag != "" {
		var err error
		portals, err = config.LoadPortals(configFlag, scraper.Names())
		if err != nil {
			return nil, err
		}
	}

	var initialDate *time.Time
	if initialDateFlag != "" {
		parsed, err := time.Parse("2006-01-02", initialDateFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid --initial-date %q: %w", initialDateFlag, err)
		}
		initialDate = &parsed
	}

	var spiders []scraper.Spider
	for _, name := range names {
		portalCfg, ok := scraper.Defaults(name)
		if !ok {
			return nil, fmt.Errorf("unknown spider %q (run the spiders command for the list)", name)
		}

		if portal, found := portals[name]; found {
			if portal.Enabled != nil && !*portal.Enabled {
				continue
			}
			if portal.URL != "" {
				portalCfg.URL = portal.URL
			}
			if portal.InitialDate != nil {
				portalCfg.StartDate = *portal.InitialDate
			}
		}
		if initialDate != nil {
			portalCfg.StartDate = *initialDate
		}

		spider, err := scraper.New(name, portalCfg, worker.NewReporter(name))
		if err != nil {
			return nil, err
		}
		spiders = append(spiders, spider)
	}
	return spiders, nil
}
