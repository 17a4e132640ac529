package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"licitacion-go/internal/calendar"
	"licitacion-go/internal/config"
	"licitacion-go/internal/exchange"
	"licitacion-go/internal/execution"
	"licitacion-go/internal/marketdata"
	"licitacion-go/internal/metrics"
	"licitacion-go/internal/paper"
	"licitacion-go/internal/risk"
	"licitacion-go/internal/runner"
	sig "licitacion-go/internal/signal"
	"licitacion-go/internal/strategy"
	"licitacion-go/internal/util"
)

const defaultConfigPath = "internal/config/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to the YAML configuration")
	mode := flag.String("mode", "", "paper or live (overrides app.mode)")
	once := flag.Bool("once", false, "run a single detection cycle and exit")
	warmup := flag.Duration("warmup", 30*time.Second, "market data warm-up before a -once cycle")
	rollover := flag.Float64("rollover", -1, "auction rollover (0.92 == 92%) to resolve open positions after the cycle")
	event := flag.String("event", "", "auction date (YYYY-MM-DD) the -rollover result belongs to")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err == nil && *mode != "" {
		cfg.App.Mode = *mode
	}
	if err == nil {
		cfg.ApplyDefaults()
		err = cfg.Validate()
	}
	if err != nil {
		boot := util.NewLogger("info")
		boot.Fatal().Err(err).Str("path", *configPath).Msg("load config")
	}

	var outputs []io.Writer
	logFile, err := util.OpenLogFile(cfg.App.LogFile)
	if err != nil {
		boot := util.NewLogger("info")
		boot.Fatal().Err(err).Str("path", cfg.App.LogFile).Msg("open log file")
	}
	if logFile != nil {
		defer logFile.Close()
		outputs = append(outputs, logFile)
	}
	log := util.NewLogger(cfg.App.LogLevel, outputs...).With().Str("app", cfg.App.Name).Str("mode", cfg.App.Mode).Logger()

	srv := metrics.Serve(cfg.App.MetricsAddr)
	defer srv.Close()
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	rootCtx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(rootCtx)
	defer cancel()

	loc := cfg.Detection.Location()
	var providerOpts []marketdata.Option
	if strings.ToLower(cfg.Market.Provider) != exchange.ProviderStub {
		providerOpts = append(providerOpts, marketdata.WithSampleInterval(time.Duration(cfg.Market.SampleIntervalMinutes)*time.Minute))
	}
	provider := marketdata.NewProvider(cfg.Market.HistorySize, providerOpts...)
	feed := exchange.NewFeed(cfg.Market.Provider, cfg.Detection.Instruments(), log,
		exchange.WithStubInterval(time.Duration(cfg.Market.StubIntervalMs)*time.Millisecond),
		exchange.WithPrimaryConfig(exchange.PrimaryConfig{
			RestURL:      cfg.Market.RestURL,
			WSURL:        cfg.Market.WSURL,
			Username:     cfg.Market.Username,
			Password:     cfg.Market.Password,
			MarketID:     cfg.Market.MarketID,
			SymbolPrefix: cfg.Market.SymbolPrefix,
			Settlement:   cfg.Market.Settlement,
		}),
	)
	poller := exchange.NewDollarPoller(exchange.DollarConfig{
		BaseURL:          cfg.Dollar.BaseURL,
		OfficialPath:     cfg.Dollar.OfficialPath,
		ParallelPath:     cfg.Dollar.ParallelPath,
		PollInterval:     time.Duration(cfg.Dollar.PollIntervalMs) * time.Millisecond,
		FallbackOfficial: cfg.Dollar.FallbackOfficial,
		FallbackParallel: cfg.Dollar.FallbackParallel,
	}, provider, log)

	engine, err := strategy.NewEngine(provider, cfg.Detection.Params(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("engine config")
	}

	source, err := buildCalendar(cfg, loc, log)
	if err != nil {
		log.Fatal().Err(err).Msg("calendar config")
	}

	var journal *paper.JSONLRecorder
	accountOpts := []paper.Option{paper.WithCosts(paper.Costs{
		CommissionPct: cfg.Trading.CommissionPct,
		SlippagePct:   cfg.Trading.SlippagePct,
	})}
	if cfg.Trading.JournalPath != "" {
		journal, err = paper.NewJSONLRecorder(cfg.Trading.JournalPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Trading.JournalPath).Msg("open journal")
		}
		defer journal.Close()
		accountOpts = append(accountOpts, paper.WithRecorder(journal))
	}
	account := paper.NewAccount(cfg.Trading.InitialCapital, accountOpts...)

	deps := runner.Deps{
		Engine:   engine,
		Calendar: source,
		Prices:   provider,
		Account:  account,
		Sizer:    risk.NewSizer(cfg.Trading.InitialCapital, cfg.Trading.PositionSizePct, cfg.Trading.MaxPositions),
	}
	if journal != nil {
		deps.Journal = journal
	}
	if cfg.App.Mode == config.ModeLive {
		deps.Executor = execution.NewExecutor(log)
	}
	openAt, _ := config.ParseClock(cfg.Detection.MarketOpen)
	closeAt, _ := config.ParseClock(cfg.Detection.MarketClose)
	run, err := runner.New(deps, runner.Config{
		DefaultInstruments: cfg.Detection.Lecaps,
		HorizonDays:        cfg.Calendar.HorizonDays,
		RefreshEvery:       time.Duration(cfg.Calendar.RefreshHours) * time.Hour,
		MarketOpen:         openAt,
		MarketClose:        closeAt,
		CalendarRefreshAt:  8 * time.Hour,
		Location:           loc,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("runner")
	}

	snaps := make(chan sig.MarketSnapshot, 1024)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ignoreCanceled(feed.Run(gctx, snaps)) })
	g.Go(func() error { return ignoreCanceled(exchange.Forward(gctx, snaps, provider)) })
	g.Go(func() error { return ignoreCanceled(poller.Run(gctx)) })

	log.Info().Strs("instruments", cfg.Detection.Instruments()).Str("feed", cfg.Market.Provider).Msg("detector started")
	if *once {
		g.Go(func() error {
			defer cancel()
			select {
			case <-time.After(*warmup):
			case <-gctx.Done():
				return nil
			}
			report, err := run.RunCycle(gctx)
			if err != nil {
				return ignoreCanceled(err)
			}
			for _, s := range report.Signals {
				fmt.Println(s.String())
			}
			if *rollover >= 0 {
				return resolve(run, *event, *rollover, loc)
			}
			return nil
		})
	} else {
		g.Go(func() error { return ignoreCanceled(run.Run(gctx, time.Minute)) })
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("detector stopped")
		os.Exit(1)
	}
	snap := account.Snapshot(nil)
	log.Info().Float64("cash", snap.Cash).Float64("realized_pnl", snap.RealizedPnL).Int("open", len(snap.Positions)).Msg("shutting down")
}

func buildCalendar(cfg *config.Config, loc *time.Location, log zerolog.Logger) (calendar.Source, error) {
	manual := make([]calendar.Event, 0, len(cfg.Calendar.Events))
	for _, ev := range cfg.Calendar.Events {
		date, err := calendar.ParseDate(ev.Date, loc)
		if err != nil {
			return nil, err
		}
		manual = append(manual, calendar.Event{
			Date:          date,
			Title:         ev.Title,
			Instruments:   ev.Instruments,
			MaturitiesARS: ev.MaturitiesARS,
		})
	}
	scraper := calendar.NewTreasuryScraper(cfg.Calendar.URL, log,
		calendar.WithLocation(loc),
		calendar.WithDetails(cfg.Calendar.FetchDetails),
	)
	return calendar.NewMulti(scraper, calendar.NewStatic(manual)), nil
}

func resolve(run *runner.Runner, event string, rollover float64, loc *time.Location) error {
	outcome := sig.EventOutcome{RolloverPct: rollover}
	if strings.TrimSpace(event) != "" {
		date, err := calendar.ParseDate(event, loc)
		if err != nil {
			return err
		}
		outcome.EventDate = date
	}
	for _, action := range run.Resolve(outcome) {
		fmt.Printf("%s %s: %s\n", action.Decision, action.Signal.Ticker, action.Reason)
	}
	return nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
