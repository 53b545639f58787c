// Command sync pulls EDGAR data for a batch of tickers into the configured
// store.
//
//	sync -tickers AAPL,MSFT,GOOGL -parallel 4
//
// Caches are written back to the EDGAR cache dir on exit.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/app"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/config"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/logging"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/processor"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/models"
)

func main() {
	var (
		configPath = flag.String("config", "config/app.yaml", "path to the YAML config file")
		tickerList = flag.String("tickers", "", "comma separated tickers (default: scheduler.tickers from config)")
		mappings   = flag.Bool("mappings", true, "refresh CIK-ticker mappings first")
		force      = flag.Bool("force", false, "bypass EDGAR caches and reprocess known filings")
		parallel   = flag.Int("parallel", 4, "companies synced at once")
		clearCache = flag.Bool("clear-cache", false, "drop cached EDGAR responses before syncing")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] %v\n", err)
		os.Exit(1)
	}
	tickers := parseTickers(*tickerList)
	if len(tickers) == 0 {
		tickers = parseTickers(strings.Join(cfg.Scheduler.Tickers, ","))
	}
	if len(tickers) == 0 && !*mappings {
		fmt.Fprintln(os.Stderr, "nothing to do: pass -tickers or configure scheduler.tickers")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] %v\n", err)
		os.Exit(1)
	}

	if *clearCache {
		a.EDGAR.ClearCaches()
	}
	failed := run(ctx, a.Processor, tickers, *mappings, *force, *parallel)
	a.Close()
	if failed > 0 {
		os.Exit(1)
	}
}

func parseTickers(raw string) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range strings.Split(raw, ",") {
		t = models.NormalizeTicker(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// run syncs mappings and then every ticker, returning the number of failures.
// One failing company does not stop the others.
func run(ctx context.Context, p *processor.Processor, tickers []string, mappings, force bool, parallel int) int {
	log := logging.Component("sync")
	failed := 0

	if mappings {
		n, err := p.SyncCIKTickerMappings(ctx, force)
		if err != nil {
			log.WithError(err).Error("mapping sync failed")
			failed++
		} else {
			log.WithField("count", n).Info("mappings synchronized")
		}
	}

	var (
		mu      sync.Mutex
		reports []*processor.SyncReport
		errs    = map[string]error{}
	)
	g := new(errgroup.Group)
	if parallel < 1 {
		parallel = 1
	}
	g.SetLimit(parallel)
	for _, t := range tickers {
		t := t
		g.Go(func() error {
			rep, err := p.SyncCompany(ctx, t, force)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[t] = err
				return nil
			}
			reports = append(reports, rep)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(reports, func(i, j int) bool { return reports[i].Ticker < reports[j].Ticker })
	for _, r := range reports {
		log.WithFields(logrus.Fields{
			"ticker":        r.Ticker,
			"cik":           r.CIK,
			"filings_saved": r.FilingsSaved,
			"metrics_saved": r.MetricsSaved,
			"elapsed":       time.Duration(r.ElapsedMS) * time.Millisecond,
		}).Info("synchronized")
	}
	for t, err := range errs {
		log.WithField("ticker", t).WithError(err).Error("sync failed")
	}
	return failed + len(errs)
}
