// almadc-edit applies a named curation rule to a batch of Alma-D bib
// records.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/grinnell-libraries/almadc"
	"github.com/grinnell-libraries/almadc/alma"
	"github.com/grinnell-libraries/almadc/backup"
	"github.com/grinnell-libraries/almadc/batch"
	"github.com/grinnell-libraries/almadc/config"
	"github.com/grinnell-libraries/almadc/export"
	"github.com/grinnell-libraries/almadc/report"
	"github.com/grinnell-libraries/almadc/rules"
)

var docs = strings.TrimLeft(`
# almadc-edit - batch edit Alma-D bib records

Applies one named Dublin Core curation rule to a list of records, one
record at a time, and writes CSV and JSON reports of what happened.

## configuration

ALMA_API_KEY    (required, or in a local .env file)
ALMA_API_REGION ("North America", "EU", "Asia Pacific")
ALMA_API_URL    (optional host override)
ALMADC_DATA_DIR (reports and backups, default under XDG data home)

## list rules

$ almadc-edit -l
replace-rights
add-grinnell-identifier
clear-collection-relations

## run

$ almadc-edit -rule replace-rights -f mmsids.txt -dry-run
$ almadc-edit -rule replace-rights -f mmsids.txt

Before the first real update of a run, the original XML of every record
about to change is appended to a compressed backup file in the data dir.

## offline

$ almadc-edit -rule replace-rights -from-export bibs-export.xml

Reads records from an Alma export file instead of the API; implies
-dry-run.

## flags

`, "\n")

var (
	ruleName    = flag.String("rule", "", "name of the rule to apply")
	idFile      = flag.String("f", "", "file with one MMS ID per line")
	fromExport  = flag.String("from-export", "", "read records from an export file instead of the API (implies -dry-run)")
	dryRun      = flag.Bool("dry-run", false, "do not write anything back to Alma")
	dataDir     = flag.String("d", "", "directory for reports and backups (default from config)")
	maxRetries  = flag.Int("r", 3, "max retries per API request")
	timeout     = flag.Duration("T", 60*time.Second, "per-request timeout")
	listRules   = flag.Bool("l", false, "list available rule names")
	verbose     = flag.Bool("v", false, "debug logging")
	showVersion = flag.Bool("version", false, "show version")
)

func main() {
	flag.Usage = func() {
		io.WriteString(os.Stderr, docs)
		flag.PrintDefaults()
	}
	flag.Parse()
	if *showVersion {
		fmt.Println(almadc.Version)
		os.Exit(0)
	}
	if *listRules {
		for _, r := range rules.All() {
			fmt.Println(r.Name)
		}
		os.Exit(0)
	}
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	rule, ok := rules.ByName(*ruleName)
	if !ok {
		log.Fatalf("unknown rule %q, use -l to list rules", *ruleName)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var (
		store  batch.Store
		ids    []string
		bkp    *backup.Writer
		outDir string
		err    error
	)
	switch {
	case *fromExport != "":
		f, err := os.Open(*fromExport)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		st, err := export.LoadStore(f)
		if err != nil {
			log.Fatalf("reading export: %v", err)
		}
		log.WithField("records", len(st.IDs)).Info("loaded export file")
		store, ids = st, st.IDs
		*dryRun = true
		outDir = "."
		if *dataDir != "" {
			outDir = *dataDir
		}
	default:
		if *idFile == "" {
			log.Fatal("need -f with an MMS ID list, or -from-export")
		}
		ids, err = readIDs(*idFile)
		if err != nil {
			log.Fatal(err)
		}
		cfg, err := config.FromEnv()
		if err != nil {
			log.Fatal(err)
		}
		cfg.MaxRetries, cfg.Timeout = *maxRetries, *timeout
		client := alma.New(cfg.BaseURL, cfg.APIKey)
		client.Client = alma.DefaultHTTPClient(cfg.MaxRetries, cfg.Timeout)
		store = client
		outDir = cfg.DataDir
		if *dataDir != "" {
			outDir = *dataDir
		}
		if !*dryRun {
			bkp = backup.New(backup.Path(outDir, rule.Name, time.Now()))
		}
	}
	if *dryRun {
		log.Info("dry run, no records will be changed")
	}
	runner := &batch.Runner{
		Store:  store,
		DryRun: *dryRun,
		OnProgress: func(done, total int) {
			if done%50 == 0 || done == total {
				log.Infof("%d/%d records processed", done, total)
			}
		},
	}
	if bkp != nil {
		runner.Backup = bkp
	}
	summary := runner.Run(ctx, rule, ids)
	if bkp != nil {
		if err := bkp.Close(); err != nil {
			log.WithError(err).Error("closing backup")
		}
	}
	csvPath, jsonPath, err := report.WriteFiles(outDir, summary)
	if err != nil {
		log.Fatalf("writing reports: %v", err)
	}
	for _, o := range rules.Outcomes {
		fmt.Printf("%-20s %d\n", o, summary.Counts[o])
	}
	if summary.Canceled {
		fmt.Printf("canceled after %d/%d records\n", summary.Done, summary.Total)
	}
	fmt.Printf("reports: %s %s\n", csvPath, jsonPath)
	if len(summary.Errors) > 0 {
		os.Exit(1)
	}
}

// readIDs reads one MMS ID per line, ignoring blanks and # comments.
func readIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	return ids, sc.Err()
}
