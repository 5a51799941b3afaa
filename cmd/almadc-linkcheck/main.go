// almadc-linkcheck validates persistent-identifier links, typically handle
// URLs exported from record metadata, and writes a CSV report with broken
// links sorted to the top.
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
	"github.com/grinnell-libraries/almadc/linkcheck"
)

var docs = strings.TrimLeft(`
# almadc-linkcheck - validate persistent identifier links

$ almadc-linkcheck -f handles.txt -o handle-validation.csv

Input is one URL per line. Each link gets a HEAD request with a GET
fallback; anything outside 2xx/3xx counts as broken.

## flags

`, "\n")

var (
	urlFile     = flag.String("f", "", "file with one URL per line")
	outFile     = flag.String("o", "", "CSV report path (default stdout)")
	maxRetries  = flag.Int("r", 2, "max retries per request")
	timeout     = flag.Duration("T", 30*time.Second, "per-request timeout")
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
	if *urlFile == "" {
		log.Fatal("need -f with a URL list")
	}
	urls, err := readURLs(*urlFile)
	if err != nil {
		log.Fatal(err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	checker := linkcheck.New(*maxRetries, *timeout)
	results := checker.CheckAll(ctx, urls, func(done, total int) {
		if done%25 == 0 || done == total {
			log.Infof("%d/%d links checked", done, total)
		}
	})
	w := os.Stdout
	if *outFile != "" {
		f, err := os.Create(*outFile)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		w = f
	}
	if err := linkcheck.WriteCSV(w, results); err != nil {
		log.Fatal(err)
	}
	var broken int
	for _, r := range results {
		if !r.OK {
			broken++
		}
	}
	log.Infof("%d links checked, %d broken", len(results), broken)
}

func readURLs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, sc.Err()
}
