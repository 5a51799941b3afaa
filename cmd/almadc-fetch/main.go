// almadc-fetch retrieves the raw XML of a single bib record, for examining
// structurally atypical records before running a batch edit.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/beevik/etree"
	log "github.com/sirupsen/logrus"

	"github.com/grinnell-libraries/almadc"
	"github.com/grinnell-libraries/almadc/alma"
	"github.com/grinnell-libraries/almadc/bibxml"
	"github.com/grinnell-libraries/almadc/config"
)

var docs = strings.TrimLeft(`
# almadc-fetch - fetch one bib record

$ almadc-fetch -m 991011546793604641 > record.xml
$ almadc-fetch -m 991011546793604641 -structure

The -structure mode prints the element outline with namespaces resolved,
which is the quickest way to see why a record failed to anchor a new field.

## flags

`, "\n")

var (
	mmsID       = flag.String("m", "", "MMS ID to fetch")
	outFile     = flag.String("o", "", "write XML to file instead of stdout")
	structure   = flag.Bool("structure", false, "print the element outline instead of raw XML")
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
	if *mmsID == "" {
		log.Fatal("need -m with an MMS ID")
	}
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal(err)
	}
	client := alma.New(cfg.BaseURL, cfg.APIKey)
	raw, err := client.Fetch(context.Background(), *mmsID)
	if err != nil {
		log.Fatal(err)
	}
	if *structure {
		doc, err := bibxml.Parse(raw)
		if err != nil {
			log.Fatal(err)
		}
		printOutline(os.Stdout, doc)
		return
	}
	w := os.Stdout
	if *outFile != "" {
		f, err := os.Create(*outFile)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		w = f
	}
	if _, err := w.Write(raw); err != nil {
		log.Fatal(err)
	}
}

func printOutline(w io.Writer, doc *bibxml.Document) {
	var walk func(e *etree.Element, depth int)
	walk = func(e *etree.Element, depth int) {
		ns := bibxml.ResolveNS(e)
		if ns != "" {
			ns = "{" + ns + "}"
		}
		fmt.Fprintf(w, "%s%s%s (%d children)\n",
			strings.Repeat("  ", depth), ns, e.Tag, len(e.ChildElements()))
		for _, c := range e.ChildElements() {
			walk(c, depth+1)
		}
	}
	walk(doc.Root(), 0)
}
