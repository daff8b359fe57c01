// Command dedupe-domains rewrites an institution dataset so that each email
// domain maps to exactly one institution, reporting what it dropped.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/iscss/css-jobs-sub000/internal/domains"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		logger.Error("dedupe failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("dedupe-domains", flag.ContinueOnError)
	fs.SetOutput(stderr)

	in := fs.String("in", "", "dataset to read: local .json/.csv path or s3://bucket/key (default: embedded dataset)")
	out := fs.String("out", "", "file to write (default: stdout)")
	format := fs.String("format", "", "output format json or csv (default: from -out extension, else json)")
	check := fs.Bool("check", false, "only report duplicates; exit non-zero if any exist")

	if err := fs.Parse(args); err != nil {
		return err
	}

	records, err := domains.Load(ctx, *in)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}

	kept, dups := domains.Dedupe(records)
	if err := printDuplicates(stderr, dups); err != nil {
		return err
	}

	if *check {
		if len(dups) > 0 {
			return fmt.Errorf("%d duplicate domains", len(dups))
		}
		return nil
	}

	f := strings.ToLower(*format)
	if f == "" {
		f = "json"
		if strings.EqualFold(filepath.Ext(*out), ".csv") {
			f = "csv"
		}
	}

	var write func(io.Writer, []domains.Institution) error
	switch f {
	case "json":
		write = writeJSON
	case "csv":
		write = writeCSV
	default:
		return fmt.Errorf("unknown format %q", f)
	}

	if *out == "" {
		return write(stdout, kept)
	}

	file, err := os.Create(*out)
	if err != nil {
		return err
	}
	return writeAndClose(file, func(w io.Writer) error {
		return write(w, kept)
	})
}

// writeAndClose always closes wc and returns the first error, Close included.
func writeAndClose(wc io.WriteCloser, write func(io.Writer) error) error {
	if err := write(wc); err != nil {
		wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

func printDuplicates(w io.Writer, dups []domains.Duplicate) error {
	if len(dups) == 0 {
		_, err := fmt.Fprintln(w, "no duplicate domains")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DOMAIN\tKEPT\tDROPPED")
	for _, d := range dups {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Domain, d.Kept.Name, d.Dropped.Name)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d duplicate domains removed\n", len(dups))
	return err
}

func writeJSON(w io.Writer, records []domains.Institution) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func writeCSV(w io.Writer, records []domains.Institution) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"domain", "institution", "country"}); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write([]string{r.Domain, r.Name, r.Country}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
