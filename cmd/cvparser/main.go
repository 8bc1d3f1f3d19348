package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	flag "github.com/spf13/pflag"

	"cv-parser/internal/batch"
	"cv-parser/internal/bootstrap"
	"cv-parser/internal/results"
	"cv-parser/internal/resume"
	"cv-parser/internal/shared/config"
	"cv-parser/internal/shared/telemetry"
)

// credentialEnv names the variable the CLI reads the API key from. The key is
// never accepted as a flag so it stays out of shell history and process lists.
const credentialEnv = "CVPARSER_API_KEY"

type options struct {
	text     string
	textFile string
	pdfs     []string
	csvPath  string
	limit    int
	provider string
	model    string
	top      int
	jsonOut  string
	csvOut   string
	logLevel string
}

func main() {
	cfg := config.Load()
	opts := parseFlags(cfg)
	telemetry.Init(opts.logLevel, "pretty")

	if opts.provider != "" {
		cfg.LLMProvider = opts.provider
		cfg.LLMModel = ""
	}
	if opts.model != "" {
		cfg.LLMModel = opts.model
	}
	cfg = cfg.Normalize()

	ctx := context.Background()
	pipeline, err := bootstrap.BuildPipeline(ctx, cfg)
	if err != nil {
		exitErr(err.Error())
	}

	items, err := collectItems(ctx, pipeline.Documents, opts)
	if err != nil {
		exitErr(err.Error())
	}
	if len(items) == 0 {
		flag.Usage()
		exitErr("no input: use --text, --text-file, --pdf or --csv")
	}

	agg := results.NewAggregator()
	credential := os.Getenv(credentialEnv)
	_, err = pipeline.Processor.Process(ctx, items, credential, agg, func(done, total int) {
		fmt.Fprintf(os.Stderr, "\rprocessed %d/%d", done, total)
		if done == total {
			fmt.Fprintln(os.Stderr)
		}
	})
	if err != nil {
		exitErr(fmt.Sprintf("%v (set %s)", err, credentialEnv))
	}

	records := agg.All()
	printTable(os.Stdout, records)
	printStats(os.Stdout, agg.Stats(opts.top))

	if err := writeExport(agg, results.FormatJSON, opts.jsonOut); err != nil {
		exitErr(err.Error())
	}
	if err := writeExport(agg, results.FormatCSV, opts.csvOut); err != nil {
		exitErr(err.Error())
	}
}

func parseFlags(cfg config.Config) options {
	var o options
	flag.StringVar(&o.text, "text", "", "Resume text to extract")
	flag.StringVar(&o.textFile, "text-file", "", "Path to a plain text resume")
	flag.StringArrayVar(&o.pdfs, "pdf", nil, "Path to a PDF or DOCX resume (repeatable)")
	flag.StringVar(&o.csvPath, "csv", "", "Path to a CSV with a Resume_str column")
	flag.IntVar(&o.limit, "limit", cfg.CSVRowLimit, "Number of CSV rows to process")
	flag.StringVar(&o.provider, "provider", "", "LLM provider (openai or gemini)")
	flag.StringVar(&o.model, "model", "", "LLM model")
	flag.IntVar(&o.top, "top", cfg.TopSkills, "Number of most common skills to report")
	flag.StringVar(&o.jsonOut, "json-out", "", "Write the JSON export to this path")
	flag.StringVar(&o.csvOut, "csv-out", "", "Write the CSV export to this path")
	flag.StringVar(&o.logLevel, "log-level", "warn", "Log level")
	flag.Parse()
	return o
}

// collectItems reads every input before any API call so file and CSV errors
// surface first.
func collectItems(ctx context.Context, docs batch.DocumentExtractor, o options) ([]batch.Item, error) {
	var items []batch.Item
	if strings.TrimSpace(o.text) != "" {
		items = append(items, batch.Item{Text: o.text})
	}
	if o.textFile != "" {
		data, err := os.ReadFile(o.textFile)
		if err != nil {
			return nil, fmt.Errorf("read text file: %w", err)
		}
		items = append(items, batch.Item{Text: string(data), Source: filepath.Base(o.textFile)})
	}
	if len(o.pdfs) > 0 {
		files := make([]batch.File, 0, len(o.pdfs))
		for _, p := range o.pdfs {
			data, err := os.ReadFile(p)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", p, err)
			}
			files = append(files, batch.File{Name: filepath.Base(p), Data: data})
		}
		items = append(items, batch.FromDocuments(ctx, docs, files)...)
	}
	if o.csvPath != "" {
		f, err := os.Open(o.csvPath)
		if err != nil {
			return nil, fmt.Errorf("open csv: %w", err)
		}
		defer f.Close()
		rows, err := batch.ReadCSV(f, filepath.Base(o.csvPath), o.limit)
		if err != nil {
			return nil, fmt.Errorf("csv %s: %w", o.csvPath, err)
		}
		items = append(items, rows...)
	}
	return items, nil
}

func printTable(w io.Writer, records []resume.Record) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tEMAIL\tSKILLS\tYEARS\tSOURCE\tSTATUS\tERROR")
	for i, r := range records {
		years := "-"
		if r.YearsExperience != nil {
			years = strconv.FormatFloat(*r.YearsExperience, 'f', -1, 64)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i+1, dash(r.Name), dash(r.Email), dash(strings.Join(r.Skills, results.SkillsSeparator)),
			years, dash(r.SourceFilename), r.Status, clip(r.RawError, 60))
	}
	_ = tw.Flush()
}

func printStats(w io.Writer, st results.Stats) {
	fmt.Fprintf(w, "\nprocessed: %d  successful: %d\n", st.TotalProcessed, st.TotalSuccessful)
	if st.HasAverage() {
		fmt.Fprintf(w, "average years of experience: %.1f (over %d)\n", st.AverageYearsExperience, st.YearsSampleSize)
	} else {
		fmt.Fprintln(w, "average years of experience: n/a")
	}
	if len(st.TopSkills) == 0 {
		return
	}
	parts := make([]string, 0, len(st.TopSkills))
	for _, s := range st.TopSkills {
		parts = append(parts, fmt.Sprintf("%s (%d)", s.Skill, s.Count))
	}
	fmt.Fprintf(w, "top skills: %s\n", strings.Join(parts, ", "))
}

func writeExport(agg *results.Aggregator, format results.Format, path string) error {
	if path == "" {
		return nil
	}
	data, err := agg.Export(format)
	if err != nil {
		return fmt.Errorf("export %s: %w", format, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
