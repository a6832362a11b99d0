package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/coin-ingest/internal/pipeline"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		endpoint string
		provider string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the ingestion pipeline once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if endpoint != "" {
				opts.cfg.Source.Endpoint = endpoint
			}
			if provider != "" {
				opts.cfg.Storage.Provider = provider
			}

			a, err := newApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			report, runErr := a.pipeline.Run(cmd.Context())
			if report != nil {
				if err := printReport(cmd.OutOrStdout(), report, asJSON); err != nil {
					return err
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", "", "CoinGecko endpoint to extract (coins/list, coins/markets)")
	cmd.Flags().StringVar(&provider, "provider", "", "object store provider (azure, s3, gcs, local)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the run report as JSON")
	return cmd
}

type stepSummary struct {
	Step     string `json:"step"`
	Status   string `json:"status"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

type reportSummary struct {
	RunID       string        `json:"run_id"`
	Source      string        `json:"source"`
	Status      string        `json:"status"`
	Pages       int           `json:"pages"`
	Outcome     string        `json:"outcome"`
	Truncation  string        `json:"truncation,omitempty"`
	Keys        []string      `json:"keys"`
	Steps       []stepSummary `json:"steps"`
	DurationSec float64       `json:"duration_seconds"`
}

func summarize(r *pipeline.Report) reportSummary {
	s := reportSummary{
		RunID:       r.RunID,
		Source:      r.Source + "_" + r.Surname,
		Status:      r.Status,
		Pages:       r.Extraction.Pages,
		Outcome:     string(r.Extraction.Outcome),
		Keys:        r.Keys,
		DurationSec: r.Finished.Sub(r.Started).Seconds(),
	}
	if r.Extraction.Err != nil {
		s.Truncation = r.Extraction.Err.Error()
	}
	for _, st := range r.Steps {
		ss := stepSummary{Step: string(st.Step), Status: string(st.Status), Duration: st.Duration.Round(time.Millisecond).String()}
		if st.Err != nil {
			ss.Error = st.Err.Error()
		}
		s.Steps = append(s.Steps, ss)
	}
	return s
}

func printReport(w io.Writer, r *pipeline.Report, asJSON bool) error {
	s := summarize(r)
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	fmt.Fprintf(w, "run %s: %s (%d pages, outcome %s)\n", s.RunID, s.Status, s.Pages, s.Outcome)
	if s.Truncation != "" {
		fmt.Fprintf(w, "  truncated: %s\n", s.Truncation)
	}
	for _, st := range s.Steps {
		fmt.Fprintf(w, "  %-16s %-7s %s\n", st.Step, st.Status, st.Duration)
	}
	for _, k := range s.Keys {
		fmt.Fprintf(w, "  uploaded %s\n", k)
	}
	return nil
}
