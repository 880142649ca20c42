package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yanqian/chargemap/internal/domain/site"
	"github.com/yanqian/chargemap/internal/infra/snapshot"
)

func newCitiesCmd(e *env) *cobra.Command {
	var outputFmt string

	cmd := &cobra.Command{
		Use:   "cities",
		Short: "List supported cities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := e.repo()
			if err != nil {
				return err
			}
			cities, err := repo.LoadCities(cmd.Context())
			if err != nil {
				return err
			}
			if outputFmt == "json" {
				return writeJSON(e.out, cities)
			}
			tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SLUG\tNAME\tCENTER\tZOOM")
			for _, c := range cities {
				fmt.Fprintf(tw, "%s\t%s\t%.4f,%.4f\t%d\n", c.Slug, c.Name, c.Center.Lat, c.Center.Lng, c.DefaultZoom)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&outputFmt, "output", "text", "Output format: text or json")
	return cmd
}

func newTopCmd(e *env) *cobra.Command {
	var (
		city      string
		metric    string
		minScore  float64
		facets    []string
		threshold string
		limit     int
		outputFmt string
	)

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Rank a city's sites by a score metric",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			slug, err := requireCity(city)
			if err != nil {
				return err
			}
			m, err := site.ParseMetric(metric)
			if err != nil {
				return err
			}
			cfg := site.FilterConfig{
				Metric:    m,
				MinScore:  minScore,
				Threshold: site.ThresholdPolicy(threshold),
				Facets:    make(map[site.Facet]bool, len(facets)),
			}
			for _, f := range facets {
				cfg.Facets[site.Facet(strings.TrimSpace(f))] = true
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			repo, err := e.repo()
			if err != nil {
				return err
			}
			sites, err := repo.LoadSites(cmd.Context(), slug)
			if err != nil {
				return err
			}
			filtered, err := site.Filter(sites, cfg)
			if err != nil {
				return err
			}
			top, err := site.Rank(filtered, cfg.Metric, limit)
			if err != nil {
				return err
			}
			if outputFmt == "json" {
				return writeJSON(e.out, top)
			}

			fmt.Fprintf(e.out, "%d of %d sites match\n", len(filtered), len(sites))
			tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "RANK\tID\t%s\tLOCATION\n", strings.ToUpper(cfg.Metric.Label()))
			for i, s := range top {
				score, _ := site.Resolve(s, cfg.Metric)
				fmt.Fprintf(tw, "%d\t%s\t%.1f\t%s\n", i+1, s.ID, score, s.Label())
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&city, "city", "", "City slug (required)")
	cmd.Flags().StringVar(&metric, "metric", string(site.MetricOverall), "Metric: overall, demand, equity, traffic or grid")
	cmd.Flags().Float64Var(&minScore, "min-score", 50, "Minimum score, 0-100")
	cmd.Flags().StringSliceVar(&facets, "facet", nil, "Facet to require: parkingOnly or municipalOnly (repeatable)")
	cmd.Flags().StringVar(&threshold, "threshold", string(site.ThresholdOverall), "Score the minimum applies to: overall or displayed")
	cmd.Flags().IntVar(&limit, "limit", site.DefaultTopN, "Number of sites to print")
	cmd.Flags().StringVar(&outputFmt, "output", "text", "Output format: text or json")
	_ = cmd.MarkFlagRequired("city")
	return cmd
}

func newSiteCmd(e *env) *cobra.Command {
	var city string

	cmd := &cobra.Command{
		Use:   "site <id>",
		Short: "Print one site's detail as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slug, err := requireCity(city)
			if err != nil {
				return err
			}
			repo, err := e.repo()
			if err != nil {
				return err
			}
			detail, err := repo.LoadSiteDetail(cmd.Context(), slug, args[0])
			if err != nil {
				return err
			}
			return writeJSON(e.out, detail)
		},
	}

	cmd.Flags().StringVar(&city, "city", "", "City slug (required)")
	_ = cmd.MarkFlagRequired("city")
	return cmd
}

func newStatsCmd(e *env) *cobra.Command {
	var (
		city  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarise a city's site scores and demand",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			slug, err := requireCity(city)
			if err != nil {
				return err
			}
			repo, err := e.repo()
			if err != nil {
				return err
			}
			sites, err := repo.LoadSites(cmd.Context(), slug)
			if err != nil {
				return err
			}
			stats, err := site.ComputeStats(slug, sites, limit)
			if err != nil {
				return err
			}
			return writeJSON(e.out, stats)
		},
	}

	cmd.Flags().StringVar(&city, "city", "", "City slug (required)")
	cmd.Flags().IntVar(&limit, "limit", 5, "Number of top sites to include")
	_ = cmd.MarkFlagRequired("city")
	return cmd
}

func newSnapshotCmd(e *env) *cobra.Command {
	var cities []string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Publish the source's cities and sites to the snapshot bucket",
		Long:  `Reads every city (or only --city ones) from the configured source and writes cities.json plus one sites_<slug>.json per city to object storage.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := e.repo()
			if err != nil {
				return err
			}
			objects, prefix, err := e.objects()
			if err != nil {
				return err
			}
			n, err := snapshot.Publish(cmd.Context(), repo, objects, prefix, cities...)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "published %d cities\n", n)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&cities, "city", nil, "Only publish these city slugs (repeatable)")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
