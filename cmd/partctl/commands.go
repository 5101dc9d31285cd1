package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	traceabilityapp "github.com/mes/backend/internal/application/traceability"
	"github.com/mes/backend/internal/infrastructure/config"
	"github.com/mes/backend/internal/infrastructure/logger"
	"github.com/mes/backend/internal/infrastructure/persistence"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// serviceFactory opens the record store and returns a ready service plus a
// function that releases it.
type serviceFactory func(ctx context.Context, cfg *config.Config, log *zap.Logger) (*traceabilityapp.TraceabilityService, func() error, error)

type cli struct {
	configPath string
	logLevel   string
	output     string

	openService serviceFactory
	log         *zap.Logger
}

func newCLI() *cli {
	return &cli{openService: openDatabaseService}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "partctl",
		Short:         "Inspect scanned part codes, provenance chains and process gates",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if c.output != "text" && c.output != "json" {
				return fmt.Errorf("unknown output format %q (text, json)", c.output)
			}
			if c.log != nil {
				return nil
			}
			log, err := logger.New(&logger.Config{
				Level:      c.logLevel,
				Format:     "console",
				Output:     "stderr",
				TimeFormat: "15:04:05",
			})
			if err != nil {
				return err
			}
			c.log = log
			return nil
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "Config file (default: ./config.toml when present)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVarP(&c.output, "output", "o", "text", "Output format (text, json)")

	root.AddCommand(
		newClassifyCmd(c),
		newTraceCmd(c),
		newGateCmd(c),
		newStagesCmd(c),
	)
	return root
}

func newClassifyCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <code>...",
		Short: "Classify scanned codes without touching the database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			svc := traceabilityapp.NewTraceabilityService(nil, cfg.Hierarchy.Schema(), cfg.Classifier.NewClassifier(), nil,
				traceabilityapp.WithServiceLogger(c.log))
			results := svc.ClassifyBatch(cmd.Context(), args)

			if c.output == "json" {
				return writeJSON(cmd.OutOrStdout(), results)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tKIND\tRESULT\tREASON")
			for _, r := range results {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Code, r.Kind, r.Result, r.Reason)
			}
			return tw.Flush()
		},
	}
}

func newTraceCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "trace <code>",
		Short: "Reconstruct the provenance chain of a scanned code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd.Context(), func(svc *traceabilityapp.TraceabilityService) error {
				chain, err := svc.Trace(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if c.output == "json" {
					return writeJSON(cmd.OutOrStdout(), chain)
				}
				return writeChain(cmd.OutOrStdout(), chain)
			})
		},
	}
}

func newGateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "gate <task-id> [stage]",
		Short: "Evaluate one stage, or every stage, of a production task",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd.Context(), func(svc *traceabilityapp.TraceabilityService) error {
				var gates []traceabilityapp.GateResultResponse
				var payload any
				if len(args) == 2 {
					gate, err := svc.EvaluateGate(cmd.Context(), args[0], args[1])
					if err != nil {
						return err
					}
					gates, payload = []traceabilityapp.GateResultResponse{*gate}, gate
				} else {
					all, err := svc.EvaluateAllGates(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					gates, payload = all.Gates, all
				}

				if c.output == "json" {
					return writeJSON(cmd.OutOrStdout(), payload)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "STAGE\tPASSED\tEXPECTED\tACTUAL\tCHILDREN")
				for _, g := range gates {
					fmt.Fprintf(tw, "%s\t%t\t%d\t%d\t%d\n", g.Stage, g.Passed, g.Expected, g.Actual, g.Children)
				}
				return tw.Flush()
			})
		},
	}
}

func newStagesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stages",
		Short: "List the configured gate stages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			schema := cfg.Hierarchy.Schema()
			catalog, err := cfg.Stages.Catalog(schema)
			if err != nil {
				return err
			}
			stages := traceabilityapp.NewTraceabilityService(nil, schema, nil, catalog).ListStages()

			if c.output == "json" {
				return writeJSON(cmd.OutOrStdout(), stages)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STAGE\tMULTIPLIER\tCHILD\tDETECTION")
			for _, s := range stages {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", s.Name, s.ExpectedMultiplier, s.Child, s.Detection)
			}
			return tw.Flush()
		},
	}
}

func (c *cli) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFrom(c.configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}

func (c *cli) withService(ctx context.Context, fn func(*traceabilityapp.TraceabilityService) error) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	svc, release, err := c.openService(ctx, cfg, c.log)
	if err != nil {
		return err
	}
	defer func() {
		if err := release(); err != nil {
			c.log.Warn("Failed to release record store", zap.Error(err))
		}
	}()
	return fn(svc)
}

func openDatabaseService(ctx context.Context, cfg *config.Config, log *zap.Logger) (*traceabilityapp.TraceabilityService, func() error, error) {
	db, err := persistence.NewDatabase(ctx, &cfg.Database, persistence.Options{
		Logger:   log.Named("gorm"),
		LogLevel: logger.MapGormLogLevel(cfg.Log.GormLevel),
	})
	if err != nil {
		return nil, nil, err
	}

	schema := cfg.Hierarchy.Schema()
	catalog, err := cfg.Stages.Catalog(schema)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	svc := traceabilityapp.NewTraceabilityService(db.RecordStore(), schema, cfg.Classifier.NewClassifier(), catalog,
		traceabilityapp.WithServiceLogger(log))
	return svc, db.Close, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeChain(w io.Writer, chain *traceabilityapp.ProvenanceChainResponse) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "scanned\t%s (%s)\n", chain.ScannedCode, chain.IdentifiedResult)
	rows := []struct {
		label string
		value *string
	}{
		{"motor", chain.MotorID},
		{"servo", chain.ServoID},
		{"finger", chain.FingerID},
		{"palm", chain.PalmID},
		{"side", chain.PalmSide},
		{"task", chain.TaskID},
		{"task no", chain.TaskNo},
	}
	for _, r := range rows {
		value := "-"
		if r.value != nil {
			value = *r.value
		}
		fmt.Fprintf(tw, "%s\t%s\n", r.label, value)
	}
	fmt.Fprintf(tw, "depth\t%d\n", chain.Depth)
	fmt.Fprintf(tw, "complete\t%t\n", chain.Complete)
	return tw.Flush()
}
