package main

import (
	"fmt"
	"os"
	"time"

	"github.com/iwvelando/pdn-calculator/internal/assumptions"
	"github.com/iwvelando/pdn-calculator/internal/audit"
	"github.com/iwvelando/pdn-calculator/internal/metrics"
	"github.com/iwvelando/pdn-calculator/internal/pdn"
	"github.com/iwvelando/pdn-calculator/internal/server"
	"github.com/iwvelando/pdn-calculator/pkg/output"
	"github.com/iwvelando/pdn-calculator/pkg/validation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// cliClientID identifies requests submitted from the command line.
const cliClientID = "cli"

func (a *app) serveCmd() *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the PDN HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if address == "" {
				address = a.conf.Server.Address
			}

			store, err := assumptions.NewStore(a.conf.Assumptions)
			if err != nil {
				return err
			}

			auditStore, err := audit.Open(a.conf.Audit.Options())
			if err != nil {
				return fmt.Errorf("failed to open audit store: %w", err)
			}
			defer func() {
				if err := auditStore.Close(); err != nil {
					a.logger.Warn("failed to close audit store",
						zap.String("op", "main.serve"),
						zap.Error(err),
					)
				}
			}()

			handler, err := server.NewHandler(server.Options{
				Logger:         a.logger,
				Assumptions:    store,
				Audit:          auditStore,
				Metrics:        metrics.NewRegistry(),
				Rules:          a.conf.Validation.Rules(),
				Admin:          a.conf.Admin,
				MaxBodySize:    a.conf.Server.BodySizeBytes(),
				RateLimit:      a.conf.Server.RateLimit,
				AllowedOrigins: a.conf.Server.AllowedOrigins,
				Version:        version,
			})
			if err != nil {
				return err
			}

			if !a.conf.Admin.AdminEnabled() {
				a.logger.Warn("no admin key configured, admin endpoints are disabled",
					zap.String("op", "main.serve"),
				)
			}

			return server.Serve(cmd.Context(), address, handler, a.logger)
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "listen address override")
	return cmd
}

func (a *app) calcCmd() *cobra.Command {
	var inputPath, outputFormat string

	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Calculate an individual PDN from a request file",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.outputFormat(outputFormat)
			if err != nil {
				return err
			}

			var req validation.Request
			if err := readRequest(inputPath, &req); err != nil {
				return err
			}
			if req.Meta.ClientID == "" {
				req.Meta.ClientID = cliClientID
			}
			if err := validation.Normalize(&req, a.conf.Validation.Rules()); err != nil {
				return err
			}

			snap := a.conf.Assumptions
			if len(req.Assumptions) > 0 {
				if snap, err = snap.MergeRequest(req.Assumptions); err != nil {
					return err
				}
			}

			res, err := pdn.Calculate(req.Input(), snap, time.Now())
			if err != nil {
				return err
			}

			a.logger.Debug("pdn computed",
				zap.String("op", "main.calc"),
				zap.String("request_id", req.Meta.RequestID),
				zap.Float64("pdn_percent", res.PDNPercent),
			)

			return output.Write(cmd.OutOrStdout(), format, output.NewIndividualResponse(res, &req), precision(snap))
		},
	}

	cmd.Flags().StringVar(&inputPath, "input", "", "path to a YAML or JSON request file")
	cmd.Flags().StringVar(&outputFormat, "output-format", "", "type of output override: pretty, csv, json")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func (a *app) businessCmd() *cobra.Command {
	var inputPath, outputFormat string

	cmd := &cobra.Command{
		Use:   "business",
		Short: "Calculate a business PDN from a request file",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.outputFormat(outputFormat)
			if err != nil {
				return err
			}

			var req validation.BusinessRequest
			if err := readRequest(inputPath, &req); err != nil {
				return err
			}
			if req.Meta.ClientID == "" {
				req.Meta.ClientID = cliClientID
			}
			if err := validation.NormalizeBusiness(&req); err != nil {
				return err
			}

			snap := a.conf.Assumptions
			res, err := pdn.CalculateBusiness(req.BusinessInput, snap, time.Now())
			if err != nil {
				return err
			}

			return output.WriteBusiness(cmd.OutOrStdout(), format, output.NewBusinessResponse(res, &req), precision(snap))
		},
	}

	cmd.Flags().StringVar(&inputPath, "input", "", "path to a YAML or JSON request file")
	cmd.Flags().StringVar(&outputFormat, "output-format", "", "type of output override: pretty, csv, json")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func (a *app) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective calculation assumptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(a.conf.Assumptions); err != nil {
				return fmt.Errorf("failed to encode assumptions: %w", err)
			}
			return enc.Close()
		},
	}
}

// outputFormat resolves the CLI override against the configured format.
func (a *app) outputFormat(override string) (string, error) {
	format := a.conf.Output.Format
	if override != "" {
		format = override
	}
	if err := validation.ValidateOutputFormat(format); err != nil {
		return "", err
	}
	return format, nil
}

// readRequest decodes a request file. JSON files are valid YAML, so one
// decoder serves both.
func readRequest(path string, dst interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read request file: %w", err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to parse request file %s: %w", path, err)
	}
	return nil
}

func precision(snap assumptions.Snapshot) output.Precision {
	return output.Precision{Money: snap.MoneyPrecision, Percent: snap.PercentPrecision}
}
