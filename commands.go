package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mkvert/calculator"
	"mkvert/config"
	"mkvert/exporter"
	"mkvert/model"
	"mkvert/server"
)

func newBuildCmd() *cobra.Command {
	var (
		cfgPath string
		out     string
		format  string
		report  bool
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Solve the coefficients of one configuration and export them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(cfgPath)
			if err != nil {
				return err
			}
			res, err := calculator.Build(cfg)
			if err != nil {
				return err
			}
			table := exporter.New(nil).NewTable(cfg, res)

			if out == "" {
				out = cfg.Export.Path
			}
			f := outputFormat(cfg, out, format, cmd.Flags().Changed("format"))
			if out == "" {
				if err := table.Encode(cmd.OutOrStdout(), f); err != nil {
					return err
				}
			} else if err := table.WriteFormat(out, f); err != nil {
				return err
			}

			if report {
				r, err := exporter.NewReport(table)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), r.Render())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "conf/arpege90.ini", "configuration file")
	cmd.Flags().StringVarP(&out, "output", "o", "", "output table, stdout if empty")
	cmd.Flags().StringVar(&format, "format", config.FormatJSON, "output format (json, yaml)")
	cmd.Flags().BoolVar(&report, "report", false, "print the diagnostic report")
	return cmd
}

// outputFormat: the flag wins, then a recognised output extension, then the
// configured format.
func outputFormat(cfg *config.Config, out, flag string, flagSet bool) string {
	if flagSet {
		return flag
	}
	switch strings.ToLower(filepath.Ext(out)) {
	case ".json", ".yaml", ".yml":
		return exporter.FormatOf(out)
	}
	return cfg.Export.Format
}

func newBatchCmd() *cobra.Command {
	var (
		dir     string
		workers int
	)
	cmd := &cobra.Command{
		Use:   "batch config.ini...",
		Short: "Build several configurations in parallel",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return &model.ExportError{Path: dir, Err: err}
			}

			var (
				jobs     []calculator.Job
				failures []error
			)
			for _, path := range args {
				cfg, err := config.LoadFile(path)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s: %v\n", path, model.Kind(err), err)
					failures = append(failures, err)
					continue
				}
				jobs = append(jobs, calculator.Job{Name: path, Config: cfg})
			}

			exp := exporter.New(nil)
			for i, o := range calculator.NewExecutor(workers).Run(cmd.Context(), jobs) {
				if o.Err == nil {
					table := exp.NewTable(jobs[i].Config, o.Result)
					base := strings.TrimSuffix(filepath.Base(o.Name), filepath.Ext(o.Name))
					o.Err = table.Write(filepath.Join(dir, base+"."+jobs[i].Config.Export.Format))
				}
				if o.Err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s: %v\n", o.Name, model.Kind(o.Err), o.Err)
					failures = append(failures, o.Err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d levels, %d iterations, %s\n",
					o.Name, o.Result.Levels.Len(), o.Result.Iterations, o.Elapsed)
			}
			if len(failures) > 0 {
				return fmt.Errorf("%d of %d configurations failed: %w", len(failures), len(args), failures[0])
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "output directory")
	cmd.Flags().IntVarP(&workers, "jobs", "j", 4, "parallel builds")
	return cmd
}

func newInspectCmd() *cobra.Command {
	var series string
	cmd := &cobra.Command{
		Use:   "inspect table.json",
		Short: "Print the diagnostic report of an exported table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := exporter.Read(args[0])
			if err != nil {
				return err
			}
			r, err := exporter.NewReport(table)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), r.Render())
			if series == "" {
				return nil
			}
			f, err := os.Create(series)
			if err != nil {
				return &model.ExportError{Path: series, Err: err}
			}
			if err := r.WriteSeries(f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return &model.ExportError{Path: series, Err: err}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&series, "series", "", "write the plotting series as CSV to this file")
	return cmd
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve builds over websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			upgrader := websocket.Upgrader{
				ReadBufferSize:  1024,
				WriteBufferSize: 1024,
				CheckOrigin: func(r *http.Request) bool {
					return true
				},
			}
			err := server.NewServer(addr, upgrader).Serve(ctx)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			if err != nil {
				log.WithError(err).Error("build service failed")
			}
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":9000", "listen address")
	return cmd
}
