package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/judgeproxy/internal/config"
	"github.com/bryanwahyu/judgeproxy/internal/domain/analysis"
	"github.com/bryanwahyu/judgeproxy/internal/domain/judges"
	"github.com/bryanwahyu/judgeproxy/internal/logging"
)

type rootOptions struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	// path config.yaml
	defaultPath := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultPath = v
	}

	cmd := &cobra.Command{
		Use:           "judgeproxy",
		Short:         "Judge dispatch proxy for the hackathon analysis workflow",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", defaultPath, "path to config.yaml")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "override log format (text|json)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newJudgesCommand(opts))
	cmd.AddCommand(newSubmitCommand(opts))
	return cmd
}

func (o *rootOptions) load() (*config.Config, logging.Logger, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, nil, fmt.Errorf("config load error: %w", err)
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.Log.Format = o.LogFormat
	}
	log, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Out: os.Stderr})
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(parent context.Context, opts *rootOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, log, err := opts.load()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
		// no WriteTimeout: a dispatch blocks until the upstream answers
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "server listening", logging.String("addr", addr), logging.Int("judges", len(cfg.Judges)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if a.Limiter != nil {
		g.Go(func() error {
			a.Limiter.Run(gctx, time.Minute, 10*time.Minute)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down server...")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	err = g.Wait()
	a.Adapters.Wait()
	return err
}

func newJudgesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "judges",
		Short: "List configured judges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tKIND\tNEEDS\tPERSIST\tCREDENTIAL")
			for _, j := range cfg.JudgeList() {
				cred := "missing"
				if j.Credential != "" {
					cred = "set"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\n", j.ID, j.DisplayName, j.Kind, needs(j), j.Persist, cred)
			}
			return tw.Flush()
		},
	}
}

func needs(j judges.Judge) string {
	switch {
	case j.RequireRepository && j.RequireDocument:
		return "repo_url+repo_pdf"
	case j.RequireRepository:
		return "repo_url"
	case j.RequireDocument:
		return "repo_pdf"
	}
	return "repo_url|repo_pdf"
}

type submitOptions struct {
	RepoURL string
	RepoPDF string
	UserID  string
}

func newSubmitCommand(root *rootOptions) *cobra.Command {
	opts := &submitOptions{}
	cmd := &cobra.Command{
		Use:   "submit <judge>",
		Short: "Send one analysis request to a judge and print the envelope",
		Example: `  judgeproxy submit business --repo https://github.com/acme/widget --user u1
  judgeproxy submit summary --pdf https://example.com/deck.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd, root, opts, judges.ID(args[0]))
		},
	}
	cmd.Flags().StringVar(&opts.RepoURL, "repo", "", "repository URL (repo_url)")
	cmd.Flags().StringVar(&opts.RepoPDF, "pdf", "", "document reference (repo_pdf)")
	cmd.Flags().StringVar(&opts.UserID, "user", "", "user id; also used as data_id")
	return cmd
}

func runSubmit(cmd *cobra.Command, root *rootOptions, opts *submitOptions, id judges.ID) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, log, err := root.load()
	if err != nil {
		return err
	}
	a, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	ad, ok := a.Adapters.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", analysis.ErrUnknownJudge, id)
	}
	rec, err := ad.Submit(ctx, analysis.Request{
		RepositoryURL: opts.RepoURL,
		DocumentRef:   opts.RepoPDF,
		UserID:        opts.UserID,
	})
	ad.Wait()
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"success":   rec.Result.Success,
		"data":      rec.Result.Data,
		"data_id":   rec.ID,
		"source":    rec.Result.JudgeID,
		"timestamp": rec.CreatedAt,
	})
}
