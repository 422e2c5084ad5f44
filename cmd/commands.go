package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"tldr/internal/bot"
	"tldr/internal/config"
	"tldr/internal/console"
	"tldr/internal/domain"
	"tldr/internal/source"
	"tldr/internal/widget"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/cobra"
)

var errSummaryFailed = errors.New("summary failed")

func newRootCommand(log *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "tldr",
		Short:         "Summarize the visible text of a page element",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCommand(log), newBotCommand(log))

	return root
}

type runFlags struct {
	url      string
	file     string
	selector string
	language string
	length   string
}

func newRunCommand(log *slog.Logger) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Summarize one page element and print the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if flags.language != "" {
				cfg.Language = flags.language
			}
			if flags.length != "" {
				cfg.Length = flags.length
			}

			opts, err := widgetOptions(cfg)
			if err != nil {
				return err
			}
			opts.Selector = flags.selector
			opts.Mode = widget.TriggerAutomatic

			fetcher := source.NewFetcher(&http.Client{Timeout: cfg.FetchTimeout}, log)

			var doc *goquery.Document
			switch {
			case flags.url != "" && flags.file != "":
				return errors.New("--url and --file are mutually exclusive")
			case flags.url != "":
				doc, err = fetcher.FetchURL(ctx, flags.url)
			case flags.file != "":
				doc, err = fetcher.ReadFile(ctx, flags.file)
			default:
				doc, err = source.Parse(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("load document: %w", err)
			}

			backends, err := newBackends(ctx, cfg, log)
			if err != nil {
				return err
			}

			w := widget.New(opts, source.NewResolver(doc), backends, console.NewSink(cmd.OutOrStdout(), log), log)
			w.Attach(ctx)

			if w.State().Phase != domain.PhaseDone {
				return errSummaryFailed
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&flags.url, "url", "", "page URL to fetch")
	cmd.Flags().StringVar(&flags.file, "file", "", "local HTML file; stdin is read when neither --url nor --file is set")
	cmd.Flags().StringVarP(&flags.selector, "selector", "s", "", "CSS selector of the element to summarize")
	cmd.Flags().StringVar(&flags.language, "language", "", "output language tag, overrides LANGUAGE")
	cmd.Flags().StringVar(&flags.length, "length", "", "short, medium or long, overrides LENGTH")

	return cmd
}

func newBotCommand(log *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Serve TL;DR cards over Telegram",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			start := time.Now()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Token == "" {
				return errors.New("TOKEN is required")
			}

			opts, err := widgetOptions(cfg)
			if err != nil {
				return err
			}

			backends, err := newBackends(ctx, cfg, log)
			if err != nil {
				return err
			}

			fetcher := source.NewFetcher(&http.Client{Timeout: cfg.FetchTimeout}, log)

			botInst, err := bot.New(cfg.Token, fetcher, backends, opts, cfg.AllowedUsers, log)
			if err != nil {
				return fmt.Errorf("create bot: %w", err)
			}
			defer botInst.Stop()
			log.InfoContext(ctx, "Bot is initialized",
				"allowedUsersCount", len(cfg.AllowedUsers),
				"triggerMode", opts.Mode.String())

			botInst.Start(ctx)

			log.InfoContext(ctx, "Exiting...",
				"uptimeSeconds", time.Since(start).Seconds())

			return nil
		},
	}
}

func widgetOptions(cfg config.Config) (widget.Options, error) {
	mode, err := cfg.Mode()
	if err != nil {
		return widget.Options{}, fmt.Errorf("parse trigger mode: %w", err)
	}

	length, err := cfg.SummaryLength()
	if err != nil {
		return widget.Options{}, fmt.Errorf("parse length: %w", err)
	}

	return widget.Options{
		Mode:     mode,
		Language: cfg.Language,
		Length:   length,
		Timeout:  cfg.InvocationTimeout,
	}, nil
}

