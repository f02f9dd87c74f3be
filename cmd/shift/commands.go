package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"shift/internal/model"
	"shift/internal/queue"
	"shift/internal/render"
	web "shift/internal/server"
	"shift/internal/worker"
	"shift/internal/workflow"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	port     string
	demo     bool
	asHTML   bool
	rawOnly  bool
	follow   bool
	metaFile string
)

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server (and the queue worker when Redis is configured)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		if cmd.Flags().Changed("port") {
			cfg.Server.Port = port
		}

		src := newSource(demo)
		cleaner, client := newCleaner()

		if client != nil {
			pingCtx, stop := context.WithTimeout(ctx, 10*time.Second)
			if err := client.Ping(pingCtx); err != nil {
				logger.Warn("Text generation service unreachable, raw content will be served until it recovers", zap.Error(err))
			} else {
				logger.Info("Text generation service ready", zap.String("model", client.Model()))
			}
			stop()
		}

		// Queue mode is optional; a nil Queue disables /api/queue
		var q queue.Queue
		if cfg.Redis.Addr != "" {
			rq, err := queue.NewRedisQueue(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				return err
			}
			defer rq.Close()
			q = rq

			w := worker.NewWorker(rq, src, cleaner, logger)
			go w.Start(ctx)
		}

		srv := web.NewServer(src, cleaner, q, web.Options{
			RateLimit:      cfg.Server.RateLimit,
			RateBurst:      cfg.Server.RateBurst,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		}, logger)

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start(cfg.Server.Port)
		}()

		fmt.Fprintf(os.Stderr, "Serving on http://localhost:%s (Ctrl+C to stop)\n", cfg.Server.Port)

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info("Shutting down...")
		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		if err := srv.Stop(shutdownCtx); err != nil {
			return err
		}
		logger.Info("Goodbye!")
		return nil
	},
}

var readCmd = &cobra.Command{
	Use:   "read [url]",
	Short: "Print the readable version of an article",
	Long: "Print the readable version of an article. Without a URL, URLs are read from stdin\n" +
		"one per line; each new URL replaces the one still in progress.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		src := newSource(demo)
		out := cmd.OutOrStdout()

		if rawOnly {
			if len(args) == 0 {
				return errors.New("--raw needs a url argument")
			}
			raw, err := src.Acquire(ctx, args[0])
			if err != nil {
				return err
			}
			printArticle(out, raw.AsArticle(), asHTML)
			return nil
		}

		cleaner, _ := newCleaner()
		wf := workflow.New(src, cleaner, logger)

		if len(args) == 0 {
			return readInteractive(ctx, wf, cmd.InOrStdin(), out)
		}

		snap, err := wf.Run(ctx, args[0])
		if err != nil {
			return err
		}
		if snap.State == model.StateFailed {
			return errors.New(snap.Error)
		}
		if snap.Fallback {
			fmt.Fprintf(os.Stderr, "Note: showing the original content (%s)\n", snap.Reason)
		}
		printArticle(out, *snap.Article, asHTML)
		return nil
	},
}

// readInteractive reads one URL per line. A new line supersedes the request
// in flight; only the live request's transitions are printed.
func readInteractive(ctx context.Context, wf *workflow.Workflow, in io.Reader, out io.Writer) error {
	wf.Subscribe(func(s workflow.Snapshot) {
		switch s.State {
		case model.StateAcquiring, model.StateNormalizing:
			fmt.Fprintf(os.Stderr, "[%d] %s\n", s.Generation, s.Status)
		case model.StateFailed:
			fmt.Fprintf(os.Stderr, "[%d] Error: %s\n", s.Generation, s.Error)
		case model.StateReady:
			printArticle(out, *s.Article, asHTML)
		}
	})

	fmt.Fprintln(os.Stderr, "Enter a URL per line (Ctrl+D to quit).")
	var last uint64
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		last = wf.Request(ctx, line)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	// Let the last request finish before exiting
	if last != 0 {
		if _, err := wf.Wait(ctx, last); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return nil
}

func printArticle(w io.Writer, article model.Article, html bool) {
	if html {
		fmt.Fprintln(w, render.RenderHTML(article.Markdown))
		return
	}

	meta := article.Metadata
	var header []string
	if author := model.Value(meta.Author); author != "" {
		header = append(header, "By "+author)
	}
	if published := model.Value(meta.PublishedTime); published != "" {
		header = append(header, published)
	}
	if len(header) > 0 {
		fmt.Fprintf(w, "_%s_\n\n", strings.Join(header, " · "))
	}
	fmt.Fprintln(w, article.Markdown)
}

var queueCmd = &cobra.Command{
	Use:   "queue [url]",
	Short: "Queue a URL for the server's worker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Redis.Addr == "" {
			return errors.New("queueing needs Redis: pass --redis or set SHIFT_REDIS_ADDR")
		}
		ctx, cancel := signalContext()
		defer cancel()

		q, err := queue.NewRedisQueue(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer q.Close()

		// Subscribe before pushing so no transition is missed
		var events <-chan workflow.Snapshot
		if follow {
			events, err = q.Events(ctx)
			if err != nil {
				return err
			}
		}

		req := model.NewReadRequest(args[0])
		if err := q.Push(ctx, req); err != nil {
			return err
		}
		logger.Info("Read request queued",
			zap.String("id", req.ID.String()),
			zap.String("url", req.URL))

		if !follow {
			return nil
		}
		for snap := range events {
			if snap.RequestID != req.ID {
				continue
			}
			switch snap.State {
			case model.StateAcquiring, model.StateNormalizing:
				fmt.Fprintln(os.Stderr, snap.Status)
			case model.StateFailed:
				return errors.New(snap.Error)
			case model.StateReady:
				printArticle(cmd.OutOrStdout(), *snap.Article, asHTML)
				return nil
			}
		}
		return ctx.Err()
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean [file]",
	Short: "Clean a local markdown file and print the JSON response",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		var meta *model.Metadata
		if metaFile != "" {
			raw, err := os.ReadFile(metaFile)
			if err != nil {
				return err
			}
			meta = &model.Metadata{}
			if err := json.Unmarshal(raw, meta); err != nil {
				return fmt.Errorf("parse metadata: %w", err)
			}
		}

		cleaner, _ := newCleaner()
		resp := cleaner.Clean(ctx, string(data), meta)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

func init() {
	serveCmd.Flags().StringVar(&port, "port", "3000", "Port to listen on")
	serveCmd.Flags().BoolVar(&demo, "demo", false, "Serve a built-in demo article instead of fetching pages")

	readCmd.Flags().BoolVar(&asHTML, "html", false, "Print rendered HTML instead of markdown")
	readCmd.Flags().BoolVar(&rawOnly, "raw", false, "Skip cleanup and print the extracted content")
	readCmd.Flags().BoolVar(&demo, "demo", false, "Use the built-in demo article")

	queueCmd.Flags().BoolVar(&follow, "follow", false, "Wait for the worker and print the article")
	queueCmd.Flags().BoolVar(&asHTML, "html", false, "Print rendered HTML instead of markdown (with --follow)")

	cleanCmd.Flags().StringVar(&metaFile, "metadata", "", "JSON file with article metadata to carry through")
}
