package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"restockd/lib/configutil"
	"restockd/lib/fetch"
	"restockd/lib/serviceutil"
	"restockd/lib/statestore"
	"restockd/lib/telemetry"
	"restockd/services/watcher"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newService(ctx context.Context) (*watcher.Service, Config, error) {
	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		return nil, Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	targets, err := config.buildTargets()
	if err != nil {
		return nil, Config{}, err
	}
	channels, err := config.buildChannels()
	if err != nil {
		return nil, Config{}, err
	}

	database, err := config.Database.OpenDB()
	if err != nil {
		return nil, Config{}, fmt.Errorf("failed to open database: %w", err)
	}
	store := statestore.NewStore(database)
	err = store.EnsureSchema(ctx)
	if err != nil {
		return nil, Config{}, fmt.Errorf("failed to apply schema: %w", err)
	}

	cfg := config.Watcher.Clamped()
	fetcher, err := fetch.NewHTTPFetcher(time.Duration(cfg.TimeoutMs) * time.Millisecond)
	if err != nil {
		return nil, Config{}, err
	}

	return watcher.NewService(store, fetcher, channels, targets, cfg), config, nil
}

var rootCmd = &cobra.Command{
	Use:   "restockd",
	Short: "restockd watches order pages for restocks and alerts operators.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the watch loop and the http trigger surface.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		_, err := telemetry.SetupFromEnv(ctx, "restockd")
		if err != nil {
			slog.Warn("telemetry disabled", "err", err.Error())
		}
		telemetry.InstrumentPerfStats(ctx)

		service, config, err := newService(ctx)
		if err != nil {
			serviceutil.Fatal("failed to initialize", err)
		}

		interval := time.Duration(config.CheckIntervalSec) * time.Second
		if interval <= 0 {
			interval = time.Minute * 5
		}

		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				summary, err := service.RunCheck(ctx)
				if err != nil {
					slog.ErrorContext(ctx, "check cycle failed", "err", err.Error())
				} else {
					slog.InfoContext(ctx, "check cycle finished", "summary", summary)
				}

				select {
				case <-ticker.C:
				case <-ctx.Done():
					return
				}
			}
		}()

		router := chi.NewRouter()
		router.Use(middleware.RequestID)
		router.Use(middleware.Recoverer)

		router.Post("/check", func(w http.ResponseWriter, r *http.Request) {
			summary, err := service.RunCheck(r.Context())
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Header().Set("content-type", "text/plain; charset=utf-8")
			fmt.Fprintln(w, summary)
		})
		router.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			status, err := service.GetStatus(r.Context())
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Header().Set("content-type", "application/json")
			json.NewEncoder(w).Encode(status)
		})

		port := config.Port
		if port == 0 {
			port = 7080
		}
		serviceutil.StartHttpServer(port, router)
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Runs a single check cycle and prints the summary.",
	Run: func(cmd *cobra.Command, args []string) {
		service, _, err := newService(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to initialize", err)
		}

		summary, err := service.RunCheck(cmd.Context())
		if err != nil {
			serviceutil.Fatal("check cycle failed", err)
		}
		fmt.Println(summary)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Prints the persisted per-target state.",
	Run: func(cmd *cobra.Command, args []string) {
		service, _, err := newService(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to initialize", err)
		}

		status, err := service.GetStatus(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to read status", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Target", "Status", "In Streak", "Err Streak", "Last Reason", "Checked"})

		for name, st := range status {
			checked := ""
			if st.Ts > 0 {
				checked = time.Unix(st.Ts, 0).Format(time.RFC3339)
			}
			t.AppendRow(table.Row{name, st.Status, st.InStreak, st.ErrStreak, st.LastReason, checked})
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}

func main() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(statusCmd)

	if err := rootCmd.ExecuteContext(serviceutil.SignalContext()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
