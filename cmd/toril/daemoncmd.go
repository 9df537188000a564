package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/toril-digital/toril/internal/cms"
	"github.com/toril-digital/toril/internal/daemon"
	"github.com/toril-digital/toril/internal/dashboard"
)

var (
	flagDaemonDebounce  time.Duration
	flagDaemonInterval  time.Duration
	flagDaemonLogFile   string
	flagDaemonDashboard bool
	flagDaemonPort      int
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Watch the store and publish automatically",
	Long: `Run in the foreground, watching the store database for writes from
other processes. After the database stays quiet for the debounce
interval, the current content is published to GitHub.

With --dashboard, a local WebSocket dashboard server broadcasts
change and publish events to connected clients.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := log.New(os.Stderr, "[daemon] ", log.LstdFlags)
		if flagDaemonLogFile != "" {
			logger = daemon.NewFileLogger(flagDaemonLogFile)
		}

		var srv *dashboard.Server
		core, err := cms.New(cms.Options{
			DataPath:     flagDataPath,
			SettingsPath: flagSettingsPath,
			Logger:       logger,
			Events: func(e cms.Event) {
				if srv != nil {
					srv.OnEvent(e)
				}
			},
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer core.Close()

		if flagDaemonDashboard {
			srv = dashboard.NewServer(core, &dashboard.Config{
				Port:   flagDaemonPort,
				Logger: logger,
			})
			if err := srv.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to start dashboard: %v\n", err)
				os.Exit(1)
			}
			defer srv.Stop()
			fmt.Printf("Dashboard: http://%s/\n", srv.Addr())
		}

		d, err := daemon.New(core, &daemon.Config{
			DebounceInterval: flagDaemonDebounce,
			PublishInterval:  flagDaemonInterval,
			Logger:           logger,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Println(okStyle.Render("Daemon iniciado.") + " " + dimStyle.Render("Ctrl+C para salir."))
		if err := d.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	daemonCmd.Flags().DurationVar(&flagDaemonDebounce, "debounce", 2*time.Second,
		"quiet period before an automatic publish")
	daemonCmd.Flags().DurationVar(&flagDaemonInterval, "interval", 0,
		"republish everything on this interval even without changes (0 = off)")
	daemonCmd.Flags().StringVar(&flagDaemonLogFile, "log-file", "",
		"write daemon logs to this file with rotation")
	daemonCmd.Flags().BoolVar(&flagDaemonDashboard, "dashboard", false,
		"serve the live dashboard")
	daemonCmd.Flags().IntVar(&flagDaemonPort, "port", 8765,
		"dashboard listen port")
	rootCmd.AddCommand(daemonCmd)
}
