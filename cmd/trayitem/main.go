// Package main provides a command that shows a tray item and prints what the
// user does with it, for use from shell scripts.
package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/godbus/dbus/v5"
	"github.com/jezek/xgbutil"
	"github.com/jezek/xgbutil/xevent"
	"github.com/spf13/cobra"

	"github.com/shelepuginivan/trayitem"
	"github.com/shelepuginivan/trayitem/x11"
)

var (
	configFile string
	logLevel   string

	appName   string
	iconName  string
	title     string
	toolTip   string
	status    string
	windowID  uint32
	noX11     bool
	menuItems []string

	rootCmd = &cobra.Command{
		Use:   "trayitem",
		Short: "Show a system tray item",
		Long: `trayitem shows a StatusNotifierItem, or an XEmbed icon when no
StatusNotifierWatcher is running, and prints activations, scroll events and
menu clicks to stdout, one per line.`,
		SilenceUsage: true,
		RunE:         run,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (default: environment)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	rootCmd.Flags().StringVar(&appName, "app-name", "trayitem", "application name used for the item id")
	rootCmd.Flags().StringVarP(&iconName, "icon", "i", "dialog-information", "icon name")
	rootCmd.Flags().StringVarP(&title, "title", "t", "", "item title (default: app name)")
	rootCmd.Flags().StringVar(&toolTip, "tooltip", "", "tooltip title")
	rootCmd.Flags().StringVar(&status, "status", "active", "status: passive, active, needs-attention")
	rootCmd.Flags().Uint32Var(&windowID, "window", 0, "X11 window id toggled on activation")
	rootCmd.Flags().BoolVar(&noX11, "no-x11", false, "do not connect to the X server")
	rootCmd.Flags().StringArrayVarP(&menuItems, "menu", "m", nil, "add a menu entry, printed as 'menu <label>' when clicked")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(); err != nil {
				return fmt.Errorf("configuration invalid: %w", err)
			}
			fmt.Println("Configuration is valid")
			return nil
		},
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (trayitem.Config, error) {
	if configFile == "" {
		return trayitem.ConfigFromEnv(), nil
	}
	return trayitem.LoadConfig(configFile)
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", level)
	}
}

func parseStatus(s string) (trayitem.Status, error) {
	switch strings.ToLower(s) {
	case "passive":
		return trayitem.StatusPassive, nil
	case "active":
		return trayitem.StatusActive, nil
	case "needs-attention", "needsattention":
		return trayitem.StatusNeedsAttention, nil
	default:
		return 0, fmt.Errorf("invalid status: %s", s)
	}
}

func run(cmd *cobra.Command, args []string) error {
	level, err := parseLevel(logLevel)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	st, err := parseStatus(status)
	if err != nil {
		return err
	}

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		logger.Warn("Session bus not available", "error", err)
		conn = nil
	} else {
		defer conn.Close()
	}

	opts := []trayitem.Option{
		trayitem.WithAppName(appName),
		trayitem.WithLogger(logger),
	}

	var xu *xgbutil.XUtil
	if !noX11 {
		xu, err = xgbutil.NewConn()
		if err != nil {
			logger.Warn("X server not available", "error", err)
			xu = nil
		}
	}

	if xu != nil {
		opts = append(opts,
			trayitem.WithFallback(x11.NewFallback(xu, logger)),
			trayitem.WithWindowQuery(x11.NewWindowQuery(xu)),
		)
		go xevent.Main(xu)
		defer xevent.Quit(xu)
	}

	item, err := trayitem.New(conn, cfg, opts...)
	if err != nil {
		return fmt.Errorf("failed to create tray item: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if title != "" {
		item.SetTitle(title)
	}
	item.SetIconByName(iconName)
	item.SetStatus(st)
	if toolTip != "" {
		item.SetToolTip(iconName, toolTip, "")
	}

	if windowID != 0 && xu != nil {
		item.SetAssociatedWindow(x11.NewWindow(xu, windowID, logger))
	}

	for _, label := range menuItems {
		item.Menu().AddItem(label, func() { fmt.Printf("menu %s\n", label) })
	}

	item.OnActivateRequested(func(active bool, pos image.Point) {
		fmt.Printf("activate %t %d %d\n", active, pos.X, pos.Y)
	})
	item.OnSecondaryActivateRequested(func(pos image.Point) {
		fmt.Printf("secondary-activate %d %d\n", pos.X, pos.Y)
	})
	item.OnScrollRequested(func(delta int, orientation trayitem.Orientation) {
		fmt.Printf("scroll %d %s\n", delta, orientation)
	})
	item.OnQuit(stop)

	logger.Info("Tray item started", "id", item.ID(), "state", item.State())

	err = item.Run(ctx)

	if cerr := item.Close(); cerr != nil {
		logger.Warn("Failed to close tray item", "error", cerr)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}
