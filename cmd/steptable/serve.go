package main

import (
	"context"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/rahul/steptable/internal/bridge"
	"github.com/rahul/steptable/internal/browser"
	"github.com/rahul/steptable/internal/gateway"
	"github.com/rahul/steptable/internal/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the panel bridge, keyboard commands and the Telegram gateway",
	Long: `Starts the bridge that side panels, keyboard commands and the Telegram bot
use to drive the step table, with a live status line on the terminal.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// manualPanels is the controller used with --html: panels are opened by
// hand at /panel, so there is nothing to open or close.
type manualPanels struct{}

func (manualPanels) SetEnabled(context.Context, bool) error { return nil }
func (manualPanels) Open(context.Context, int) error        { return nil }

func runServe(cmd *cobra.Command, args []string) error {
	observability.PrintBanner()
	observability.InitializeTerminal()
	defer observability.CleanupTerminal()

	// Route all log output through the terminal mutex so it never
	// interrupts the dashboard's cursor save/restore sequence.
	log.SetOutput(observability.NewTermWriter())

	ctx, stop := context.WithCancel(cmd.Context())
	defer stop()

	if pageURL == "" && htmlPath == "" {
		pageURL = cfg.Browser.StartURL
	}
	a, err := newApp(ctx, observability.NewTermWriter())
	if err != nil {
		return err
	}
	defer a.Close()

	var ctrl bridge.PanelController = manualPanels{}
	if a.session != nil {
		ctrl = browser.NewPanelTabs(a.session, cfg.Bridge.PanelURL)
	}
	panels := bridge.NewPanels(ctrl, a.logger)
	srv := bridge.NewServer(cfg.Bridge.Addr, a.responder, panels)
	if a.session != nil {
		srv.ActiveWindow = a.session.WindowID
	}

	go func() {
		if err := srv.Start(); err != nil {
			log.Printf("\033[91m[ FAIL ] BRIDGE: %v\033[0m", err)
			stop()
		}
	}()

	if tgCfg, ok := cfg.GetTelegramConfig(); ok {
		cmds := &gateway.Commands{Responder: a.responder, Snapshots: a.store}
		if a.session != nil {
			cmds.Page = a.session
		}
		if tg, err := gateway.NewTelegramGateway(tgCfg.Token, cmds, tgCfg.AllowedChats); err != nil {
			log.Printf("telegram gateway disabled: %v", err)
		} else {
			startMessenger(tg, stop)
			defer tg.Stop()
		}
	}

	// Live status line (1-second updates)
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.PrintLiveStatus()
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.Heartbeat()
				a.logger.LogHeartbeat()
			}
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("bridge shutdown: %v", err)
	}

	log.Println("\033[95m[ EXIT ] BRIDGE STOPPED. GOODBYE.\033[0m")
	return nil
}

// startMessenger runs m in the background; a dead gateway stops the server.
func startMessenger(m gateway.Messenger, stop context.CancelFunc) {
	go func() {
		if err := m.Start(); err != nil {
			log.Printf("\033[91m[ FAIL ] GATEWAY CRITICAL ERROR: %v\033[0m", err)
			stop()
		}
	}()
}
