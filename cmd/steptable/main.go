package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rahul/steptable/internal/bridge"
	"github.com/rahul/steptable/internal/browser"
	"github.com/rahul/steptable/internal/dom"
	"github.com/rahul/steptable/internal/governance"
	"github.com/rahul/steptable/internal/observability"
	"github.com/rahul/steptable/internal/store"
	"github.com/rahul/steptable/internal/table"
	"github.com/rahul/steptable/pkg/config"
)

var (
	// Command-line flags
	configPath string
	htmlPath   string
	pageURL    string
	sanitize   bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "steptable",
	Short: "Read and write the step table of the test-case editor",
	Long: `steptable counts, grows, extracts and fills the step table of the test-case
editor, either in a live Chrome tab or in a saved HTML page.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(configPath, cmd.Flags().Changed("config"))
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json", "Configuration file (JSON or YAML)")
	rootCmd.PersistentFlags().StringVar(&htmlPath, "html", "", "Work on a saved HTML page instead of the browser")
	rootCmd.PersistentFlags().BoolVar(&sanitize, "sanitize", true, "Strip scripts from the page given with --html")
	rootCmd.PersistentFlags().StringVar(&pageURL, "url", "", "Navigate the browser to this page first")

	rootCmd.AddCommand(serveCmd, checkCmd, infoCmd, growCmd, extractCmd, fillCmd,
		snapshotsCmd, historyCmd, dumpCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// app holds what every command needs: the responder over the chosen page,
// the store and the event logger.
type app struct {
	responder *bridge.Responder
	session   *browser.Session
	snapshot  *dom.Snapshot
	store     *store.Store
	logger    *observability.Logger
}

func newApp(ctx context.Context, events io.Writer) (*app, error) {
	a := &app{logger: observability.NewLogger(cfg.App.LogDir)}
	a.logger.SetOutput(events)

	st, err := store.New(cfg.Memory.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.store = st

	policy, err := newPolicy(cfg.Policy)
	if err != nil {
		st.Close()
		return nil, err
	}

	var source bridge.DocumentSource
	if htmlPath != "" {
		if a.snapshot, err = dom.LoadFile(htmlPath, sanitize); err != nil {
			st.Close()
			return nil, err
		}
		source = bridge.StaticDocument(a.snapshot)
	} else {
		a.session = browser.NewSession(browser.Options{
			RemoteURL:     cfg.Browser.RemoteURL,
			TargetURL:     cfg.Browser.TargetURL,
			Headless:      cfg.Browser.Headless,
			UserDataDir:   cfg.Browser.UserDataDir,
			ActionTimeout: cfg.ActionTimeout(),
		})
		if pageURL != "" {
			if err := a.session.Navigate(ctx, pageURL); err != nil {
				a.Close()
				return nil, fmt.Errorf("navigate to %s: %w", pageURL, err)
			}
		}
		source = bridge.DocumentFunc(func(ctx context.Context) (dom.Document, error) {
			page, err := a.session.Document(ctx)
			if err != nil {
				return nil, err
			}
			return page, nil
		})
	}

	a.responder = &bridge.Responder{
		Engine:   table.NewEngine(cfg.Table.ButtonCaptions, cfg.GrowOptions()),
		Source:   source,
		Policy:   policy,
		Logger:   a.logger,
		Recorder: st,
	}
	return a, nil
}

func newPolicy(pc config.PolicyConfig) (*governance.DefaultPolicyEngine, error) {
	gov := governance.NewDefaultPolicyEngine()
	for _, name := range pc.DenyActions {
		gov.DenyAction(name)
	}
	for source, names := range pc.DenyFrom {
		for _, name := range names {
			gov.DenyActionFrom(source, name)
		}
	}
	for _, pattern := range pc.DenyPayloads {
		if err := gov.DenyPayload(pattern); err != nil {
			return nil, fmt.Errorf("policy: %w", err)
		}
	}
	return gov, nil
}

// pageLocation names the page for saved snapshots.
func (a *app) pageLocation(ctx context.Context) string {
	if a.session == nil {
		return "file://" + htmlPath
	}
	url, _ := a.session.Location(ctx)
	return url
}

func (a *app) Close() {
	if a.session != nil {
		a.session.Close()
	}
	a.store.Close()
}

// openApp is newApp for one-shot commands: events go to stderr so stdout
// carries only the command's output.
func openApp(cmd *cobra.Command) (*app, error) {
	return newApp(cmd.Context(), cmd.ErrOrStderr())
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
