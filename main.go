package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"

	"blindmark/config"
	"blindmark/history"
	"blindmark/tui"
	"blindmark/watermark"
	"blindmark/workflow"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
)

// Build info - set via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#2DD4BF")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#38BDF8")).
			MarginBottom(1)

	successStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8A8A8"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#2DD4BF")).
			Padding(1, 2).
			MarginTop(1).
			MarginBottom(1)

	blindmarkLogo = `
    ╭─────────────────────────────────────╮
    │  blindmark - invisible watermarks   │
    ╰─────────────────────────────────────╯`
)

func main() {
	versionFlag := flag.Bool("version", false, "Print version information")
	shortVersionFlag := flag.Bool("v", false, "Print version information (short)")
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	serverFlag := flag.String("server", "", "Watermark service URL (overrides config)")
	langFlag := flag.String("lang", "", "Message language: en or zh (overrides config)")
	flag.Usage = printHelp
	flag.Parse()

	if *versionFlag || *shortVersionFlag {
		fmt.Printf("blindmark %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
		fmt.Printf("  go:     %s\n", runtime.Version())
		fmt.Printf("  os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	// Load .env file if it exists (won't error if missing)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Println(errorStyle.Render("Error: " + err.Error()))
		os.Exit(1)
	}
	if *debugFlag {
		cfg.Debug = true
	}
	if *serverFlag != "" {
		cfg.Server.URL = *serverFlag
	}
	if *langFlag != "" {
		cfg.UI.Language = *langFlag
	}

	logger, closeLog := setupLogger(cfg)
	code := run(cfg, logger, flag.Args())
	closeLog()
	os.Exit(code)
}

// setupLogger writes JSON logs to log.file; the terminal belongs to the UI
func setupLogger(cfg config.Config) (*slog.Logger, func()) {
	if cfg.Log.File == "" {
		return slog.New(slog.DiscardHandler), func() {}
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0o755); err != nil {
		fmt.Fprintln(os.Stderr, infoStyle.Render("Logging disabled: "+err.Error()))
		return slog.New(slog.DiscardHandler), func() {}
	}
	f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintln(os.Stderr, infoStyle.Render("Logging disabled: "+err.Error()))
		return slog.New(slog.DiscardHandler), func() {}
	}
	logger := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	return logger.With("version", version), func() { _ = f.Close() }
}

// app holds what every command needs
type app struct {
	cfg    config.Config
	logger *slog.Logger
	client *watermark.Client
	store  *history.Store
	out    io.Writer
}

func newApp(cfg config.Config, logger *slog.Logger) (*app, error) {
	client, err := watermark.NewClient(cfg.Server.URL,
		watermark.WithTimeout(cfg.Server.Timeout),
		watermark.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, client: client, out: os.Stdout}
	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			logger.Warn("history unavailable", "path", cfg.History.Path, "error", err)
		} else {
			a.store = store
		}
	}
	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
}

func (a *app) session() *workflow.Session {
	return workflow.NewSession(a.client,
		workflow.WithMessages(workflow.Catalog(a.cfg.UI.Language)),
		workflow.WithLogger(a.logger),
	)
}

func (a *app) uiOptions() tui.Options {
	opts := tui.Options{
		Downloader:  a.client,
		DownloadDir: a.cfg.Download.Dir,
		Overwrite:   a.cfg.Download.Overwrite,
		Logger:      a.logger,
	}
	if a.store != nil {
		opts.History = a.store
	}
	return opts
}

func (a *app) println(s string) {
	fmt.Fprintln(a.out, s)
}

func run(cfg config.Config, logger *slog.Logger, args []string) int {
	cmd := ""
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}

	switch cmd {
	case "help", "-h", "--help":
		printHelp()
		return 0
	case "update":
		return runUpdate(cfg)
	case "config":
		return runConfig(cfg, args, os.Stdout)
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		fmt.Println(errorStyle.Render("Error: " + err.Error()))
		return 1
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch cmd {
	case "":
		if err := tui.RunUI(a.session(), a.uiOptions()); err != nil {
			fmt.Println(errorStyle.Render("Error: " + err.Error()))
			return 1
		}
		return 0
	case "forms":
		fmt.Println(titleStyle.Render(blindmarkLogo))
		s := a.session()
		for {
			if !runFormsWorkflow(ctx, a, s) {
				break
			}
		}
		fmt.Println(subtitleStyle.Render("\nThanks for using blindmark!"))
		return 0
	case "embed":
		opts, err := parseEmbedArgs(args)
		if err != nil {
			fmt.Println(errorStyle.Render("Error: " + err.Error()))
			return 2
		}
		return a.runEmbed(ctx, opts)
	case "extract":
		opts, err := parseExtractArgs(args)
		if err != nil {
			fmt.Println(errorStyle.Render("Error: " + err.Error()))
			return 2
		}
		return a.runExtract(ctx, opts)
	case "history":
		limit, err := parseHistoryArgs(args)
		if err != nil {
			fmt.Println(errorStyle.Render("Error: " + err.Error()))
			return 2
		}
		return a.runHistory(ctx, limit)
	default:
		fmt.Println(errorStyle.Render("Unknown command: " + cmd))
		printHelp()
		return 2
	}
}

func printHelp() {
	help := `
blindmark - embed and extract invisible text watermarks

USAGE:
    blindmark [flags]                        Interactive terminal UI
    blindmark [flags] forms                  Guided step-by-step forms
    blindmark [flags] embed -t TEXT [-s] IMAGE
    blindmark [flags] extract [-l LENGTH] IMAGE
    blindmark [flags] history [-n N]
    blindmark config init|path
    blindmark update

FLAGS:
    -server <url>       Watermark service URL (default http://localhost:5000)
    -lang <en|zh>       Message language
    -debug              Debug logging to the log file
    -v, -version        Print version information

EMBED OPTIONS:
    -t, --text <text>   Watermark text to hide
    -s, --save          Download the processed image to download.dir

EXTRACT OPTIONS:
    -l, --length <n>    Watermark length; looked up in history when omitted

ENVIRONMENT:
    BLINDMARK_CONFIG        Config file (default ~/.config/blindmark/config.toml)
    BLINDMARK_SERVER_URL    Service URL; any key can be set as BLINDMARK_<SECTION>_<KEY>

EXAMPLES:
    blindmark embed -t "(c) 2026 Jane" photo.png --save
    blindmark extract -l 232 downloads/processed_photo.png
`
	fmt.Println(help)
}
