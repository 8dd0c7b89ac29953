package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"
)

var (
	exitFunc   = os.Exit
	runTUI     = RunTUI
	loginFunc  = Login
	saveConfig = SaveConfig
)

type options struct {
	login   bool
	summary bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := runMain(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		exitFunc(1)
	}
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("sportfrei", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&opts.login, "login", false, "Authorize with Strava and store the refresh token")
	fs.BoolVar(&opts.summary, "summary", false, "Print the dashboard once and exit")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	return opts, nil
}

func runMain(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) error {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		return err
	}
	cfg, err := LoadConfig(ctx)
	if err != nil {
		fmt.Fprintln(stderr, "config error:", err)
		return err
	}
	closeLog, err := initLogging(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(stderr, "init error:", err)
		return err
	}
	defer closeLog()

	if opts.login || !cfg.HasRefreshToken() {
		cfg, err = loginFunc(ctx, cfg, stdin, stdout)
		if err != nil {
			fmt.Fprintln(stderr, "login error:", err)
			return err
		}
		if err := saveConfig(cfg); err != nil {
			fmt.Fprintln(stderr, "login error:", err)
			return err
		}
		fmt.Fprintln(stdout, "Saved credentials to", configPath())
		if opts.login {
			return nil
		}
	}

	client, err := newSessionClient(ctx, &cfg)
	if err != nil {
		fmt.Fprintln(stderr, "init error:", err)
		return err
	}
	athlete, err := client.Athlete(ctx)
	if err != nil {
		fmt.Fprintln(stderr, "init error:", err)
		return err
	}
	stats, err := client.AthleteStats(ctx, athlete.ID)
	if err != nil {
		fmt.Fprintln(stderr, "init error:", err)
		return err
	}
	logger.Info("athlete loaded", "id", athlete.ID)
	app := NewApp(cfg, client, athlete, stats)

	if opts.summary {
		app.EnsurePageSize(plainHeight)
		if _, err := app.LoadNextPage(ctx); err != nil {
			fmt.Fprintln(stderr, "run error:", err)
			return err
		}
		fmt.Fprintln(stdout, render(app))
		return nil
	}

	if !isTerminalReader(stdin) || !isTerminalWriter(stdout) {
		if err := Run(ctx, app, stdin, stdout); err != nil {
			fmt.Fprintln(stderr, "run error:", err)
			return err
		}
		return nil
	}

	if err := runTUI(ctx, app); err != nil {
		fmt.Fprintln(stderr, "run error:", err)
		return err
	}
	return nil
}

// newSessionClient wires the credential provider to the config file so a
// rotated refresh token survives the session.
func newSessionClient(ctx context.Context, cfg *Config) (*StravaClient, error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	credentials, err := NewOAuthCredentials(ctx, *cfg, httpClient, func(refreshToken string) error {
		cfg.RefreshToken = refreshToken
		return saveConfig(*cfg)
	})
	if err != nil {
		return nil, err
	}
	return NewStravaClient(cfg.APIBaseURL, credentials, httpClient)
}

func isTerminalReader(stream io.Reader) bool {
	file, ok := stream.(*os.File)
	if !ok {
		return false
	}
	return isCharDevice(file)
}

func isTerminalWriter(stream io.Writer) bool {
	file, ok := stream.(*os.File)
	if !ok {
		return false
	}
	return isCharDevice(file)
}

func isCharDevice(file *os.File) bool {
	info, err := file.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
