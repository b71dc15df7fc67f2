package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
)

const appName = "otme"

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

// run returns the process exit code: 0 success, 1 failure, 2 error.
func run(args []string, stdout, stderr io.Writer) int {
	r := &runner{stdout: stdout, stderr: stderr}
	app := r.app()
	if err := app.Run(args); err != nil {
		_, _ = fmt.Fprintf(stderr, "%s: %v\n", appName, err)
		return exitError
	}
	return r.exit
}

func (r *runner) app() *cli.App {
	notaryFlag := &cli.StringFlag{Name: "notary", Usage: "notary (server) id", Required: true}
	nymFlag := &cli.StringFlag{Name: "nym", Usage: "acting nym id", EnvVars: []string{"OTME_NYM"}, Required: true}
	accountFlag := &cli.StringFlag{Name: "account", Usage: "asset account id", Required: true}
	assetFlag := &cli.StringFlag{Name: "asset", Usage: "asset type id"}

	return &cli.App{
		Name:      appName,
		Usage:     "send requests to a notary and report whether they succeeded",
		UsageText: fmt.Sprintf("%s [global options] command [command options]", appName),
		Writer:    r.stdout,
		ErrWriter: r.stderr,
		// Exit codes are derived from outcomes, never from cli.Exit.
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to otme.yaml"},
			&cli.StringFlag{Name: "data-dir", Usage: "directory holding the wallet"},
			&cli.StringFlag{Name: "log-level", Usage: "debug | info | warn | error"},
			&cli.StringFlag{Name: "metrics-addr", Usage: "serve Prometheus metrics on this address while the command runs"},
		},
		Commands: []*cli.Command{
			{
				Name:   "servers",
				Usage:  "List server contracts in the wallet",
				Action: r.cmdServers,
			},
			{
				Name:  "addserver",
				Usage: "Add or replace a server contract",
				Flags: []cli.Flag{
					notaryFlag,
					&cli.StringFlag{Name: "name", Usage: "display name"},
					&cli.StringFlag{Name: "endpoint", Usage: "multiaddr or http(s) URL", Required: true},
				},
				Action: r.cmdAddServer,
			},
			{
				Name:   "checknym",
				Usage:  "Ask a notary about another nym",
				Flags:  []cli.Flag{notaryFlag, nymFlag, &cli.StringFlag{Name: "target", Usage: "nym to check", Required: true}},
				Action: r.cmdCheckNym,
			},
			{
				Name:   "getmint",
				Usage:  "Load the mint for an asset, downloading it if needed",
				Flags:  []cli.Flag{notaryFlag, nymFlag, &cli.StringFlag{Name: "asset", Usage: "asset type id", Required: true}},
				Action: r.cmdGetMint,
			},
			{
				Name:  "withdraw",
				Usage: "Withdraw cash from an account",
				Flags: []cli.Flag{
					notaryFlag, nymFlag, accountFlag,
					&cli.StringFlag{Name: "asset", Usage: "asset type id", Required: true},
					&cli.Int64Flag{Name: "amount", Usage: "amount to withdraw", Required: true},
				},
				Action: r.cmdWithdraw,
			},
			{
				Name:  "transact",
				Usage: "Submit any transaction-bearing operation",
				Flags: []cli.Flag{
					notaryFlag, nymFlag, accountFlag, assetFlag,
					&cli.StringFlag{Name: "op", Usage: "operation name (" + strings.Join(transactionOps(), ", ") + ")", Required: true},
					&cli.StringSliceFlag{Name: "param", Usage: "operation parameter as key=value (repeatable)"},
				},
				Action: r.cmdTransact,
			},
			{
				Name:   "resync",
				Usage:  "Fetch the server's request number for a nym",
				Flags:  []cli.Flag{notaryFlag, nymFlag},
				Action: r.cmdResync,
			},
			{
				Name:  "demo",
				Usage: "Check a nym, load the mint and withdraw cash in one session",
				Flags: []cli.Flag{
					notaryFlag, nymFlag, accountFlag,
					&cli.StringFlag{Name: "asset", Usage: "asset type id", Required: true},
					&cli.StringFlag{Name: "target", Usage: "nym to check; defaults to --nym"},
					&cli.Int64Flag{Name: "amount", Usage: "amount to withdraw", Value: 1},
				},
				Action: r.cmdDemo,
			},
			{
				Name:  "version",
				Usage: "Print version information",
				Action: func(c *cli.Context) error {
					_, err := fmt.Fprintf(r.stdout, "%s version=%s commit=%s build_date=%s\n", appName, version, commit, buildDate)
					return err
				},
			},
		},
	}
}
