package main

import (
	"github.com/urfave/cli/v3"
)

var (
	fInstance   = "instance"
	fConfig     = "config"
	fDebug      = "debug"
	fDb         = "db"
	fKey        = "key"
	fOutput     = "output"
	fAccount    = "account"
	fResolvePDS = "resolve-pds"

	fIdentifier = "identifier"
	fPassword   = "password"
	fLimit      = "limit"
	fCursor     = "cursor"
	fAlgorithm  = "algorithm"
	fAuth       = "auth"
	fLegacy     = "legacy"
)

// Global flags override values from bskykit.yml and BSKY_* variables when set.
func getFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    fInstance,
			Aliases: []string{"i"},
			Usage:   "XRPC base URL of the instance, e.g. https://bsky.social/xrpc",
		},
		&cli.StringFlag{
			Name:      fConfig,
			Aliases:   []string{"c"},
			Usage:     "Path to a YAML config file. Defaults to bskykit.yml in ~/.bskykit or $BSKY_HOME",
			TakesFile: true,
		},
		&cli.BoolFlag{
			Name:  fDebug,
			Usage: "Enable debug logging",
		},
		&cli.StringFlag{
			Name:      fDb,
			Usage:     "Credential database: a sqlite file path or a postgres:// URL",
			TakesFile: true,
		},
		&cli.StringFlag{
			Name:  fKey,
			Usage: "Base64 encoded 32 byte key sealing stored tokens (see keygen)",
		},
		&cli.StringFlag{
			Name:    fOutput,
			Aliases: []string{"o"},
			Usage:   "Output format: json or yaml",
		},
		&cli.StringFlag{
			Name:    fAccount,
			Aliases: []string{"a"},
			Usage:   "Stored account to act as. Defaults to the configured identifier",
		},
		&cli.BoolFlag{
			Name:  fResolvePDS,
			Usage: "Resolve the account's PDS through its DID document when logging in",
		},
	}
}
