package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bluesky-social/indigo/atproto/identity"
	"github.com/habitat-network/bskykit/internal/config"
	"github.com/habitat-network/bskykit/internal/credstore"
	"github.com/habitat-network/bskykit/internal/logging"
	"github.com/habitat-network/bskykit/pkg/bskykit"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// app carries what every command shares once flags and config are resolved.
type app struct {
	out io.Writer

	// overridable in tests
	httpClient bskykit.HttpClient
	directory  identity.Directory

	cfg   *config.Config
	store credstore.CredentialStore
}

type actionFunc func(ctx context.Context, cmd *cli.Command) error

// action loads the config before running fn.
func (a *app) action(fn actionFunc) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		if err := a.setup(cmd); err != nil {
			return err
		}
		return fn(ctx, cmd)
	}
}

func (a *app) setup(cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String(fConfig))
	if err != nil {
		return err
	}
	if cmd.IsSet(fInstance) {
		cfg.InstanceURL = cmd.String(fInstance)
	}
	if cmd.IsSet(fDebug) {
		cfg.Debug = cmd.Bool(fDebug)
	}
	if cmd.IsSet(fDb) {
		cfg.CredentialDB = cmd.String(fDb)
	}
	if cmd.IsSet(fKey) {
		cfg.CredentialKey = cmd.String(fKey)
	}
	if cmd.IsSet(fOutput) {
		cfg.Output = cmd.String(fOutput)
	}
	if cmd.IsSet(fResolvePDS) {
		cfg.ResolvePDS = cmd.Bool(fResolvePDS)
	}
	switch cfg.Output {
	case config.OutputJSON, config.OutputYAML:
	default:
		return fmt.Errorf("unsupported output format %q", cfg.Output)
	}
	logging.NewLogger(cfg.Debug)
	a.cfg = cfg
	return nil
}

func (a *app) credentialStore() (credstore.CredentialStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	if a.cfg.CredentialKey == "" {
		return nil, errors.New("a credential key is required: run keygen and set BSKY_CREDENTIAL_KEY or --key")
	}
	key, err := credstore.ParseKey(a.cfg.CredentialKey)
	if err != nil {
		return nil, err
	}
	db, err := credstore.Open(a.cfg.CredentialDB)
	if err != nil {
		return nil, err
	}
	store, err := credstore.NewCredentialStore(db, key)
	if err != nil {
		return nil, err
	}
	a.store = store
	return store, nil
}

func (a *app) account(cmd *cli.Command) (string, error) {
	if account := cmd.String(fAccount); account != "" {
		return account, nil
	}
	if a.cfg.Identifier != "" {
		return a.cfg.Identifier, nil
	}
	return "", errors.New("no account selected: pass --account or set identifier")
}

func (a *app) newClient(instanceURL string) (*bskykit.Client, error) {
	opts := append(a.cfg.ClientOptions(), bskykit.WithLogger(&log.Logger))
	if a.httpClient != nil {
		opts = append(opts, bskykit.WithHTTPClient(a.httpClient))
	}
	return bskykit.NewClient(instanceURL, opts...)
}

func (a *app) identityDirectory() identity.Directory {
	if a.directory == nil {
		a.directory = identity.DefaultDirectory()
	}
	return a.directory
}

// resume builds a client logged in with the stored credentials of the
// selected account. An explicit --instance wins over the stored instance.
func (a *app) resume(cmd *cli.Command) (*bskykit.Client, error) {
	account, err := a.account(cmd)
	if err != nil {
		return nil, err
	}
	store, err := a.credentialStore()
	if err != nil {
		return nil, err
	}
	creds, err := store.Get(account)
	if errors.Is(err, credstore.ErrNotFound) {
		return nil, fmt.Errorf("%s is not logged in: run login first", account)
	} else if err != nil {
		return nil, err
	}

	instanceURL := creds.InstanceURL
	if cmd.IsSet(fInstance) || instanceURL == "" {
		instanceURL = a.cfg.InstanceURL
	}
	client, err := a.newClient(instanceURL)
	if err != nil {
		return nil, err
	}
	client.Resume(&creds.Session)

	if claims, err := client.Session().Claims(); err == nil && claims.Expired(time.Now()) {
		log.Warn().
			Str("account", account).
			Time("expired_at", claims.ExpiresAt).
			Msg("stored access token has expired, log in again if requests are rejected")
	}
	return client, nil
}

// print renders v in the configured output format.
func (a *app) print(v any) error {
	format := config.OutputJSON
	if a.cfg != nil {
		format = a.cfg.Output
	}
	return writeOutput(a.out, format, v)
}

func writeOutput(w io.Writer, format string, v any) error {
	if format == config.OutputYAML {
		// round trip through JSON so YAML keys match the XRPC field names
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
