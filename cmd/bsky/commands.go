package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/habitat-network/bskykit/internal/credstore"
	"github.com/habitat-network/bskykit/pkg/bskykit"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const profileConcurrency = 4

func (a *app) commands() []*cli.Command {
	return []*cli.Command{
		a.loginCommand(),
		a.logoutCommand(),
		a.whoamiCommand(),
		a.timelineCommand(),
		a.postCommand(),
		a.profileCommand(),
		a.getCommand(),
		a.keygenCommand(),
	}
}

type loginResult struct {
	Account     string `json:"account"`
	Handle      string `json:"handle"`
	Did         string `json:"did"`
	InstanceURL string `json:"instanceUrl"`
}

func (a *app) loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Create a session with a handle or DID and an app password, and store it",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    fIdentifier,
				Aliases: []string{"u"},
				Usage:   "Handle, DID or email of the account",
			},
			&cli.StringFlag{
				Name:    fPassword,
				Aliases: []string{"p"},
				Usage:   "Account or app password. Prefer BSKY_PASSWORD",
			},
			&cli.BoolFlag{
				Name:  fLegacy,
				Usage: "Post {username, password} to the configured login_endpoint instead of createSession",
			},
		},
		Action: a.action(func(ctx context.Context, cmd *cli.Command) error {
			identifier := cmd.String(fIdentifier)
			if identifier == "" {
				identifier = a.cfg.Identifier
			}
			password := cmd.String(fPassword)
			if password == "" {
				password = a.cfg.Password
			}
			if identifier == "" || password == "" {
				return errors.New("an identifier and a password are required")
			}

			instanceURL := a.cfg.InstanceURL
			if a.cfg.ResolvePDS && !cmd.IsSet(fInstance) {
				resolved, err := bskykit.ResolveInstanceURL(ctx, a.identityDirectory(), identifier)
				if err != nil {
					return err
				}
				log.Debug().Str("instance_url", resolved).Msg("resolved pds")
				instanceURL = resolved
			}

			store, err := a.credentialStore()
			if err != nil {
				return err
			}
			client, err := a.newClient(instanceURL)
			if err != nil {
				return err
			}
			var info *bskykit.SessionInfo
			if cmd.Bool(fLegacy) {
				info, err = legacyLogin(ctx, client, identifier, password)
			} else {
				info, err = client.Login(ctx, identifier, password)
			}
			if err != nil {
				return err
			}

			account := cmd.String(fAccount)
			if account == "" {
				account = identifier
			}
			err = store.Save(account, &credstore.Credentials{
				InstanceURL: instanceURL,
				Session:     *info,
			})
			if err != nil {
				return err
			}
			log.Info().Str("account", account).Str("did", info.Did).Msg("logged in")
			return a.print(loginResult{
				Account:     account,
				Handle:      info.Handle,
				Did:         info.Did,
				InstanceURL: instanceURL,
			})
		}),
	}
}

// legacyLogin logs in through AuthSession.Login, which only yields an access
// token. The DID is taken from the token when it is a JWT.
func legacyLogin(ctx context.Context, client *bskykit.Client, identifier, password string) (*bskykit.SessionInfo, error) {
	token, err := client.Session().Login(ctx, identifier, password)
	if err != nil {
		return nil, err
	}
	info := &bskykit.SessionInfo{AccessJwt: token, Handle: identifier}
	if claims, err := bskykit.ParseTokenClaims(token); err == nil {
		info.Did = claims.Subject
	} else {
		log.Debug().Err(err).Msg("login token is opaque")
	}
	client.Resume(info)
	return info, nil
}

func (a *app) logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Forget the stored session of an account",
		Action: a.action(func(ctx context.Context, cmd *cli.Command) error {
			account, err := a.account(cmd)
			if err != nil {
				return err
			}
			store, err := a.credentialStore()
			if err != nil {
				return err
			}
			err = store.Delete(account)
			if errors.Is(err, credstore.ErrNotFound) {
				log.Info().Str("account", account).Msg("not logged in")
				return nil
			}
			if err != nil {
				return err
			}
			log.Info().Str("account", account).Msg("logged out")
			return nil
		}),
	}
}

type whoamiResult struct {
	Handle      string    `json:"handle"`
	Did         string    `json:"did"`
	InstanceURL string    `json:"instanceUrl"`
	Scope       string    `json:"scope,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt,omitzero"`
	Expired     bool      `json:"expired"`
}

func (a *app) whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the stored session of an account",
		Action: a.action(func(ctx context.Context, cmd *cli.Command) error {
			client, err := a.resume(cmd)
			if err != nil {
				return err
			}
			info, _ := client.Info()
			result := whoamiResult{
				Handle:      info.Handle,
				Did:         info.Did,
				InstanceURL: client.Service().InstanceURL(),
			}
			claims, err := client.Session().Claims()
			if err != nil {
				log.Debug().Err(err).Msg("access token is opaque")
			} else {
				result.Scope = claims.Scope
				result.ExpiresAt = claims.ExpiresAt
				result.Expired = claims.Expired(time.Now())
				if result.Did == "" {
					result.Did = claims.Subject
				}
			}
			return a.print(result)
		}),
	}
}

func (a *app) timelineCommand() *cli.Command {
	return &cli.Command{
		Name:  "timeline",
		Usage: "Read a page of the home timeline",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  fLimit,
				Usage: fmt.Sprintf("Number of posts, 1 to %d", bskykit.MaxTimelineLimit),
			},
			&cli.StringFlag{
				Name:  fCursor,
				Usage: "Cursor returned by the previous page",
			},
			&cli.StringFlag{
				Name:  fAlgorithm,
				Usage: "Feed algorithm to request",
			},
		},
		Action: a.action(func(ctx context.Context, cmd *cli.Command) error {
			client, err := a.resume(cmd)
			if err != nil {
				return err
			}
			feed, err := client.GetTimeline(ctx, bskykit.TimelineOptions{
				Algorithm: cmd.String(fAlgorithm),
				Limit:     int(cmd.Int(fLimit)),
				Cursor:    cmd.String(fCursor),
			})
			if err != nil {
				return err
			}
			return a.print(feed)
		}),
	}
}

func (a *app) postCommand() *cli.Command {
	return &cli.Command{
		Name:      "post",
		Usage:     "Publish a text post",
		ArgsUsage: "<text>",
		Action: a.action(func(ctx context.Context, cmd *cli.Command) error {
			text := strings.Join(cmd.Args().Slice(), " ")
			client, err := a.resume(cmd)
			if err != nil {
				return err
			}
			ref, err := client.CreatePost(ctx, text)
			if err != nil {
				return err
			}
			return a.print(ref)
		}),
	}
}

func (a *app) profileCommand() *cli.Command {
	return &cli.Command{
		Name:      "profile",
		Usage:     "Fetch one or more profiles by handle or DID",
		ArgsUsage: "<actor>...",
		Action: a.action(func(ctx context.Context, cmd *cli.Command) error {
			actors := cmd.Args().Slice()
			if len(actors) == 0 {
				return errors.New("at least one actor is required")
			}

			// profiles are public, so a missing session falls back to anonymous reads
			client, err := a.resume(cmd)
			if err != nil {
				log.Debug().Err(err).Msg("fetching profiles anonymously")
				client, err = a.newClient(a.cfg.InstanceURL)
				if err != nil {
					return err
				}
			}

			profiles := make([]*bskykit.Profile, len(actors))
			eg, egCtx := errgroup.WithContext(ctx)
			eg.SetLimit(profileConcurrency)
			for i, actor := range actors {
				eg.Go(func() error {
					profile, err := client.GetProfile(egCtx, actor)
					if err != nil {
						return fmt.Errorf("%s: %w", actor, err)
					}
					profiles[i] = profile
					return nil
				})
			}
			if err := eg.Wait(); err != nil {
				return err
			}
			if len(profiles) == 1 {
				return a.print(profiles[0])
			}
			return a.print(profiles)
		}),
	}
}

func (a *app) getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Call any XRPC query and print the raw result",
		ArgsUsage: "<endpoint> [key=value...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  fAuth,
				Usage: "Send the stored credential",
			},
		},
		Action: a.action(func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args()
			if !args.Present() {
				return errors.New("an endpoint is required")
			}
			params, err := parseParams(args.Tail())
			if err != nil {
				return err
			}

			var result any
			if cmd.Bool(fAuth) {
				client, err := a.resume(cmd)
				if err != nil {
					return err
				}
				result, err = bskykit.AuthenticatedGet[any](ctx, client.Service(), args.First(), params)
				if err != nil {
					return err
				}
			} else {
				client, err := a.newClient(a.cfg.InstanceURL)
				if err != nil {
					return err
				}
				result, err = bskykit.Get[any](ctx, client.Service(), args.First(), params)
				if err != nil {
					return err
				}
			}
			return a.print(result)
		}),
	}
}

// parseParams reads key=value arguments, keeping their order.
func parseParams(args []string) (bskykit.QueryParams, error) {
	var params bskykit.QueryParams
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("query parameter %q is not key=value", arg)
		}
		params = params.Add(key, value)
	}
	return params, nil
}

func (a *app) keygenCommand() *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "Generate a key for sealing stored credentials",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			key, err := credstore.GenerateKey()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, key)
			return err
		},
	}
}
