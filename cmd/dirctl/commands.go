package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"casinodir/internal/auth"
	"casinodir/internal/config"
	"casinodir/internal/directory"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
)

type deps struct {
	out        io.Writer
	loadConfig func(path string) (*config.Config, error)
	open       func(ctx context.Context, cfg *config.Config) (*directory.Service, func(), error)
	migrate    func(ctx context.Context, cfg *config.Config) (int64, error)
}

func (d deps) printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(d.out, string(b))
	return err
}

// withService loads the configuration, opens the service and closes it
// once fn returns.
func (d deps) withService(ctx context.Context, c *cli.Command, fn func(*directory.Service) error) error {
	cfg, err := d.loadConfig(c.String("config"))
	if err != nil {
		return err
	}
	svc, closeFn, err := d.open(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(svc)
}

func rootCommand(d deps) *cli.Command {
	return &cli.Command{
		Name:  "dirctl",
		Usage: "Casino directory maintenance",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "YAML config file", Value: config.DefaultFile},
		},
		Commands: []*cli.Command{
			migrateCommand(d),
			seedCommand(d),
			makeAdminCommand(d),
			adminStatusCommand(d),
			backfillCommand(d),
			recomputeCommand(d),
			devTokenCommand(d),
		},
	}
}

func migrateCommand(d deps) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending database migrations",
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := d.loadConfig(c.String("config"))
			if err != nil {
				return err
			}
			version, err := d.migrate(ctx, cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(d.out, "schema at version %d\n", version)
			return nil
		},
	}
}

func seedCommand(d deps) *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Insert the demo casinos, skipping ones already present",
		Action: func(ctx context.Context, c *cli.Command) error {
			return d.withService(ctx, c, func(svc *directory.Service) error {
				results, err := svc.Seed(ctx)
				if err != nil {
					return err
				}
				for _, r := range results {
					fmt.Fprintf(d.out, "%-8s %s: %s\n", r.Status, r.Name, r.Message)
				}
				sum := directory.Summarize(results)
				fmt.Fprintf(d.out, "Seeding completed: %d added, %d skipped, %d errors\n", sum.Added, sum.Skipped, sum.Failed)
				return nil
			})
		},
	}
}

func makeAdminCommand(d deps) *cli.Command {
	return &cli.Command{
		Name:  "make-admin",
		Usage: "Grant the admin flag to a user who has signed in",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return d.withService(ctx, c, func(svc *directory.Service) error {
				email := c.String("email")
				if err := svc.PromoteAdmin(ctx, email); err != nil {
					if errors.Is(err, directory.ErrUserNotFound) {
						return fmt.Errorf("%s: %w", email, err)
					}
					return err
				}
				fmt.Fprintf(d.out, "User %s is now an admin\n", email)
				return nil
			})
		},
	}
}

func adminStatusCommand(d deps) *cli.Command {
	return &cli.Command{
		Name:  "admin-status",
		Usage: "Show whether a user is an admin",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return d.withService(ctx, c, func(svc *directory.Service) error {
				st, err := svc.AdminStatus(ctx, c.String("email"))
				if err != nil {
					return err
				}
				return d.printJSON(st)
			})
		},
	}
}

func backfillCommand(d deps) *cli.Command {
	return &cli.Command{
		Name:  "backfill-slugs",
		Usage: "Give every entry without a slug one derived from its name",
		Action: func(ctx context.Context, c *cli.Command) error {
			return d.withService(ctx, c, func(svc *directory.Service) error {
				n, err := svc.BackfillSlugs(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(d.out, "Migration completed. Updated %d casinos with slugs.\n", n)
				return nil
			})
		},
	}
}

func recomputeCommand(d deps) *cli.Command {
	return &cli.Command{
		Name:  "recompute",
		Usage: "Rebuild rating aggregates from stored reviews",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "entry", Usage: "entry id; all entries when omitted"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return d.withService(ctx, c, func(svc *directory.Service) error {
				if id := c.String("entry"); id != "" {
					agg, err := svc.RecomputeEntry(ctx, id)
					if err != nil {
						return err
					}
					return d.printJSON(agg)
				}
				n, err := svc.RecomputeAll(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(d.out, "recomputed %d entries\n", n)
				return nil
			})
		},
	}
}

func devTokenCommand(d deps) *cli.Command {
	return &cli.Command{
		Name:  "dev-token",
		Usage: "Sign an access token with the configured secret, for local development",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "sub", Usage: "user id; random when omitted"},
			&cli.DurationFlag{Name: "ttl", Value: time.Hour},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := d.loadConfig(c.String("config"))
			if err != nil {
				return err
			}
			if cfg.IsProduction() {
				return errors.New("dev-token is disabled in production")
			}
			if cfg.Auth.Token.Secret == "" {
				return errors.New("auth.token.secret is not set")
			}

			sub := c.String("sub")
			if sub == "" {
				sub = uuid.NewString()
			} else if _, err := uuid.Parse(sub); err != nil {
				return fmt.Errorf("sub must be a uuid: %w", err)
			}

			a := auth.NewJWTAuthenticator(cfg.Auth.Token.Secret, cfg.Auth.Token.Audience, cfg.Auth.Token.Issuer)
			token, err := a.IssueAccessToken(sub, c.String("email"), c.Duration("ttl"))
			if err != nil {
				return err
			}
			fmt.Fprintln(d.out, token)
			return nil
		},
	}
}
