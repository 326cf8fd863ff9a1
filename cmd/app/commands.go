package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/starford/pimstore/internal"
	"github.com/starford/pimstore/internal/collection"
	"github.com/starford/pimstore/internal/entryservice"
	"github.com/starford/pimstore/internal/lister"
	"github.com/starford/pimstore/internal/link"
	"github.com/starford/pimstore/internal/models"
	"github.com/starford/pimstore/internal/store"
	"github.com/starford/pimstore/internal/storeid"
)

// errUsage is returned when positional arguments are missing.
var errUsage = errors.New("wrong number of arguments")

// withEnv opens the store for a one-shot command. Logs go to stderr as
// text so they do not mix with table output.
func withEnv(ctx context.Context, cmd *cli.Command, fn func(context.Context, *internal.Env, *slog.Logger) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.App.LogLevel}))
	slog.SetDefault(logger)

	env, err := internal.OpenEnv(cfg, logger)
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(ctx, env, logger)
}

func args(cmd *cli.Command, n int) ([]string, error) {
	if cmd.Args().Len() != n {
		return nil, fmt.Errorf("%w: %s wants %d, got %d", errUsage, cmd.Name, n, cmd.Args().Len())
	}
	return cmd.Args().Slice(), nil
}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create an entry from a file or stdin, establishing its declared links",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Read content from file instead of stdin"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := args(cmd, 1)
			if err != nil {
				return err
			}
			var content []byte
			if f := cmd.String("file"); f != "" {
				content, err = os.ReadFile(f)
			} else {
				content, err = io.ReadAll(os.Stdin)
			}
			if err != nil {
				return fmt.Errorf("read content: %w", err)
			}
			return withEnv(ctx, cmd, func(ctx context.Context, env *internal.Env, _ *slog.Logger) error {
				e, err := env.Service.CreateEntry(ctx, a[0], content)
				if err != nil {
					return err
				}
				fmt.Println(e.ID)
				return nil
			})
		},
	}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print an entry file",
		ArgsUsage: "<id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := args(cmd, 1)
			if err != nil {
				return err
			}
			return withEnv(ctx, cmd, func(ctx context.Context, env *internal.Env, _ *slog.Logger) error {
				id, err := storeid.NewBaseless(a[0])
				if err != nil {
					return err
				}
				e, err := env.Store.Get(id)
				if err != nil {
					return err
				}
				data, err := e.Encode()
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(data)
				return err
			})
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete an entry and every link pointing at it",
		ArgsUsage: "<id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := args(cmd, 1)
			if err != nil {
				return err
			}
			return withEnv(ctx, cmd, func(ctx context.Context, env *internal.Env, _ *slog.Logger) error {
				return env.Service.DeleteEntry(ctx, a[0])
			})
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List indexed entries",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "prefix", Usage: "Only IDs starting with prefix"},
			&cli.StringFlag{Name: "sort", Usage: "Sort by id, title, updated or links"},
			&cli.IntFlag{Name: "limit", Value: 100, Usage: "Maximum number of rows"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withEnv(ctx, cmd, func(ctx context.Context, env *internal.Env, _ *slog.Logger) error {
				items, _, err := env.Service.ListEntries(ctx, int(cmd.Int("limit")), 0, cmd.String("prefix"), cmd.String("sort"))
				if err != nil {
					return err
				}
				return lister.New(func(it entryservice.EntryListItem) []string {
					return []string{it.ID, it.Title, strconv.Itoa(it.LinkCount), it.UpdatedAt.Format(time.DateTime)}
				}).WithHeader("ID", "Title", "Links", "Updated").List(os.Stdout, lister.Slice(items))
			})
		},
	}
}

func linkCommand() *cli.Command {
	return &cli.Command{
		Name:      "link",
		Usage:     "Link two entries in both directions",
		ArgsUsage: "<from> <to>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "annotation", Aliases: []string{"a"}, Usage: "Annotate the forward link"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := args(cmd, 2)
			if err != nil {
				return err
			}
			return withEnv(ctx, cmd, func(ctx context.Context, env *internal.Env, _ *slog.Logger) error {
				return env.Service.Link(ctx, a[0], a[1], cmd.String("annotation"))
			})
		},
	}
}

func unlinkCommand() *cli.Command {
	return &cli.Command{
		Name:      "unlink",
		Usage:     "Remove every link between two entries",
		ArgsUsage: "<from> <to>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := args(cmd, 2)
			if err != nil {
				return err
			}
			return withEnv(ctx, cmd, func(ctx context.Context, env *internal.Env, _ *slog.Logger) error {
				return env.Service.Unlink(ctx, a[0], a[1])
			})
		},
	}
}

var edgeTable = lister.New(func(e models.Edge) []string {
	return []string{e.Source, e.Target, e.Annotation}
}).WithHeader("From", "To", "Annotation")

func linksCommand() *cli.Command {
	return &cli.Command{
		Name:      "links",
		Usage:     "List the links stored in an entry",
		ArgsUsage: "<id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := args(cmd, 1)
			if err != nil {
				return err
			}
			return withEnv(ctx, cmd, func(ctx context.Context, env *internal.Env, _ *slog.Logger) error {
				links, err := env.Service.Links(ctx, a[0])
				if err != nil {
					return err
				}
				return edgeTable.List(os.Stdout, lister.Slice(links))
			})
		},
	}
}

func backlinksCommand() *cli.Command {
	return &cli.Command{
		Name:      "backlinks",
		Usage:     "List indexed links pointing at an entry",
		ArgsUsage: "<id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := args(cmd, 1)
			if err != nil {
				return err
			}
			return withEnv(ctx, cmd, func(ctx context.Context, env *internal.Env, _ *slog.Logger) error {
				bl, err := env.Service.Backlinks(ctx, a[0])
				if err != nil {
					return err
				}
				return edgeTable.List(os.Stdout, lister.Slice(bl))
			})
		},
	}
}

type finding struct {
	kind, source, target string
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Verify that every link resolves and is mirrored",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withEnv(ctx, cmd, func(ctx context.Context, env *internal.Env, _ *slog.Logger) error {
				err := env.Service.Check(ctx)
				var ce *link.ConsistencyError
				if !errors.As(err, &ce) {
					if err == nil {
						fmt.Println("ok")
					}
					return err
				}
				var rows []finding
				for _, id := range ce.DeadLinks {
					rows = append(rows, finding{kind: "dead", target: id.String()})
				}
				for _, o := range ce.OneDirectional {
					rows = append(rows, finding{kind: "one-directional", source: o.Source.String(), target: o.Target.String()})
				}
				if lerr := lister.New(func(f finding) []string {
					return []string{f.kind, f.source, f.target}
				}).WithHeader("Problem", "From", "To").List(os.Stdout, lister.Slice(rows)); lerr != nil {
					return lerr
				}
				return err
			})
		},
	}
}

func gcCommand() *cli.Command {
	return &cli.Command{
		Name:  "gc",
		Usage: "Delete entries without links",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Usage: "Only entries below dir"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Print what would be deleted"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withEnv(ctx, cmd, func(ctx context.Context, env *internal.Env, _ *slog.Logger) error {
				ids, err := env.Service.GC(ctx, cmd.String("dir"), cmd.Bool("dry-run"))
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Println(id)
				}
				return nil
			})
		},
	}
}

func collectionCommand() *cli.Command {
	return &cli.Command{
		Name:  "collection",
		Usage: "Manage calendar collections",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Import a directory as a collection with one calendar per file",
				ArgsUsage: "<dir>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Collection name (defaults to the directory)"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					a, err := args(cmd, 1)
					if err != nil {
						return err
					}
					name := cmd.String("name")
					if name == "" {
						name = a[0]
					}
					return withEnv(ctx, cmd, func(_ context.Context, env *internal.Env, logger *slog.Logger) error {
						coll, added, err := env.Collections.Import(a[0], name)
						if err != nil {
							return err
						}
						fmt.Printf("%s: %d calendars\n", collection.HashOf(coll.Location()), len(added))
						return env.Resync(logger)
					})
				},
			},
			{
				Name:  "list",
				Usage: "List collections",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withEnv(ctx, cmd, func(_ context.Context, env *internal.Env, _ *slog.Logger) error {
						colls, err := env.Collections.List()
						if err != nil {
							return err
						}
						return lister.New(func(e *store.Entry) []string {
							name, _ := collection.Name(e)
							p, _ := collection.Path(e)
							return []string{collection.HashOf(e.Location()), name, p}
						}).WithHeader("Hash", "Name", "Path").List(os.Stdout, lister.Slice(colls))
					})
				},
			},
			{
				Name:      "calendars",
				Usage:     "List the calendars of a collection",
				ArgsUsage: "<hash>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					a, err := args(cmd, 1)
					if err != nil {
						return err
					}
					return withEnv(ctx, cmd, func(_ context.Context, env *internal.Env, _ *slog.Logger) error {
						coll, err := env.Collections.Get(a[0])
						if err != nil {
							return err
						}
						it, err := env.Collections.Calendars(coll)
						if err != nil {
							return err
						}
						return lister.New(func(e *store.Entry) []string {
							p, _ := collection.Path(e)
							return []string{collection.HashOf(e.Location()), p}
						}).WithHeader("Hash", "Path").List(os.Stdout, it.All())
					})
				},
			},
			{
				Name:      "remove",
				Usage:     "Delete a collection and its calendars",
				ArgsUsage: "<hash>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					a, err := args(cmd, 1)
					if err != nil {
						return err
					}
					return withEnv(ctx, cmd, func(_ context.Context, env *internal.Env, logger *slog.Logger) error {
						deleted, err := env.Collections.DeleteByHash(a[0])
						if err != nil {
							return err
						}
						for _, id := range deleted {
							fmt.Println(id)
						}
						return env.Resync(logger)
					})
				},
			},
		},
	}
}
