package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/abgdnv/bookstore/internal/book/service"
	"github.com/abgdnv/bookstore/internal/book/store"
	"github.com/abgdnv/bookstore/internal/platform/logger"
	"github.com/urfave/cli/v2"
)

const (
	defaultPage    = 1
	defaultPerPage = 5
)

// environment is what the commands run against.
type environment struct {
	books service.BookService
	serve func(ctx context.Context) error
}

// newApp builds the command tree. load is called once, by the first command
// that runs, so help output never reads the configuration.
func newApp(load func() (*environment, error)) *cli.App {
	var env *environment
	with := func(action func(c *cli.Context, env *environment) error) cli.ActionFunc {
		return func(c *cli.Context) error {
			if env == nil {
				loaded, err := load()
				if err != nil {
					return err
				}
				env = loaded
			}
			c.Context = logger.WithCommand(c.Context, c.Command.Name)
			return action(c, env)
		}
	}

	return &cli.App{
		Name:  "bookstore",
		Usage: "query the books collection",
		Commands: []*cli.Command{
			{
				Name:      "genre",
				Usage:     "list the books of a genre",
				ArgsUsage: "<genre>",
				Action: with(func(c *cli.Context, env *environment) error {
					if err := expectArgs(c, 1); err != nil {
						return err
					}
					_, err := env.books.FindByGenre(c.Context, c.Args().Get(0))
					return err
				}),
			},
			{
				Name:      "after",
				Usage:     "list the books published after a year",
				ArgsUsage: "<year>",
				Action: with(func(c *cli.Context, env *environment) error {
					if err := expectArgs(c, 1); err != nil {
						return err
					}
					_, err := env.books.FindPublishedAfterRaw(c.Context, c.Args().Get(0))
					return err
				}),
			},
			{
				Name:      "author",
				Usage:     "list the books of an author",
				ArgsUsage: "<author>",
				Action: with(func(c *cli.Context, env *environment) error {
					if err := expectArgs(c, 1); err != nil {
						return err
					}
					_, err := env.books.FindByAuthor(c.Context, c.Args().Get(0))
					return err
				}),
			},
			{
				Name:      "update-price",
				Usage:     "set the price of a book",
				ArgsUsage: "<title> <price>",
				Action: with(func(c *cli.Context, env *environment) error {
					if err := expectArgs(c, 2); err != nil {
						return err
					}
					price, err := strconv.ParseFloat(c.Args().Get(1), 64)
					if err != nil {
						return fmt.Errorf("invalid price %q: %w", c.Args().Get(1), err)
					}
					_, err = env.books.UpdatePriceByTitle(c.Context, c.Args().Get(0), price)
					return err
				}),
			},
			{
				Name:      "delete",
				Usage:     "delete a book",
				ArgsUsage: "<title>",
				Action: with(func(c *cli.Context, env *environment) error {
					if err := expectArgs(c, 1); err != nil {
						return err
					}
					_, err := env.books.DeleteByTitle(c.Context, c.Args().Get(0))
					return err
				}),
			},
			{
				Name:  "in-stock-recent",
				Usage: "list the books in stock published after 2010",
				Action: with(func(c *cli.Context, env *environment) error {
					_, err := env.books.FindInStockAndRecent(c.Context)
					return err
				}),
			},
			{
				Name:  "projection",
				Usage: "list title, author and price of the matching books",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title"},
					&cli.StringFlag{Name: "author"},
					&cli.StringFlag{Name: "genre"},
					&cli.IntFlag{Name: "published-after"},
					&cli.IntFlag{Name: "published-before"},
					&cli.BoolFlag{Name: "in-stock"},
					&cli.Float64Flag{Name: "min-price"},
					&cli.Float64Flag{Name: "max-price"},
				},
				Action: with(func(c *cli.Context, env *environment) error {
					_, err := env.books.FindWithProjection(c.Context, filterFromFlags(c))
					return err
				}),
			},
			{
				Name:      "sort",
				Usage:     "list every book by price",
				ArgsUsage: "[asc|desc]",
				Action: with(func(c *cli.Context, env *environment) error {
					_, err := env.books.SortByPrice(c.Context, c.Args().Get(0))
					return err
				}),
			},
			{
				Name:      "paginate",
				Usage:     "show one page of books sorted by title",
				ArgsUsage: "[page] [perPage]",
				Action: with(func(c *cli.Context, env *environment) error {
					page, err := intArg(c, 0, defaultPage)
					if err != nil {
						return err
					}
					perPage, err := intArg(c, 1, defaultPerPage)
					if err != nil {
						return err
					}
					_, err = env.books.Paginate(c.Context, page, perPage)
					return err
				}),
			},
			{
				Name:  "avg-price",
				Usage: "average price per genre",
				Action: with(func(c *cli.Context, env *environment) error {
					_, err := env.books.AveragePriceByGenre(c.Context)
					return err
				}),
			},
			{
				Name:  "top-author",
				Usage: "the author with the most books",
				Action: with(func(c *cli.Context, env *environment) error {
					_, err := env.books.MostPublishedAuthor(c.Context)
					return err
				}),
			},
			{
				Name:  "decades",
				Usage: "books grouped by publication decade",
				Action: with(func(c *cli.Context, env *environment) error {
					_, err := env.books.BooksByDecade(c.Context)
					return err
				}),
			},
			{
				Name:  "create-indexes",
				Usage: "create the title and author/year indexes",
				Action: with(func(c *cli.Context, env *environment) error {
					_, err := env.books.CreateIndexes(c.Context)
					return err
				}),
			},
			{
				Name:  "explain",
				Usage: "compare query plans with and without indexes",
				Action: with(func(c *cli.Context, env *environment) error {
					_, err := env.books.DemonstrateIndexPerformance(c.Context)
					return err
				}),
			},
			{
				Name:  "drop-indexes",
				Usage: "drop every index except _id_",
				Action: with(func(c *cli.Context, env *environment) error {
					return env.books.DropIndexes(c.Context)
				}),
			},
			{
				Name:  "serve",
				Usage: "serve the queries over HTTP",
				Action: with(func(c *cli.Context, env *environment) error {
					return env.serve(c.Context)
				}),
			},
		},
	}
}

func expectArgs(c *cli.Context, n int) error {
	if c.NArg() != n {
		return fmt.Errorf("%s expects %d argument(s): %s", c.Command.Name, n, c.Command.ArgsUsage)
	}
	return nil
}

// intArg parses the optional positional argument at i, returning def when it is absent.
func intArg(c *cli.Context, i, def int) (int, error) {
	if c.NArg() <= i {
		return def, nil
	}
	v, err := strconv.Atoi(c.Args().Get(i))
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", c.Args().Get(i), err)
	}
	return v, nil
}

// filterFromFlags sets a filter field for every flag given on the command line.
func filterFromFlags(c *cli.Context) store.Filter {
	var f store.Filter
	if c.IsSet("title") {
		f.Title = ptr(c.String("title"))
	}
	if c.IsSet("author") {
		f.Author = ptr(c.String("author"))
	}
	if c.IsSet("genre") {
		f.Genre = ptr(c.String("genre"))
	}
	if c.IsSet("published-after") {
		f.PublishedAfter = ptr(c.Int("published-after"))
	}
	if c.IsSet("published-before") {
		f.PublishedBefore = ptr(c.Int("published-before"))
	}
	if c.IsSet("in-stock") {
		f.InStock = ptr(c.Bool("in-stock"))
	}
	if c.IsSet("min-price") {
		f.MinPrice = ptr(c.Float64("min-price"))
	}
	if c.IsSet("max-price") {
		f.MaxPrice = ptr(c.Float64("max-price"))
	}
	return f
}

func ptr[T any](v T) *T {
	return &v
}
