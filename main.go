package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parish/src-server/auth"
	"parish/src-server/imageproc"
	"parish/src-server/mailer"
	"parish/src-server/metric"
	"parish/src-server/model"
	"parish/src-server/recurrence"
	"parish/src-server/route"
	"parish/src-server/scheduler"
	"parish/src-server/seed"
	"parish/src-server/storage"
	"parish/src-server/utils"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/urfave/cli/v2"
)

// raised or lowered from LOG_LEVEL once the config is read
var logLevel = new(slog.LevelVar)

func init() {
	if err := godotenv.Load(); err != nil {
		slog.Info(err.Error())
	}
	logLevel.Set(slog.LevelDebug)
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.RFC1123Z,
		}),
	))
}

func main() {
	app := &cli.App{
		Name:  "parish",
		Usage: "Parish website backend: calendar, posts, bells and tickets.",
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			seedCommand(),
			createUserCommand(),
			repeatCommand(),
			processImageCommand(),
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// openAppState reads the config, opens the database and makes sure the schema exists.
func openAppState(ctx context.Context) (*utils.AppState, error) {
	config := utils.NewConfig()
	logLevel.Set(config.GetLogLevel())

	as, err := utils.NewAppState(config)
	if err != nil {
		return nil, err
	}
	if err := model.CreateSchema(ctx, as.BunDB); err != nil {
		as.GracefulShutdown()
		return nil, fmt.Errorf("can't create database schema: %w", err)
	}
	return as, nil
}

func applySeed(ctx context.Context, as *utils.AppState, path string) error {
	file, err := seed.Load(path)
	if err != nil {
		return err
	}
	_, err = file.Apply(ctx, as.BunDB)
	return err
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API, the metrics collectors and the housekeeping job.",
		Action: func(c *cli.Context) error {
			as, err := openAppState(c.Context)
			if err != nil {
				return err
			}
			defer as.GracefulShutdown()

			if path := as.Config.GetSeedFile(); path != "" {
				if err := applySeed(c.Context, as, path); err != nil {
					return fmt.Errorf("can't apply SEED_FILE: %w", err)
				}
			}

			metric.Init(as)
			if _, err := scheduler.Start(as); err != nil {
				return fmt.Errorf("can't start housekeeping: %w", err)
			}

			app, err := route.NewApp(as)
			if err != nil {
				return err
			}
			server := &http.Server{
				Addr:              ":" + as.Config.GetPort(),
				Handler:           route.NewMux(app),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// http server
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					slog.Error("cannot start HTTP server", "error", err)
					as.AppCloseSignalChan <- syscall.SIGTERM
				}
			}()
			slog.Info("app is now running, press Ctrl+C to exit", "port", as.Config.GetPort())

			signal.Notify(as.AppCloseSignalChan, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
			<-as.AppCloseSignalChan
			slog.Info("Gracefully shutting down...")

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				slog.Warn("can't shut the HTTP server down cleanly", "error", err)
			}
			return nil
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create the missing tables and indexes, then exit.",
		Action: func(c *cli.Context) error {
			as, err := openAppState(c.Context)
			if err != nil {
				return err
			}
			as.GracefulShutdown()
			slog.Info("schema is up to date")
			return nil
		},
	}
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:      "seed",
		Usage:     "Load event types, places, workshops and releases from a YAML file.",
		ArgsUsage: "[file]",
		Action: func(c *cli.Context) error {
			as, err := openAppState(c.Context)
			if err != nil {
				return err
			}
			defer as.GracefulShutdown()

			path := c.Args().First()
			if path == "" {
				path = as.Config.GetSeedFile()
			}
			if path == "" {
				return fmt.Errorf("no seed file, pass one or set SEED_FILE")
			}
			return applySeed(c.Context, as, path)
		},
	}
}

func createUserCommand() *cli.Command {
	return &cli.Command{
		Name:  "create-user",
		Usage: "Register an account, the first admin is created this way.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Required: true, Usage: "user name"},
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"NEW_USER_PASSWORD"}},
			&cli.StringFlag{Name: "phone"},
			&cli.StringSliceFlag{Name: "role", Usage: "admin, editor, bells or member, repeatable"},
			&cli.BoolFlag{Name: "inactive", Usage: "create the account disabled"},
		},
		Action: func(c *cli.Context) error {
			as, err := openAppState(c.Context)
			if err != nil {
				return err
			}
			defer as.GracefulShutdown()

			authenticator := auth.NewAuthenticator(as.BunDB)
			users := auth.NewUsers(as.BunDB, authenticator, mailer.FromConfig(as.Config), as.Config.GetPublicURL())
			user, err := users.Register(c.Context, auth.Registration{
				UserName: c.String("name"),
				Email:    c.String("email"),
				Phone:    c.String("phone"),
				Password: c.String("password"),
				Roles:    c.StringSlice("role"),
				IsActive: !c.Bool("inactive"),
			})
			if err != nil {
				return err
			}
			fmt.Printf("created user %d (%s)\n", user.ID, user.Email)
			return nil
		},
	}
}

func repeatCommand() *cli.Command {
	return &cli.Command{
		Name:  "repeat",
		Usage: "Generate a weekly repeated event over a date range.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Required: true, Usage: "first day, YYYY-MM-DD"},
			&cli.StringFlag{Name: "till", Required: true, Usage: "last day, YYYY-MM-DD"},
			&cli.StringFlag{Name: "start", Required: true, Usage: "HH:MM"},
			&cli.StringFlag{Name: "end", Required: true, Usage: "HH:MM"},
			&cli.IntSliceFlag{Name: "weekday", Required: true, Usage: "0 = Sunday .. 6 = Saturday, repeatable"},
			&cli.StringFlag{Name: "title"},
			&cli.StringFlag{Name: "note"},
			&cli.Int64Flag{Name: "type-id", Usage: "event type (calendar note) id"},
			&cli.Int64Flag{Name: "place-id"},
			&cli.BoolFlag{Name: "dry-run", Usage: "only print the rule"},
		},
		Action: func(c *cli.Context) error {
			as, err := openAppState(c.Context)
			if err != nil {
				return err
			}
			defer as.GracefulShutdown()

			req := &recurrence.Request{
				DateFrom:  c.String("from"),
				DateTill:  c.String("till"),
				TimeStart: c.String("start"),
				TimeEnd:   c.String("end"),
				Weekdays:  c.IntSlice("weekday"),
				Title:     c.String("title"),
				Note:      c.String("note"),
				NoteID:    c.Int64("type-id"),
				PlaceID:   c.Int64("place-id"),
			}
			loc := as.Config.GetLocation()
			if err := req.Validate(loc); err != nil {
				return err
			}
			if c.Bool("dry-run") {
				fmt.Println(req.RRule(loc))
				return nil
			}

			inserted, err := recurrence.FromAppState(as).Generate(c.Context, req)
			if err != nil {
				return err
			}
			fmt.Printf("inserted %d events, group %s\n", inserted, req.Group)
			return nil
		},
	}
}

func processImageCommand() *cli.Command {
	return &cli.Command{
		Name:      "process-image",
		Usage:     "Run a local image through the upload pipeline and store it.",
		ArgsUsage: "<file>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one file")
			}
			config := utils.NewConfig()
			logLevel.Set(config.GetLogLevel())

			store, err := storage.NewManager(config.GetStorageDir())
			if err != nil {
				return err
			}
			processor := imageproc.NewProcessor(store, imageproc.OptionsFromConfig(config), nil)
			rel, err := processor.Process(c.Context, storage.FromFile(c.Args().First()))
			if err != nil {
				return err
			}
			fmt.Println(rel)
			return nil
		},
	}
}
