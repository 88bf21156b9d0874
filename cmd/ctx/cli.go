package main

import (
	"encoding/json"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/ctx/internal/errors"
	"github.com/hpungsan/ctx/internal/ops"
)

// SchemaVersion is the version of the JSON envelope printed by every command.
const SchemaVersion = 1

// Exit codes
const (
	exitOK         = 0
	exitFailure    = 1 // classified error
	exitUnexpected = 2
)

// envelope is the single JSON object a command prints.
type envelope struct {
	SchemaVersion int            `json:"schema_version"`
	OK            bool           `json:"ok"`
	Data          any            `json:"data,omitempty"`
	Error         *errors.Object `json:"error,omitempty"`
}

// newCLIApp creates the CLI application with all commands.
// env may be nil when only help or version output is needed.
func newCLIApp(env *ops.Env) *cli.App {
	app := &cli.App{
		Name:    "ctx",
		Usage:   "Remember where your downloads came from",
		Version: Version,
		Commands: []*cli.Command{
			captureCmd(env),
			lookupCmd(env),
			searchCmd(env),
			getCmd(env),
			reindexCmd(env),
		},
		DisableSliceFlagSeparator: true,
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// captureCmd creates the capture command.
func captureCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "capture",
		Usage: "Record the newest finished download and the page it came from",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "origin-title", Usage: "Title of the source page (required)"},
			&cli.StringFlag{Name: "origin-url", Usage: "URL of the source page (required)"},
			&cli.StringFlag{Name: "note", Usage: "Free-text note"},
			&cli.StringFlag{Name: "source-app", Usage: "Application that triggered the download"},
			&cli.StringFlag{Name: "browser", Usage: "Browser name (default: safari)"},
			&cli.StringFlag{Name: "downloads-dir", Usage: "Directory to look in (default: configured)"},
			&cli.IntFlag{Name: "within", Usage: "Recency window in seconds (default: configured)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Capture(c.Context, env, ops.CaptureInput{
				OriginTitle:   c.String("origin-title"),
				OriginURL:     c.String("origin-url"),
				Note:          c.String("note"),
				SourceApp:     c.String("source-app"),
				Browser:       c.String("browser"),
				DownloadsDir:  c.String("downloads-dir"),
				WithinSeconds: c.Int("within"),
			})
			if err != nil {
				return outputError(c, err)
			}
			return outputJSON(c, output)
		},
	}
}

// lookupCmd creates the lookup command.
func lookupCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "lookup",
		Usage:     "Find captures of a file by its content",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "File to look up"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultLimit, Usage: "Max records (max: 200)"},
		},
		Action: func(c *cli.Context) error {
			path := c.String("path")
			if c.NArg() > 0 {
				path = c.Args().First()
			}

			output, err := ops.Lookup(c.Context, env, ops.LookupInput{
				Path:  path,
				Limit: c.Int("limit"),
			})
			if err != nil {
				return outputError(c, err)
			}
			return outputJSON(c, output)
		},
	}
}

// searchCmd creates the search command.
func searchCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search captures; moved files are relocated along the way",
		ArgsUsage: "[query]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "q", Aliases: []string{"query"}, Usage: "Query (empty lists recent captures)"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultLimit, Usage: "Max results (max: 200)"},
			&cli.BoolFlag{Name: "no-reconcile", Usage: "Do not look for moved files"},
			&cli.StringSliceFlag{Name: "scan-root", Usage: "Directory to search for moved files (repeatable)"},
		},
		Action: func(c *cli.Context) error {
			query := c.String("q")
			if c.NArg() > 0 {
				query = c.Args().First()
			}

			output, err := ops.Search(c.Context, env, ops.SearchInput{
				Query:       query,
				Limit:       c.Int("limit"),
				NoReconcile: c.Bool("no-reconcile"),
				ScanRoots:   c.StringSlice("scan-root"),
			})
			if err != nil {
				return outputError(c, err)
			}
			return outputJSON(c, output)
		},
	}
}

// getCmd creates the get command.
func getCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Fetch a capture by id",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.Get(c.Context, env, ops.GetInput{ID: c.Args().First()})
			if err != nil {
				return outputError(c, err)
			}
			return outputJSON(c, output)
		},
	}
}

// reindexCmd creates the reindex command.
func reindexCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "reindex",
		Usage: "Rebuild the full-text search index",
		Action: func(c *cli.Context) error {
			return outputJSON(c, ops.Reindex(c.Context, env))
		},
	}
}

// outputJSON prints a success envelope.
func outputJSON(c *cli.Context, data any) error {
	return writeEnvelope(c.App.Writer, envelope{SchemaVersion: SchemaVersion, OK: true, Data: data})
}

// outputError prints a failure envelope and returns the matching exit code.
func outputError(c *cli.Context, err error) error {
	ctxErr := errors.Wrap(err)
	obj := ctxErr.Object()
	if werr := writeEnvelope(c.App.Writer, envelope{SchemaVersion: SchemaVersion, Error: &obj}); werr != nil {
		return cli.Exit("", exitUnexpected)
	}
	return cli.Exit("", exitCodeFor(ctxErr))
}

func writeEnvelope(w io.Writer, e envelope) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}

func exitCodeFor(err *errors.CtxError) int {
	if err.Code == errors.ErrUnexpected {
		return exitUnexpected
	}
	return exitFailure
}

// exitCode maps the error returned by app.Run to a process exit code.
// Errors that never reached a command (bad flags) are printed as
// INVALID_REQUEST envelopes.
func exitCode(w io.Writer, err error) int {
	if err == nil {
		return exitOK
	}
	if exitErr, ok := err.(cli.ExitCoder); ok {
		return exitErr.ExitCode()
	}
	obj := errors.NewInvalidRequest(err.Error()).Object()
	_ = writeEnvelope(w, envelope{SchemaVersion: SchemaVersion, Error: &obj})
	return exitFailure
}
