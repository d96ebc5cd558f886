package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/clinote/internal/errors"
	"github.com/hpungsan/clinote/internal/ops"
	"github.com/hpungsan/clinote/internal/web"
)

// newCLIApp creates the CLI application with all commands. s is nil for
// --help and --version.
func newCLIApp(s *session) *cli.App {
	app := &cli.App{
		Name:    "clinote",
		Usage:   "Admission and SOAP note drafting",
		Version: Version,
		Commands: []*cli.Command{
			draftCmd(s),
			parseCmd(s),
			analyzeCmd(s),
			applyCmd(s),
			exportCmd(s),
			ingestCmd(s),
			historyCmd(s),
			statusCmd(s),
			serveCmd(s),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func kindFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "kind",
		Aliases: []string{"k"},
		Usage:   "Record kind: admission|evolution (default: active)",
	}
}

func draftCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:  "draft",
		Usage: "Show and edit the live notes",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print a live note with its lint result",
				Flags: []cli.Flag{kindFlag()},
				Action: func(c *cli.Context) error {
					output, err := ops.DraftGet(s.wb, ops.DraftGetInput{Kind: c.String("kind")})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "edit",
				Usage: "Merge a JSON object of fields into a note (reads stdin)",
				Flags: []cli.Flag{
					kindFlag(),
					&cli.BoolFlag{Name: "replace", Usage: "Replace the whole note instead of merging"},
				},
				Action: func(c *cli.Context) error {
					if !stdinHasData() {
						return outputError(errors.NewInvalidRequest("fields must be piped via stdin"))
					}
					text, err := readStdin()
					if err != nil {
						return outputError(errors.NewInternal(err))
					}
					output, err := ops.DraftUpdate(s.wb, ops.DraftUpdateInput{
						Kind:    c.String("kind"),
						Fields:  json.RawMessage(text),
						Replace: c.Bool("replace"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "clear",
				Usage: "Reset a note and delete its saved draft",
				Flags: []cli.Flag{kindFlag()},
				Action: func(c *cli.Context) error {
					output, err := ops.DraftClear(c.Context, s.wb, ops.DraftClearInput{Kind: c.String("kind")})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "dob",
				Usage:     "Set the admission birth date and derive the age",
				ArgsUsage: "<YYYY-MM-DD>",
				Action: func(c *cli.Context) error {
					input, err := parseBirthDate(c.Args().First())
					if err != nil {
						return outputError(errors.NewInvalidRequest(err.Error()))
					}
					output, err := ops.SetBirthDate(s.wb, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "list",
				Usage:     "Add, remove or toggle an item of a list field",
				ArgsUsage: "<field> <value>",
				Flags: []cli.Flag{
					kindFlag(),
					&cli.StringFlag{Name: "action", Aliases: []string{"a"}, Value: ops.ListAdd, Usage: "add|remove|toggle"},
					&cli.StringFlag{Name: "code", Usage: "Catalog code rendered before the value"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() < 2 {
						return outputError(errors.NewInvalidRequest("field and value are required"))
					}
					output, err := ops.ListEdit(s.wb, ops.ListEditInput{
						Kind:   c.String("kind"),
						Field:  c.Args().Get(0),
						Action: c.String("action"),
						Value:  strings.Join(c.Args().Slice()[1:], " "),
						Code:   c.String("code"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "exam",
				Usage:     "Append a normal-exam template to the physical exam",
				ArgsUsage: "<template>",
				Flags:     []cli.Flag{kindFlag()},
				Action: func(c *cli.Context) error {
					output, err := ops.AppendTemplate(s.wb, ops.AppendTemplateInput{
						Kind:     c.String("kind"),
						Template: strings.Join(c.Args().Slice(), " "),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "sign",
				Usage: "Store the signature image data URL (reads stdin)",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "remove", Usage: "Remove the stored signature"},
				},
				Action: func(c *cli.Context) error {
					var dataURL string
					if !c.Bool("remove") {
						if !stdinHasData() {
							return outputError(errors.NewInvalidRequest("data URL must be piped via stdin"))
						}
						text, err := readStdin()
						if err != nil {
							return outputError(errors.NewInternal(err))
						}
						dataURL = text
					}
					output, err := ops.SetSignature(c.Context, s.wb, ops.SignatureInput{DataURL: dataURL})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

func parseCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:  "parse",
		Usage: "Extract fields from free clinical text (reads stdin)",
		Flags: []cli.Flag{kindFlag()},
		Action: func(c *cli.Context) error {
			if !stdinHasData() {
				return outputError(errors.NewInvalidRequest("text must be piped via stdin"))
			}
			text, err := readStdin()
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			output, err := ops.Parse(c.Context, s.wb, ops.ParseInput{Kind: c.String("kind"), Text: text})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func analyzeCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "Ask the assistant to critique a note",
		Flags: []cli.Flag{
			kindFlag(),
			&cli.BoolFlag{Name: "apply", Usage: "Apply the suggestions and commit the note"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Analyze(c.Context, s.wb, ops.AnalyzeInput{
				Kind:  c.String("kind"),
				Apply: c.Bool("apply"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func applyCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:  "apply",
		Usage: "Apply a critique JSON object to a note (reads stdin)",
		Flags: []cli.Flag{kindFlag()},
		Action: func(c *cli.Context) error {
			if !stdinHasData() {
				return outputError(errors.NewInvalidRequest("analysis must be piped via stdin"))
			}
			text, err := readStdin()
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			output, err := ops.ApplyAnalysis(c.Context, s.wb, ops.ApplyAnalysisInput{
				Kind:     c.String("kind"),
				Analysis: json.RawMessage(text),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func exportCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Render a note: doc|html|word|message|payload",
		ArgsUsage: "<format>",
		Flags: []cli.Flag{
			kindFlag(),
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write to this file instead of stdout"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Export(c.Context, s.wb, s.cfg, s.metrics, ops.ExportInput{
				Kind:   c.String("kind"),
				Format: parseFormat(c.Args().First()),
				Path:   c.String("output"),
			})
			if err != nil {
				return outputError(err)
			}
			if output.Path != "" {
				return outputJSON(output)
			}
			_, err = io.WriteString(os.Stdout, output.Content)
			return err
		},
	}
}

func ingestCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Merge a scanned transfer payload into the admission (reads stdin or --file)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Payload file (.json or .txt)"},
		},
		Action: func(c *cli.Context) error {
			input := ops.IngestInput{Path: c.String("file")}
			if input.Path == "" {
				if !stdinHasData() {
					return outputError(errors.NewInvalidRequest("payload must be piped via stdin or given with --file"))
				}
				text, err := readStdin()
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				input.Payload = text
			}
			output, err := ops.Ingest(s.wb, s.cfg, s.metrics, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func historyCmd(s *session) *cli.Command {
	idAction := func(fn func(ctx context.Context, id int64) (any, error)) cli.ActionFunc {
		return func(c *cli.Context) error {
			id, err := parseID(c.Args().First())
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			output, err := fn(c.Context, id)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		}
	}

	return &cli.Command{
		Name:  "history",
		Usage: "Browse committed notes",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List committed notes, newest first",
				Flags: []cli.Flag{
					kindFlag(),
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Match name, folio or diagnoses"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Max results"},
					&cli.IntFlag{Name: "offset", Usage: "Pagination offset"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.HistoryList(c.Context, s.wb, ops.HistoryListInput{
						Kind:   c.String("kind"),
						Query:  c.String("query"),
						Limit:  c.Int("limit"),
						Offset: c.Int("offset"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "show",
				Usage:     "Print one committed note",
				ArgsUsage: "<id>",
				Action: idAction(func(ctx context.Context, id int64) (any, error) {
					return ops.HistoryGet(ctx, s.wb, ops.HistoryGetInput{ID: id})
				}),
			},
			{
				Name:      "load",
				Usage:     "Copy a committed note back into the live draft",
				ArgsUsage: "<id>",
				Action: idAction(func(ctx context.Context, id int64) (any, error) {
					return ops.HistoryLoad(ctx, s.wb, ops.HistoryLoadInput{ID: id})
				}),
			},
			{
				Name:      "delete",
				Usage:     "Delete one committed note",
				ArgsUsage: "<id>",
				Action: idAction(func(ctx context.Context, id int64) (any, error) {
					return ops.HistoryDelete(ctx, s.wb, ops.HistoryDeleteInput{ID: id})
				}),
			},
			{
				Name:  "clear",
				Usage: "Delete every committed note",
				Action: func(c *cli.Context) error {
					return outputJSON(ops.HistoryClear(c.Context, s.wb))
				},
			},
			{
				Name:  "xlsx",
				Usage: "Write the history as a spreadsheet",
				Flags: []cli.Flag{
					kindFlag(),
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Match name, folio or diagnoses"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Required: true, Usage: "Destination .xlsx file"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.HistoryWorkbook(c.Context, s.wb, s.cfg, ops.HistoryWorkbookInput{
						Kind:  c.String("kind"),
						Query: c.String("query"),
						Path:  c.String("output"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

func statusCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the session, persistence and assistant state",
		Action: func(c *cli.Context) error {
			return outputJSON(ops.Status(c.Context, s.wb, s.breaker))
		},
	}
}

func serveCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the JSON API over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Bind address (default from config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Port (default from config)"},
		},
		Action: func(c *cli.Context) error {
			if bind := c.String("bind"); bind != "" {
				s.cfg.HTTPBind = bind
			}
			if port := c.Int("port"); port != 0 {
				s.cfg.HTTPPort = port
			}
			srv := web.NewServer(s.webDeps(), Version)
			return web.Run(c.Context, srv, s.logger)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var nErr *errors.NoteError
	if stderrors.As(err, &nErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", nErr.Code, nErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// parseFormat maps the short CLI format names onto export formats.
func parseFormat(s string) string {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case "doc", "md", "markdown":
		return ops.FormatDocument
	case "qr":
		return ops.FormatPayload
	}
	return s
}

// parseBirthDate parses a YYYY-MM-DD date.
func parseBirthDate(s string) (ops.BirthDateInput, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return ops.BirthDateInput{}, fmt.Errorf("birth date must be YYYY-MM-DD, got %q", s)
	}
	return ops.BirthDateInput{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}, nil
}

// parseID parses a positive history entry id.
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("history id must be a positive integer, got %q", s)
	}
	return id, nil
}
