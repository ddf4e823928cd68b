// Command scribectl drives the knowledge base and the summariser from a
// terminal using the same workflow as the web client.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	_ = godotenv.Load()

	err := newApp(os.Stdin, os.Stdout, os.Stderr).Run(os.Args)
	if err == nil {
		return
	}
	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) {
		if msg := exitErr.Error(); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(exitErr.ExitCode())
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func newApp(in io.Reader, out, errOut io.Writer) *cli.App {
	yesFlag := &cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "confirm without prompting"}

	return &cli.App{
		Name:      "scribectl",
		Usage:     "manage the clinical knowledge base and generate summaries",
		Reader:    in,
		Writer:    out,
		ErrWriter: errOut,
		Metadata:  map[string]interface{}{},
		// exit codes are handled in main so tests can run the app in-process
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.json",
				Usage:   "path to the JSON or YAML config file",
				EnvVars: []string{"SCRIBEDESK_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   formatText,
				Usage:   "output format: text, json or yaml",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "only report errors",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "documents",
				Usage: "manage documents in the user collection",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "list uploaded documents",
						Action: DocumentsListAction,
					},
					{
						Name:      "upload",
						Usage:     "upload reference documents",
						ArgsUsage: "FILE...",
						Action:    DocumentsUploadAction,
					},
					{
						Name:   "purge",
						Usage:  "delete every uploaded document",
						Flags:  []cli.Flag{yesFlag},
						Action: DocumentsPurgeAction,
					},
				},
			},
			{
				Name:  "collections",
				Usage: "inspect and maintain knowledge collections",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "list collections and when they were last rebuilt",
						Action: CollectionsListAction,
					},
					{
						Name:      "delete",
						Usage:     "delete a collection",
						ArgsUsage: "ID",
						Flags:     []cli.Flag{yesFlag},
						Action:    CollectionsDeleteAction,
					},
					{
						Name:      "update",
						Usage:     "rebuild a collection from its source",
						ArgsUsage: "ID",
						Action:    CollectionsUpdateAction,
					},
				},
			},
			{
				Name:  "summarize",
				Usage: "generate a clinical summary from a transcription",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "read the transcription from `FILE`"},
					&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Usage: "use `TEXT` as the transcription"},
					&cli.BoolFlag{Name: "edit", Aliases: []string{"e"}, Usage: "open the summary in $EDITOR before saving"},
					&cli.BoolFlag{Name: "save", Aliases: []string{"s"}, Usage: "save the summary to the backend"},
					&cli.StringFlag{Name: "title", Usage: "title used when saving"},
				},
				Action: SummarizeAction,
			},
			{
				Name:  "summaries",
				Usage: "browse saved summaries",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "list saved summaries",
						Flags:  []cli.Flag{&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 10, Usage: "maximum number of summaries"}},
						Action: SummariesListAction,
					},
					{
						Name:      "get",
						Usage:     "show a saved summary",
						ArgsUsage: "ID",
						Action:    SummariesGetAction,
					},
				},
			},
		},
	}
}
