package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"scribedesk/internal/backend"
	"scribedesk/internal/intake"
	"scribedesk/internal/render"
	"scribedesk/internal/workflow"
)

type summarizeReport struct {
	Title   string `json:"title"`
	Source  string `json:"source,omitempty"`
	Summary string `json:"summary"`
	SavedID string `json:"saved_id,omitempty"`
	Status  string `json:"status,omitempty"`
}

func SummarizeAction(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	if c.IsSet("file") && c.IsSet("text") {
		return cli.Exit("--file and --text are mutually exclusive", 2)
	}
	reader, err := intake.NewTextReader(c.Context)
	if err != nil {
		return err
	}
	sum := workflow.NewSummarizer(s.client, reader, s.notices)
	if c.IsSet("title") {
		sum.SetTitle(c.String("title"))
	}

	switch {
	case c.IsSet("file"):
		f, err := intake.FromPath(c.String("file"))
		if err != nil {
			return err
		}
		if err := sum.LoadFile(c.Context, f); err != nil {
			return reported(err)
		}
	case c.IsSet("text"):
		sum.SetText(c.String("text"))
	default:
		data, err := io.ReadAll(s.in)
		if err != nil {
			return fmt.Errorf("read transcription from stdin: %w", err)
		}
		sum.SetText(string(data))
	}
	s.logger.Debug("summarising", "characters", humanize.Comma(int64(len(sum.Snapshot().Input))))

	if _, err := sum.Summarize(c.Context); err != nil {
		return reported(err)
	}

	if c.Bool("edit") {
		if err := sum.BeginEdit(); err != nil {
			return reported(err)
		}
		edited, err := editInEditor(c.Context, s, sum.Snapshot().EditBuffer)
		if err != nil {
			_ = sum.CancelEdit()
			return err
		}
		if err := sum.Edit(edited); err != nil {
			return reported(err)
		}
	}

	var saved *backend.SaveResult
	if c.Bool("save") {
		if sum.Snapshot().Phase != workflow.PhaseEditing {
			if err := sum.BeginEdit(); err != nil {
				return reported(err)
			}
		}
		saved, err = sum.Save(c.Context)
		if err != nil {
			return reported(err)
		}
	} else if sum.Snapshot().Phase == workflow.PhaseEditing {
		// unsaved edits are still printed
		draft := sum.Snapshot()
		return printSummary(s, summarizeReport{Title: draft.Title, Source: draft.SourceFile, Summary: draft.EditBuffer})
	}

	draft := sum.Snapshot()
	report := summarizeReport{Title: draft.Title, Source: draft.SourceFile, Summary: draft.Summary}
	if saved != nil {
		report.SavedID = saved.ID
		report.Status = saved.Status
	}
	return printSummary(s, report)
}

func printSummary(s *session, report summarizeReport) error {
	return s.out.emit(report, func(w io.Writer) error {
		return writeSummaryText(w, report)
	})
}

func writeSummaryText(w io.Writer, report summarizeReport) error {
	text, err := render.PlainText(report.Summary)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, report.Title)
	fmt.Fprintln(w, strings.Repeat("=", len([]rune(report.Title))))
	if report.Source != "" {
		fmt.Fprintf(w, "Source: %s\n", report.Source)
	}
	fmt.Fprintf(w, "\n%s\n", text)
	if report.SavedID != "" {
		fmt.Fprintf(w, "\nSaved as %s (%s)\n", report.SavedID, report.Status)
	}
	return nil
}

// editInEditor opens content in $EDITOR and returns the saved file.
func editInEditor(ctx context.Context, s *session, content string) (string, error) {
	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	tmp, err := os.CreateTemp("", "scribedesk-summary-*.md")
	if err != nil {
		return "", fmt.Errorf("create edit buffer: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write edit buffer: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write edit buffer: %w", err)
	}

	fields := strings.Fields(editor)
	cmd := exec.CommandContext(ctx, fields[0], append(fields[1:], tmp.Name())...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = s.errOut
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("run editor %s: %w", fields[0], err)
	}
	data, err := os.ReadFile(tmp.Name())
	if err != nil {
		return "", fmt.Errorf("read edit buffer: %w", err)
	}
	return string(data), nil
}

type summaryListing struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Length int    `json:"length"`
}

func SummariesListAction(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	list, err := s.client.ListSummaries(c.Context, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("list summaries: %s", backend.Message(err))
	}
	rows := make([]summaryListing, 0, len(list))
	for _, sm := range list {
		rows = append(rows, summaryListing{ID: sm.ID, Title: sm.Title, Length: len(sm.Content)})
	}
	return s.out.emit(rows, func(w io.Writer) error {
		if len(rows) == 0 {
			fmt.Fprintln(w, "No saved summaries")
			return nil
		}
		fmt.Fprintf(w, "%-38s %-40s %-10s\n", "ID", "Title", "Size")
		fmt.Fprintln(w, strings.Repeat("-", 90))
		for _, r := range rows {
			fmt.Fprintf(w, "%-38s %-40s %-10s\n", r.ID, truncate(r.Title, 40), humanize.Bytes(uint64(r.Length)))
		}
		return nil
	})
}

func SummariesGetAction(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	id, err := requireArg(c, "ID")
	if err != nil {
		return err
	}
	sm, err := s.client.GetSummary(c.Context, id)
	if errors.Is(err, backend.ErrNotFound) {
		return cli.Exit(fmt.Sprintf("summary %s not found", id), 1)
	}
	if err != nil {
		return fmt.Errorf("get summary: %s", backend.Message(err))
	}
	return s.out.emit(sm, func(w io.Writer) error {
		return writeSummaryText(w, summarizeReport{Title: sm.Title, Summary: sm.Content})
	})
}
