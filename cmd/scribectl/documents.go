package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"scribedesk/internal/intake"
	"scribedesk/internal/workflow"
)

func DocumentsListAction(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	board := s.board()
	if err := board.RefreshDocuments(c.Context); err != nil {
		return err
	}
	docs := board.Snapshot().Documents

	return s.out.emit(docs, func(w io.Writer) error {
		if len(docs) == 0 {
			fmt.Fprintln(w, "No documents uploaded yet")
			return nil
		}
		fmt.Fprintf(w, "%-38s %-40s %-12s\n", "ID", "Title", "Uploaded")
		fmt.Fprintln(w, strings.Repeat("-", 92))
		for _, d := range docs {
			fmt.Fprintf(w, "%-38s %-40s %-12s\n", d.ID, truncate(d.Title, 40), d.UploadDate)
		}
		fmt.Fprintf(w, "\nTotal: %d documents\n", len(docs))
		return nil
	})
}

type uploadReport struct {
	Uploaded []workflow.UploadedDocument `json:"uploaded"`
	Rejected []*intake.Rejection         `json:"rejected"`
}

func DocumentsUploadAction(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	if c.Args().Len() == 0 {
		return cli.Exit("at least one FILE is required", 2)
	}

	files := make([]*intake.SelectedFile, 0, c.Args().Len())
	sizes := make(map[string]int64, c.Args().Len())
	for _, path := range c.Args().Slice() {
		f, err := intake.FromPath(path)
		if err != nil {
			return err
		}
		files = append(files, f)
		sizes[f.Name] = f.Size
	}

	board := s.board()
	page := workflow.NewUploadPage(workflow.NewUploader(s.client), board, s.notices)
	_, rejected := page.Select(files...)
	uploaded, err := page.Upload(c.Context)
	if err != nil {
		return reported(err)
	}

	report := uploadReport{Uploaded: uploaded, Rejected: rejected}
	return s.out.emit(report, func(w io.Writer) error {
		for _, doc := range uploaded {
			size := ""
			if n, ok := sizes[doc.Filename]; ok {
				size = humanize.Bytes(uint64(n))
			}
			fmt.Fprintf(w, "%-40s %-10s %s\n", truncate(doc.Filename, 40), size, doc.ID)
		}
		if len(rejected) > 0 {
			fmt.Fprintf(w, "\n%d file(s) skipped\n", len(rejected))
		}
		return nil
	})
}

func DocumentsPurgeAction(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	board := s.board()
	err = s.mutator(board).DeleteAllUserDocuments(c.Context, s.confirmer(c))
	return finishMutation(s, err)
}

// finishMutation reports a declined prompt as a normal outcome.
func finishMutation(s *session, err error) error {
	if errors.Is(err, workflow.ErrDeclined) {
		if s.out.isText() {
			fmt.Fprintln(s.out.w, "Aborted.")
		}
		return nil
	}
	if err != nil {
		return reported(err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
