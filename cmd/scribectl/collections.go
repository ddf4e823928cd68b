package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"scribedesk/internal/collections"
	"scribedesk/internal/workflow"
)

func CollectionsListAction(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	board := s.board()
	if err := board.RefreshCollections(c.Context); err != nil {
		return err
	}
	rows := board.Snapshot().Collections
	return s.out.emit(rows, func(w io.Writer) error {
		printCollections(w, rows)
		return nil
	})
}

func printCollections(w io.Writer, rows []workflow.CollectionRow) {
	fmt.Fprintf(w, "%-18s %-18s %-12s %-20s\n", "ID", "Name", "Kind", "Last updated")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	for _, r := range rows {
		fmt.Fprintf(w, "%-18s %-18s %-12s %-20s\n", r.ID, r.Name, r.Kind, r.LastUpdated)
	}
}

func CollectionsDeleteAction(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	id, err := requireArg(c, "ID")
	if err != nil {
		return err
	}
	board := s.board()
	err = s.mutator(board).DeleteCollection(c.Context, collections.ID(id), s.confirmer(c))
	return finishMutation(s, err)
}

func CollectionsUpdateAction(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	id, err := requireArg(c, "ID")
	if err != nil {
		return err
	}
	board := s.board()
	started := time.Now()
	if err := s.mutator(board).UpdateCollection(c.Context, collections.ID(id)); err != nil {
		return reported(err)
	}
	rows := board.Snapshot().Collections
	return s.out.emit(rows, func(w io.Writer) error {
		fmt.Fprintf(w, "Finished in %s\n\n", time.Since(started).Round(time.Second))
		printCollections(w, rows)
		return nil
	})
}
