package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"scribedesk/internal/backend"
	"scribedesk/internal/config"
	"scribedesk/internal/intake"
	"scribedesk/internal/workflow"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// session carries what every action needs. It is built lazily so that help
// output works without a config file.
type session struct {
	client  *backend.Client
	logger  *slog.Logger
	notices *streamNotifier
	out     *printer
	in      *bufio.Reader
	errOut  io.Writer
}

const sessionKey = "session"

func openSession(c *cli.Context) (*session, error) {
	if s, ok := c.App.Metadata[sessionKey].(*session); ok {
		return s, nil
	}
	format := strings.ToLower(c.String("output"))
	switch format {
	case formatText, formatJSON, formatYAML:
	default:
		return nil, fmt.Errorf("unsupported output format %q", c.String("output"))
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	client, err := backend.New(cfg.Backend)
	if err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if c.Bool("quiet") {
		level = slog.LevelError
	}
	logger := slog.New(slog.NewJSONHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level}))

	s := &session{
		client:  client,
		logger:  logger,
		notices: &streamNotifier{w: c.App.ErrWriter, quiet: c.Bool("quiet")},
		out:     &printer{w: c.App.Writer, format: format},
		in:      bufio.NewReader(c.App.Reader),
		errOut:  c.App.ErrWriter,
	}
	c.App.Metadata[sessionKey] = s
	return s, nil
}

func (s *session) board() *workflow.Board {
	return workflow.NewBoard(s.client, workflow.WithBoardLogger(s.logger))
}

func (s *session) mutator(board *workflow.Board) *workflow.Mutator {
	return workflow.NewMutator(s.client, board, s.notices, s.logger)
}

// confirmer answers prompts from stdin unless --yes was given.
func (s *session) confirmer(c *cli.Context) workflow.Confirmer {
	if c.Bool("yes") {
		return workflow.ConfirmFunc(func(context.Context, string) bool { return true })
	}
	return workflow.ConfirmFunc(func(_ context.Context, prompt string) bool {
		fmt.Fprintf(s.errOut, "%s [y/N]: ", prompt)
		line, err := s.in.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(s.errOut)
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	})
}

// streamNotifier prints notices as they happen. Errors are always shown.
type streamNotifier struct {
	w     io.Writer
	quiet bool

	mu  sync.Mutex
	seq int
}

func (n *streamNotifier) Info(msg string) workflow.NoticeID {
	return n.post(workflow.LevelInfo, msg)
}

func (n *streamNotifier) Success(msg string) workflow.NoticeID {
	return n.post(workflow.LevelSuccess, msg)
}

func (n *streamNotifier) Error(msg string) workflow.NoticeID {
	return n.post(workflow.LevelError, msg)
}

func (n *streamNotifier) Loading(msg string) workflow.NoticeID {
	return n.post(workflow.LevelLoading, msg)
}

func (n *streamNotifier) Resolve(_ workflow.NoticeID, level workflow.Level, msg string) {
	n.post(level, msg)
}

func (n *streamNotifier) post(level workflow.Level, msg string) workflow.NoticeID {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seq++
	if !n.quiet || level == workflow.LevelError {
		fmt.Fprintf(n.w, "%-7s %s\n", string(level)+":", msg)
	}
	return workflow.NoticeID(fmt.Sprint(n.seq))
}

// printer writes command results in the selected format. text is only
// called for the text format.
type printer struct {
	w      io.Writer
	format string
}

func (p *printer) emit(v interface{}, text func(w io.Writer) error) error {
	switch p.format {
	case formatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		plain, err := toPlain(v)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(plain); err != nil {
			return err
		}
		return enc.Close()
	default:
		return text(p.w)
	}
}

func (p *printer) isText() bool {
	return p.format == formatText
}

// toPlain round-trips v through JSON so YAML output uses the same field
// names as JSON output.
func toPlain(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode output: %w", err)
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("encode output: %w", err)
	}
	return out, nil
}

// reported turns errors the notifier has already shown into a bare exit
// status so they are not printed twice.
func reported(err error) error {
	var (
		validationErr *workflow.ValidationError
		backendErr    *workflow.BackendError
		rejection     *intake.Rejection
	)
	if errors.As(err, &validationErr) || errors.As(err, &backendErr) || errors.As(err, &rejection) {
		return cli.Exit("", 1)
	}
	return err
}

func requireArg(c *cli.Context, name string) (string, error) {
	arg := strings.TrimSpace(c.Args().First())
	if arg == "" {
		return "", cli.Exit(fmt.Sprintf("%s is required\nusage: %s %s", name, c.Command.HelpName, c.Command.ArgsUsage), 2)
	}
	return arg, nil
}
