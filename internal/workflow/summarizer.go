package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"scribedesk/internal/backend"
	"scribedesk/internal/intake"
)

// Phase is a state of the summarisation state machine.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseSummarizing Phase = "summarizing"
	PhaseReady       Phase = "ready"
	PhaseEditing     Phase = "editing"
	PhaseSaving      Phase = "saving"
)

const (
	DefaultSummaryTitle = "Clinical Summary"

	msgEmptyInput        = "Please provide text or upload a file for summarization."
	msgSummaryGenerated  = "Summary generated successfully!"
	msgSummaryErrorFmt   = "Summarization error: %s"
	msgSummaryUnknown    = "Summarization failed for an unknown reason."
	msgEditCancelled     = "Edit cancelled."
	msgEmptySummary      = "Summary cannot be empty."
	msgSummarySaved      = "Summary saved to database."
	msgSaveFailed        = "Save failed"
	msgFileLoadedFmt     = "File \"%s\" loaded successfully."
	msgNoSummaryToEdit   = "Generate a summary before editing."
	msgNotEditing        = "No edit in progress."
	msgSummarizeDisabled = "Finish or cancel the current edit first."
)

// SummaryClient is the backend surface for generation and persistence.
type SummaryClient interface {
	GenerateSummary(ctx context.Context, in backend.SummaryRequest) (string, error)
	SaveSummary(ctx context.Context, in backend.SaveRequest) (*backend.SaveResult, error)
}

// FileReader extracts text from a selected file.
type FileReader interface {
	ReadText(ctx context.Context, f *intake.SelectedFile) (string, error)
}

// SummaryDraft is the state of the summarisation view.
type SummaryDraft struct {
	Phase Phase `json:"phase"`
	// Input is the full text sent to the backend.
	Input string `json:"input"`
	// Preview is Input truncated for display.
	Preview    string `json:"preview"`
	SourceFile string `json:"source_file,omitempty"`
	Summary    string `json:"summary"`
	EditBuffer string `json:"edit_buffer,omitempty"`
	SavedID    string `json:"saved_id,omitempty"`
	Title      string `json:"title"`
}

// SavedSummary is reported to the save hook after a successful save.
type SavedSummary struct {
	ID      string
	Status  string
	Title   string
	Content string
	Source  string
}

// Summarizer implements the Idle → Summarizing → Ready ⇄ Editing → Saving
// state machine.
type Summarizer struct {
	client   SummaryClient
	reader   FileReader
	notifier Notifier

	onSaved  func(ctx context.Context, s SavedSummary)
	onChange func(d SummaryDraft)

	mu    sync.Mutex
	draft SummaryDraft
}

func NewSummarizer(client SummaryClient, reader FileReader, notifier Notifier) *Summarizer {
	return &Summarizer{
		client:   client,
		reader:   reader,
		notifier: notifier,
		draft:    SummaryDraft{Phase: PhaseIdle, Title: DefaultSummaryTitle},
	}
}

// OnSaved registers a hook run after every successful save.
func (s *Summarizer) OnSaved(fn func(ctx context.Context, saved SavedSummary)) {
	s.mu.Lock()
	s.onSaved = fn
	s.mu.Unlock()
}

// OnChange registers a hook run with a copy of the draft after every change.
func (s *Summarizer) OnChange(fn func(d SummaryDraft)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Restore replaces the draft, typically from a cache. In-flight phases are
// downgraded to their stable counterpart.
func (s *Summarizer) Restore(d SummaryDraft) {
	switch d.Phase {
	case PhaseSummarizing:
		d.Phase = PhaseIdle
		if d.Summary != "" {
			d.Phase = PhaseReady
		}
	case PhaseSaving:
		d.Phase = PhaseEditing
	case "":
		d.Phase = PhaseIdle
	}
	if d.Title == "" {
		d.Title = DefaultSummaryTitle
	}
	s.mu.Lock()
	s.draft = d
	s.mu.Unlock()
}

func (s *Summarizer) Snapshot() SummaryDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// changedLocked must be called with s.mu held; it returns the hook call to
// run after unlocking.
func (s *Summarizer) changedLocked() func() {
	fn := s.onChange
	d := s.draft
	if fn == nil {
		return func() {}
	}
	return func() { fn(d) }
}

// SetTitle changes the title used on save.
func (s *Summarizer) SetTitle(title string) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultSummaryTitle
	}
	s.mu.Lock()
	s.draft.Title = title
	after := s.changedLocked()
	s.mu.Unlock()
	after()
}

// SetText replaces the input with typed text.
func (s *Summarizer) SetText(text string) {
	s.mu.Lock()
	s.draft.Input = text
	s.draft.Preview = intake.Preview(text, intake.SourceTyped)
	s.draft.SourceFile = ""
	after := s.changedLocked()
	s.mu.Unlock()
	after()
}

// LoadFile validates f against the transcription profile and loads its full
// text. Failures leave the current input untouched.
func (s *Summarizer) LoadFile(ctx context.Context, f *intake.SelectedFile) error {
	if rej := intake.Transcription.Validate(f); rej != nil {
		s.notifier.Error(rej.Message)
		return rej
	}
	text, err := s.reader.ReadText(ctx, f)
	if err != nil {
		rej := intake.Transcription.ReadFailure(f.Name, err)
		s.notifier.Error(rej.Message)
		return rej
	}
	s.mu.Lock()
	s.draft.Input = text
	s.draft.Preview = intake.Preview(text, intake.SourceFile)
	s.draft.SourceFile = f.Name
	after := s.changedLocked()
	s.mu.Unlock()
	after()
	s.notifier.Success(fmt.Sprintf(msgFileLoadedFmt, f.Name))
	return nil
}

// Summarize sends the full input text to the backend.
func (s *Summarizer) Summarize(ctx context.Context) (string, error) {
	s.mu.Lock()
	switch s.draft.Phase {
	case PhaseSummarizing:
		s.mu.Unlock()
		return "", ErrBusy
	case PhaseEditing, PhaseSaving:
		s.mu.Unlock()
		s.notifier.Error(msgSummarizeDisabled)
		return "", ErrInvalidState
	}
	if strings.TrimSpace(s.draft.Input) == "" {
		s.mu.Unlock()
		s.notifier.Error(msgEmptyInput)
		return "", &ValidationError{Message: msgEmptyInput}
	}
	prev := s.draft.Phase
	req := backend.SummaryRequest{Text: s.draft.Input, FileName: s.draft.SourceFile}
	s.draft.Phase = PhaseSummarizing
	s.mu.Unlock()

	summary, err := s.client.GenerateSummary(ctx, req)

	s.mu.Lock()
	if err != nil {
		s.draft.Phase = prev
		s.mu.Unlock()
		msg := fmt.Sprintf(msgSummaryErrorFmt, summaryFailureText(err))
		s.notifier.Error(msg)
		return "", &BackendError{Message: msg, Err: err}
	}
	s.draft.Summary = summary
	s.draft.EditBuffer = ""
	s.draft.SavedID = ""
	s.draft.Phase = PhaseReady
	after := s.changedLocked()
	s.mu.Unlock()
	after()
	s.notifier.Success(msgSummaryGenerated)
	return summary, nil
}

func summaryFailureText(err error) string {
	if d := backend.Detail(err); d != "" {
		return d
	}
	var httpErr *backend.HTTPError
	if errors.As(err, &httpErr) {
		return msgSummaryUnknown
	}
	if msg := backend.Message(err); msg != "" {
		return msg
	}
	return msgSummaryUnknown
}

// BeginEdit seeds the edit buffer with the current summary.
func (s *Summarizer) BeginEdit() error {
	s.mu.Lock()
	if s.draft.Phase != PhaseReady {
		s.mu.Unlock()
		s.notifier.Error(msgNoSummaryToEdit)
		return ErrInvalidState
	}
	s.draft.EditBuffer = s.draft.Summary
	s.draft.Phase = PhaseEditing
	after := s.changedLocked()
	s.mu.Unlock()
	after()
	return nil
}

// Edit replaces the edit buffer.
func (s *Summarizer) Edit(content string) error {
	s.mu.Lock()
	if s.draft.Phase != PhaseEditing {
		s.mu.Unlock()
		return ErrInvalidState
	}
	s.draft.EditBuffer = content
	after := s.changedLocked()
	s.mu.Unlock()
	after()
	return nil
}

// CancelEdit discards the buffer and restores the displayed summary.
func (s *Summarizer) CancelEdit() error {
	s.mu.Lock()
	if s.draft.Phase != PhaseEditing {
		s.mu.Unlock()
		s.notifier.Error(msgNotEditing)
		return ErrInvalidState
	}
	s.draft.EditBuffer = ""
	s.draft.Phase = PhaseReady
	after := s.changedLocked()
	s.mu.Unlock()
	after()
	s.notifier.Info(msgEditCancelled)
	return nil
}

// Save persists the edit buffer. A previously saved id is sent again so the
// backend updates the record rather than creating a duplicate.
func (s *Summarizer) Save(ctx context.Context) (*backend.SaveResult, error) {
	s.mu.Lock()
	switch s.draft.Phase {
	case PhaseSaving:
		s.mu.Unlock()
		return nil, ErrBusy
	case PhaseEditing:
	default:
		s.mu.Unlock()
		s.notifier.Error(msgNotEditing)
		return nil, ErrInvalidState
	}
	content := s.draft.EditBuffer
	if strings.TrimSpace(content) == "" {
		s.mu.Unlock()
		s.notifier.Error(msgEmptySummary)
		return nil, &ValidationError{Message: msgEmptySummary}
	}
	req := backend.SaveRequest{ID: s.draft.SavedID, Title: s.draft.Title, Content: content}
	source := s.draft.SourceFile
	s.draft.Phase = PhaseSaving
	s.mu.Unlock()

	res, err := s.client.SaveSummary(ctx, req)

	s.mu.Lock()
	if err != nil {
		s.draft.Phase = PhaseEditing
		s.mu.Unlock()
		msg := backend.Detail(err)
		if msg == "" {
			if backend.IsTransport(err) {
				msg = backend.Message(err)
			} else {
				msg = msgSaveFailed
			}
		}
		s.notifier.Error(msg)
		return nil, &BackendError{Message: msg, Err: err}
	}
	s.draft.Summary = content
	s.draft.EditBuffer = ""
	s.draft.SavedID = res.ID
	s.draft.Phase = PhaseReady
	onSaved := s.onSaved
	title := s.draft.Title
	after := s.changedLocked()
	s.mu.Unlock()
	after()
	if onSaved != nil {
		onSaved(ctx, SavedSummary{ID: res.ID, Status: res.Status, Title: title, Content: content, Source: source})
	}
	s.notifier.Success(msgSummarySaved)
	return res, nil
}
