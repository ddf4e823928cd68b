package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"scribedesk/internal/backend"
	"scribedesk/internal/collections"
)

const (
	promptDeleteAll        = "Are you sure you want to delete ALL documents? This cannot be undone."
	promptDeleteFmt        = "Are you sure you want to delete the %s collection? This cannot be undone."
	msgDeleteAllDone       = "Collection deleted successfully"
	msgDeletedFmt          = "%s collection deleted successfully"
	msgDeleteFailedFmt     = "Failed to delete %s collection"
	msgDeleteErrorFmt      = "Error deleting %s collection"
	msgUpdatingFmt         = "Updating %s collection... this may take several minutes."
	msgUpdatedFmt          = "%s collection updated successfully"
	msgUpdateFailedFmt     = "Failed to update %s collection"
	msgUpdateErrorFmt      = "Error updating %s collection"
	msgNoEndpointFmt       = "No endpoint defined for collection %s"
	msgNoUpdateEndpointFmt = "No update endpoint defined for collection %s"
)

// Confirmer asks the user to approve a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// MutationClient is the backend surface for destructive and update actions.
type MutationClient interface {
	DeleteUserDocuments(ctx context.Context) error
	DeleteCollection(ctx context.Context, suffix string) error
	UpdateCollection(ctx context.Context, suffix string) error
}

// ChangeListener is told after a mutation changed collection state.
type ChangeListener func(id collections.ID)

// Mutator runs delete and update actions and reconciles the board afterwards.
type Mutator struct {
	client   MutationClient
	board    *Board
	notifier Notifier
	logger   *slog.Logger
	onChange ChangeListener

	mu      sync.Mutex
	flights inFlight
}

func NewMutator(client MutationClient, board *Board, notifier Notifier, logger *slog.Logger) *Mutator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mutator{client: client, board: board, notifier: notifier, logger: logger}
}

// OnChange registers a listener run after every successful mutation.
func (m *Mutator) OnChange(fn ChangeListener) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// DeletePrompt returns the confirmation text for deleting id.
func DeletePrompt(id collections.ID) string {
	if id == collections.UserDocuments {
		return promptDeleteAll
	}
	return fmt.Sprintf(promptDeleteFmt, id)
}

func (m *Mutator) begin(action string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flights.begin(action)
}

func (m *Mutator) end(action string) {
	m.mu.Lock()
	m.flights.end(action)
	m.mu.Unlock()
}

// Running reports whether action is in flight.
func (m *Mutator) Running(action string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flights.running(action)
}

func (m *Mutator) changed(id collections.ID) {
	m.mu.Lock()
	fn := m.onChange
	m.mu.Unlock()
	if fn != nil {
		fn(id)
	}
}

// DeleteAllUserDocuments removes every uploaded document after confirmation.
func (m *Mutator) DeleteAllUserDocuments(ctx context.Context, confirm Confirmer) error {
	if confirm == nil || !confirm.Confirm(ctx, promptDeleteAll) {
		return ErrDeclined
	}
	action := "delete:" + string(collections.UserDocuments)
	if !m.begin(action) {
		return ErrBusy
	}
	defer m.end(action)

	if err := m.client.DeleteUserDocuments(ctx); err != nil {
		msg := m.failureText(err, msgDeleteFailedFmt, msgDeleteErrorFmt, collections.UserDocuments)
		m.notifier.Error(msg)
		return &BackendError{Message: msg, Err: err}
	}
	m.board.ClearDocuments()
	m.notifier.Success(msgDeleteAllDone)
	m.refresh(ctx)
	m.changed(collections.UserDocuments)
	return nil
}

// DeleteCollection removes a named collection after confirmation.
func (m *Mutator) DeleteCollection(ctx context.Context, id collections.ID, confirm Confirmer) error {
	entry, err := collections.Lookup(id)
	if err != nil {
		msg := fmt.Sprintf(msgNoEndpointFmt, id)
		m.notifier.Error(msg)
		return err
	}
	if entry.Kind == collections.KindUser {
		return m.DeleteAllUserDocuments(ctx, confirm)
	}
	if confirm == nil || !confirm.Confirm(ctx, DeletePrompt(id)) {
		return ErrDeclined
	}
	action := "delete:" + string(id)
	if !m.begin(action) {
		return ErrBusy
	}
	defer m.end(action)

	if err := m.client.DeleteCollection(ctx, entry.DeleteSuffix); err != nil {
		msg := m.failureText(err, msgDeleteFailedFmt, msgDeleteErrorFmt, id)
		m.notifier.Error(msg)
		return &BackendError{Message: msg, Err: err}
	}
	m.notifier.Success(fmt.Sprintf(msgDeletedFmt, id))
	m.refresh(ctx)
	m.changed(id)
	return nil
}

// StartUpdate validates id and posts the persistent loading notice. The
// returned function performs the update and resolves the notice.
func (m *Mutator) StartUpdate(id collections.ID) (NoticeID, func(ctx context.Context) error, error) {
	entry, err := collections.Lookup(id)
	if err != nil {
		m.notifier.Error(fmt.Sprintf(msgNoEndpointFmt, id))
		return "", nil, err
	}
	if !entry.Updatable() {
		m.notifier.Error(fmt.Sprintf(msgNoUpdateEndpointFmt, id))
		return "", nil, fmt.Errorf("%w: %s has no update endpoint", collections.ErrUnknownCollection, id)
	}
	action := "update:" + string(id)
	if !m.begin(action) {
		return "", nil, ErrBusy
	}
	handle := m.notifier.Loading(fmt.Sprintf(msgUpdatingFmt, id))
	run := func(ctx context.Context) error {
		defer m.end(action)
		if err := m.client.UpdateCollection(ctx, entry.UpdateSuffix); err != nil {
			msg := m.failureText(err, msgUpdateFailedFmt, msgUpdateErrorFmt, id)
			m.notifier.Resolve(handle, LevelError, msg)
			m.refresh(ctx)
			return &BackendError{Message: msg, Err: err}
		}
		m.notifier.Resolve(handle, LevelSuccess, fmt.Sprintf(msgUpdatedFmt, id))
		m.refresh(ctx)
		m.changed(id)
		return nil
	}
	return handle, run, nil
}

// AbortUpdate resolves the loading notice of an update that will never run
// and re-enables the action.
func (m *Mutator) AbortUpdate(id collections.ID, handle NoticeID, msg string) {
	m.notifier.Resolve(handle, LevelError, msg)
	m.end("update:" + string(id))
}

// UpdateCollection rebuilds a named collection and waits for the outcome.
func (m *Mutator) UpdateCollection(ctx context.Context, id collections.ID) error {
	_, run, err := m.StartUpdate(id)
	if err != nil {
		return err
	}
	return run(ctx)
}

func (m *Mutator) refresh(ctx context.Context) {
	if err := m.board.RefreshCollections(ctx); err != nil {
		m.logger.Debug("collection refresh after mutation failed", "error", err)
	}
}

func (m *Mutator) failureText(err error, failedFmt, errorFmt string, id collections.ID) string {
	if d := backend.Detail(err); d != "" {
		return d
	}
	var httpErr *backend.HTTPError
	if errors.As(err, &httpErr) {
		return fmt.Sprintf(failedFmt, id)
	}
	return fmt.Sprintf(errorFmt, id)
}
