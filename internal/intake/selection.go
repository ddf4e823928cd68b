package intake

import "sync"

// Selection holds the files currently staged in one picker or drop zone.
// An action that yields no acceptable file leaves the previous selection
// untouched.
type Selection struct {
	mu       sync.RWMutex
	profile  Profile
	files    []*SelectedFile
	dragging bool
}

func NewSelection(p Profile) *Selection {
	return &Selection{profile: p}
}

// Profile returns the acceptance policy of the selection.
func (s *Selection) Profile() Profile {
	return s.profile
}

// Pick validates files and replaces the selection with those accepted. In
// single mode only the first file is considered.
func (s *Selection) Pick(files ...*SelectedFile) ([]*SelectedFile, []*Rejection) {
	if !s.profile.Multiple && len(files) > 1 {
		files = files[:1]
	}
	var (
		accepted []*SelectedFile
		rejected []*Rejection
	)
	for _, f := range files {
		if rej := s.profile.Validate(f); rej != nil {
			rejected = append(rejected, rej)
			continue
		}
		accepted = append(accepted, f)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dragging = false
	if len(accepted) > 0 {
		s.files = accepted
	}
	return cloneFiles(accepted), rejected
}

// Drop handles files released over the drop zone.
func (s *Selection) Drop(files ...*SelectedFile) ([]*SelectedFile, []*Rejection) {
	return s.Pick(files...)
}

// DragOver marks the drop zone as active.
func (s *Selection) DragOver() {
	s.mu.Lock()
	s.dragging = true
	s.mu.Unlock()
}

// DragLeave clears the active flag.
func (s *Selection) DragLeave() {
	s.mu.Lock()
	s.dragging = false
	s.mu.Unlock()
}

func (s *Selection) Dragging() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dragging
}

func (s *Selection) Clear() {
	s.mu.Lock()
	s.files = nil
	s.mu.Unlock()
}

func (s *Selection) Files() []*SelectedFile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneFiles(s.files)
}

func (s *Selection) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

func cloneFiles(in []*SelectedFile) []*SelectedFile {
	if len(in) == 0 {
		return nil
	}
	out := make([]*SelectedFile, len(in))
	copy(out, in)
	return out
}
