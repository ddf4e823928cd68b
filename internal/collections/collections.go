// Package collections holds the fixed table of knowledge collections the
// backend exposes and the endpoint suffixes used to delete or rebuild them.
package collections

import (
	"errors"
	"fmt"
)

// ID identifies a knowledge collection.
type ID string

const (
	MiriadKnowledge ID = "miriad_knowledge"
	NiceKnowledge   ID = "nice_knowledge"
	UserDocuments   ID = "user"
)

// Kind groups collections by what the user may do with them.
type Kind int

const (
	// KindStatic collections can be deleted but never rebuilt.
	KindStatic Kind = iota
	// KindRefreshable collections can be deleted and rebuilt from their source.
	KindRefreshable
	// KindUser is the collection holding the user's own uploads.
	KindUser
)

func (k Kind) String() string {
	switch k {
	case KindStatic:
		return "static"
	case KindRefreshable:
		return "refreshable"
	case KindUser:
		return "user"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var ErrUnknownCollection = errors.New("unknown collection")

// Entry describes one collection and the endpoints that act on it.
type Entry struct {
	ID           ID     `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Kind         Kind   `json:"-"`
	DeleteSuffix string `json:"-"`
	// UpdateSuffix is empty when the collection cannot be rebuilt.
	UpdateSuffix string `json:"-"`
}

// Updatable reports whether the collection has a rebuild endpoint.
func (e Entry) Updatable() bool {
	return e.UpdateSuffix != ""
}

// Lookup resolves id to its table entry.
func Lookup(id ID) (Entry, error) {
	switch id {
	case MiriadKnowledge:
		return Entry{
			ID:           MiriadKnowledge,
			Name:         "Miriad Knowledge",
			Description:  "Medical literature question and answer corpus",
			Kind:         KindRefreshable,
			DeleteSuffix: "miriad",
			UpdateSuffix: "update_miriad",
		}, nil
	case NiceKnowledge:
		return Entry{
			ID:           NiceKnowledge,
			Name:         "NICE Knowledge",
			Description:  "NICE clinical guidelines",
			Kind:         KindRefreshable,
			DeleteSuffix: "nice",
			UpdateSuffix: "update_nice",
		}, nil
	case UserDocuments:
		return Entry{
			ID:           UserDocuments,
			Name:         "My Documents",
			Description:  "Documents uploaded by the user",
			Kind:         KindUser,
			DeleteSuffix: "user",
		}, nil
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrUnknownCollection, id)
}

// All returns the collections in display order.
func All() []Entry {
	ids := []ID{UserDocuments, MiriadKnowledge, NiceKnowledge}
	out := make([]Entry, 0, len(ids))
	for _, id := range ids {
		e, _ := Lookup(id)
		out = append(out, e)
	}
	return out
}
