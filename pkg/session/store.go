package session

import "github.com/gnowledge/nodeBook-sub003/pkg/core"

type entry struct {
	doc   core.Document
	draft *string
	gen   uint64
	edits uint64
}

// Store owns the raw/parsed/dirty triple of every open document.
// Documents go in and come out as copies, so no two ids ever share state.
//
// Store is not safe for concurrent use; the Manager guards it.
type Store struct {
	docs    map[string]*entry
	lastGen uint64
	lastRev uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{docs: make(map[string]*entry)}
}

// Add stores a copy of doc, replacing any entry with the same id, and
// returns the generation assigned to it. The stored revision is assigned
// by the store.
func (s *Store) Add(doc core.Document) uint64 {
	s.lastGen++
	doc = copyDocument(doc)
	doc.Revision = s.nextRevision()
	s.docs[doc.ID] = &entry{doc: doc, gen: s.lastGen}
	return s.lastGen
}

// Revisions are unique across the store so that a reopened document never
// repeats the revision of its previous stay.
func (s *Store) nextRevision() uint64 {
	s.lastRev++
	return s.lastRev
}

// Get returns a copy of the document.
func (s *Store) Get(id string) (core.Document, bool) {
	e, ok := s.docs[id]
	if !ok {
		return core.Document{}, false
	}
	return copyDocument(e.doc), true
}

// Has reports whether id is stored.
func (s *Store) Has(id string) bool {
	_, ok := s.docs[id]
	return ok
}

// Remove drops the document. It reports whether it was present.
func (s *Store) Remove(id string) bool {
	if _, ok := s.docs[id]; !ok {
		return false
	}
	delete(s.docs, id)
	return true
}

// Generation identifies one stay of a document in the store; reopening
// a document yields a new generation.
func (s *Store) Generation(id string) (uint64, bool) {
	e, ok := s.docs[id]
	if !ok {
		return 0, false
	}
	return e.gen, true
}

// Edits counts the edit notifications received since the document was added.
func (s *Store) Edits(id string) uint64 {
	if e, ok := s.docs[id]; ok {
		return e.edits
	}
	return 0
}

// MarkDirty flags the document as edited. changed is false when it was
// already dirty.
func (s *Store) MarkDirty(id string) (changed, ok bool) {
	e, ok := s.docs[id]
	if !ok {
		return false, false
	}
	e.edits++
	changed = !e.doc.Dirty
	e.doc.Dirty = true
	return changed, true
}

// SetDraft records the editor buffer for id and marks it dirty.
func (s *Store) SetDraft(id, text string) (changed, ok bool) {
	e, ok := s.docs[id]
	if !ok {
		return false, false
	}
	e.draft = &text
	return s.MarkDirty(id)
}

// Text returns the text a save would send: the draft when one exists,
// otherwise the last fetched raw text.
func (s *Store) Text(id string) (string, bool) {
	e, ok := s.docs[id]
	if !ok {
		return "", false
	}
	if e.draft != nil {
		return *e.draft, true
	}
	if e.doc.Raw != nil {
		return *e.doc.Raw, true
	}
	return "", true
}

// Replace installs freshly fetched representations. When clean is set the
// dirty flag and draft are cleared.
func (s *Store) Replace(id, raw string, parsed *core.ParsedStructure, clean bool) bool {
	e, ok := s.docs[id]
	if !ok {
		return false
	}
	e.doc.Raw = &raw
	e.doc.Parsed = parsed.Clone()
	e.doc.Revision = s.nextRevision()
	if clean {
		e.doc.Dirty = false
		e.draft = nil
	}
	return true
}

// Len returns the number of stored documents.
func (s *Store) Len() int { return len(s.docs) }

// DirtyCount returns the number of documents with unsaved edits.
func (s *Store) DirtyCount() int {
	n := 0
	for _, e := range s.docs {
		if e.doc.Dirty {
			n++
		}
	}
	return n
}

func copyDocument(d core.Document) core.Document {
	out := d
	if d.Raw != nil {
		raw := *d.Raw
		out.Raw = &raw
	}
	out.Parsed = d.Parsed.Clone()
	return out
}
