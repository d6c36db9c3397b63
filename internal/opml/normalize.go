// ABOUTME: Canonicalizes imported outline trees before they become folders and feeds
// ABOUTME: Untitled folders are spliced into their parent and duplicate URLs collapse per folder

package opml

// Normalize returns a cleaned copy of outlines. Feeds are deduplicated by URL
// within the folder they end up in, with the first occurrence winning. An
// untitled folder is removed and its children are spliced into the parent.
// Folders deeper than one level are flattened into their top-level folder,
// and top-level folders with the same title are merged.
func Normalize(outlines []Outline) []Outline {
	root := newScope()
	for _, o := range outlines {
		root.addTopLevel(o)
	}
	return root.outlines()
}

type scope struct {
	items   []Outline
	seen    map[string]bool
	folders map[string]*scope
	order   []string
	slots   map[string]int
}

func newScope() *scope {
	return &scope{
		seen:    make(map[string]bool),
		folders: make(map[string]*scope),
		slots:   make(map[string]int),
	}
}

func (s *scope) addFeed(o Outline) {
	if s.seen[o.XMLURL] {
		return
	}
	s.seen[o.XMLURL] = true
	o.Children = nil
	s.items = append(s.items, o)
}

func (s *scope) addTopLevel(o Outline) {
	switch {
	case o.IsFeed():
		s.addFeed(o)
	case o.Name() == "":
		for _, child := range o.Children {
			s.addTopLevel(child)
		}
	default:
		folder := s.folder(o)
		for _, child := range o.Children {
			folder.addNested(child)
		}
	}
}

// addNested places everything under a folder directly into that folder.
func (s *scope) addNested(o Outline) {
	if o.IsFeed() {
		s.addFeed(o)
		return
	}
	for _, child := range o.Children {
		s.addNested(child)
	}
}

func (s *scope) folder(o Outline) *scope {
	name := o.Name()
	if existing, ok := s.folders[name]; ok {
		return existing
	}
	folder := newScope()
	s.folders[name] = folder
	s.slots[name] = len(s.items)
	s.items = append(s.items, Outline{
		Text:       name,
		Title:      o.Title,
		ExternalID: o.ExternalID,
	})
	s.order = append(s.order, name)
	return folder
}

func (s *scope) outlines() []Outline {
	for _, name := range s.order {
		i := s.slots[name]
		s.items[i].Children = s.folders[name].items
	}
	return s.items
}
