// ABOUTME: Backend kinds with their folder-name raw values, default names, and capability behaviors
// ABOUTME: Calling code consults Behaviors before permitting structural or status operations

package backend

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind identifies a sync service family. The numeric values appear in
// account folder names and must not change.
type Kind int

const (
	KindLocal        Kind = 1
	KindCloud        Kind = 2
	KindFeedly       Kind = 16
	KindFeedbin      Kind = 17
	KindNewsBlur     Kind = 19
	KindFreshRSS     Kind = 20
	KindInoreader    Kind = 21
	KindBazQux       Kind = 22
	KindTheOldReader Kind = 23
)

// Family groups kinds that share a sync algorithm.
type Family int

const (
	FamilyLocal Family = iota
	FamilyCloud
	FamilyFullSync
	FamilyIncremental
)

type kindInfo struct {
	name        string
	displayName string
	family      Family
}

var kinds = map[Kind]kindInfo{
	KindLocal:        {"local", "On My Device", FamilyLocal},
	KindCloud:        {"cloud", "Charm Cloud", FamilyCloud},
	KindFeedly:       {"feedly", "Feedly", FamilyIncremental},
	KindFeedbin:      {"feedbin", "Feedbin", FamilyFullSync},
	KindNewsBlur:     {"newsblur", "NewsBlur", FamilyFullSync},
	KindFreshRSS:     {"freshrss", "FreshRSS", FamilyIncremental},
	KindInoreader:    {"inoreader", "Inoreader", FamilyIncremental},
	KindBazQux:       {"bazqux", "BazQux", FamilyIncremental},
	KindTheOldReader: {"theoldreader", "The Old Reader", FamilyIncremental},
}

// Kinds returns every known kind in raw value order.
func Kinds() []Kind {
	return []Kind{KindLocal, KindCloud, KindFeedly, KindFeedbin, KindNewsBlur, KindFreshRSS, KindInoreader, KindBazQux, KindTheOldReader}
}

func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// DefaultName is the display name used when the user has not set one.
func (k Kind) DefaultName() string {
	return kinds[k].displayName
}

// Family returns the sync algorithm family.
func (k Kind) Family() Family {
	return kinds[k].family
}

// IsSingleton reports whether at most one account of this kind may exist.
func (k Kind) IsSingleton() bool {
	return k == KindLocal || k == KindCloud
}

// IsRemote reports whether the kind talks to a third-party sync service.
func (k Kind) IsRemote() bool {
	f := k.Family()
	return f == FamilyFullSync || f == FamilyIncremental
}

// ParseKind accepts a kind name or its raw value.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if k := Kind(n); k.Valid() {
			return k, nil
		}
		return 0, fmt.Errorf("unknown backend kind %d", n)
	}
	for k, info := range kinds {
		if info.name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown backend kind %q", s)
}

// Behaviors are the capability limits of a backend.
type Behaviors struct {
	DisallowFeedInRootFolder      bool
	DisallowFolderManagement      bool
	DisallowOPMLImports           bool
	DisallowFeedInMultipleFolders bool
	// DisallowMarkAsUnreadAfterDays is zero when there is no limit.
	DisallowMarkAsUnreadAfterDays int
}

// BehaviorsFor returns the default behaviors for a kind.
func BehaviorsFor(k Kind) Behaviors {
	switch k.Family() {
	case FamilyFullSync:
		return Behaviors{DisallowFeedInMultipleFolders: true}
	case FamilyIncremental:
		b := Behaviors{DisallowOPMLImports: true, DisallowFeedInMultipleFolders: true}
		switch k {
		case KindFreshRSS:
			b.DisallowFeedInRootFolder = true
		case KindFeedly:
			b.DisallowMarkAsUnreadAfterDays = 31
		}
		return b
	default:
		return Behaviors{}
	}
}

// CanMarkUnread reports whether an article published at date may be marked unread.
func (b Behaviors) CanMarkUnread(date, now time.Time) bool {
	if b.DisallowMarkAsUnreadAfterDays <= 0 || date.IsZero() {
		return true
	}
	return now.Sub(date) <= time.Duration(b.DisallowMarkAsUnreadAfterDays)*24*time.Hour
}
