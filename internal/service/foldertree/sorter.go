package foldertree

import (
	"bytes"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"foldertree/internal/domain/models"
	"foldertree/internal/utils"
)

// Fixed top-level folders
const (
	PrivateFolderID = "1"
	PublicFolderID  = "2"
	SharedFolderID  = "3"

	UnifiedInboxName = "Unified Inbox"
)

// newCollator compares names at secondary strength: accents count, case does not
func newCollator(locale language.Tag) *collate.Collator {
	return collate.New(locale, collate.IgnoreCase)
}

// OrderChildren merges stored (virtual) and external children of parentID
// and returns their ids in display order for locale.
//
// Below the root, children are grouped by name (external children by their
// localized name) and the groups are emitted in collation order, each group
// in insertion order with external children first. At the root, the fixed
// folders come first in the order Private, Public, Shared, Unified Inbox,
// followed by everything else by collated name.
func OrderChildren(parentID string, locale language.Tag, virtual, external []models.ChildRef) []string {
	if parentID == models.RootID {
		return orderRoot(locale, virtual, external)
	}
	return orderByName(locale, virtual, external)
}

func orderByName(locale language.Tag, virtual, external []models.ChildRef) []string {
	collator := newCollator(locale)
	var buf collate.Buffer

	type bucket struct {
		key []byte
		ids []string
	}
	byKey := make(map[string]*bucket)
	var buckets []*bucket
	seen := make(map[string]bool, len(virtual)+len(external))

	add := func(children []models.ChildRef) {
		for _, c := range children {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true

			key := collator.KeyFromString(&buf, c.Name)
			b, ok := byKey[string(key)]
			if !ok {
				b = &bucket{key: append([]byte(nil), key...)}
				byKey[string(key)] = b
				buckets = append(buckets, b)
			}
			b.ids = append(b.ids, c.ID)
			buf.Reset()
		}
	}
	add(external)
	add(virtual)

	sort.SliceStable(buckets, func(i, j int) bool {
		return bytes.Compare(buckets[i].key, buckets[j].key) < 0
	})

	ids := make([]string, 0, len(seen))
	for _, b := range buckets {
		ids = append(ids, b.ids...)
	}
	return ids
}

func orderRoot(locale language.Tag, virtual, external []models.ChildRef) []string {
	collator := newCollator(locale)

	children := make([]models.ChildRef, 0, len(virtual)+len(external))
	seen := make(map[string]bool, cap(children))
	for _, list := range [][]models.ChildRef{external, virtual} {
		for _, c := range list {
			if !seen[c.ID] {
				seen[c.ID] = true
				children = append(children, c)
			}
		}
	}

	sort.SliceStable(children, func(i, j int) bool {
		return compareRootChildren(children[i], children[j], collator) < 0
	})

	ids := make([]string, len(children))
	for i, c := range children {
		ids[i] = c.ID
	}
	return ids
}

// rootPredicates are tried in order; the first one that tells two children
// apart decides
var rootPredicates = []func(models.ChildRef) bool{
	func(c models.ChildRef) bool { return c.ID == PrivateFolderID },
	func(c models.ChildRef) bool { return c.ID == PublicFolderID },
	func(c models.ChildRef) bool { return c.ID == SharedFolderID },
	func(c models.ChildRef) bool { return strings.EqualFold(c.Name, UnifiedInboxName) },
}

func compareRootChildren(a, b models.ChildRef, collator *collate.Collator) int {
	for _, matches := range rootPredicates {
		ma, mb := matches(a), matches(b)
		if ma && !mb {
			return -1
		}
		if mb && !ma {
			return 1
		}
	}
	if cmp := collator.CompareString(a.Name, b.Name); cmp != 0 {
		return cmp
	}
	return utils.CompareNatural(a.ID, b.ID, nil)
}
