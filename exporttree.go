package main

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ExportTree is a one-time index of the MindTouch export: which files each
// folder contains, plus a reverse index from trailing path segments to
// folders so that src.path / href.path hints can be resolved without
// re-scanning the filesystem per asset. Built once per run, read-only
// afterwards, safe to share across concurrently processed articles.
type ExportTree struct {
	Root string

	folders   map[string]*folderEntry
	fragments map[string][]string // lowercased trailing segments -> folders in walk order
}

type folderEntry struct {
	files map[string]bool
	lower map[string][]string // lowercased name -> actual names, sorted
}

// BuildExportTree scans the export root in a single traversal. The root
// must exist and contain the 'relative/' content folder that marks a
// MindTouch export; anything else is a ConfigurationError.
func BuildExportTree(root string) (*ExportTree, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &ConfigurationError{Path: root, Reason: err.Error()}
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, &ConfigurationError{Path: abs, Reason: "export root does not exist"}
	}
	if !info.IsDir() {
		return nil, &ConfigurationError{Path: abs, Reason: "export root is not a directory"}
	}
	if contentInfo, err := os.Stat(filepath.Join(abs, "relative")); err != nil || !contentInfo.IsDir() {
		return nil, &ConfigurationError{Path: abs, Reason: "no 'relative/' content folder; not a MindTouch export root"}
	}

	tree := &ExportTree{
		Root:      abs,
		folders:   make(map[string]*folderEntry),
		fragments: make(map[string][]string),
	}

	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees degrade to unresolvable assets, not a failed run.
			return nil
		}
		if d.IsDir() {
			tree.addFolder(path)
			return nil
		}
		dir := filepath.Dir(path)
		entry := tree.folders[dir]
		if entry == nil {
			entry = tree.addFolder(dir)
		}
		entry.files[d.Name()] = true
		key := strings.ToLower(d.Name())
		entry.lower[key] = append(entry.lower[key], d.Name())
		return nil
	})
	if err != nil {
		return nil, &ConfigurationError{Path: abs, Reason: err.Error()}
	}

	for _, entry := range tree.folders {
		for _, names := range entry.lower {
			sort.Strings(names)
		}
	}

	return tree, nil
}

func (t *ExportTree) addFolder(path string) *folderEntry {
	if entry, ok := t.folders[path]; ok {
		return entry
	}
	entry := &folderEntry{
		files: make(map[string]bool),
		lower: make(map[string][]string),
	}
	t.folders[path] = entry

	// Index every trailing segment combination of the root-relative path,
	// so a hint like "WebFiles/EB-PL" finds "relative/WebFiles/EB-PL".
	rel, err := filepath.Rel(t.Root, path)
	if err != nil || rel == "." {
		return entry
	}
	segments := strings.Split(filepath.ToSlash(rel), "/")
	for i := range segments {
		key := strings.ToLower(strings.Join(segments[i:], "/"))
		t.fragments[key] = append(t.fragments[key], path)
	}
	return entry
}

// HasFolder reports whether the tree indexed the given folder.
func (t *ExportTree) HasFolder(dir string) bool {
	_, ok := t.folders[filepath.Clean(dir)]
	return ok
}

// Contains reports whether the folder holds a file with exactly this name.
func (t *ExportTree) Contains(dir, name string) bool {
	entry, ok := t.folders[filepath.Clean(dir)]
	return ok && entry.files[name]
}

// FindFile looks a name up in a folder. With ci set the match is
// case-insensitive; multiple case-variant hits are returned sorted so
// callers can take the first and record the ambiguity.
func (t *ExportTree) FindFile(dir, name string, ci bool) []string {
	entry, ok := t.folders[filepath.Clean(dir)]
	if !ok {
		return nil
	}
	if !ci {
		if entry.files[name] {
			return []string{name}
		}
		return nil
	}
	return entry.lower[strings.ToLower(name)]
}

// FoldersMatching resolves a path hint (e.g. "//WebFiles/EB-PL") to the
// folders whose trailing segments match it, in index order. The hint's
// leading slashes and separator style are normalized; matching is
// case-insensitive. Hints never resolve outside the export root.
func (t *ExportTree) FoldersMatching(hint string) []string {
	key := strings.Trim(filepath.ToSlash(hint), "/")
	if key == "" {
		return nil
	}
	return t.fragments[strings.ToLower(key)]
}
