package main

import (
	"fmt"
	"path/filepath"
)

// Resolver turns unresolved asset references into on-disk paths using the
// filename codec and the export tree. Resolution never touches the
// filesystem directly and never leaves the export root.
type Resolver struct {
	tree *ExportTree
}

func NewResolver(tree *ExportTree) *Resolver {
	return &Resolver{tree: tree}
}

// Resolve drives a reference to a terminal state. Lookup order: every
// codec candidate against the article's own folder, then against each
// hint-matched folder in index order, exact matches before
// case-insensitive ones. Failure is the expected `missing` outcome, never
// an error. Already-terminal references are left alone.
func (r *Resolver) Resolve(ref *AssetReference, articleDir string) {
	if ref.State != StateUnresolved {
		return
	}

	dirs := []string{filepath.Clean(articleDir)}
	if ref.PathHint != "" {
		hinted := r.tree.FoldersMatching(ref.PathHint)
		if len(hinted) > 1 {
			ref.Diagnostics = append(ref.Diagnostics,
				fmt.Sprintf("path hint %q matches %d folders; trying in index order", ref.PathHint, len(hinted)))
		}
		for _, dir := range hinted {
			if dir != dirs[0] {
				dirs = append(dirs, dir)
			}
		}
	}

	candidates := FilenameCandidates(ref.Name)

	for _, dir := range dirs {
		for _, candidate := range candidates {
			if r.tree.Contains(dir, candidate) {
				r.accept(ref, dir, candidate)
				return
			}
		}
		// Looser pass: the same candidates, matched case-insensitively.
		for _, candidate := range candidates {
			matches := r.tree.FindFile(dir, candidate, true)
			if len(matches) == 0 {
				continue
			}
			if len(matches) > 1 {
				ref.Diagnostics = append(ref.Diagnostics,
					fmt.Sprintf("%d case variants of %q in %s; using %q", len(matches), candidate, dir, matches[0]))
			}
			r.accept(ref, dir, matches[0])
			return
		}
	}

	ref.State = StateMissing
}

func (r *Resolver) accept(ref *AssetReference, dir, name string) {
	ref.State = StateResolved
	ref.LocalPath = filepath.Join(dir, name)
}
