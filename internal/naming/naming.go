// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package naming derives artifact file names from note metadata.
package naming

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pdiddy/note-archiver/pkg/types"
)

// ArtifactName returns "<created> - <base><ext>" for a note created at the
// given timestamp. The timestamp is used verbatim. An empty created value is
// an error: the artifact would otherwise collide with every other undated
// note of the same base name. A value that could name another directory
// (a path separator, "." or "..") fails with types.ErrInvalidCreated.
func ArtifactName(created, base string, f types.Format) (string, error) {
	created = strings.TrimSpace(created)
	if created == "" {
		return "", fmt.Errorf("%s: %w", base, types.ErrMissingCreated)
	}
	if created == "." || created == ".." || strings.ContainsAny(created, `/\`) {
		return "", fmt.Errorf("%s: %q: %w", base, created, types.ErrInvalidCreated)
	}
	return created + " - " + base + f.Extension(), nil
}

// ArtifactPath returns the artifact path inside dir. The result always sits
// directly in dir.
func ArtifactPath(dir, created, base string, f types.Format) (string, error) {
	name, err := ArtifactName(created, base, f)
	if err != nil {
		return "", err
	}
	p := filepath.Join(dir, name)
	if filepath.Dir(p) != filepath.Clean(dir) {
		return "", fmt.Errorf("%s: %q: %w", base, created, types.ErrInvalidCreated)
	}
	return p, nil
}

// Paths returns the artifact path of every format, keyed by format.
func Paths(dir, created, base string, formats []types.Format) (map[types.Format]string, error) {
	out := make(map[types.Format]string, len(formats))
	for _, f := range formats {
		p, err := ArtifactPath(dir, created, base, f)
		if err != nil {
			return nil, err
		}
		out[f] = p
	}
	return out, nil
}
