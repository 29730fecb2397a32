package blob

import (
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestOnlyFacadeImportsDrivers ensures that only this package wraps the
// driver implementations. Other packages must depend on the blob.Store
// interface instead of importing the driver packages directly.
func TestOnlyFacadeImportsDrivers(t *testing.T) {
	facadePath := "stellarsynth/internal/infra/blob"

	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := packages.Load(cfg, "stellarsynth/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}

	seen := make(map[string]struct{})

	for _, pkg := range pkgs {
		if strings.HasPrefix(pkg.PkgPath, facadePath) {
			continue
		}
		for importPath := range pkg.Imports {
			if isDriverImport(importPath, facadePath) {
				pos := filepath.Join(pkg.PkgPath, "...")
				seen[pos+": "+importPath] = struct{}{}
			}
		}
	}

	if len(seen) > 0 {
		violations := make([]string, 0, len(seen))
		for v := range seen {
			violations = append(violations, v)
		}
		sort.Strings(violations)
		for _, v := range violations {
			t.Errorf("forbidden import of blob driver package: %s", v)
		}
		t.Fatalf("found %d forbidden imports of blob driver packages", len(violations))
	}
}

func isDriverImport(importPath, facadePath string) bool {
	return strings.HasPrefix(importPath, facadePath+"/")
}
