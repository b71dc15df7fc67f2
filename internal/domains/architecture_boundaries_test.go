package domains

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

const modulePath = "otme/go-client"

func TestArchitecture_DomainPackagesDisallowBindingImports(t *testing.T) {
	domainsDir := currentDir(t)
	forbiddenPrefixes := []string{
		modulePath + "/cmd",
		modulePath + "/internal/composition",
		modulePath + "/internal/config",
		modulePath + "/internal/notary",
		modulePath + "/internal/securestore",
		modulePath + "/internal/session",
		modulePath + "/internal/wallet",
	}

	violations := scanImports(t, domainsDir, func(_ string, importPath string) bool {
		for _, prefix := range forbiddenPrefixes {
			if hasPrefixImport(importPath, prefix) {
				return true
			}
		}
		return false
	})
	if len(violations) > 0 {
		t.Fatalf("domain boundary violations detected:\n- %s", strings.Join(violations, "\n- "))
	}
}

func TestArchitecture_ContractsImportOnlyModels(t *testing.T) {
	contractsDir := filepath.Join(currentDir(t), "contracts")
	violations := scanImports(t, contractsDir, func(_ string, importPath string) bool {
		return hasPrefixImport(importPath, modulePath) && importPath != modulePath+"/pkg/models"
	})
	if len(violations) > 0 {
		t.Fatalf("contracts must only depend on pkg/models:\n- %s", strings.Join(violations, "\n- "))
	}
}

func currentDir(t *testing.T) string {
	t.Helper()
	_, currentFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("failed to resolve current test file path")
	}
	return filepath.Dir(currentFile)
}

// scanImports reports every import in non-test files under root for which
// forbidden returns true.
func scanImports(t *testing.T, root string, forbidden func(file, importPath string) bool) []string {
	t.Helper()
	fset := token.NewFileSet()
	var violations []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		parsed, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			return fmt.Errorf("parse file %s: %w", path, err)
		}
		for _, imp := range parsed.Imports {
			importPath := strings.Trim(imp.Path.Value, `"`)
			if !forbidden(path, importPath) {
				continue
			}
			pos := fset.Position(imp.Path.Pos())
			relPath, relErr := filepath.Rel(root, path)
			if relErr != nil {
				relPath = path
			}
			violations = append(violations, fmt.Sprintf("%s:%d imports %q", relPath, pos.Line, importPath))
		}
		return nil
	})
	if walkErr != nil {
		t.Fatalf("walk %s: %v", root, walkErr)
	}
	return violations
}

func hasPrefixImport(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
