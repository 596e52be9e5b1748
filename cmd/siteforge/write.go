package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/redirect10-prog/siteForge-ai/internal/domain/website"
)

// writeCode lays the synthesized code out under dir and returns how many
// files it wrote.
func writeCode(dir string, code website.GeneratedCode) (int, error) {
	files := map[string]string{}
	if code.SQL != "" {
		files[filepath.Join("supabase", "migrations", "schema.sql")] = code.SQL
	}
	for _, f := range code.Forms {
		rel, err := relPath(f.Filename)
		if err != nil {
			return 0, err
		}
		files[filepath.Join("src", "components", "forms", rel)] = f.Code
	}
	for _, f := range code.EdgeFunctions {
		rel, err := relPath(f.Filename)
		if err != nil {
			return 0, err
		}
		files[filepath.Join("supabase", "functions", rel)] = f.Code
	}
	if a := code.AuthSetup; a != nil {
		for name, body := range map[string]string{
			"Login.tsx":       a.LoginComponent,
			"Signup.tsx":      a.SignupComponent,
			"AuthContext.tsx": a.AuthContext,
		} {
			if body != "" {
				files[filepath.Join("src", "components", "auth", name)] = body
			}
		}
	}

	for rel, body := range files {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return 0, fmt.Errorf("create %s: %w", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return 0, fmt.Errorf("write %s: %w", path, err)
		}
	}
	return len(files), nil
}

// relPath keeps a model supplied filename inside its directory.
func relPath(name string) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(name))
	if rel == "." || filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("unsafe filename %q", name)
	}
	return rel, nil
}
