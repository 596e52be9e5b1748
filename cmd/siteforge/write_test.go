package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redirect10-prog/siteForge-ai/internal/domain/website"
)

func TestWriteCodeLayout(t *testing.T) {
	dir := t.TempDir()
	n, err := writeCode(dir, website.GeneratedCode{
		SQL:           "create table contact ();",
		Forms:         []website.FormCode{{Filename: "ContactForm.tsx", Code: "export default 1"}},
		EdgeFunctions: []website.EdgeFunctionCode{{Filename: "submit-contact/index.ts", Code: "serve()"}},
		AuthSetup:     &website.AuthSetup{LoginComponent: "login"},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	body, err := os.ReadFile(filepath.Join(dir, "supabase", "functions", "submit-contact", "index.ts"))
	require.NoError(t, err)
	assert.Equal(t, "serve()", string(body))
	assert.FileExists(t, filepath.Join(dir, "supabase", "migrations", "schema.sql"))
	assert.FileExists(t, filepath.Join(dir, "src", "components", "forms", "ContactForm.tsx"))
	assert.FileExists(t, filepath.Join(dir, "src", "components", "auth", "Login.tsx"))
	assert.NoFileExists(t, filepath.Join(dir, "src", "components", "auth", "Signup.tsx"))
}

func TestWriteCodeRejectsEscapingNames(t *testing.T) {
	dir := t.TempDir()
	_, err := writeCode(dir, website.GeneratedCode{
		EdgeFunctions: []website.EdgeFunctionCode{{Filename: "../../etc/passwd", Code: "x"}},
	})
	assert.Error(t, err)
}

func TestValidColor(t *testing.T) {
	assert.NoError(t, validColor(""))
	assert.NoError(t, validColor("#1E40af"))
	assert.Error(t, validColor("blue"))
	assert.Error(t, validColor("#fff"))
}
