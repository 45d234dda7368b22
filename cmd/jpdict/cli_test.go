package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/jpdict/pkg/config"
)

const article = `<!DOCTYPE html>
<html lang="ja"><head><title>吾輩は猫である</title></head>
<body>
<article>
<h1>吾輩は猫である</h1>
<p>吾輩は<ruby>猫<rt>ねこ</rt></ruby>である。名前はまだ無い。どこで生れたかとんと見当がつかぬ。何でも薄暗いじめじめした所でニャーニャー泣いていた事だけは記憶している。</p>
<p>吾輩はここで始めて人間というものを見た。しかもあとで聞くとそれは書生という人間中で一番獰悪な種族であったそうだ。この書生というのは時々我々を捕えて煮て食うという話である。</p>
</article>
</body></html>`

func yomitanZip(t *testing.T, title string, terms ...[3]string) []byte {
	t.Helper()
	var bank bytes.Buffer
	bank.WriteString("[")
	for i, term := range terms {
		if i > 0 {
			bank.WriteString(",")
		}
		fmt.Fprintf(&bank, `[%q, %q, "", "", 0, [%q], %d, ""]`, term[0], term[1], term[2], i)
	}
	bank.WriteString("]")

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range map[string]string{
		"index.json":       fmt.Sprintf(`{"title": %q, "revision": "1", "format": 3}`, title),
		"term_bank_1.json": bank.String(),
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// cli runs jpdict against one database with no config file in reach.
type cli struct {
	t  *testing.T
	db string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(config.EnvPath, "")
	return &cli{t: t, db: filepath.Join(dir, "jpdict.db")}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--db", c.db, "--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, "jpdict %s\n%s", strings.Join(args, " "), out)
	return out
}

func TestCLI_OfflineServer(t *testing.T) {
	c := newCLI(t)
	dict := yomitanZip(t, "Test Dict",
		[3]string{"猫", "ねこ", "cat"},
		[3]string{"食べる", "たべる", "to eat"},
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/dict.zip":
			w.Header().Set("Content-Type", "application/zip")
			w.Write(dict)
		case "/article":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(article))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	out := c.mustRun("import", srv.URL+"/dict.zip")
	assert.Contains(t, out, "Detected yomitan archive")
	assert.Contains(t, out, "Imported Test Dict as dictionary 1")

	out = c.mustRun("dicts")
	assert.Contains(t, out, "Test Dict")

	out = c.mustRun("lookup", "私は食べなかった", "2")
	assert.Contains(t, out, "食べなかった")
	assert.Contains(t, out, "to eat")

	out = c.mustRun("scan", srv.URL+"/article")
	assert.Contains(t, out, "Title: 吾輩は猫である")
	assert.Contains(t, out, "cat")

	_, err := c.run("import", srv.URL+"/missing.zip")
	require.Error(t, err)
}

func TestCLI_ImportFile(t *testing.T) {
	c := newCLI(t)
	path := filepath.Join(t.TempDir(), "dict.zip")
	require.NoError(t, os.WriteFile(path, yomitanZip(t, "File Dict", [3]string{"犬", "いぬ", "dog"}), 0o644))

	c.mustRun("import", "--kind", "yomitan", path)
	out := c.mustRun("lemma", "犬")
	assert.Contains(t, out, "dog")
	assert.Contains(t, out, "(File Dict)")

	_, err := c.run("import", path)
	require.Error(t, err, "second import of the same dictionary")

	_, err = c.run("import", "--kind", "nope", path)
	require.Error(t, err)

	c.mustRun("remove", "1")
	out = c.mustRun("lemma", "犬")
	assert.Contains(t, out, "No results")
}

func TestCLI_EnableDisable(t *testing.T) {
	c := newCLI(t)
	path := filepath.Join(t.TempDir(), "dict.zip")
	require.NoError(t, os.WriteFile(path, yomitanZip(t, "Toggle", [3]string{"犬", "いぬ", "dog"}), 0o644))
	c.mustRun("import", path)

	c.mustRun("disable", "1")
	assert.Contains(t, c.mustRun("lookup", "犬"), "No results")

	c.mustRun("enable", "1")
	assert.Contains(t, c.mustRun("lookup", "犬"), "dog")

	c.mustRun("sort-dict", "1")
	c.mustRun("sort-dict", "none")
}

func TestCLI_Profiles(t *testing.T) {
	c := newCLI(t)
	out := c.mustRun("profile", "create", "Reading")
	assert.Contains(t, out, "Created profile 2")

	c.mustRun("profile", "use", "2")
	out = c.mustRun("profiles")
	assert.Contains(t, out, "Reading")
	lines := strings.Split(out, "\n")
	var current string
	for _, l := range lines {
		if strings.HasSuffix(strings.TrimSpace(l), "*") {
			current = l
		}
	}
	assert.Contains(t, current, "Reading")

	c.mustRun("profile", "remove", "1")
	_, err := c.run("profile", "remove", "2")
	require.Error(t, err, "the last profile cannot be removed")

	_, err = c.run("--profile", "99", "dicts")
	require.Error(t, err)
}

func TestCLI_Deinflect(t *testing.T) {
	c := newCLI(t)
	out := c.mustRun("deinflect", "私は食べなかった", "2")
	assert.Contains(t, out, "食べる\t")

	_, err := c.run("deinflect", "猫", "5")
	require.Error(t, err)
}

func TestCLI_Config(t *testing.T) {
	c := newCLI(t)
	out := c.mustRun("config")
	assert.Contains(t, out, "path: "+c.db)
	assert.Contains(t, out, "max_lookahead: 8")

	_, err := c.run("--log-level", "loud", "config")
	require.Error(t, err)
}

func TestCursorArg(t *testing.T) {
	text := "私は猫"
	got, err := cursorArg(text, []string{text})
	require.NoError(t, err)
	assert.Equal(t, 0, got)

	got, err = cursorArg(text, []string{text, "2"})
	require.NoError(t, err)
	assert.Equal(t, len("私は"), got)

	for _, bad := range []string{"3", "-1", "x"} {
		_, err = cursorArg(text, []string{text, bad})
		assert.Error(t, err, bad)
	}
}
