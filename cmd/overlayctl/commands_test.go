package main

import (
	"bytes"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/mohammed-shakir/superoverlay/internal/errs"
)

const scenarioXML = `<customMapSource>
  <name>Scenario</name>
  <url>https://tiles.example.org/{$z}/{$x}/{$y}.png</url>
  <maxZoom>8</maxZoom>
  <region><north>44</north><south>42</south><east>6</east><west>4</west></region>
</customMapSource>`

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func mustExecute(t *testing.T, args ...string) (string, string) {
	t.Helper()
	out, stderr, err := execute(t, args...)
	if err != nil {
		t.Fatalf("overlayctl %s: %v", strings.Join(args, " "), err)
	}
	return out, stderr
}

func contains(t *testing.T, s string, subs ...string) {
	t.Helper()
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			t.Errorf("missing %q in:\n%s", sub, s)
		}
	}
}

func writeDescriptor(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestRootCommand(t *testing.T) {
	file := writeDescriptor(t, t.TempDir(), "scenario.xml", scenarioXML)
	out, stderr := mustExecute(t, "root", file, "--base", "http://maps.test")
	contains(t, out, "<name>nl-4-8-5</name>", "<href>http://maps.test/scenario/4-8-5.kml</href>")
	contains(t, stderr, "Scenario.kml: 1 network links")
}

func TestChildrenCommand_KMZ(t *testing.T) {
	file := writeDescriptor(t, t.TempDir(), "scenario.xml", scenarioXML)
	out, _ := mustExecute(t, "children", file, "4", "8", "5", "--format", "kmz")
	if !strings.HasPrefix(out, "PK") {
		t.Fatalf("kmz output does not start with a zip header: %q", out[:min(len(out), 8)])
	}

	out, _ = mustExecute(t, "children", file, "4", "8", "5", "--format", "kmz", "--debug")
	contains(t, out, ".kml/debug")
}

func TestChildrenCommand_Errors(t *testing.T) {
	file := writeDescriptor(t, t.TempDir(), "scenario.xml", scenarioXML)
	for _, args := range [][]string{
		{"children", file, "4", "x", "5"},
		{"children", file, "4", "8", "5", "--format", "zip"},
	} {
		if _, _, err := execute(t, args...); err == nil {
			t.Errorf("overlayctl %v: want error", args)
		}
	}
}

func TestCatalogCommand(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "-Base/scenario.xml", scenarioXML)
	out, _ := mustExecute(t, "catalog", dir, "--name", "maps")
	contains(t, out,
		"<name>maps</name>",
		"<name>Base</name>",
		"<href>http://localhost:8090/-Base/scenario/</href>",
	)
}

func TestQuadkeyCommand(t *testing.T) {
	if out, _ := mustExecute(t, "quadkey", "3", "3", "5"); out != "213\n" {
		t.Fatalf("encode = %q want 213", out)
	}
	if out, _ := mustExecute(t, "quadkey", "213"); out != "3-3-5\n" {
		t.Fatalf("decode = %q want 3-3-5", out)
	}
	if _, _, err := execute(t, "quadkey", "3", "3"); err == nil {
		t.Fatal("two arguments accepted")
	}
}

func TestQuadkeyCommand_OutOfGrid(t *testing.T) {
	for _, args := range [][]string{
		{"quadkey", "3", "0", "8"},
		{"quadkey", "3", "8", "0"},
		{"quadkey", "33", "1", "1"},
	} {
		out, _, err := execute(t, args...)
		if !errors.Is(err, errs.ErrTileOutOfRange) {
			t.Errorf("overlayctl %v = %q, %v want ErrTileOutOfRange", args, out, err)
		}
	}
}

func TestBoundsCommand(t *testing.T) {
	out, _ := mustExecute(t, "bounds", "4326", "1", "1", "0")
	f := strings.Fields(out)
	if len(f) != 4 {
		t.Fatalf("bounds output %q", out)
	}
	want := []float64{85.0511, 0, 180, 0}
	for i, s := range f {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.Abs(v-want[i]) > 1e-4 {
			t.Errorf("field %d = %q want %v", i, s, want[i])
		}
	}

	if _, _, err := execute(t, "bounds", "2154", "0", "0", "0"); err == nil {
		t.Fatal("EPSG:2154 accepted")
	}
}

func TestRootCommand_RemoteDescriptor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sources/remote.xml" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(scenarioXML))
	}))
	defer srv.Close()

	out, _ := mustExecute(t, "root", srv.URL+"/sources/remote.xml", "--base", "http://maps.test/")
	contains(t, out, "<href>http://maps.test/remote/4-8-5.kml</href>")

	if _, _, err := execute(t, "root", srv.URL+"/sources/gone.xml"); err == nil {
		t.Fatal("missing remote descriptor accepted")
	}
}
