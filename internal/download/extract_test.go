package download

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func writeTarGz(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0755, Size: int64(len(content)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	tw.Close()
	gw.Close()
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(content))
	}
	zw.Close()
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDetectFormat(t *testing.T) {
	tests := map[string]Format{
		"node-v20.1.0-linux-x64.tar.gz": TarGz,
		"pkg.TGZ":                       TarGz,
		"node-v20.1.0-win-x64.zip":      Zip,
		"node-v20.1.0-linux-x64.tar.xz": TarXz,
		"installer.msi":                 Plain,
	}
	for name, want := range tests {
		if got := DetectFormat(name); got != want {
			t.Errorf("DetectFormat(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestExtractTarGz(t *testing.T) {
	tmp := t.TempDir()
	archive := filepath.Join(tmp, "go.tar.gz")
	writeTarGz(t, archive, map[string]string{"go/bin/go": "binary", "go/VERSION": "go1.22.1"})

	dest := filepath.Join(tmp, "out")
	if err := Extract(context.Background(), archive, dest); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dest, "go", "VERSION"))
	if err != nil || string(data) != "go1.22.1" {
		t.Errorf("VERSION = %q, %v", data, err)
	}
}

func TestExtractZip(t *testing.T) {
	tmp := t.TempDir()
	archive := filepath.Join(tmp, "node.zip")
	writeZip(t, archive, map[string]string{"node-v20/node.exe": "exe", "node-v20/docs/": ""})

	dest := filepath.Join(tmp, "out")
	if err := Extract(context.Background(), archive, dest); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "node-v20", "node.exe")); err != nil {
		t.Errorf("node.exe missing: %v", err)
	}
	if info, err := os.Stat(filepath.Join(dest, "node-v20", "docs")); err != nil || !info.IsDir() {
		t.Errorf("docs dir missing: %v", err)
	}
}

func TestExtractRejectsTraversal(t *testing.T) {
	tmp := t.TempDir()
	archive := filepath.Join(tmp, "evil.tar.gz")
	writeTarGz(t, archive, map[string]string{"../escape.txt": "x"})

	if err := Extract(context.Background(), archive, filepath.Join(tmp, "out")); err == nil {
		t.Fatal("expected error for entry escaping destination")
	}
	if _, err := os.Stat(filepath.Join(tmp, "escape.txt")); !os.IsNotExist(err) {
		t.Error("traversal entry was written")
	}
}

func TestExtractPlainCopies(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "tool.sh")
	if err := os.WriteFile(src, []byte("#!/bin/sh"), 0755); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(tmp, "out")
	if err := Extract(context.Background(), src, dest); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if data, err := os.ReadFile(filepath.Join(dest, "tool.sh")); err != nil || string(data) != "#!/bin/sh" {
		t.Errorf("copied content = %q, %v", data, err)
	}
}

type tarEntry struct {
	name     string
	link     string
	contents string
}

// writeTarEntries writes entries in order; entries with a link become symlinks.
func writeTarEntries(t *testing.T, path string, entries []tarEntry) {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0755, Typeflag: tar.TypeReg, Size: int64(len(e.contents))}
		if e.link != "" {
			hdr = &tar.Header{Name: e.name, Mode: 0777, Typeflag: tar.TypeSymlink, Linkname: e.link}
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if e.link == "" {
			if _, err := tw.Write([]byte(e.contents)); err != nil {
				t.Fatal(err)
			}
		}
	}
	tw.Close()
	gw.Close()
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestExtractRejectsEscapingLinks(t *testing.T) {
	tmp := t.TempDir()
	outside := filepath.Join(tmp, "outside")
	if err := os.MkdirAll(outside, 0755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		entries []tarEntry
	}{
		{"absolute target", []tarEntry{
			{name: "pkg/link", link: outside},
			{name: "pkg/link/evil.txt", contents: "x"},
		}},
		{"relative target above dest", []tarEntry{
			{name: "pkg/link", link: "../../outside"},
			{name: "pkg/link/evil.txt", contents: "x"},
		}},
		{"write below link inside dest", []tarEntry{
			{name: "pkg/real/keep.txt", contents: "k"},
			{name: "pkg/link", link: "real"},
			{name: "pkg/link/evil.txt", contents: "x"},
		}},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			archive := filepath.Join(tmp, fmt.Sprintf("evil-%d.tar.gz", i))
			writeTarEntries(t, archive, tt.entries)

			if err := Extract(context.Background(), archive, filepath.Join(tmp, fmt.Sprintf("out-%d", i))); err == nil {
				t.Fatal("expected error")
			}
			if _, err := os.Stat(filepath.Join(outside, "evil.txt")); !os.IsNotExist(err) {
				t.Error("file written outside destination")
			}
		})
	}
}

func TestExtractReplacesLinkWithFile(t *testing.T) {
	tmp := t.TempDir()
	archive := filepath.Join(tmp, "pkg.tar.gz")
	writeTarEntries(t, archive, []tarEntry{
		{name: "pkg/target.txt", contents: "original"},
		{name: "pkg/alias", link: "target.txt"},
		{name: "pkg/alias", contents: "replaced"},
	})

	dest := filepath.Join(tmp, "out")
	if err := Extract(context.Background(), archive, dest); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if data, _ := os.ReadFile(filepath.Join(dest, "pkg", "target.txt")); string(data) != "original" {
		t.Errorf("link target overwritten: %q", data)
	}
	info, err := os.Lstat(filepath.Join(dest, "pkg", "alias"))
	if err != nil || info.Mode()&os.ModeSymlink != 0 {
		t.Errorf("alias should be a regular file: %v", err)
	}
}

func TestExtractKeepsInternalLinks(t *testing.T) {
	tmp := t.TempDir()
	archive := filepath.Join(tmp, "node.tar.gz")
	writeTarEntries(t, archive, []tarEntry{
		{name: "node-v20/lib/npm-cli.js", contents: "cli"},
		{name: "node-v20/bin/npm", link: "../lib/npm-cli.js"},
	})

	dest := filepath.Join(tmp, "out")
	if err := Extract(context.Background(), archive, dest); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if data, err := os.ReadFile(filepath.Join(dest, "node-v20", "bin", "npm")); err != nil || string(data) != "cli" {
		t.Errorf("npm via link = %q, %v", data, err)
	}
}
