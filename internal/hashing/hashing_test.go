package hashing

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestHashBytesDeterministic(t *testing.T) {
	a := HashBytes([]byte("hello"))
	b := HashBytes([]byte("hello"))
	if a != b {
		t.Fatalf("HashBytes not deterministic: %s != %s", a, b)
	}
	if a == HashBytes([]byte("world")) {
		t.Fatal("HashBytes collided on different input")
	}
}

func TestHashFileStreamedAndMmap(t *testing.T) {
	dir := t.TempDir()

	small := filepath.Join(dir, "small.txt")
	if err := os.WriteFile(small, bytes.Repeat([]byte("a"), 10), 0o644); err != nil {
		t.Fatal(err)
	}
	large := filepath.Join(dir, "large.txt")
	content := bytes.Repeat([]byte("b"), mmapThreshold+1)
	if err := os.WriteFile(large, content, 0o644); err != nil {
		t.Fatal(err)
	}

	smallHash, err := HashFile(small)
	if err != nil {
		t.Fatal(err)
	}
	if smallHash != HashBytes(bytes.Repeat([]byte("a"), 10)) {
		t.Error("streamed hash does not match HashBytes over the same content")
	}

	largeHash, err := HashFile(large)
	if err != nil {
		t.Fatal(err)
	}
	if largeHash != HashBytes(content) {
		t.Error("mmap'd hash does not match HashBytes over the same content")
	}
}

func TestHashDirectorySourceFilesFilter(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "main.go"), "package main")
	mustWrite(t, filepath.Join(dir, "README.md"), "ignored")
	mustWrite(t, filepath.Join(dir, ".hidden.go"), "ignored too")
	mustMkdir(t, filepath.Join(dir, "sub"))
	mustWrite(t, filepath.Join(dir, "sub", "lib.c"), "int main(){}")

	h1, err := HashDirectory(dir, SourceFiles)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := HashDirectory(dir, SourceFiles)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatal("HashDirectory is not deterministic across repeated runs")
	}

	mustWrite(t, filepath.Join(dir, "README.md"), "this changed but should not matter")
	h3, err := HashDirectory(dir, SourceFiles)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h3 {
		t.Error("changing a non-matching file changed the SourceFiles digest")
	}

	mustWrite(t, filepath.Join(dir, "sub", "lib.c"), "int main(){return 1;}")
	h4, err := HashDirectory(dir, SourceFiles)
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h4 {
		t.Error("changing a matching file did not change the SourceFiles digest")
	}
}

func TestHashDirectoryArbitraryTreeSkipsGit(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "a.txt"), "content")
	mustMkdir(t, filepath.Join(dir, ".git"))
	mustWrite(t, filepath.Join(dir, ".git", "HEAD"), "ref: refs/heads/main")

	h1, err := HashDirectory(dir, ArbitraryTree)
	if err != nil {
		t.Fatal(err)
	}

	mustWrite(t, filepath.Join(dir, ".git", "HEAD"), "ref: refs/heads/other")
	h2, err := HashDirectory(dir, ArbitraryTree)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Error("ArbitraryTree must not be affected by changes inside .git")
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
}
