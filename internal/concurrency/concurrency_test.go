package concurrency

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
)

func TestFilesListsDirectoryEntries(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	files, err := Files(dir)
	if err != nil {
		t.Fatal(err)
	}
	var bases []string
	for _, f := range files {
		bases = append(bases, filepath.Base(f))
	}
	sort.Strings(bases)
	if len(bases) != 2 || bases[0] != "a.txt" || bases[1] != "b.txt" {
		t.Fatalf("unexpected file list: %v", bases)
	}
}

func TestEachVisitsEveryItem(t *testing.T) {
	items := []string{"one", "two", "three"}
	var mu sync.Mutex
	seen := make(map[string]bool)
	Each(2, items, func(item string) {
		mu.Lock()
		seen[item] = true
		mu.Unlock()
	})
	for _, item := range items {
		if !seen[item] {
			t.Fatalf("item %q was not visited", item)
		}
	}
}
