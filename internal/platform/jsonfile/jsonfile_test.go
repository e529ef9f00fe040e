package jsonfile

import (
	"encoding/json"
	"errors"
	"os"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/p-n-ai/pim/internal/shared"
)

func TestFile_MissingReadsEmpty(t *testing.T) {
	f := New(filepath.Join(t.TempDir(), "users.json"))

	entries, err := f.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("len(entries) = %d, want 0", len(entries))
	}
}

func TestFile_PutGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "users.json")
	f := New(path)

	if err := f.Put("ana", map[string]int{"age": 20}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := f.Put("bia", map[string]int{"age": 30}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := f.Put("ana", map[string]int{"age": 21}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	raw, ok, err := f.Get("ana")
	if err != nil || !ok {
		t.Fatalf("Get(ana) = %v, %v", ok, err)
	}
	var got map[string]int
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	if got["age"] != 21 {
		t.Errorf("age = %d, want 21", got["age"])
	}

	entries, _ := f.ReadAll()
	if len(entries) != 2 {
		t.Errorf("len(entries) = %d, want 2", len(entries))
	}

	leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(path), ".users.json*"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestFile_CorruptContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	if err := os.WriteFile(path, []byte(`{"ana": `), 0o644); err != nil {
		t.Fatal(err)
	}
	f := New(path)

	if _, err := f.ReadAll(); !errors.Is(err, shared.ErrDataCorruption) {
		t.Errorf("ReadAll() error = %v, want ErrDataCorruption", err)
	}
	if err := f.Put("bia", 1); !errors.Is(err, shared.ErrDataCorruption) {
		t.Errorf("Put() error = %v, want ErrDataCorruption", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != `{"ana": ` {
		t.Error("Put() must not overwrite an unreadable file")
	}
}

func TestFile_Delete(t *testing.T) {
	f := New(filepath.Join(t.TempDir(), "logins.json"))

	if err := f.Put("ana", 1); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := f.Put("bia", 2); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := f.Delete("ana"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := f.Delete("nobody"); err != nil {
		t.Errorf("Delete(missing) error = %v, want nil", err)
	}

	if _, ok, _ := f.Get("ana"); ok {
		t.Error("ana should be gone")
	}
	if _, ok, _ := f.Get("bia"); !ok {
		t.Error("bia should be kept")
	}
}

// Two handles on one path stand in for two processes: each has its own
// mutex, so only the file lock keeps their writes from clobbering each other.
func TestFile_ConcurrentWritersKeepEveryEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	handles := []*File{New(path), New(path)}

	const perHandle = 50
	var wg sync.WaitGroup
	errs := make(chan error, len(handles)*perHandle)
	for h, f := range handles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perHandle {
				if err := f.Put(fmt.Sprintf("user-%d-%d", h, i), i); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Put() error = %v", err)
	}

	entries, err := New(path).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if want := len(handles) * perHandle; len(entries) != want {
		t.Errorf("len(entries) = %d, want %d", len(entries), want)
	}
}
