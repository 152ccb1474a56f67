package history

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

type mapStore map[string][]byte

func (m mapStore) Get(key string) ([]byte, bool, error) {
	b, ok := m[key]
	return b, ok, nil
}

func (m mapStore) Set(key string, value []byte) error {
	m[key] = value
	return nil
}

type brokenStore struct{}

func (brokenStore) Get(string) ([]byte, bool, error) { return nil, false, errors.New("broken") }
func (brokenStore) Set(string, []byte) error         { return errors.New("broken") }

func appendAll(t *testing.T, h *History, urls ...string) {
	t.Helper()
	for _, url := range urls {
		if _, err := h.Append(url); err != nil {
			t.Fatalf("Could not append %s: %v", url, err)
		}
	}
}

func entries(t *testing.T, h *History) []string {
	t.Helper()
	e, err := h.Entries()
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestEmptyHistory(t *testing.T) {
	h := New(mapStore{}, 0)
	if e := entries(t, h); e == nil || len(e) != 0 {
		t.Fatalf("Entries are %v", e)
	}
	if last, err := h.Last("/", false, 0); err != nil || last != "" {
		t.Fatalf("Last is '%s' (%v)", last, err)
	}
}

func TestDefaultCapacity(t *testing.T) {
	if c := New(mapStore{}, -1).Capacity(); c != DefaultCapacity {
		t.Fatalf("Capacity is %d", c)
	}
}

func TestEviction(t *testing.T) {
	h := New(mapStore{}, 5)
	appendAll(t, h, "/a", "/b", "/c", "/d", "/e")

	evicted, err := h.Append("/f")
	if err != nil {
		t.Fatal(err)
	}
	if evicted != 1 {
		t.Fatalf("Evicted %d entries", evicted)
	}
	if e := entries(t, h); !reflect.DeepEqual(e, []string{"/b", "/c", "/d", "/e", "/f"}) {
		t.Fatalf("Entries are %v", e)
	}
}

func TestKeepsMostRecent(t *testing.T) {
	for _, capacity := range []int{1, 3, 5, 8} {
		h := New(mapStore{}, capacity)
		n := capacity*2 + 1
		urls := make([]string, n)
		for i := range urls {
			urls[i] = fmt.Sprintf("/page/%d", i)
		}
		appendAll(t, h, urls...)

		if e := entries(t, h); !reflect.DeepEqual(e, urls[n-capacity:]) {
			t.Fatalf("Capacity %d: entries are %v", capacity, e)
		}
	}
}

func TestNoConsecutiveDuplicates(t *testing.T) {
	h := New(mapStore{}, 5)
	appendAll(t, h, "/a", "/b", "/b")
	if e := entries(t, h); len(e) != 2 {
		t.Fatalf("Entries are %v", e)
	}
	// only adjacent duplicates are dropped
	appendAll(t, h, "/a")
	if e := entries(t, h); !reflect.DeepEqual(e, []string{"/a", "/b", "/a"}) {
		t.Fatalf("Entries are %v", e)
	}
}

func TestOverfullStoreIsTrimmed(t *testing.T) {
	store := mapStore{Key: []byte(`["/1","/2","/3","/4","/5","/6","/7"]`)}
	h := New(store, 5)

	evicted, err := h.Append("/8")
	if err != nil {
		t.Fatal(err)
	}
	if evicted != 3 {
		t.Fatalf("Evicted %d entries", evicted)
	}
	if e := entries(t, h); !reflect.DeepEqual(e, []string{"/4", "/5", "/6", "/7", "/8"}) {
		t.Fatalf("Entries are %v", e)
	}
}

func TestLast(t *testing.T) {
	h := New(mapStore{}, 5)
	appendAll(t, h, "/a", "/b", "/c")

	tests := []struct {
		current     string
		skipCurrent bool
		offset      int
		want        string
	}{
		{"/c", false, 0, "/c"},
		{"/c", true, 0, "/b"},
		{"/x", true, 0, "/c"},
		{"/c", false, 1, "/b"},
		{"/b", true, 1, "/a"},
		{"/c", false, 2, "/a"},
		{"/c", false, 3, ""},
		{"/c", false, -1, "/c"},
	}
	for _, tt := range tests {
		last, err := h.Last(tt.current, tt.skipCurrent, tt.offset)
		if err != nil {
			t.Fatal(err)
		}
		if last != tt.want {
			t.Fatalf("Last(%s, %v, %d) is '%s', expected '%s'", tt.current, tt.skipCurrent, tt.offset, last, tt.want)
		}
	}
}

func TestLastSkipsOnlyEntry(t *testing.T) {
	h := New(mapStore{}, 5)
	appendAll(t, h, "/a")
	if last, _ := h.Last("/a", true, 0); last != "" {
		t.Fatalf("Last is '%s'", last)
	}
}

func TestStoreErrors(t *testing.T) {
	h := New(brokenStore{}, 5)
	if _, err := h.Append("/a"); err == nil {
		t.Fatal("Expected append error")
	}
	if e, err := h.Entries(); err == nil || len(e) != 0 {
		t.Fatalf("Expected read error, entries are %v", e)
	}
	if last, err := h.Last("", false, 0); err == nil || last != "" {
		t.Fatalf("Expected read error, last is '%s'", last)
	}
}

func TestCorruptSlot(t *testing.T) {
	h := New(mapStore{Key: []byte("not json")}, 5)
	if _, err := h.Entries(); err == nil {
		t.Fatal("Expected decode error")
	}
}
