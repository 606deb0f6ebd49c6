package util

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestHuman(t *testing.T) {
	tests := map[int64]string{
		0:       "0 B",
		1023:    "1023 B",
		1024:    "1.00 KB",
		1536:    "1.50 KB",
		5 << 20: "5.00 MB",
		3 << 30: "3.00 GB",
	}

	for in, want := range tests {
		if got := Human(in); got != want {
			t.Errorf("Human(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestHTTPClientSetsUserAgent(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.UserAgent())
	}))
	defer srv.Close()

	do := func(c *http.Client, ua string) {
		t.Helper()
		req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
		if ua != "" {
			req.Header.Set("User-Agent", ua)
		}
		resp, err := c.Do(req)
		if err != nil {
			t.Fatalf("do: %v", err)
		}
		_ = resp.Body.Close()
	}

	do(NewHTTPClient(HTTPClientOptions{}), "")
	custom := NewHTTPClient(HTTPClientOptions{UserAgent: "custom/1"})
	do(custom, "")
	do(custom, "explicit/2")

	want := []string{DefaultUserAgent, "custom/1", "explicit/2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("request %d User-Agent = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCleanupUnfinished(t *testing.T) {
	dir := t.TempDir()

	mk := func(name string, isDir bool) string {
		p := filepath.Join(dir, name)
		if isDir {
			if err := os.MkdirAll(filepath.Join(p, "inner"), 0755); err != nil {
				t.Fatal(err)
			}
		} else if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	stale := []string{
		mk("chapter_abc_1234abcd_tmp", true),
		mk(".tmp-Chapter_1.pdf123456", false),
	}
	kept := []string{
		mk("Chapter_1.pdf", false),
		mk("other_tmp", true),
		mk(".tmp-notes.txt", false),
	}

	CleanupUnfinished(dir)

	for _, p := range stale {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s not removed", p)
		}
	}
	for _, p := range kept {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s removed: %v", p, err)
		}
	}
}

func TestForceCleanupRemovesOnlyTrackedStaging(t *testing.T) {
	tmp := t.TempDir()
	out := t.TempDir()

	mine := filepath.Join(tmp, "chapter_c1_1234abcd_tmp")
	other := filepath.Join(tmp, "chapter_c1_99999999_tmp")
	for _, d := range []string{mine, other} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(d, "0000_p.png"), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	partial := filepath.Join(out, ".tmp-Chapter_1.pdf42")
	done := filepath.Join(out, "Chapter_0.pdf")
	for _, p := range []string{partial, done} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	reg := NewStagingRegistry()
	reg.Track(mine)

	ForceCleanup(reg, out)

	if _, err := os.Stat(mine); !os.IsNotExist(err) {
		t.Fatalf("tracked staging %s not removed", mine)
	}
	if _, err := os.Stat(other); err != nil {
		t.Fatalf("staging of another run removed: %v", err)
	}
	if _, err := os.Stat(partial); !os.IsNotExist(err) {
		t.Fatalf("partial output %s not removed", partial)
	}
	if _, err := os.Stat(done); err != nil {
		t.Fatalf("finished output removed: %v", err)
	}
	if d := reg.Dirs(); len(d) != 0 {
		t.Fatalf("registry still tracks %v", d)
	}
}

func TestStagingRegistryRelease(t *testing.T) {
	reg := NewStagingRegistry()
	reg.Track("/b")
	reg.Track("/a")
	reg.Track("/a")

	if got := reg.Dirs(); len(got) != 2 || got[0] != "/a" || got[1] != "/b" {
		t.Fatalf("Dirs = %v", got)
	}

	reg.Release("/a")
	if got := reg.Dirs(); len(got) != 1 || got[0] != "/b" {
		t.Fatalf("Dirs after release = %v", got)
	}
}

func TestRemoveIfEmpty(t *testing.T) {
	root := t.TempDir()
	empty := filepath.Join(root, "empty")
	full := filepath.Join(root, "full")
	_ = os.Mkdir(empty, 0755)
	_ = os.Mkdir(full, 0755)
	_ = os.WriteFile(filepath.Join(full, "f"), nil, 0644)

	RemoveIfEmpty(empty)
	RemoveIfEmpty(full)

	if _, err := os.Stat(empty); !os.IsNotExist(err) {
		t.Errorf("empty dir kept")
	}
	if _, err := os.Stat(full); err != nil {
		t.Errorf("non-empty dir removed")
	}
}
