package transport

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestResolveKnownHostsPathHonorsOverride(t *testing.T) {
	got, err := resolveKnownHostsPath("/tmp/custom/known_hosts")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/custom/known_hosts" {
		t.Errorf("got %q", got)
	}
}

func TestResolveKnownHostsPathDefaultsUnderXDGCacheHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", dir)

	got, err := resolveKnownHostsPath("")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "scenex", "known_hosts")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if info, err := os.Stat(filepath.Join(dir, "scenex")); err != nil || !info.IsDir() {
		t.Error("scenex cache directory was not created")
	}
}

func TestAuthMethodsPrefersPassword(t *testing.T) {
	methods, err := authMethods(DialOptions{Password: "hunter2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(methods) != 1 {
		t.Fatalf("got %d auth methods, want 1", len(methods))
	}
}

func TestAuthMethodsFailsWithoutPasswordOrAgent(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	if _, err := authMethods(DialOptions{}); err == nil {
		t.Fatal("expected an error with no password and no agent socket, got nil")
	}
}

func TestStreamLinesSplitsAndBuffers(t *testing.T) {
	r := strings.NewReader("first\nsecond\n")
	var sink safeBuffer
	var got []string
	var wg sync.WaitGroup
	wg.Add(1)
	streamLines(r, false, func(line string, stderr bool) {
		got = append(got, line)
	}, &sink, &wg)

	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Errorf("got %v", got)
	}
	if string(sink.Bytes()) != "first\nsecond\n" {
		t.Errorf("sink = %q", sink.Bytes())
	}
}
