package artifact

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir() + "/artifacts")
	content := []byte("hostname leaf11\n!\nend\n")

	meta, err := store.Write(Meta{Hostname: "leaf11", Role: "leaf", RunID: "run-1"}, content)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if meta.SHA256 != Hash(content) {
		t.Errorf("SHA256 = %q, want %q", meta.SHA256, Hash(content))
	}
	if meta.Size != int64(len(content)) {
		t.Errorf("Size = %d, want %d", meta.Size, len(content))
	}
	if meta.RenderedAt.IsZero() {
		t.Error("RenderedAt not stamped")
	}

	got, err := store.Read("leaf11")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("Read = %q, want %q", got, content)
	}

	back, err := store.ReadMeta("leaf11")
	if err != nil {
		t.Fatalf("ReadMeta: %v", err)
	}
	if back.Hostname != "leaf11" || back.Role != "leaf" || back.RunID != "run-1" || back.SHA256 != meta.SHA256 {
		t.Errorf("ReadMeta = %+v", back)
	}
}

func TestStoreWrite_Overwrites(t *testing.T) {
	store := NewStore(t.TempDir())

	if _, err := store.Write(Meta{Hostname: "leaf11", RunID: "run-1"}, []byte("old\n")); err != nil {
		t.Fatalf("first Write: %v", err)
	}
	if _, err := store.Write(Meta{Hostname: "leaf11", RunID: "run-2"}, []byte("new\n")); err != nil {
		t.Fatalf("second Write: %v", err)
	}

	got, err := store.Read("leaf11")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "new\n" {
		t.Errorf("Read = %q, want new", got)
	}
	meta, err := store.ReadMeta("leaf11")
	if err != nil {
		t.Fatalf("ReadMeta: %v", err)
	}
	if meta.RunID != "run-2" {
		t.Errorf("RunID = %q, want run-2", meta.RunID)
	}
}

func TestStoreRead_NotStored(t *testing.T) {
	store := NewStore(t.TempDir())

	if _, err := store.Read("ghost"); !errors.Is(err, ErrNotStored) {
		t.Errorf("Read error = %v, want ErrNotStored", err)
	}
	if _, err := store.ReadMeta("ghost"); !errors.Is(err, ErrNotStored) {
		t.Errorf("ReadMeta error = %v, want ErrNotStored", err)
	}
}

func TestStoreList(t *testing.T) {
	store := NewStore(t.TempDir())

	for _, host := range []string{"spine1", "leaf12", "leaf11"} {
		if _, err := store.Write(Meta{Hostname: host, RunID: "run-1"}, []byte(host+"\n")); err != nil {
			t.Fatalf("Write %s: %v", host, err)
		}
	}

	metas, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 3 {
		t.Fatalf("got %d metas, want 3", len(metas))
	}
	for i, want := range []string{"leaf11", "leaf12", "spine1"} {
		if metas[i].Hostname != want {
			t.Errorf("metas[%d].Hostname = %q, want %q", i, metas[i].Hostname, want)
		}
	}

	empty := NewStore(t.TempDir() + "/never-created")
	metas, err = empty.List()
	if err != nil || len(metas) != 0 {
		t.Errorf("List on absent dir = %v, %v", metas, err)
	}
}

func TestStoreWrite_RequiresHostname(t *testing.T) {
	store := NewStore(t.TempDir())
	if _, err := store.Write(Meta{}, []byte("x")); err == nil {
		t.Fatal("expected error for empty hostname")
	}
}

func TestStoreWrite_KeepsRenderedAt(t *testing.T) {
	store := NewStore(t.TempDir())
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	meta, err := store.Write(Meta{Hostname: "leaf11", RenderedAt: at}, []byte("x\n"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !meta.RenderedAt.Equal(at) {
		t.Errorf("RenderedAt = %v, want %v", meta.RenderedAt, at)
	}
}

func TestDiff(t *testing.T) {
	store := NewStore(t.TempDir())
	stored := []byte("hostname leaf11\n!\nntp server 10.0.0.1\n!\nend\n")
	fresh := []byte("hostname leaf11\n!\nntp server 10.0.0.2\n!\nend\n")

	if _, err := store.Write(Meta{Hostname: "leaf11"}, stored); err != nil {
		t.Fatalf("Write: %v", err)
	}

	diff, err := store.Diff("leaf11", fresh)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if !strings.Contains(diff, "-ntp server 10.0.0.1") || !strings.Contains(diff, "+ntp server 10.0.0.2") {
		t.Errorf("diff missing expected hunks:\n%s", diff)
	}
	if !strings.Contains(diff, "leaf11.cfg (stored)") || !strings.Contains(diff, "leaf11.cfg (rendered)") {
		t.Errorf("diff missing file labels:\n%s", diff)
	}

	same, err := store.Diff("leaf11", stored)
	if err != nil {
		t.Fatalf("Diff (identical): %v", err)
	}
	if same != "" {
		t.Errorf("identical content produced diff:\n%s", same)
	}

	fromEmpty, err := store.Diff("leaf99", fresh)
	if err != nil {
		t.Fatalf("Diff (unstored): %v", err)
	}
	if !strings.Contains(fromEmpty, "+hostname leaf11") {
		t.Errorf("diff against nothing should add every line:\n%s", fromEmpty)
	}
}

func TestDrift(t *testing.T) {
	content := []byte("hostname leaf11\n!\nend\n")
	changed := []byte("hostname leaf11\n!\nntp server 10.0.0.9\n!\nend\n")

	t.Run("missing", func(t *testing.T) {
		store := NewStore(t.TempDir())
		report, err := store.Drift("leaf11", content)
		if err != nil {
			t.Fatalf("Drift: %v", err)
		}
		if report.Kind != DriftMissing {
			t.Errorf("Kind = %q, want missing", report.Kind)
		}
	})

	t.Run("clean", func(t *testing.T) {
		store := NewStore(t.TempDir())
		if _, err := store.Write(Meta{Hostname: "leaf11"}, content); err != nil {
			t.Fatalf("Write: %v", err)
		}
		report, err := store.Drift("leaf11", content)
		if err != nil {
			t.Fatalf("Drift: %v", err)
		}
		if report.Kind != DriftClean || report.Diff != "" {
			t.Errorf("report = %+v, want clean with no diff", report)
		}
	})

	t.Run("stale", func(t *testing.T) {
		store := NewStore(t.TempDir())
		if _, err := store.Write(Meta{Hostname: "leaf11"}, content); err != nil {
			t.Fatalf("Write: %v", err)
		}
		report, err := store.Drift("leaf11", changed)
		if err != nil {
			t.Fatalf("Drift: %v", err)
		}
		if report.Kind != DriftStale {
			t.Errorf("Kind = %q, want stale", report.Kind)
		}
		if !strings.Contains(report.Diff, "+ntp server 10.0.0.9") {
			t.Errorf("stale diff missing new line:\n%s", report.Diff)
		}
	})

	t.Run("modified", func(t *testing.T) {
		store := NewStore(t.TempDir())
		if _, err := store.Write(Meta{Hostname: "leaf11"}, content); err != nil {
			t.Fatalf("Write: %v", err)
		}
		tampered := append([]byte("! hand edit\n"), content...)
		if err := os.WriteFile(store.ConfigPath("leaf11"), tampered, 0o644); err != nil {
			t.Fatalf("tamper: %v", err)
		}
		report, err := store.Drift("leaf11", content)
		if err != nil {
			t.Fatalf("Drift: %v", err)
		}
		if report.Kind != DriftModified {
			t.Errorf("Kind = %q, want modified", report.Kind)
		}
	})

	t.Run("modified when the sidecar is gone", func(t *testing.T) {
		store := NewStore(t.TempDir())
		if _, err := store.Write(Meta{Hostname: "leaf11"}, content); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := os.Remove(store.Dir() + "/leaf11.json"); err != nil {
			t.Fatalf("remove sidecar: %v", err)
		}
		report, err := store.Drift("leaf11", content)
		if err != nil {
			t.Fatalf("Drift: %v", err)
		}
		if report.Kind != DriftModified {
			t.Errorf("Kind = %q, want modified", report.Kind)
		}
	})
}
