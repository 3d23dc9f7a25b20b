package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"audioscribe/internal/model"
)

func seed(t *testing.T, s *Items, id string) {
	t.Helper()
	if err := s.Add(model.NewMediaItem(id, id+".mp3", "/tmp/"+id+".mp3", time.Unix(0, 0))); err != nil {
		t.Fatalf("Add(%s) error = %v", id, err)
	}
}

// TestItemsGetReturnsCopy verifies callers cannot mutate stored items.
func TestItemsGetReturnsCopy(t *testing.T) {
	s := NewItems()
	seed(t, s, "a")

	got, _ := s.Get("a")
	got.Status = model.StatusCompleted
	got.Versions = append(got.Versions, model.Version{ID: "x"})

	again, _ := s.Get("a")
	if again.Status != model.StatusIdle || len(again.Versions) != 0 {
		t.Fatalf("stored item mutated: %+v", again)
	}
}

// TestItemsUpdateRollsBackOnError verifies failed updates leave no trace.
func TestItemsUpdateRollsBackOnError(t *testing.T) {
	s := NewItems()
	seed(t, s, "a")

	boom := errors.New("boom")
	_, err := s.Update("a", func(m *model.MediaItem) error {
		m.ProcessedChunks = 3
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update() error = %v, want boom", err)
	}
	got, _ := s.Get("a")
	if got.ProcessedChunks != 0 {
		t.Fatalf("processed = %d, want 0", got.ProcessedChunks)
	}

	if _, err := s.Update("missing", func(m *model.MediaItem) error { return nil }); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("Update(missing) error = %v", err)
	}
}

// TestItemsListKeepsOrder verifies ingestion ordering and active tracking.
func TestItemsListKeepsOrder(t *testing.T) {
	s := NewItems()
	seed(t, s, "b")
	seed(t, s, "a")
	if err := s.Add(model.NewMediaItem("a", "", "", time.Now())); !errors.Is(err, ErrItemExists) {
		t.Fatalf("duplicate Add() error = %v", err)
	}

	list := s.List()
	if len(list) != 2 || list[0].ID != "b" || list[1].ID != "a" {
		t.Fatalf("list = %+v", list)
	}

	if _, ok := s.Active(); ok {
		t.Fatal("Active() before SetActive")
	}
	if err := s.SetActive("a"); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}
	if active, ok := s.Active(); !ok || active.ID != "a" {
		t.Fatalf("Active() = %+v, %v", active, ok)
	}
}

// TestUploaderSave verifies upload files land on disk and the item ends idle.
func TestUploaderSave(t *testing.T) {
	dir := t.TempDir()
	s := NewItems()
	u := NewUploader(dir, s)
	u.newID = func() string { return "fixed-id" }

	item, err := u.Save("../talk.mp3", strings.NewReader("audio"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if item.Status != model.StatusIdle {
		t.Fatalf("status = %s, want idle", item.Status)
	}
	if item.FileName != "talk.mp3" {
		t.Fatalf("file name = %q", item.FileName)
	}
	want := filepath.Join(dir, "fixed-id_talk.mp3")
	if item.SourcePath != want {
		t.Fatalf("source = %q, want %q", item.SourcePath, want)
	}
	data, err := os.ReadFile(want)
	if err != nil || string(data) != "audio" {
		t.Fatalf("file contents = %q, %v", data, err)
	}
}
