package storage

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"audioscribe/internal/model"

	"github.com/google/uuid"
)

// Uploader writes uploaded audio into a directory and registers an item for it.
type Uploader struct {
	dir   string
	items *Items
	now   func() time.Time
	newID func() string
}

// NewUploader stores files under dir.
func NewUploader(dir string, items *Items) *Uploader {
	if strings.TrimSpace(dir) == "" {
		dir = "uploads"
	}
	return &Uploader{
		dir:   dir,
		items: items,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Dir returns the upload directory.
func (u *Uploader) Dir() string {
	return u.dir
}

// SaveUpload persists a multipart file. The item is visible in "uploading"
// state while bytes are copied and returns to "idle" once the source is attached.
func (u *Uploader) SaveUpload(file *multipart.FileHeader) (model.MediaItem, error) {
	src, err := file.Open()
	if err != nil {
		return model.MediaItem{}, fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()
	return u.Save(file.Filename, src)
}

// Save copies r into the upload directory under a fresh item id.
func (u *Uploader) Save(fileName string, r io.Reader) (model.MediaItem, error) {
	id := u.newID()
	fileName = filepath.Base(strings.TrimSpace(fileName))
	item := model.NewMediaItem(id, fileName, "", u.now())
	if err := item.Transition(model.StatusUploading); err != nil {
		return model.MediaItem{}, err
	}
	if err := u.items.Add(item); err != nil {
		return model.MediaItem{}, err
	}

	dst := filepath.Join(u.dir, id+"_"+fileName)
	if err := u.copyTo(dst, r); err != nil {
		_, _ = u.items.Update(id, func(m *model.MediaItem) error {
			m.SetError(model.ErrorCodeSource, err.Error())
			return m.Transition(model.StatusError)
		})
		return model.MediaItem{}, fmt.Errorf("failed to save file: %w", err)
	}

	return u.items.Update(id, func(m *model.MediaItem) error {
		m.SourcePath = dst
		return m.Transition(model.StatusIdle)
	})
}

func (u *Uploader) copyTo(dst string, r io.Reader) error {
	if err := os.MkdirAll(u.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create uploads directory: %w", err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = out.ReadFrom(r)
	return err
}
