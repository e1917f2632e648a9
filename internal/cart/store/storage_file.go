package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"trolley/internal/cart/models"
)

// FileStorage keeps the guest cart in a single JSON file. Writes go through a
// temp file and rename so a crash never leaves a half-written cart behind.
type FileStorage struct {
	path string
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

func (s *FileStorage) Read(_ context.Context) ([]models.Line, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read guest cart: %w", err)
	}

	var cart []models.Line
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("decode guest cart: %w", err)
	}
	return cart, nil
}

func (s *FileStorage) Write(_ context.Context, cart []models.Line) error {
	if cart == nil {
		cart = []models.Line{}
	}
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encode guest cart: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create guest cart dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".guest-cart-*")
	if err != nil {
		return fmt.Errorf("write guest cart: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write guest cart: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write guest cart: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write guest cart: %w", err)
	}
	return nil
}

func (s *FileStorage) Delete(_ context.Context) error {
	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
