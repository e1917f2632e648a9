package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trolley/internal/cart/models"
)

func TestFileStorageAbsentFileReadsEmpty(t *testing.T) {
	storage := NewFileStorage(filepath.Join(t.TempDir(), "guestCart.json"))

	cart, err := storage.Read(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cart)
}

func TestFileStorageRoundTrip(t *testing.T) {
	storage := NewFileStorage(filepath.Join(t.TempDir(), "nested", "guestCart.json"))
	ctx := context.Background()

	want := []models.Line{
		{ProductID: "p1", Quantity: 2, UnitPrice: "19.99", Name: "Widget", ImageURL: "/img/w.png"},
		{ProductID: "p2", Quantity: 1, UnitPrice: "5.00", Name: "Gadget"},
	}
	require.NoError(t, storage.Write(ctx, want))

	got, err := storage.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFileStorageWriteNilPersistsEmptyCart(t *testing.T) {
	storage := NewFileStorage(filepath.Join(t.TempDir(), "guestCart.json"))
	ctx := context.Background()

	require.NoError(t, storage.Write(ctx, nil))

	got, err := storage.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileStorageDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guestCart.json")
	storage := NewFileStorage(path)
	ctx := context.Background()

	require.NoError(t, storage.Write(ctx, []models.Line{{ProductID: "p1", Quantity: 1}}))
	require.NoError(t, storage.Delete(ctx))
	assert.NoFileExists(t, path)

	// Deleting an already-absent cart is fine.
	require.NoError(t, storage.Delete(ctx))
}

func TestFileStorageCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guestCart.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileStorage(path).Read(context.Background())
	assert.Error(t, err)
}
