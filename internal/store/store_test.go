package store_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playperu/packimport/internal/database"
	"github.com/playperu/packimport/internal/migrations"
	"github.com/playperu/packimport/internal/pack"
	"github.com/playperu/packimport/internal/store"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(context.Background(), db, nil))
	return db
}

func testPack(uuid string, created time.Time) *pack.Pack {
	text := "hello"
	logo := pack.FileRef("logo-ref")
	price := 200.0
	return &pack.Pack{
		UUID:         uuid,
		Name:         "Pack " + uuid,
		Version:      2,
		CreationTime: created,
		Authors:      []string{"Alice"},
		Tags:         []string{},
		Logo:         &logo,
		Language:     "en",
		Rounds: []pack.Round{{
			Name: "R1",
			Themes: []pack.Theme{{
				Name: "T1",
				Questions: []pack.Question{{
					Type:             pack.QuestionCat,
					Price:            100,
					CorrectAnswers:   []string{"a"},
					IncorrectAnswers: []string{},
					RealPrice:        &price,
					Scenario: []pack.ScenarioEvent{{
						Type:     pack.EventText,
						Duration: pack.DefaultDuration,
						Data:     pack.EventData{Text: &text},
					}},
				}},
			}},
		}},
	}
}

func TestPackStoreSaveLoad(t *testing.T) {
	ctx := context.Background()
	packs := store.NewPackStore(openDB(t))

	created := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	want := testPack("p1", created)
	require.NoError(t, packs.Save(ctx, want))

	got, err := packs.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = packs.Load(ctx, "missing")
	assert.ErrorIs(t, err, pack.ErrNotFound)
}

func TestPackStoreSaveIsInsertOnly(t *testing.T) {
	ctx := context.Background()
	packs := store.NewPackStore(openDB(t))

	first := testPack("p1", time.Now().UTC())
	require.NoError(t, packs.Save(ctx, first))

	second := testPack("p1", time.Now().UTC())
	second.Name = "replacement"
	assert.ErrorIs(t, packs.Save(ctx, second), pack.ErrExists)

	got, err := packs.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, first.Name, got.Name)
}

func TestPackStoreListAndDelete(t *testing.T) {
	ctx := context.Background()
	packs := store.NewPackStore(openDB(t))

	list, err := packs.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, packs.Save(ctx, testPack("old", base)))
	require.NoError(t, packs.Save(ctx, testPack("new", base.Add(time.Hour))))

	list, err = packs.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].UUID)
	assert.Equal(t, "old", list[1].UUID)
	assert.Equal(t, 1, list[0].RoundCount)
	assert.Equal(t, 1, list[0].QuestionCount)

	ids, err := packs.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "old"}, ids)

	require.NoError(t, packs.Delete(ctx, "old"))
	assert.ErrorIs(t, packs.Delete(ctx, "old"), pack.ErrNotFound)

	_, err = packs.Load(ctx, "old")
	assert.ErrorIs(t, err, pack.ErrNotFound)
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	files := store.NewFileStore(openDB(t))

	img, err := files.Store(ctx, "p1", "Images/logo.png", pngHeader)
	require.NoError(t, err)
	photo, err := files.Store(ctx, "p1", "Images/photo.jpg", []byte("not really a photo"))
	require.NoError(t, err)
	other, err := files.Store(ctx, "p2", "Images/logo.png", pngHeader)
	require.NoError(t, err)
	assert.NotEqual(t, img, other, "every store call gets its own ref")

	f, err := files.Get(ctx, img)
	require.NoError(t, err)
	assert.Equal(t, "p1", f.PackUUID)
	assert.Equal(t, "Images/logo.png", f.Name)
	assert.Equal(t, "image/png", f.ContentType)
	assert.Equal(t, int64(len(pngHeader)), f.Size)
	assert.Equal(t, pngHeader, f.Data)
	assert.Len(t, f.Checksum, 64)

	f2, err := files.Get(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, f.Checksum, f2.Checksum)

	v, err := files.Get(ctx, photo)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", v.ContentType, "unrecognised content falls back to the extension")

	list, err := files.ListByPack(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Images/logo.png", list[0].Name)
	assert.Nil(t, list[0].Data)

	owners, err := files.PackIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, owners)

	require.NoError(t, files.Delete(ctx, photo, "unknown-ref"))
	_, err = files.Get(ctx, photo)
	assert.ErrorIs(t, err, store.ErrFileNotFound)

	n, err := files.DeletePack(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = files.Get(ctx, img)
	assert.ErrorIs(t, err, store.ErrFileNotFound)

	require.NoError(t, files.Delete(ctx))
}

func TestSweepOrphans(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	packs := store.NewPackStore(db)
	files := store.NewFileStore(db)

	require.NoError(t, packs.Save(ctx, testPack("kept", time.Now().UTC())))
	kept, err := files.Store(ctx, "kept", "a.png", pngHeader)
	require.NoError(t, err)
	for _, name := range []string{"a.png", "b.png"} {
		_, err := files.Store(ctx, "gone", name, pngHeader)
		require.NoError(t, err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	removed, err := store.SweepOrphans(ctx, packs, files, logger)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	owners, err := files.PackIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, owners)
	_, err = files.Get(ctx, kept)
	assert.NoError(t, err)
}
