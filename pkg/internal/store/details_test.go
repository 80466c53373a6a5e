package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/yeisme/ingestvault/pkg/internal/model"
	"github.com/yeisme/ingestvault/pkg/internal/store"
	"github.com/yeisme/ingestvault/pkg/internal/store/storetest"
)

func ptr[T any](v T) *T { return &v }

// TestDetailStore_UpsertLastWriterWins 相同 unique_key 的后写覆盖先写.
func TestDetailStore_UpsertLastWriterWins(t *testing.T) {
	ctx := context.Background()
	db := storetest.Open(t)
	progress := store.NewProgressStore(db)
	details := store.NewDetailStore(db)

	first := newRecord(t, progress, "detail-1")
	second := newRecord(t, progress, "detail-2")

	err := details.Upsert(ctx, &model.DetailRecord{
		UniqueKey:          "K1",
		ProductTitle:       "Tee",
		ProductDescription: "Cotton",
		PiecePrice:         ptr(9.99),
		Size:               ptr("M"),
		FileRecordID:       first.ID,
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	err = details.Upsert(ctx, &model.DetailRecord{
		UniqueKey:          "K1",
		ProductTitle:       "Tee v2",
		ProductDescription: "Organic cotton",
		FileRecordID:       second.ID,
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := details.FindByKey(ctx, "K1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("expected a single row, got %d", len(got))
	}

	d := got[0]
	if d.ProductTitle != "Tee v2" || d.ProductDescription != "Organic cotton" {
		t.Errorf("expected overwritten fields, got %+v", d)
	}

	if d.PiecePrice != nil || d.Size != nil {
		t.Errorf("optional fields should be overwritten with NULL, got price=%v size=%v", d.PiecePrice, d.Size)
	}

	if d.FileRecord == nil || d.FileRecord.ID != second.ID {
		t.Errorf("expected preloaded file record %d, got %+v", second.ID, d.FileRecord)
	}

	n, err := details.CountByFile(ctx, first.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}

	if n != 0 {
		t.Errorf("expected first file to own no rows, got %d", n)
	}
}

func TestDetailStore_FindByKeyNotFound(t *testing.T) {
	details := store.NewDetailStore(storetest.Open(t))

	if _, err := details.FindByKey(context.Background(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
