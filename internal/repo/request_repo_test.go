package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-weather-backend/internal/domain"
)

func newRequestRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("request_repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func sampleRequest(loc string) *domain.WeatherRequest {
	name := loc + " resolved"
	return &domain.WeatherRequest{
		LocationInput: loc,
		ResolvedName:  &name,
		Latitude:      40.71,
		Longitude:     -74.01,
		DateFrom:      "2024-01-01",
		DateTo:        "2024-01-03",
		WeatherJSON:   `{"latitude":40.71,"longitude":-74.01,"daily":[]}`,
	}
}

func TestCreateRequest_Error_NoTable(t *testing.T) {
	db := newRequestRepoDB(t /* no migrations */)
	if err := CreateRequest(context.Background(), db, sampleRequest("x")); err == nil {
		t.Fatal("expected error creating without table")
	}
}

func TestCreateRequest_Success_SetsDefaults(t *testing.T) {
	db := newRequestRepoDB(t, &domain.WeatherRequest{})

	start := time.Now().UTC().Add(-time.Minute)
	rec := sampleRequest("New York")
	if err := CreateRequest(context.Background(), db, rec); err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if rec.ID == 0 {
		t.Fatalf("expected assigned id, got %d", rec.ID)
	}
	if rec.Provider != domain.DefaultProvider {
		t.Fatalf("expected default provider, got %q", rec.Provider)
	}
	if rec.CreatedAt.Before(start) {
		t.Fatalf("CreatedAt not set: %v", rec.CreatedAt)
	}
}

func TestListRequests_NewestFirstAndLimit(t *testing.T) {
	db := newRequestRepoDB(t, &domain.WeatherRequest{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := CreateRequest(ctx, db, sampleRequest(fmt.Sprintf("loc-%d", i))); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	got, err := ListRequests(ctx, db, 2)
	if err != nil {
		t.Fatalf("ListRequests: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].ID <= got[1].ID {
		t.Fatalf("expected descending ids, got %d then %d", got[0].ID, got[1].ID)
	}
	if got[0].LocationInput != "loc-2" {
		t.Fatalf("expected newest row first, got %q", got[0].LocationInput)
	}
}

func TestListRequestsAsc_OldestFirst(t *testing.T) {
	db := newRequestRepoDB(t, &domain.WeatherRequest{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := CreateRequest(ctx, db, sampleRequest(fmt.Sprintf("loc-%d", i))); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	got, err := ListRequestsAsc(ctx, db)
	if err != nil {
		t.Fatalf("ListRequestsAsc: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].ID >= got[i].ID {
			t.Fatalf("expected ascending ids at %d: %d >= %d", i, got[i-1].ID, got[i].ID)
		}
	}
}

func TestGetRequest_NotFound(t *testing.T) {
	db := newRequestRepoDB(t, &domain.WeatherRequest{})

	_, err := GetRequest(context.Background(), db, 999)
	if err != gorm.ErrRecordNotFound {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestSaveRequest_PersistsChanges(t *testing.T) {
	db := newRequestRepoDB(t, &domain.WeatherRequest{})
	ctx := context.Background()

	rec := sampleRequest("Berlin")
	if err := CreateRequest(ctx, db, rec); err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	notes := "holiday week"
	rec.Notes = &notes
	if err := SaveRequest(ctx, db, rec); err != nil {
		t.Fatalf("SaveRequest: %v", err)
	}

	got, err := GetRequest(ctx, db, rec.ID)
	if err != nil {
		t.Fatalf("GetRequest: %v", err)
	}
	if got.Notes == nil || *got.Notes != notes {
		t.Fatalf("notes not persisted: %+v", got.Notes)
	}
}

func TestDeleteRequest_SecondDeleteNotFound(t *testing.T) {
	db := newRequestRepoDB(t, &domain.WeatherRequest{})
	ctx := context.Background()

	rec := sampleRequest("Paris")
	if err := CreateRequest(ctx, db, rec); err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	if err := DeleteRequest(ctx, db, rec.ID); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := DeleteRequest(ctx, db, rec.ID); err != gorm.ErrRecordNotFound {
		t.Fatalf("expected ErrRecordNotFound on second delete, got %v", err)
	}
}

func TestRequestsStats_EmptyAndPopulated(t *testing.T) {
	db := newRequestRepoDB(t, &domain.WeatherRequest{})
	ctx := context.Background()

	count, maxTS, err := RequestsStats(ctx, db)
	if err != nil {
		t.Fatalf("RequestsStats empty: %v", err)
	}
	if count != 0 || maxTS != nil {
		t.Fatalf("expected (0, nil) on empty table, got (%d, %v)", count, maxTS)
	}

	if err := CreateRequest(ctx, db, sampleRequest("Rome")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	count, maxTS, err = RequestsStats(ctx, db)
	if err != nil {
		t.Fatalf("RequestsStats populated: %v", err)
	}
	if count != 1 || maxTS == nil {
		t.Fatalf("expected (1, non-nil), got (%d, %v)", count, maxTS)
	}
}
