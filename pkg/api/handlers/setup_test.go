//go:build integration

package handlers

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"net/http"

	"github.com/kvasirlab/connwatch/pkg/analytics/models"
	"github.com/kvasirlab/connwatch/pkg/analytics/store"
)

// newTestStore creates a file-backed SQLite store under a temp dir.
func newTestStore(t *testing.T) *store.GORMStore {
	t.Helper()
	st, err := store.New(&store.Config{
		Type: store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{
			Path: filepath.Join(t.TempDir(), "analytics.db"),
		},
	})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// seedEvents writes plain event rows for the given devices.
func seedEvents(t *testing.T, st *store.GORMStore, events ...*models.Event) {
	t.Helper()
	now := time.Now().UTC()
	for _, ev := range events {
		if ev.TsUTC.IsZero() {
			ev.TsUTC = now
		}
	}
	err := st.WriteBatch(context.Background(), &store.Batch{
		Source: store.BatchSourceSyslog,
		Events: events,
	})
	if err != nil {
		t.Fatalf("Failed to seed events: %v", err)
	}
}

// withURLParam attaches a chi route parameter to the request context.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
