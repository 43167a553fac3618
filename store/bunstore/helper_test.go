package bunstore_test

import (
	"context"
	"testing"

	"github.com/scrapeloop/queue/store/bunstore"
)

func newTestStore(t *testing.T) *bunstore.Store {
	t.Helper()
	s, err := bunstore.NewSQLiteStore("", "testqueue")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

