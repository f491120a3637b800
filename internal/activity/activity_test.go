package activity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraryapi/internal/testutil"
)

func TestEncodeCursor(t *testing.T) {
	assert.Empty(t, EncodeCursor(Cursor{}))

	c := Cursor{AfterID: "abc123", CreatedAt: "2024-01-01T10:00:00Z"}
	encoded := EncodeCursor(c)
	assert.NotEmpty(t, encoded)

	decoded, err := DecodeCursor(encoded)
	require.NoError(t, err)
	assert.Equal(t, c, decoded)
}

func TestDecodeCursor_Invalid(t *testing.T) {
	_, err := DecodeCursor("invalid-base64!!!")
	assert.Error(t, err)

	// valid base64 of {"after_id":"abc123"} but no timestamp
	_, err = DecodeCursor("eyJhZnRlcl9pZCI6ImFiYzEyMyJ9")
	assert.Error(t, err)

	c, err := DecodeCursor("")
	assert.NoError(t, err)
	assert.Equal(t, Cursor{}, c)
}

func TestRecorder_RecordAndPage(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	rec := NewRecorder(NewSQLRepo(db, 5*time.Second), nil, 16)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		rec.Record(ctx, Entry{
			UserID: "lib", Action: ActionBorrow, EntityType: "transaction",
			EntityID: "t" + string(rune('0'+i)), CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	rec.Record(ctx, Entry{UserID: "other", Action: ActionReconcile, EntityType: "transaction", EntityID: "*", CreatedAt: base})
	require.NoError(t, rec.Close(ctx))

	page1, next, err := rec.List(ctx, Filter{UserID: "lib", Limit: 2})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, "t4", page1[0].EntityID)
	assert.Equal(t, "t3", page1[1].EntityID)
	require.NotEmpty(t, next)

	cursor, err := DecodeCursor(next)
	require.NoError(t, err)
	page2, next, err := rec.List(ctx, Filter{UserID: "lib", After: cursor, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"t2", "t1"}, []string{page2[0].EntityID, page2[1].EntityID})

	cursor, _ = DecodeCursor(next)
	page3, next, err := rec.List(ctx, Filter{UserID: "lib", After: cursor, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Empty(t, next)

	handler := NewHTTPHandler(rec)
	w := httptest.NewRecorder()
	handler.List(w, httptest.NewRequest(http.MethodGet, "/activity?limit=10", nil))
	var all []Entry
	env := testutil.DecodeData(t, w, &all)
	assert.Len(t, all, 6)
	assert.Nil(t, env.Meta["next_cursor"])

	w = httptest.NewRecorder()
	handler.List(w, httptest.NewRequest(http.MethodGet, "/activity?cursor=not-base64!!", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
