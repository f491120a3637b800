package book

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraryapi/internal/testutil"
)

func newTestHandler(t *testing.T) (*HTTPHandler, *MockRepository) {
	ctrl := gomock.NewController(t)
	mockRepo := NewMockRepository(ctrl)
	return NewHTTPHandler(NewService(mockRepo, func() time.Time { return t0 })), mockRepo
}

func TestHTTPHandler_List(t *testing.T) {
	handler, mockRepo := newTestHandler(t)
	testBook := Book{ID: "1", ISBN: "9780441172719", Title: "Dune", TotalCopies: 1, AvailableCopies: 1, Status: StatusAvailable}

	t.Run("success", func(t *testing.T) {
		mockRepo.EXPECT().List(gomock.Any(), Query{Category: "sci-fi", Limit: 10, Offset: 10}).Return([]Book{testBook}, 11, nil)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/books?category=sci-fi&page=2&pageSize=10", nil)
		handler.List(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var books []Book
		env := testutil.DecodeData(t, w, &books)
		require.Len(t, books, 1)
		assert.EqualValues(t, 2, env.Meta["total_pages"])
	})

	t.Run("invalid status", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.List(w, httptest.NewRequest(http.MethodGet, "/books?status=lost", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("error", func(t *testing.T) {
		mockRepo.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, 0, context.DeadlineExceeded)

		w := httptest.NewRecorder()
		handler.List(w, httptest.NewRequest(http.MethodGet, "/books", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestHTTPHandler_Get(t *testing.T) {
	handler, mockRepo := newTestHandler(t)

	t.Run("success", func(t *testing.T) {
		mockRepo.EXPECT().GetByID(gomock.Any(), "1").Return(Book{ID: "1", Title: "Dune"}, nil)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/books/1", nil)
		r.SetPathValue("id", "1")
		handler.Get(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("not found", func(t *testing.T) {
		mockRepo.EXPECT().GetByID(gomock.Any(), "2").Return(Book{}, ErrNotFound)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/books/2", nil)
		r.SetPathValue("id", "2")
		handler.Get(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "NOT_FOUND", testutil.DecodeEnvelope(t, w).Error.Code)
	})
}

func TestHTTPHandler_Create(t *testing.T) {
	handler, mockRepo := newTestHandler(t)

	t.Run("created with normalized isbn", func(t *testing.T) {
		mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, b *Book) error {
			assert.Equal(t, "9780441172719", b.ISBN)
			return nil
		})

		w := httptest.NewRecorder()
		handler.Create(w, testutil.MakeRequest(http.MethodPost, "/books", map[string]any{
			"title": "Dune", "author": "Frank Herbert", "isbn": "978-0-441-17271-9", "totalCopies": 2,
		}))

		assert.Equal(t, http.StatusCreated, w.Code)
		var b Book
		testutil.DecodeData(t, w, &b)
		assert.Equal(t, 2, b.AvailableCopies)
	})

	t.Run("validation", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.Create(w, testutil.MakeRequest(http.MethodPost, "/books", map[string]any{
			"title": "Dune", "isbn": "123", "totalCopies": 0,
		}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := testutil.DecodeEnvelope(t, w)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
		assert.Len(t, env.Error.Details, 3)
	})

	t.Run("duplicate isbn", func(t *testing.T) {
		mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(ErrDuplicateISBN)

		w := httptest.NewRecorder()
		handler.Create(w, testutil.MakeRequest(http.MethodPost, "/books", map[string]any{
			"title": "Dune", "author": "Frank Herbert", "isbn": "9780441172719", "totalCopies": 1,
		}))
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestHTTPHandler_Update(t *testing.T) {
	handler, mockRepo := newTestHandler(t)

	mockRepo.EXPECT().GetByID(gomock.Any(), "1").Return(Book{ID: "1", TotalCopies: 2, AvailableCopies: 2, Version: 1}, nil)
	mockRepo.EXPECT().UpdateIfVersion(gomock.Any(), gomock.Any()).Return(nil)

	w := httptest.NewRecorder()
	r := testutil.MakeRequest(http.MethodPatch, "/books/1", map[string]any{"status": "maintenance"})
	r.SetPathValue("id", "1")
	handler.Update(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	var b Book
	testutil.DecodeData(t, w, &b)
	assert.Equal(t, StatusMaintenance, b.Status)

	w = httptest.NewRecorder()
	r = testutil.MakeRequest(http.MethodPatch, "/books/1", map[string]any{"status": "borrowed"})
	r.SetPathValue("id", "1")
	handler.Update(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code, "borrowed is derived, not settable")
}

func TestHTTPHandler_Delete(t *testing.T) {
	handler, mockRepo := newTestHandler(t)
	mockRepo.EXPECT().Delete(gomock.Any(), "1").Return(nil)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodDelete, "/books/1", nil)
	r.SetPathValue("id", "1")
	handler.Delete(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
}
