package transaction

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
	"libraryapi/internal/user"
)

func newHandlerFixture(t *testing.T, opts Options) (*HTTPHandler, *fixture) {
	t.Helper()
	f := newFixture(t)
	f.svc = NewService(f.svc.repo, f.svc.users, nil, nil, f.clock.Now, opts)
	seedUser(t, f.db, "stu", user.RoleStudent)
	seedUser(t, f.db, "other", user.RoleStudent)
	seedUser(t, f.db, "lib", user.RoleLibrarian)
	return NewHTTPHandler(f.svc), f
}

func doBorrow(h *HTTPHandler, as, role string, body any) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.Borrow(w, testutil.AsUser(testutil.MakeRequest(http.MethodPost, "/transactions", body), as, role))
	return w
}

func doAction(h *HTTPHandler, id, as, role string, body any) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r := testutil.AsUser(testutil.MakeRequest(http.MethodPatch, "/transactions/"+id, body), as, role)
	r.SetPathValue("id", id)
	h.Update(w, r)
	return w
}

func TestHTTPHandler_Borrow(t *testing.T) {
	h, f := newHandlerFixture(t, Options{})
	seedBook(t, f.db, "b01", 1)

	t.Run("student borrows for self", func(t *testing.T) {
		w := doBorrow(h, "stu", user.RoleStudent, map[string]any{"bookId": "b01"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var tx Transaction
		testutil.DecodeData(t, w, &tx)
		assert.Equal(t, "stu", tx.UserID)
		assert.Equal(t, StatusActive, tx.Status)
		assert.True(t, tx.FineAmount.IsZero())
	})

	t.Run("inventory exhausted", func(t *testing.T) {
		w := doBorrow(h, "lib", user.RoleLibrarian, map[string]any{"bookId": "b01", "userId": "other"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVENTORY_EXHAUSTED", testutil.DecodeEnvelope(t, w).Error.Code)
	})

	t.Run("student for someone else", func(t *testing.T) {
		w := doBorrow(h, "stu", user.RoleStudent, map[string]any{"bookId": "b01", "userId": "other"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("staff must name the borrower", func(t *testing.T) {
		w := doBorrow(h, "lib", user.RoleLibrarian, map[string]any{"bookId": "b01"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := testutil.DecodeEnvelope(t, w)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
		require.Len(t, env.Error.Details, 1)
		assert.Equal(t, "userId", env.Error.Details[0].Field)
	})

	t.Run("missing bookId", func(t *testing.T) {
		w := doBorrow(h, "stu", user.RoleStudent, map[string]any{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", testutil.DecodeEnvelope(t, w).Error.Code)
	})

	t.Run("unknown book", func(t *testing.T) {
		w := doBorrow(h, "other", user.RoleStudent, map[string]any{"bookId": "nope"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		w := doBorrow(h, "lib", user.RoleLibrarian, map[string]any{"bookId": "b01", "userId": "ghost"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad due date", func(t *testing.T) {
		w := doBorrow(h, "other", user.RoleStudent, map[string]any{"bookId": "b01", "dueDate": "next week"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		w := doBorrow(h, "other", user.RoleStudent, `{"bookId":"b01","copies":2}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHTTPHandler_Borrow_Policy(t *testing.T) {
	h, f := newHandlerFixture(t, Options{Policy: Policy{MaxActiveLoans: 1, BlockOnOverdue: true}})
	seedBook(t, f.db, "b01", 5)

	require.Equal(t, http.StatusCreated, doBorrow(h, "stu", user.RoleStudent, map[string]any{"bookId": "b01"}).Code)
	w := doBorrow(h, "stu", user.RoleStudent, map[string]any{"bookId": "b01"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "LOAN_LIMIT_REACHED", testutil.DecodeEnvelope(t, w).Error.Code)

	f.clock.Advance(15 * 24 * time.Hour)
	w = doBorrow(h, "stu", user.RoleStudent, map[string]any{"bookId": "b01"})
	assert.Equal(t, "OVERDUE_LOANS", testutil.DecodeEnvelope(t, w).Error.Code)
}

func TestHTTPHandler_Update(t *testing.T) {
	h, f := newHandlerFixture(t, Options{})
	seedBook(t, f.db, "b01", 1)

	w := doBorrow(h, "stu", user.RoleStudent, map[string]any{"bookId": "b01"})
	require.Equal(t, http.StatusCreated, w.Code)
	var loan Transaction
	testutil.DecodeData(t, w, &loan)

	t.Run("unknown action", func(t *testing.T) {
		w := doAction(h, loan.ID, "stu", user.RoleStudent, map[string]any{"action": "lose"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_ACTION", testutil.DecodeEnvelope(t, w).Error.Code)
	})

	t.Run("other student cannot see it", func(t *testing.T) {
		w := doAction(h, loan.ID, "other", user.RoleStudent, map[string]any{"action": "renew"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("renew", func(t *testing.T) {
		w := doAction(h, loan.ID, "stu", user.RoleStudent, map[string]any{"action": "renew", "renewDays": 7})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var got Transaction
		testutil.DecodeData(t, w, &got)
		assert.True(t, got.DueDate.Equal(loan.DueDate.AddDate(0, 0, 7)))
	})

	t.Run("renew days out of range", func(t *testing.T) {
		w := doAction(h, loan.ID, "stu", user.RoleStudent, map[string]any{"action": "renew", "renewDays": 0})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("return late", func(t *testing.T) {
		returnDate := loan.DueDate.AddDate(0, 0, 7+3).Format(time.RFC3339)
		w := doAction(h, loan.ID, "stu", user.RoleStudent, map[string]any{"action": "return", "returnDate": returnDate})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), `"fineAmount":1.50`)
		var got Transaction
		testutil.DecodeData(t, w, &got)
		assert.Equal(t, StatusReturned, got.Status)
		assert.Equal(t, 1, getBook(t, f.db, "b01").AvailableCopies)
	})

	t.Run("second return", func(t *testing.T) {
		w := doAction(h, loan.ID, "stu", user.RoleStudent, map[string]any{"action": "return"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_ACTION", testutil.DecodeEnvelope(t, w).Error.Code)
		assert.Equal(t, 1, getBook(t, f.db, "b01").AvailableCopies)
	})

	t.Run("students cannot settle fines", func(t *testing.T) {
		w := doAction(h, loan.ID, "stu", user.RoleStudent, map[string]any{"action": "payFine"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("staff settles fine", func(t *testing.T) {
		w := doAction(h, loan.ID, "lib", user.RoleLibrarian, map[string]any{"action": "payFine"})
		require.Equal(t, http.StatusOK, w.Code)
		var got Transaction
		testutil.DecodeData(t, w, &got)
		assert.True(t, got.FinePaid)
		assert.NotNil(t, got.FinePaidDate)
	})

	t.Run("missing transaction", func(t *testing.T) {
		w := doAction(h, "missing", "lib", user.RoleLibrarian, map[string]any{"action": "return"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHTTPHandler_List(t *testing.T) {
	h, f := newHandlerFixture(t, Options{})
	seedBook(t, f.db, "b01", 3)
	for _, uid := range []string{"stu", "stu", "other"} {
		require.Equal(t, http.StatusCreated, doBorrow(h, "lib", user.RoleLibrarian, map[string]any{"bookId": "b01", "userId": uid}).Code)
	}
	f.clock.Advance(20 * 24 * time.Hour)

	list := func(path, as, role string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h.List(w, testutil.AsUser(httptest.NewRequest(http.MethodGet, path, nil), as, role))
		return w
	}

	t.Run("student sees own with derived status", func(t *testing.T) {
		w := list("/transactions", "stu", user.RoleStudent)
		require.Equal(t, http.StatusOK, w.Code)
		var txs []Transaction
		env := testutil.DecodeData(t, w, &txs)
		require.Len(t, txs, 2)
		for _, tx := range txs {
			assert.Equal(t, "stu", tx.UserID)
			assert.Equal(t, StatusOverdue, tx.Status)
		}
		assert.EqualValues(t, 2, env.Meta["total"])
	})

	t.Run("student asks for another user", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, list("/transactions?userId=other", "stu", user.RoleStudent).Code)
	})

	t.Run("staff needs userId or all", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, list("/transactions", "lib", user.RoleLibrarian).Code)

		w := list("/transactions?all=true&status=overdue", "lib", user.RoleLibrarian)
		require.Equal(t, http.StatusOK, w.Code)
		var txs []Transaction
		testutil.DecodeData(t, w, &txs)
		assert.Len(t, txs, 3)
	})

	t.Run("invalid status", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, list("/transactions?status=lost", "stu", user.RoleStudent).Code)
	})
}

func TestHTTPHandler_Reconcile(t *testing.T) {
	h, f := newHandlerFixture(t, Options{})
	seedBook(t, f.db, "b01", 1)
	require.Equal(t, http.StatusCreated, doBorrow(h, "stu", user.RoleStudent, map[string]any{"bookId": "b01"}).Code)
	f.clock.Advance(15 * 24 * time.Hour)

	for _, want := range []int64{1, 0} {
		w := httptest.NewRecorder()
		h.Reconcile(w, testutil.AsUser(httptest.NewRequest(http.MethodPost, "/transactions/reconcile", nil), "lib", user.RoleLibrarian))
		require.Equal(t, http.StatusOK, w.Code)
		var got map[string]int64
		testutil.DecodeData(t, w, &got)
		assert.Equal(t, want, got["updated"])
	}
}

func TestHTTPHandler_Get_DeadlineIsUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	repo := NewMockRepository(ctrl)
	h := NewHTTPHandler(NewService(repo, nil, nil, nil, func() time.Time { return t0 }, Options{}))
	repo.EXPECT().GetByID(gomock.Any(), "t1").Return(Transaction{}, context.DeadlineExceeded)

	w := httptest.NewRecorder()
	r := testutil.AsUser(httptest.NewRequest(http.MethodGet, "/transactions/t1", nil), "lib", user.RoleLibrarian)
	r.SetPathValue("id", "t1")
	h.Get(w, r)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", testutil.DecodeEnvelope(t, w).Error.Code)
}
