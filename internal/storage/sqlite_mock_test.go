package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bepro/internal/model"
)

func mockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return newStore(db), mock
}

func TestSetInteractionRollsBackOnCounterFailure(t *testing.T) {
	s, mock := mockStore(t)
	boom := errors.New("disk full")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT 1 FROM posts WHERE id = \?`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery(`SELECT liked, disliked, bookmarked FROM interactions`).
		WithArgs("u1", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"liked", "disliked", "bookmarked"}))
	mock.ExpectExec(`INSERT INTO interactions`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE posts SET`).
		WillReturnError(boom)
	mock.ExpectRollback()

	_, err := s.SetInteraction(context.Background(), "u1", "p1", model.EventLike, true)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetInteractionUnchangedSkipsWrites(t *testing.T) {
	s, mock := mockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT 1 FROM posts`).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery(`SELECT liked, disliked, bookmarked FROM interactions`).
		WillReturnRows(sqlmock.NewRows([]string{"liked", "disliked", "bookmarked"}).AddRow(true, false, false))
	mock.ExpectCommit()

	in, err := s.SetInteraction(context.Background(), "u1", "p1", model.EventLike, true)
	require.NoError(t, err)
	assert.Equal(t, model.Interaction{Like: true}, in)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordViewMissingPostRollsBack(t *testing.T) {
	s, mock := mockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE posts SET views`).
		WithArgs("nope").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.RecordView(context.Background(), "u1", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetInteractionRejectsUnknownKind(t *testing.T) {
	s, mock := mockStore(t)
	_, err := s.SetInteraction(context.Background(), "u1", "p1", model.EventView, true)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "no statement runs for an unknown kind")
}
