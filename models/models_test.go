//go:build testing

package models

import (
	"reevdb/db"
	"reevdb/db/migrations"
	"reevdb/db/pgw"
	"reevdb/oops"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withMigratedSchema(t *testing.T, f func(tx *pgw.Tx)) {
	t.Helper()
	db.WithTestSchema(t, func(tx *pgw.Tx) {
		graph, err := migrations.NewGraph(migrations.All)
		require.NoError(t, err)
		runner := migrations.NewRunner(graph, migrations.AlembicVersionStore{})
		_, err = runner.Upgrade(tx, "head")
		oops.RequireNoError(t, err)
		f(tx)
	})
}

// expectFailure runs f in a savepoint so that the outer transaction survives the error.
func expectFailure(t *testing.T, tx *pgw.Tx, f func(tx *pgw.Tx) error) error {
	t.Helper()
	nestedTx, err := tx.Begin()
	require.NoError(t, err)
	err = f(nestedTx)
	require.Error(t, err)
	require.NoError(t, nestedTx.Rollback())
	return err
}

func createUser(t *testing.T, tx *pgw.Tx, email string) *User {
	t.Helper()
	user, err := User_Create(tx, email, "correct horse battery staple")
	require.NoError(t, err)
	return user
}

func TestUserCreateAuthenticate(t *testing.T) {
	withMigratedSchema(t, func(tx *pgw.Tx) {
		user := createUser(t, tx, " Alice@Example.com")
		assert.Equal(t, "alice@example.com", user.Email)
		assert.True(t, user.IsActive)

		authenticated, err := User_Authenticate(tx, "alice@example.com", "correct horse battery staple")
		require.NoError(t, err)
		assert.Equal(t, user.Id, authenticated.Id)

		_, err = User_Authenticate(tx, "alice@example.com", "wrong password")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		_, err = User_Authenticate(tx, "bob@example.com", "correct horse battery staple")
		assert.ErrorIs(t, err, ErrInvalidCredentials)

		err = expectFailure(t, tx, func(tx *pgw.Tx) error {
			_, err := User_Create(tx, "alice@example.com", "another password")
			return err
		})
		assert.ErrorIs(t, err, ErrUserAlreadyExists)
	})
}

func TestCommentUniquePerUserAndObject(t *testing.T) {
	withMigratedSchema(t, func(tx *pgw.Tx) {
		user := createUser(t, tx, "alice@example.com")
		_, err := Comment_Create(tx, user.Id, CommentObjTypeGene, "BRCA1", "first", true)
		require.NoError(t, err)

		err = expectFailure(t, tx, func(tx *pgw.Tx) error {
			_, err := Comment_Create(tx, user.Id, CommentObjTypeGene, "BRCA1", "second", false)
			return err
		})
		assert.ErrorIs(t, err, ErrCommentAlreadyExists)

		_, err = Comment_Create(tx, user.Id, CommentObjTypeSeqvar, "BRCA1", "different type", true)
		require.NoError(t, err)

		other := createUser(t, tx, "bob@example.com")
		_, err = Comment_Create(tx, other.Id, CommentObjTypeGene, "BRCA1", "other user", true)
		require.NoError(t, err)

		comments, err := Comment_ListByUser(tx, user.Id)
		require.NoError(t, err)
		assert.Len(t, comments, 2)
	})
}

func TestCommentUnknownUser(t *testing.T) {
	withMigratedSchema(t, func(tx *pgw.Tx) {
		err := expectFailure(t, tx, func(tx *pgw.Tx) error {
			_, err := Comment_Create(tx, uuid.New(), CommentObjTypeGene, "BRCA1", "orphan", true)
			return err
		})
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestCommentUpdateDelete(t *testing.T) {
	withMigratedSchema(t, func(tx *pgw.Tx) {
		user := createUser(t, tx, "alice@example.com")
		comment, err := Comment_Create(tx, user.Id, CommentObjTypeStrucvar, "DEL-1-100-200", "draft", false)
		require.NoError(t, err)

		found, err := Comment_FindById(tx, comment.Id)
		require.NoError(t, err)
		assert.Equal(t, *comment, *found)

		require.NoError(t, Comment_Update(tx, comment.Id, "final", true))
		found, err = Comment_FindById(tx, comment.Id)
		require.NoError(t, err)
		assert.Equal(t, "final", found.Comment)
		assert.True(t, found.Public)
		assert.False(t, found.Updated.Before(found.Created))

		require.NoError(t, Comment_Delete(tx, comment.Id))
		_, err = Comment_FindById(tx, comment.Id)
		assert.ErrorIs(t, err, ErrCommentNotFound)
		assert.ErrorIs(t, Comment_Delete(tx, comment.Id), ErrCommentNotFound)
		assert.ErrorIs(t, Comment_Update(tx, comment.Id, "x", true), ErrCommentNotFound)
	})
}

func TestCommentListPublicForObject(t *testing.T) {
	withMigratedSchema(t, func(tx *pgw.Tx) {
		alice := createUser(t, tx, "alice@example.com")
		bob := createUser(t, tx, "bob@example.com")
		_, err := Comment_Create(tx, alice.Id, CommentObjTypeGene, "TP53", "public", true)
		require.NoError(t, err)
		_, err = Comment_Create(tx, bob.Id, CommentObjTypeGene, "TP53", "private", false)
		require.NoError(t, err)

		anonymous, err := Comment_ListPublicForObject(tx, CommentObjTypeGene, "TP53", nil)
		require.NoError(t, err)
		require.Len(t, anonymous, 1)
		assert.Equal(t, alice.Id, anonymous[0].UserId)

		asBob, err := Comment_ListPublicForObject(tx, CommentObjTypeGene, "TP53", &bob.Id)
		require.NoError(t, err)
		assert.Len(t, asBob, 2)
	})
}

func TestUserDeleteCascadesToComments(t *testing.T) {
	withMigratedSchema(t, func(tx *pgw.Tx) {
		user := createUser(t, tx, "alice@example.com")
		comment, err := Comment_Create(tx, user.Id, CommentObjTypeGene, "BRCA2", "text", true)
		require.NoError(t, err)

		require.NoError(t, User_Delete(tx, user.Id))
		_, err = Comment_FindById(tx, comment.Id)
		assert.ErrorIs(t, err, ErrCommentNotFound)
		assert.ErrorIs(t, User_Delete(tx, user.Id), ErrUserNotFound)
	})
}

func TestAdminMessages(t *testing.T) {
	withMigratedSchema(t, func(tx *pgw.Tx) {
		now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
		text := "Scheduled maintenance"
		messageUuid := uuid.New()
		message, err := AdminMessage_Create(
			tx, messageUuid, "Maintenance", &text, now.Add(-time.Hour), now.Add(time.Hour), true,
		)
		require.NoError(t, err)
		assert.NotZero(t, message.Id)

		found, err := AdminMessage_FindByUuid(tx, messageUuid)
		require.NoError(t, err)
		assert.Equal(t, *message, *found)

		_, err = AdminMessage_Create(tx, uuid.New(), "Future", nil, now.Add(time.Hour), now.Add(2*time.Hour), true)
		require.NoError(t, err)

		active, err := AdminMessage_ListActive(tx, now)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, messageUuid, active[0].Uuid)

		require.NoError(t, AdminMessage_SetEnabled(tx, messageUuid, false))
		active, err = AdminMessage_ListActive(tx, now)
		require.NoError(t, err)
		assert.Empty(t, active)

		err = expectFailure(t, tx, func(tx *pgw.Tx) error {
			_, err := AdminMessage_Create(tx, messageUuid, "Duplicate", nil, now, now, true)
			return err
		})
		assert.ErrorIs(t, err, ErrAdminMessageAlreadyExists)

		_, err = AdminMessage_FindByUuid(tx, uuid.New())
		assert.ErrorIs(t, err, ErrAdminMessageNotFound)
		assert.ErrorIs(t, AdminMessage_SetEnabled(tx, uuid.New(), true), ErrAdminMessageNotFound)
	})
}
