package models

import (
	"errors"
	"reevdb/db/pgw"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type CommentObjType string

const (
	CommentObjTypeSeqvar   CommentObjType = "seqvar"
	CommentObjTypeStrucvar CommentObjType = "strucvar"
	CommentObjTypeGene     CommentObjType = "gene"
)

var CommentObjTypes = []CommentObjType{CommentObjTypeSeqvar, CommentObjTypeStrucvar, CommentObjTypeGene}

func ParseCommentObjType(s string) (CommentObjType, error) {
	for _, objType := range CommentObjTypes {
		if string(objType) == s {
			return objType, nil
		}
	}
	return "", ErrInvalidCommentObjType
}

type Comment struct {
	Id      uuid.UUID
	Created time.Time
	Updated time.Time
	UserId  uuid.UUID
	ObjType CommentObjType
	ObjId   string
	Comment string
	Public  bool
}

const maxObjIdLength = 255

var ErrInvalidCommentObjType = errors.New("invalid comment object type")
var ErrObjIdTooLong = errors.New("object id is too long")
var ErrCommentAlreadyExists = errors.New("user already commented on this object")
var ErrCommentNotFound = errors.New("comment not found")

func Comment_Create(
	tx pgw.Queryable, userId uuid.UUID, objType CommentObjType, objId string, text string, public bool,
) (*Comment, error) {
	if _, err := ParseCommentObjType(string(objType)); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(objId) > maxObjIdLength {
		return nil, ErrObjIdTooLong
	}

	utcNow := time.Now().UTC().Truncate(time.Microsecond)
	comment := Comment{
		Id:      uuid.New(),
		Created: utcNow,
		Updated: utcNow,
		UserId:  userId,
		ObjType: objType,
		ObjId:   objId,
		Comment: text,
		Public:  public,
	}
	_, err := tx.Exec(`
		insert into comments (id, created, updated, "user", obj_type, obj_id, comment, public)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
	`, comment.Id, comment.Created, comment.Updated, comment.UserId, string(comment.ObjType),
		comment.ObjId, comment.Comment, comment.Public,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation &&
		pgErr.ConstraintName == "uq_comment" {
		return nil, ErrCommentAlreadyExists
	} else if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
		return nil, ErrUserNotFound
	} else if err != nil {
		return nil, err
	}

	return &comment, nil
}

const commentColumns = `id, created, updated, "user", obj_type::text, obj_id, comment, public`

func scanComment(row pgx.Row) (*Comment, error) {
	var comment Comment
	var objType string
	err := row.Scan(
		&comment.Id, &comment.Created, &comment.Updated, &comment.UserId, &objType, &comment.ObjId,
		&comment.Comment, &comment.Public,
	)
	if err != nil {
		return nil, err
	}
	comment.ObjType = CommentObjType(objType)
	return &comment, nil
}

func Comment_FindById(tx pgw.Queryable, id uuid.UUID) (*Comment, error) {
	row := tx.QueryRow(`select `+commentColumns+` from comments where id = $1`, id)
	comment, err := scanComment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCommentNotFound
	} else if err != nil {
		return nil, err
	}
	return comment, nil
}

func comment_List(tx pgw.Queryable, query string, args ...any) ([]Comment, error) {
	rows, err := tx.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, *comment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return comments, nil
}

func Comment_ListByUser(tx pgw.Queryable, userId uuid.UUID) ([]Comment, error) {
	return comment_List(tx, `
		select `+commentColumns+` from comments
		where "user" = $1
		order by created, id
	`, userId)
}

// Comment_ListPublicForObject includes the private comments of maybeViewerId.
func Comment_ListPublicForObject(
	tx pgw.Queryable, objType CommentObjType, objId string, maybeViewerId *uuid.UUID,
) ([]Comment, error) {
	var viewerId any
	if maybeViewerId != nil {
		viewerId = *maybeViewerId
	}
	return comment_List(tx, `
		select `+commentColumns+` from comments
		where obj_type = $1 and obj_id = $2 and (public or "user" = $3)
		order by created, id
	`, string(objType), objId, viewerId)
}

func Comment_Update(tx pgw.Queryable, id uuid.UUID, text string, public bool) error {
	utcNow := time.Now().UTC().Truncate(time.Microsecond)
	tag, err := tx.Exec(`
		update comments set comment = $1, public = $2, updated = $3 where id = $4
	`, text, public, utcNow, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCommentNotFound
	}
	return nil
}

func Comment_Delete(tx pgw.Queryable, id uuid.UUID) error {
	tag, err := tx.Exec(`delete from comments where id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCommentNotFound
	}
	return nil
}
