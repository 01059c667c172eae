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

type AdminMessageId int32

type AdminMessage struct {
	Id          AdminMessageId
	Uuid        uuid.UUID
	Title       string
	MaybeText   *string
	ActiveStart time.Time
	ActiveStop  time.Time
	Enabled     bool
}

// IsActiveAt mirrors the filter of AdminMessage_ListActive.
func (m *AdminMessage) IsActiveAt(now time.Time) bool {
	return m.Enabled && !now.Before(m.ActiveStart) && !now.After(m.ActiveStop)
}

const maxTitleLength = 255

var ErrTitleTooLong = errors.New("title is too long")
var ErrInvalidActiveWindow = errors.New("active window ends before it starts")
var ErrAdminMessageAlreadyExists = errors.New("admin message with this uuid already exists")
var ErrAdminMessageNotFound = errors.New("admin message not found")

func AdminMessage_Create(
	tx pgw.Queryable, messageUuid uuid.UUID, title string, maybeText *string, activeStart time.Time,
	activeStop time.Time, enabled bool,
) (*AdminMessage, error) {
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, ErrTitleTooLong
	}
	if activeStart.After(activeStop) {
		return nil, ErrInvalidActiveWindow
	}

	message := AdminMessage{
		Id:          0,
		Uuid:        messageUuid,
		Title:       title,
		MaybeText:   maybeText,
		ActiveStart: activeStart.UTC().Truncate(time.Microsecond),
		ActiveStop:  activeStop.UTC().Truncate(time.Microsecond),
		Enabled:     enabled,
	}
	row := tx.QueryRow(`
		insert into adminmessages (uuid, title, text, active_start, active_stop, enabled)
		values ($1, $2, $3, $4, $5, $6)
		returning id
	`, message.Uuid, message.Title, message.MaybeText, message.ActiveStart, message.ActiveStop,
		message.Enabled,
	)
	err := row.Scan(&message.Id)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation &&
		pgErr.ConstraintName == "ix_adminmessages_uuid" {
		return nil, ErrAdminMessageAlreadyExists
	} else if err != nil {
		return nil, err
	}

	return &message, nil
}

const adminMessageColumns = `id, uuid, title, text, active_start, active_stop, enabled`

func scanAdminMessage(row pgx.Row) (*AdminMessage, error) {
	var message AdminMessage
	err := row.Scan(
		&message.Id, &message.Uuid, &message.Title, &message.MaybeText, &message.ActiveStart,
		&message.ActiveStop, &message.Enabled,
	)
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func AdminMessage_FindByUuid(tx pgw.Queryable, messageUuid uuid.UUID) (*AdminMessage, error) {
	row := tx.QueryRow(`select `+adminMessageColumns+` from adminmessages where uuid = $1`, messageUuid)
	message, err := scanAdminMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAdminMessageNotFound
	} else if err != nil {
		return nil, err
	}
	return message, nil
}

// AdminMessage_ListActive returns enabled messages whose window contains now, both ends inclusive.
func AdminMessage_ListActive(tx pgw.Queryable, now time.Time) ([]AdminMessage, error) {
	rows, err := tx.Query(`
		select `+adminMessageColumns+` from adminmessages
		where enabled and active_start <= $1 and $1 <= active_stop
		order by active_start, id
	`, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []AdminMessage
	for rows.Next() {
		message, err := scanAdminMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *message)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

func AdminMessage_SetEnabled(tx pgw.Queryable, messageUuid uuid.UUID, enabled bool) error {
	tag, err := tx.Exec(`update adminmessages set enabled = $1 where uuid = $2`, enabled, messageUuid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAdminMessageNotFound
	}
	return nil
}
