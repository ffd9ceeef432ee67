package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/louisbranch/showcase/internal/services/showcase/outofband"
	"github.com/louisbranch/showcase/internal/services/showcase/storage"
)

const outOfBandColumns = `id, msg_type, msg, sender_id, recipient_id, sandbox_id, reply_to_id, created_at, updated_at`

// CreateOutOfBand inserts a message that is not an invitation response.
func (s *Store) CreateOutOfBand(ctx context.Context, msg outofband.Message) (outofband.Message, error) {
	if err := s.ready(ctx); err != nil {
		return outofband.Message{}, err
	}
	if msg.Type == outofband.TypeInvitationResponse {
		return outofband.Message{}, fmt.Errorf("invitation responses must use CreateInvitationResponse")
	}
	if err := s.insertOutOfBand(ctx, msg); err != nil {
		return outofband.Message{}, fmt.Errorf("create out-of-band message: %w", err)
	}
	return asStored(msg), nil
}

// CreateInvitationResponse inserts a response, relying on the unique index
// over reply_to_id to reject a second acceptance.
func (s *Store) CreateInvitationResponse(ctx context.Context, msg outofband.Message) (outofband.Message, error) {
	if err := s.ready(ctx); err != nil {
		return outofband.Message{}, err
	}
	if msg.Type != outofband.TypeInvitationResponse {
		return outofband.Message{}, fmt.Errorf("message type %q is not an invitation response", msg.Type)
	}
	if err := s.insertOutOfBand(ctx, msg); err != nil {
		if isUniqueViolation(err, "out_of_band.reply_to_id") {
			return outofband.Message{}, storage.ErrAlreadyAccepted
		}
		return outofband.Message{}, fmt.Errorf("create invitation response: %w", err)
	}
	return asStored(msg), nil
}

// asStored returns msg as a later read would see it. Nothing fallible runs
// after a committed insert.
func asStored(msg outofband.Message) outofband.Message {
	msg.CreatedAt = fromMillis(toMillis(msg.CreatedAt))
	msg.UpdatedAt = fromMillis(toMillis(msg.UpdatedAt))
	return msg
}

func (s *Store) insertOutOfBand(ctx context.Context, msg outofband.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	body, err := outofband.EncodePayload(msg.Payload)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO out_of_band (`+outOfBandColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID.String(),
		string(msg.Type),
		string(body),
		nullableID(msg.SenderID),
		nullableID(msg.RecipientID),
		nullableID(msg.SandboxID),
		nullableID(msg.ReplyToID),
		toMillis(msg.CreatedAt),
		toMillis(msg.UpdatedAt),
	)
	return err
}

// GetOutOfBand returns one message by id.
func (s *Store) GetOutOfBand(ctx context.Context, messageID uuid.UUID) (outofband.Message, error) {
	if err := s.ready(ctx); err != nil {
		return outofband.Message{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+outOfBandColumns+`
		 FROM out_of_band
		 WHERE id = ?`,
		messageID.String(),
	)
	msg, err := scanOutOfBand(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return outofband.Message{}, storage.ErrNotFound
		}
		return outofband.Message{}, fmt.Errorf("get out-of-band message: %w", err)
	}
	return msg, nil
}

// GetInvitationResponse returns the response recorded for invitationID.
func (s *Store) GetInvitationResponse(ctx context.Context, invitationID uuid.UUID) (outofband.Message, error) {
	if err := s.ready(ctx); err != nil {
		return outofband.Message{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+outOfBandColumns+`
		 FROM out_of_band
		 WHERE reply_to_id = ? AND msg_type = ?`,
		invitationID.String(),
		string(outofband.TypeInvitationResponse),
	)
	msg, err := scanOutOfBand(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return outofband.Message{}, storage.ErrNotFound
		}
		return outofband.Message{}, fmt.Errorf("get invitation response: %w", err)
	}
	return msg, nil
}

// ListOutOfBandForTenant returns the tenant's messages in creation order.
func (s *Store) ListOutOfBandForTenant(ctx context.Context, tenantID uuid.UUID) ([]outofband.Message, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+outOfBandColumns+`
		 FROM out_of_band
		 WHERE sender_id = ?1 OR recipient_id = ?1
		 ORDER BY created_at ASC, seq ASC`,
		tenantID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list out-of-band messages: %w", err)
	}
	defer rows.Close()

	messages := make([]outofband.Message, 0)
	for rows.Next() {
		msg, err := scanOutOfBand(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list out-of-band messages: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list out-of-band messages: %w", err)
	}
	return messages, nil
}

func scanOutOfBand(scan func(dest ...any) error) (outofband.Message, error) {
	var (
		id, msgType, body                           string
		senderID, recipientID, sandboxID, replyToID sql.NullString
		createdAt, updatedAt                        int64
	)
	if err := scan(&id, &msgType, &body, &senderID, &recipientID, &sandboxID, &replyToID, &createdAt, &updatedAt); err != nil {
		return outofband.Message{}, err
	}

	var (
		msg outofband.Message
		err error
	)
	if msg.ID, err = uuid.Parse(id); err != nil {
		return outofband.Message{}, fmt.Errorf("parse message id: %w", err)
	}
	msg.Type = outofband.ParseMsgType(msgType)
	if msg.Payload, err = outofband.DecodePayload(msg.Type, []byte(body)); err != nil {
		return outofband.Message{}, err
	}
	if msg.SenderID, err = parseNullableID(senderID); err != nil {
		return outofband.Message{}, fmt.Errorf("parse sender id: %w", err)
	}
	if msg.RecipientID, err = parseNullableID(recipientID); err != nil {
		return outofband.Message{}, fmt.Errorf("parse recipient id: %w", err)
	}
	if msg.SandboxID, err = parseNullableID(sandboxID); err != nil {
		return outofband.Message{}, fmt.Errorf("parse sandbox id: %w", err)
	}
	if msg.ReplyToID, err = parseNullableID(replyToID); err != nil {
		return outofband.Message{}, fmt.Errorf("parse reply-to id: %w", err)
	}
	msg.CreatedAt = fromMillis(createdAt)
	msg.UpdatedAt = fromMillis(updatedAt)
	return msg, nil
}
