package database

import (
	"context"
	"encoding/json"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/Joshypeace/PharmaStore/internal/core"
)

func (s *Store) AppendHistory(ctx context.Context, e core.HistoryEntry) (core.HistoryEntry, error) {
	row, err := s.queryRow(ctx, psql.
		Insert("inventory_history").
		Columns("item_id", "user_id", "action", "old_value", "new_value", "batch_id").
		Values(e.ItemID, optionalID(e.UserID), string(e.Action),
			jsonValue(e.OldValue), jsonValue(e.NewValue), optionalText(e.BatchID)).
		Suffix("RETURNING id, created_at"))
	if err != nil {
		return core.HistoryEntry{}, err
	}
	if err := row.Scan(&e.ID, &e.CreatedAt); err != nil {
		return core.HistoryEntry{}, mapError(err)
	}
	return e, nil
}

// ItemHistory returns up to limit entries for itemID, newest first. Entries
// outlive the item they describe.
func (s *Store) ItemHistory(ctx context.Context, itemID int64, limit int) ([]core.HistoryEntry, error) {
	b := psql.
		Select("id", "item_id", "user_id", "action", "old_value", "new_value", "batch_id", "created_at").
		From("inventory_history").
		Where(squirrel.Eq{"item_id": itemID}).
		OrderBy("created_at DESC", "id DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}

	rows, err := s.query(ctx, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []core.HistoryEntry{}
	for rows.Next() {
		var (
			e          core.HistoryEntry
			userID     pgtype.Int8
			action     string
			oldV, newV []byte
			batchID    pgtype.Text
		)
		if err := rows.Scan(&e.ID, &e.ItemID, &userID, &action, &oldV, &newV, &batchID, &e.CreatedAt); err != nil {
			return nil, mapError(err)
		}
		e.UserID = userID.Int64
		e.Action = core.HistoryAction(action)
		e.OldValue = rawJSON(oldV)
		e.NewValue = rawJSON(newV)
		e.BatchID = batchID.String
		entries = append(entries, e)
	}
	return entries, mapError(rows.Err())
}

// jsonValue sends a snapshot as jsonb text; an empty snapshot is JSON null.
func jsonValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	return string(raw)
}

func rawJSON(b []byte) json.RawMessage {
	if len(b) == 0 {
		return json.RawMessage("null")
	}
	return json.RawMessage(b)
}
