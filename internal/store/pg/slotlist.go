package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"slotlist.org/internal/mission"
)

// txOrderScope adapts one parent's ordered rows to mission.OrderScope
// inside an open transaction. Shifts run as a single bulk update so the
// whole renumbering is one atomic statement sequence.
type txOrderScope struct {
	tx           *sql.Tx
	table        string
	parentColumn string
	parentUID    string
}

func (o txOrderScope) Len(ctx context.Context) (int, error) {
	var n int
	query := fmt.Sprintf(`select count(*) from %s where %s = $1`, o.table, o.parentColumn)
	if err := o.tx.QueryRowContext(ctx, query, o.parentUID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (o txOrderScope) Shift(ctx context.Context, lo, hi, delta int) error {
	if lo > hi {
		return nil
	}
	query := fmt.Sprintf(`
		update %s set order_number = order_number + $2
		where %s = $1 and order_number between $3 and $4
	`, o.table, o.parentColumn)
	_, err := o.tx.ExecContext(ctx, query, o.parentUID, delta, lo, hi)
	return err
}

func (o txOrderScope) Place(ctx context.Context, itemUID string, order int) error {
	query := fmt.Sprintf(`
		update %s set order_number = $3
		where %s = $1 and uid = $2
	`, o.table, o.parentColumn)
	res, err := o.tx.ExecContext(ctx, query, o.parentUID, itemUID, order)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return mission.ErrNotFound
	}
	return nil
}

func slotGroupScope(tx *sql.Tx, missionUID string) txOrderScope {
	return txOrderScope{tx: tx, table: "mission_slot_groups", parentColumn: "mission_uid", parentUID: missionUID}
}

func slotScope(tx *sql.Tx, groupUID string) txOrderScope {
	return txOrderScope{tx: tx, table: "mission_slots", parentColumn: "slot_group_uid", parentUID: groupUID}
}

// lockParent takes a row lock on the scope's parent so concurrent
// renumberings of the same scope serialize instead of interleaving.
func lockParent(ctx context.Context, tx *sql.Tx, table, uid string) error {
	query := fmt.Sprintf(`select 1 from %s where uid = $1 for update`, table)
	var one int
	if err := tx.QueryRowContext(ctx, query, uid).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mission.ErrNotFound
		}
		return err
	}
	return nil
}

func placeNew(ctx context.Context, scope txOrderScope, atEnd bool, afterIndex int) (int, error) {
	if atEnd {
		return mission.Append(ctx, scope)
	}
	return mission.InsertAfter(ctx, scope, afterIndex)
}

func (s *Store) CreateSlotGroup(ctx context.Context, missionUID string, in mission.NewSlotGroup) (mission.SlotGroup, error) {
	if strings.TrimSpace(in.Title) == "" {
		return mission.SlotGroup{}, fmt.Errorf("%w: slot group title required", mission.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return mission.SlotGroup{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockParent(ctx, tx, "missions", missionUID); err != nil {
		return mission.SlotGroup{}, err
	}

	order, err := placeNew(ctx, slotGroupScope(tx, missionUID), in.Append, in.AfterIndex)
	if err != nil {
		return mission.SlotGroup{}, err
	}

	g := mission.SlotGroup{
		UID:         uuid.NewString(),
		MissionUID:  missionUID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		OrderNumber: order,
	}
	if _, err := tx.ExecContext(ctx, `
		insert into mission_slot_groups (uid, mission_uid, title, description, order_number)
		values ($1, $2, $3, $4, $5)
	`, g.UID, g.MissionUID, g.Title, nullIfEmpty(g.Description), g.OrderNumber); err != nil {
		return mission.SlotGroup{}, err
	}
	if err := tx.Commit(); err != nil {
		return mission.SlotGroup{}, err
	}
	return g, nil
}

func (s *Store) UpdateSlotGroup(ctx context.Context, missionUID, groupUID string, upd mission.SlotGroupUpdate) (mission.SlotGroup, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return mission.SlotGroup{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockParent(ctx, tx, "missions", missionUID); err != nil {
		return mission.SlotGroup{}, err
	}

	if upd.OrderNumber != nil {
		oldOrder, err := currentOrder(ctx, tx, "mission_slot_groups", "mission_uid", missionUID, groupUID)
		if err != nil {
			return mission.SlotGroup{}, err
		}
		if err := mission.Move(ctx, slotGroupScope(tx, missionUID), groupUID, oldOrder, *upd.OrderNumber); err != nil {
			return mission.SlotGroup{}, err
		}
	}

	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Title != nil {
		if strings.TrimSpace(*upd.Title) == "" {
			return mission.SlotGroup{}, fmt.Errorf("%w: slot group title required", mission.ErrInvalidInput)
		}
		sets = append(sets, fmt.Sprintf("title = $%d", idx))
		args = append(args, strings.TrimSpace(*upd.Title))
		idx++
	}
	if upd.Description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", idx))
		args = append(args, nullIfEmpty(*upd.Description))
		idx++
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update mission_slot_groups set %s where uid = $%d and mission_uid = $%d`,
			strings.Join(sets, ", "), idx, idx+1)
		args = append(args, groupUID, missionUID)
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return mission.SlotGroup{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return mission.SlotGroup{}, err
		}
		if aff == 0 {
			return mission.SlotGroup{}, mission.ErrNotFound
		}
	}

	g, err := slotGroupByUID(ctx, tx, missionUID, groupUID)
	if err != nil {
		return mission.SlotGroup{}, err
	}
	if err := tx.Commit(); err != nil {
		return mission.SlotGroup{}, err
	}
	return g, nil
}

func (s *Store) DeleteSlotGroup(ctx context.Context, missionUID, groupUID string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockParent(ctx, tx, "missions", missionUID); err != nil {
		return err
	}

	deletedOrder, err := currentOrder(ctx, tx, "mission_slot_groups", "mission_uid", missionUID, groupUID)
	if err != nil {
		return err
	}
	// Slots cascade with the group row.
	if _, err := tx.ExecContext(ctx, `
		delete from mission_slot_groups where uid = $1 and mission_uid = $2
	`, groupUID, missionUID); err != nil {
		return err
	}
	if err := mission.CloseGap(ctx, slotGroupScope(tx, missionUID), deletedOrder); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) CreateSlot(ctx context.Context, groupUID string, in mission.NewSlot) (mission.Slot, error) {
	if strings.TrimSpace(in.Title) == "" {
		return mission.Slot{}, fmt.Errorf("%w: slot title required", mission.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return mission.Slot{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockParent(ctx, tx, "mission_slot_groups", groupUID); err != nil {
		return mission.Slot{}, err
	}

	order, err := placeNew(ctx, slotScope(tx, groupUID), in.Append, in.AfterIndex)
	if err != nil {
		return mission.Slot{}, err
	}

	sl := mission.Slot{
		UID:                 uuid.NewString(),
		SlotGroupUID:        groupUID,
		Title:               strings.TrimSpace(in.Title),
		Description:         strings.TrimSpace(in.Description),
		DetailedDescription: strings.TrimSpace(in.DetailedDescription),
		OrderNumber:         order,
		Blocked:             in.Blocked,
		Reserve:             in.Reserve,
		AutoAssignable:      in.AutoAssignable,
	}
	if _, err := tx.ExecContext(ctx, `
		insert into mission_slots (uid, slot_group_uid, title, description, detailed_description,
		                           order_number, blocked, reserve, auto_assignable)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, sl.UID, sl.SlotGroupUID, sl.Title, nullIfEmpty(sl.Description), nullIfEmpty(sl.DetailedDescription),
		sl.OrderNumber, sl.Blocked, sl.Reserve, sl.AutoAssignable); err != nil {
		return mission.Slot{}, err
	}
	if err := tx.Commit(); err != nil {
		return mission.Slot{}, err
	}
	return sl, nil
}

func (s *Store) UpdateSlot(ctx context.Context, groupUID, slotUID string, upd mission.SlotUpdate) (mission.Slot, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return mission.Slot{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockParent(ctx, tx, "mission_slot_groups", groupUID); err != nil {
		return mission.Slot{}, err
	}

	if upd.OrderNumber != nil {
		oldOrder, err := currentOrder(ctx, tx, "mission_slots", "slot_group_uid", groupUID, slotUID)
		if err != nil {
			return mission.Slot{}, err
		}
		if err := mission.Move(ctx, slotScope(tx, groupUID), slotUID, oldOrder, *upd.OrderNumber); err != nil {
			return mission.Slot{}, err
		}
	}

	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Title != nil {
		if strings.TrimSpace(*upd.Title) == "" {
			return mission.Slot{}, fmt.Errorf("%w: slot title required", mission.ErrInvalidInput)
		}
		sets = append(sets, fmt.Sprintf("title = $%d", idx))
		args = append(args, strings.TrimSpace(*upd.Title))
		idx++
	}
	if upd.Description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", idx))
		args = append(args, nullIfEmpty(*upd.Description))
		idx++
	}
	if upd.DetailedDescription != nil {
		sets = append(sets, fmt.Sprintf("detailed_description = $%d", idx))
		args = append(args, nullIfEmpty(*upd.DetailedDescription))
		idx++
	}
	if upd.Blocked != nil {
		sets = append(sets, fmt.Sprintf("blocked = $%d", idx))
		args = append(args, *upd.Blocked)
		idx++
	}
	if upd.Reserve != nil {
		sets = append(sets, fmt.Sprintf("reserve = $%d", idx))
		args = append(args, *upd.Reserve)
		idx++
	}
	if upd.AutoAssignable != nil {
		sets = append(sets, fmt.Sprintf("auto_assignable = $%d", idx))
		args = append(args, *upd.AutoAssignable)
		idx++
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update mission_slots set %s where uid = $%d and slot_group_uid = $%d`,
			strings.Join(sets, ", "), idx, idx+1)
		args = append(args, slotUID, groupUID)
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return mission.Slot{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return mission.Slot{}, err
		}
		if aff == 0 {
			return mission.Slot{}, mission.ErrNotFound
		}
	}

	sl, err := slotByUID(ctx, tx, groupUID, slotUID)
	if err != nil {
		return mission.Slot{}, err
	}
	if err := tx.Commit(); err != nil {
		return mission.Slot{}, err
	}
	return sl, nil
}

func (s *Store) DeleteSlot(ctx context.Context, groupUID, slotUID string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockParent(ctx, tx, "mission_slot_groups", groupUID); err != nil {
		return err
	}

	deletedOrder, err := currentOrder(ctx, tx, "mission_slots", "slot_group_uid", groupUID, slotUID)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		delete from mission_slots where uid = $1 and slot_group_uid = $2
	`, slotUID, groupUID); err != nil {
		return err
	}
	if err := mission.CloseGap(ctx, slotScope(tx, groupUID), deletedOrder); err != nil {
		return err
	}
	return tx.Commit()
}

// AssignSlot seats a user in a slot. Blocked slots never take assignees.
func (s *Store) AssignSlot(ctx context.Context, slotUID, userUID string) error {
	res, err := s.db.ExecContext(ctx, `
		update mission_slots set assignee_uid = $2, updated_at = now()
		where uid = $1 and not blocked and assignee_uid is null
	`, slotUID, userUID)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return mission.ErrNotFound
		}
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx, `
			select exists (select 1 from mission_slots where uid = $1)
		`, slotUID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return mission.ErrNotFound
		}
		return fmt.Errorf("%w: slot is blocked or already assigned", mission.ErrAlreadyExists)
	}
	return nil
}

func (s *Store) UnassignSlot(ctx context.Context, slotUID string) error {
	res, err := s.db.ExecContext(ctx, `
		update mission_slots set assignee_uid = null, updated_at = now()
		where uid = $1
	`, slotUID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return mission.ErrNotFound
	}
	return nil
}

func slotGroupByUID(ctx context.Context, tx *sql.Tx, missionUID, groupUID string) (mission.SlotGroup, error) {
	var (
		g    mission.SlotGroup
		desc sql.NullString
	)
	err := tx.QueryRowContext(ctx, `
		select uid, mission_uid, title, description, order_number
		from mission_slot_groups
		where uid = $1 and mission_uid = $2
	`, groupUID, missionUID).Scan(&g.UID, &g.MissionUID, &g.Title, &desc, &g.OrderNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return mission.SlotGroup{}, mission.ErrNotFound
	}
	if err != nil {
		return mission.SlotGroup{}, err
	}
	if desc.Valid {
		g.Description = desc.String
	}
	return g, nil
}

func slotByUID(ctx context.Context, tx *sql.Tx, groupUID, slotUID string) (mission.Slot, error) {
	var (
		sl       mission.Slot
		desc     sql.NullString
		detailed sql.NullString
		assignee sql.NullString
	)
	err := tx.QueryRowContext(ctx, `
		select uid, slot_group_uid, title, description, detailed_description,
		       order_number, assignee_uid, blocked, reserve, auto_assignable
		from mission_slots
		where uid = $1 and slot_group_uid = $2
	`, slotUID, groupUID).Scan(&sl.UID, &sl.SlotGroupUID, &sl.Title, &desc, &detailed,
		&sl.OrderNumber, &assignee, &sl.Blocked, &sl.Reserve, &sl.AutoAssignable)
	if errors.Is(err, sql.ErrNoRows) {
		return mission.Slot{}, mission.ErrNotFound
	}
	if err != nil {
		return mission.Slot{}, err
	}
	if desc.Valid {
		sl.Description = desc.String
	}
	if detailed.Valid {
		sl.DetailedDescription = detailed.String
	}
	if assignee.Valid {
		sl.AssigneeUID = assignee.String
	}
	return sl, nil
}

func currentOrder(ctx context.Context, tx *sql.Tx, table, parentColumn, parentUID, itemUID string) (int, error) {
	var order int
	query := fmt.Sprintf(`select order_number from %s where uid = $1 and %s = $2`, table, parentColumn)
	err := tx.QueryRowContext(ctx, query, itemUID, parentUID).Scan(&order)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, mission.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return order, nil
}
