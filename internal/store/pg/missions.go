package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"slotlist.org/internal/mission"
)

const missionColumns = `m.uid, m.slug, m.title, m.visibility, m.creator_uid, m.community_uid, m.start_time, m.end_time`

// List returns missions the filter admits, newest start time first.
func (s *Store) List(ctx context.Context, f mission.Filter, opts mission.ListOptions) ([]mission.Mission, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	clause, args := f.Clause(1)
	argIndex := len(args) + 1
	query := fmt.Sprintf(`
		select %s
		from missions m
		where %s`, missionColumns, clause)
	if !opts.IncludeEnded {
		query += fmt.Sprintf(" and m.end_time > $%d", argIndex)
		args = append(args, time.Now().UTC())
		argIndex++
	}
	query += fmt.Sprintf(" order by m.start_time desc limit $%d offset $%d", argIndex, argIndex+1)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var missions []mission.Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		missions = append(missions, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return missions, nil
}

// GetBySlug loads one mission with its slot assignees preloaded so
// visibility checks run without further queries. Callers decide whether
// the requester may see the result.
func (s *Store) GetBySlug(ctx context.Context, slug string) (mission.Mission, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		select %s
		from missions m
		where m.slug = $1
	`, missionColumns), slug)
	m, err := scanMission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return mission.Mission{}, mission.ErrNotFound
	}
	if err != nil {
		return mission.Mission{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		select distinct s.assignee_uid
		from mission_slots s
		join mission_slot_groups g on g.uid = s.slot_group_uid
		where g.mission_uid = $1 and s.assignee_uid is not null
	`, m.UID)
	if err != nil {
		return mission.Mission{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return mission.Mission{}, err
		}
		m.AssigneeUIDs = append(m.AssigneeUIDs, uid)
	}
	if err := rows.Err(); err != nil {
		return mission.Mission{}, err
	}
	return m, nil
}

// SlotGroups loads a mission's slot groups and their slots, both in
// order-number order.
func (s *Store) SlotGroups(ctx context.Context, missionUID string) ([]mission.SlotGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		select uid, mission_uid, title, description, order_number
		from mission_slot_groups
		where mission_uid = $1
		order by order_number
	`, missionUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []mission.SlotGroup
	index := map[string]int{}
	for rows.Next() {
		var (
			g    mission.SlotGroup
			desc sql.NullString
		)
		if err := rows.Scan(&g.UID, &g.MissionUID, &g.Title, &desc, &g.OrderNumber); err != nil {
			return nil, err
		}
		if desc.Valid {
			g.Description = desc.String
		}
		index[g.UID] = len(groups)
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return groups, nil
	}

	slotRows, err := s.db.QueryContext(ctx, `
		select s.uid, s.slot_group_uid, s.title, s.description, s.detailed_description,
		       s.order_number, s.assignee_uid, s.blocked, s.reserve, s.auto_assignable
		from mission_slots s
		join mission_slot_groups g on g.uid = s.slot_group_uid
		where g.mission_uid = $1
		order by s.order_number
	`, missionUID)
	if err != nil {
		return nil, err
	}
	defer slotRows.Close()
	for slotRows.Next() {
		var (
			sl       mission.Slot
			desc     sql.NullString
			detailed sql.NullString
			assignee sql.NullString
		)
		if err := slotRows.Scan(&sl.UID, &sl.SlotGroupUID, &sl.Title, &desc, &detailed,
			&sl.OrderNumber, &assignee, &sl.Blocked, &sl.Reserve, &sl.AutoAssignable); err != nil {
			return nil, err
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
		if i, ok := index[sl.SlotGroupUID]; ok {
			groups[i].Slots = append(groups[i].Slots, sl)
		}
	}
	if err := slotRows.Err(); err != nil {
		return nil, err
	}
	return groups, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMission(row rowScanner) (mission.Mission, error) {
	var (
		m            mission.Mission
		communityUID sql.NullString
	)
	err := row.Scan(&m.UID, &m.Slug, &m.Title, &m.Visibility, &m.CreatorUID,
		&communityUID, &m.StartTime, &m.EndTime)
	if err != nil {
		return mission.Mission{}, err
	}
	if communityUID.Valid {
		m.CommunityUID = communityUID.String
	}
	return m, nil
}
