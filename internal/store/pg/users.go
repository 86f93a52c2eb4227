package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"slotlist.org/internal/auth"
)

// FindGateUser implements auth.GateStore.
func (s *Store) FindGateUser(ctx context.Context, userUID string) (auth.GateUser, error) {
	var (
		u            auth.GateUser
		communityUID sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select uid, community_uid
		from users
		where uid = $1
	`, userUID).Scan(&u.UID, &communityUID)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.GateUser{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.GateUser{}, err
	}
	if communityUID.Valid {
		u.CommunityUID = communityUID.String
	}
	return u, nil
}

// HasSubmittedApplication implements auth.GateStore. Only applications
// still in the submitted state count as pending.
func (s *Store) HasSubmittedApplication(ctx context.Context, userUID string) (bool, error) {
	var pending bool
	err := s.db.QueryRowContext(ctx, `
		select exists (
			select 1 from community_applications
			where user_uid = $1 and status = 'submitted'
		)
	`, userUID).Scan(&pending)
	if err != nil {
		return false, err
	}
	return pending, nil
}

// FindUser loads the full claim snapshot for a user, including the
// community embed when the user belongs to one.
func (s *Store) FindUser(ctx context.Context, userUID string) (auth.UserClaim, error) {
	var (
		u       auth.UserClaim
		cUID    sql.NullString
		cName   sql.NullString
		cTag    sql.NullString
		cSlug   sql.NullString
		steamID sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select u.uid, u.nickname, u.steam_id, u.active,
		       c.uid, c.name, c.tag, c.slug
		from users u
		left join communities c on c.uid = u.community_uid
		where u.uid = $1
	`, userUID).Scan(&u.UID, &u.Nickname, &steamID, &u.Active, &cUID, &cName, &cTag, &cSlug)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.UserClaim{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.UserClaim{}, err
	}
	if steamID.Valid {
		u.SteamID = steamID.String
	}
	if cUID.Valid {
		u.Community = &auth.CommunityClaim{
			UID:  cUID.String,
			Name: cName.String,
			Tag:  cTag.String,
			Slug: cSlug.String,
		}
	}
	return u, nil
}

// UserPermissions returns the user's permission strings in stable order.
// Per-mission creator permissions are derived from mission rows instead of
// being persisted, so they never leak into issued tokens.
func (s *Store) UserPermissions(ctx context.Context, userUID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select permission
		from permissions
		where user_uid = $1
		order by permission
	`, userUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

// GrantPermission records a permission string for a user. Granting an
// already-held permission is a conflict, matching the unique pair
// constraint.
func (s *Store) GrantPermission(ctx context.Context, userUID, permission string) error {
	permission = strings.ToLower(strings.TrimSpace(permission))
	if permission == "" {
		return auth.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
		insert into permissions (uid, user_uid, permission)
		values ($1, $2, $3)
	`, uuid.NewString(), userUID, permission)
	if pgErr, ok := maybePgError(err); ok {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return auth.ErrAlreadyExists
		case pgErrForeignKeyViolation:
			return auth.ErrNotFound
		}
	}
	return err
}

// RevokePermission removes a permission string from a user.
func (s *Store) RevokePermission(ctx context.Context, userUID, permission string) error {
	res, err := s.db.ExecContext(ctx, `
		delete from permissions
		where user_uid = $1 and permission = $2
	`, userUID, strings.ToLower(strings.TrimSpace(permission)))
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}
