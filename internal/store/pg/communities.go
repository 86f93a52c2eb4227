package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"slotlist.org/internal/community"
)

func (s *Store) GetCommunity(ctx context.Context, slug string) (community.Community, error) {
	var (
		c       community.Community
		website sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select uid, name, tag, slug, website, created_at, updated_at
		from communities
		where slug = $1
	`, slug).Scan(&c.UID, &c.Name, &c.Tag, &c.Slug, &website, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return community.Community{}, community.ErrNotFound
	}
	if err != nil {
		return community.Community{}, err
	}
	if website.Valid {
		c.Website = website.String
	}
	return c, nil
}

// ApplicationStatus returns the user's application to the named community,
// whatever state it is in.
func (s *Store) ApplicationStatus(ctx context.Context, userUID, communitySlug string) (community.Application, error) {
	var a community.Application
	err := s.db.QueryRowContext(ctx, `
		select a.uid, a.user_uid, a.community_uid, a.status, a.application_text, a.created_at, a.updated_at
		from community_applications a
		join communities c on c.uid = a.community_uid
		where a.user_uid = $1 and c.slug = $2
	`, userUID, communitySlug).Scan(&a.UID, &a.UserUID, &a.CommunityUID, &a.Status, &a.Text, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return community.Application{}, community.ErrNotFound
	}
	if err != nil {
		return community.Application{}, err
	}
	return a, nil
}

// Apply files a membership application. The unique (user, community) pair
// means a second application fails whatever happened to the first one; a
// denied applicant stays denied unless the row is removed out of band.
func (s *Store) Apply(ctx context.Context, userUID, communitySlug, text string) (community.Application, error) {
	c, err := s.GetCommunity(ctx, communitySlug)
	if err != nil {
		return community.Application{}, err
	}

	var memberOf sql.NullString
	err = s.db.QueryRowContext(ctx, `
		select community_uid from users where uid = $1
	`, userUID).Scan(&memberOf)
	if errors.Is(err, sql.ErrNoRows) {
		return community.Application{}, community.ErrNotFound
	}
	if err != nil {
		return community.Application{}, err
	}
	if memberOf.Valid {
		return community.Application{}, community.ErrAlreadyMember
	}

	a := community.Application{
		UID:          uuid.NewString(),
		UserUID:      userUID,
		CommunityUID: c.UID,
		Status:       community.StatusSubmitted,
		Text:         strings.TrimSpace(text),
	}
	err = s.db.QueryRowContext(ctx, `
		insert into community_applications (uid, user_uid, community_uid, status, application_text)
		values ($1, $2, $3, $4, $5)
		returning created_at, updated_at
	`, a.UID, a.UserUID, a.CommunityUID, a.Status, a.Text).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return community.Application{}, community.ErrAlreadyApplied
			case pgErrForeignKeyViolation:
				return community.Application{}, community.ErrNotFound
			}
		}
		return community.Application{}, err
	}
	return a, nil
}

// Process moves a submitted application to approved or denied. Approval
// also attaches the applicant to the community, in the same transaction
// as the status change.
func (s *Store) Process(ctx context.Context, communityUID, applicationUID string, approve bool) (community.Application, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return community.Application{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var a community.Application
	err = tx.QueryRowContext(ctx, `
		select uid, user_uid, community_uid, status, application_text, created_at
		from community_applications
		where uid = $1 and community_uid = $2
		for update
	`, applicationUID, communityUID).Scan(&a.UID, &a.UserUID, &a.CommunityUID, &a.Status, &a.Text, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return community.Application{}, community.ErrNotFound
	}
	if err != nil {
		return community.Application{}, err
	}
	if a.Status != community.StatusSubmitted {
		return community.Application{}, fmt.Errorf("%w: application already %s", community.ErrInvalidInput, a.Status)
	}

	status := community.StatusDenied
	if approve {
		status = community.StatusApproved
	}
	if err := tx.QueryRowContext(ctx, `
		update community_applications set status = $2, updated_at = now()
		where uid = $1
		returning updated_at
	`, a.UID, status).Scan(&a.UpdatedAt); err != nil {
		return community.Application{}, err
	}
	a.Status = status

	if approve {
		if _, err := tx.ExecContext(ctx, `
			update users set community_uid = $2, updated_at = now()
			where uid = $1
		`, a.UserUID, a.CommunityUID); err != nil {
			return community.Application{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return community.Application{}, err
	}
	return a, nil
}
