package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	meetingmodels "sharereg/internal/meeting/models"
	"sharereg/internal/voting"
	id "sharereg/pkg/domain"
)

const meetingSelect = `
	SELECT m.id, m.tenant_id, m.title, m.scheduled_at, m.created_at, m.updated_at,
	       s.active_voting_shares, s.excluded_shares, s.majority_threshold,
	       s.breakdown, s.rules_json, s.created_at AS snapshot_created_at
	FROM meetings m
	JOIN meeting_snapshots s ON s.meeting_id = m.id`

type meetingRow struct {
	meetingmodels.Meeting
	ActiveVotingShares int64     `db:"active_voting_shares"`
	ExcludedShares     int64     `db:"excluded_shares"`
	MajorityThreshold  int64     `db:"majority_threshold"`
	Breakdown          []byte    `db:"breakdown"`
	RulesJSON          []byte    `db:"rules_json"`
	SnapshotCreatedAt  time.Time `db:"snapshot_created_at"`
}

func (r *meetingRow) toModel() (*meetingmodels.Meeting, error) {
	m := r.Meeting
	m.Snapshot = meetingmodels.MeetingSnapshot{
		ActiveVotingShares: r.ActiveVotingShares,
		ExcludedShares:     r.ExcludedShares,
		MajorityThreshold:  r.MajorityThreshold,
		CreatedAt:          r.SnapshotCreatedAt,
	}
	if err := json.Unmarshal(r.Breakdown, &m.Snapshot.Breakdown); err != nil {
		return nil, fmt.Errorf("decode snapshot breakdown: %w", err)
	}
	var rules voting.Rules
	if err := json.Unmarshal(r.RulesJSON, &rules); err != nil {
		return nil, fmt.Errorf("decode snapshot rules: %w", err)
	}
	m.Snapshot.Rules = rules
	return &m, nil
}

// CreateMeeting inserts the meeting and its snapshot. Callers run it inside
// a transaction so neither row is visible without the other.
func (s *Store) CreateMeeting(ctx context.Context, m *meetingmodels.Meeting) error {
	breakdown, err := json.Marshal(m.Snapshot.Breakdown)
	if err != nil {
		return fmt.Errorf("encode snapshot breakdown: %w", err)
	}
	rules, err := json.Marshal(m.Snapshot.Rules)
	if err != nil {
		return fmt.Errorf("encode snapshot rules: %w", err)
	}
	_, err = s.q(ctx).ExecContext(ctx, `
		INSERT INTO meetings (id, tenant_id, title, scheduled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.TenantID, m.Title, m.ScheduledAt, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return writeErr(err, "insert meeting")
	}
	_, err = s.q(ctx).ExecContext(ctx, `
		INSERT INTO meeting_snapshots (meeting_id, active_voting_shares, excluded_shares, majority_threshold, breakdown, rules_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.Snapshot.ActiveVotingShares, m.Snapshot.ExcludedShares, m.Snapshot.MajorityThreshold,
		breakdown, rules, m.Snapshot.CreatedAt)
	return writeErr(err, "insert meeting snapshot")
}

func (s *Store) UpdateMeeting(ctx context.Context, m *meetingmodels.Meeting) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE meetings SET title = $3, scheduled_at = $4, updated_at = $5
		WHERE id = $1 AND tenant_id = $2`,
		m.ID, m.TenantID, m.Title, m.ScheduledAt, m.UpdatedAt)
	return affected(res, err, "update meeting")
}

// DeleteMeeting relies on foreign keys to remove the snapshot, attendance,
// motions, votes and bound proxies and to detach transfers.
func (s *Store) DeleteMeeting(ctx context.Context, tenantID id.TenantID, meetingID id.MeetingID) error {
	res, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM meetings WHERE id = $1 AND tenant_id = $2`, meetingID, tenantID)
	return affected(res, err, "delete meeting")
}

func (s *Store) FindMeeting(ctx context.Context, tenantID id.TenantID, meetingID id.MeetingID) (*meetingmodels.Meeting, error) {
	var row meetingRow
	err := sqlx.GetContext(ctx, s.q(ctx), &row, meetingSelect+` WHERE m.id = $1 AND m.tenant_id = $2`, meetingID, tenantID)
	if err != nil {
		return nil, readErr(err, "find meeting")
	}
	return row.toModel()
}

func (s *Store) ListMeetings(ctx context.Context, tenantID id.TenantID) ([]*meetingmodels.Meeting, error) {
	var rows []meetingRow
	err := sqlx.SelectContext(ctx, s.q(ctx), &rows, meetingSelect+` WHERE m.tenant_id = $1 ORDER BY m.scheduled_at DESC, m.id`, tenantID)
	if err != nil {
		return nil, readErr(err, "list meetings")
	}
	out := make([]*meetingmodels.Meeting, 0, len(rows))
	for i := range rows {
		m, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) UpsertAttendance(ctx context.Context, tenantID id.TenantID, a *meetingmodels.Attendance) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO attendance (meeting_id, shareholder_id, tenant_id, present, updated_at)
		SELECT m.id, $2, m.tenant_id, $4, $5
		FROM meetings m
		WHERE m.id = $1 AND m.tenant_id = $3
		ON CONFLICT (meeting_id, shareholder_id) DO UPDATE SET
			present = EXCLUDED.present,
			updated_at = EXCLUDED.updated_at`,
		a.MeetingID, a.ShareholderID, tenantID, a.Present, a.UpdatedAt)
	return affected(res, err, "upsert attendance")
}

func (s *Store) ListAttendance(ctx context.Context, tenantID id.TenantID, meetingID id.MeetingID) ([]*meetingmodels.Attendance, error) {
	var rows []*meetingmodels.Attendance
	err := sqlx.SelectContext(ctx, s.q(ctx), &rows, `
		SELECT meeting_id, shareholder_id, present, updated_at
		FROM attendance
		WHERE tenant_id = $1 AND meeting_id = $2
		ORDER BY created_at, shareholder_id`, tenantID, meetingID)
	if err != nil {
		return nil, readErr(err, "list attendance")
	}
	return rows, nil
}

const motionColumns = `id, tenant_id, meeting_id, type, title, text, office_title, candidates, is_closed, created_at, updated_at`

type motionRow struct {
	meetingmodels.Motion
	Candidates pq.StringArray `db:"candidates"`
}

func (r *motionRow) toModel() *meetingmodels.Motion {
	m := r.Motion
	m.Candidates = []string(r.Candidates)
	return &m
}

// candidateArray never encodes NULL; the column is NOT NULL.
func candidateArray(candidates []string) pq.StringArray {
	if candidates == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(candidates)
}

func (s *Store) CreateMotion(ctx context.Context, m *meetingmodels.Motion) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO motions (`+motionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		m.ID, m.TenantID, m.MeetingID, m.Type, m.Title, m.Text, m.OfficeTitle,
		candidateArray(m.Candidates), m.IsClosed, m.CreatedAt, m.UpdatedAt)
	return writeErr(err, "insert motion")
}

func (s *Store) UpdateMotion(ctx context.Context, m *meetingmodels.Motion) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE motions
		SET title = $3, text = $4, office_title = $5, candidates = $6, is_closed = $7, updated_at = $8
		WHERE id = $1 AND tenant_id = $2`,
		m.ID, m.TenantID, m.Title, m.Text, m.OfficeTitle, candidateArray(m.Candidates), m.IsClosed, m.UpdatedAt)
	return affected(res, err, "update motion")
}

func (s *Store) FindMotion(ctx context.Context, tenantID id.TenantID, motionID id.MotionID) (*meetingmodels.Motion, error) {
	return s.getMotion(ctx, `SELECT `+motionColumns+` FROM motions WHERE id = $1 AND tenant_id = $2`, motionID, tenantID)
}

// LockMotion reads FOR UPDATE so concurrent votes on one motion serialize
// and only the first finds it open.
func (s *Store) LockMotion(ctx context.Context, tenantID id.TenantID, motionID id.MotionID) (*meetingmodels.Motion, error) {
	return s.getMotion(ctx, `SELECT `+motionColumns+` FROM motions WHERE id = $1 AND tenant_id = $2 FOR UPDATE`, motionID, tenantID)
}

func (s *Store) getMotion(ctx context.Context, query string, args ...any) (*meetingmodels.Motion, error) {
	var row motionRow
	if err := sqlx.GetContext(ctx, s.q(ctx), &row, query, args...); err != nil {
		return nil, readErr(err, "find motion")
	}
	return row.toModel(), nil
}

func (s *Store) ListMotions(ctx context.Context, tenantID id.TenantID, meetingID id.MeetingID) ([]*meetingmodels.Motion, error) {
	var rows []motionRow
	err := sqlx.SelectContext(ctx, s.q(ctx), &rows, `
		SELECT `+motionColumns+` FROM motions
		WHERE tenant_id = $1 AND meeting_id = $2
		ORDER BY created_at, id`, tenantID, meetingID)
	if err != nil {
		return nil, readErr(err, "list motions")
	}
	out := make([]*meetingmodels.Motion, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
	}
	return out, nil
}

func (s *Store) CountOpenMotions(ctx context.Context, tenantID id.TenantID) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, s.q(ctx), &n,
		`SELECT COUNT(*) FROM motions WHERE tenant_id = $1 AND NOT is_closed`, tenantID)
	if err != nil {
		return 0, readErr(err, "count open motions")
	}
	return n, nil
}

const voteColumns = `id, tenant_id, motion_id, yes_shares, no_shares, abstain_shares, result, details, recorded_by, created_at`

type voteRow struct {
	meetingmodels.Vote
	Details []byte `db:"details"`
}

func (s *Store) CreateVote(ctx context.Context, v *meetingmodels.Vote) error {
	details, err := json.Marshal(v.Details)
	if err != nil {
		return fmt.Errorf("encode vote details: %w", err)
	}
	res, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO votes (`+voteColumns+`)
		SELECT $1, $2, m.id, $4, $5, $6, $7, $8, $9, $10
		FROM motions m
		WHERE m.id = $3 AND m.tenant_id = $2`,
		v.ID, v.TenantID, v.MotionID, v.YesShares, v.NoShares, v.AbstainShares,
		v.Result, details, v.RecordedBy, v.CreatedAt)
	return affected(res, err, "insert vote")
}

func (s *Store) ListVotes(ctx context.Context, tenantID id.TenantID, motionID id.MotionID) ([]*meetingmodels.Vote, error) {
	var rows []voteRow
	err := sqlx.SelectContext(ctx, s.q(ctx), &rows, `
		SELECT `+voteColumns+` FROM votes
		WHERE tenant_id = $1 AND motion_id = $2
		ORDER BY created_at, id`, tenantID, motionID)
	if err != nil {
		return nil, readErr(err, "list votes")
	}
	out := make([]*meetingmodels.Vote, len(rows))
	for i := range rows {
		v := rows[i].Vote
		if len(rows[i].Details) > 0 {
			if err := json.Unmarshal(rows[i].Details, &v.Details); err != nil {
				return nil, fmt.Errorf("decode vote details: %w", err)
			}
		}
		out[i] = &v
	}
	return out, nil
}
