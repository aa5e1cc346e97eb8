package memory

import (
	"context"
	"sort"

	meetingmodels "sharereg/internal/meeting/models"
	id "sharereg/pkg/domain"
	"sharereg/pkg/platform/sentinel"
)

func copyMotion(m meetingmodels.Motion) meetingmodels.Motion {
	m.Candidates = append([]string(nil), m.Candidates...)
	return m
}

func copyVote(v meetingmodels.Vote) meetingmodels.Vote {
	v.Details.Totals = append([]meetingmodels.CandidateTotal(nil), v.Details.Totals...)
	v.Details.Winners = append([]string(nil), v.Details.Winners...)
	v.Details.Ballots = append([]meetingmodels.ResolvedBallot(nil), v.Details.Ballots...)
	return v
}

func (s *Store) CreateMeeting(ctx context.Context, m *meetingmodels.Meeting) error {
	defer s.lock(ctx)()
	if _, ok := s.t.meetings[m.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.t.meetings[m.ID] = rec[meetingmodels.Meeting]{v: *m, seq: s.next()}
	return nil
}

// UpdateMeeting writes title and date only. The stored snapshot is kept.
func (s *Store) UpdateMeeting(ctx context.Context, m *meetingmodels.Meeting) error {
	defer s.lock(ctx)()
	r, ok := s.t.meetings[m.ID]
	if !ok || r.v.TenantID != m.TenantID {
		return sentinel.ErrNotFound
	}
	r.v.Title = m.Title
	r.v.ScheduledAt = m.ScheduledAt
	r.v.UpdatedAt = m.UpdatedAt
	s.t.meetings[m.ID] = r
	return nil
}

// DeleteMeeting removes the meeting with its attendance, motions, votes and
// meeting-bound proxies. Transfers referencing it lose the reference.
func (s *Store) DeleteMeeting(ctx context.Context, tenantID id.TenantID, meetingID id.MeetingID) error {
	defer s.lock(ctx)()
	r, ok := s.t.meetings[meetingID]
	if !ok || r.v.TenantID != tenantID {
		return sentinel.ErrNotFound
	}
	delete(s.t.meetings, meetingID)
	for key := range s.t.attendance {
		if key.meetingID == meetingID {
			delete(s.t.attendance, key)
		}
	}
	for motionID, motion := range s.t.motions {
		if motion.v.MeetingID != meetingID {
			continue
		}
		for voteID, vote := range s.t.votes {
			if vote.v.MotionID == motionID {
				delete(s.t.votes, voteID)
			}
		}
		delete(s.t.motions, motionID)
	}
	for proxyID, p := range s.t.proxies {
		if p.v.MeetingID != nil && *p.v.MeetingID == meetingID {
			delete(s.t.proxies, proxyID)
		}
	}
	for transferID, t := range s.t.transfers {
		if t.v.MeetingID != nil && *t.v.MeetingID == meetingID {
			t.v.MeetingID = nil
			s.t.transfers[transferID] = t
		}
	}
	return nil
}

func (s *Store) FindMeeting(ctx context.Context, tenantID id.TenantID, meetingID id.MeetingID) (*meetingmodels.Meeting, error) {
	defer s.lock(ctx)()
	r, ok := s.t.meetings[meetingID]
	if !ok || r.v.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	m := r.v
	return &m, nil
}

// ListMeetings orders by scheduled time, latest first.
func (s *Store) ListMeetings(ctx context.Context, tenantID id.TenantID) ([]*meetingmodels.Meeting, error) {
	defer s.lock(ctx)()
	rows := sorted(s.t.meetings, func(m *meetingmodels.Meeting) bool { return m.TenantID == tenantID })
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].ScheduledAt.After(rows[j].ScheduledAt) })
	return pointers(rows), nil
}

func (s *Store) UpsertAttendance(ctx context.Context, tenantID id.TenantID, a *meetingmodels.Attendance) error {
	defer s.lock(ctx)()
	m, ok := s.t.meetings[a.MeetingID]
	if !ok || m.v.TenantID != tenantID {
		return sentinel.ErrNotFound
	}
	key := attendanceKey{meetingID: a.MeetingID, shareholderID: a.ShareholderID}
	r, exists := s.t.attendance[key]
	if !exists {
		r.seq = s.next()
	}
	r.v = attendanceRow{tenantID: tenantID, row: *a}
	s.t.attendance[key] = r
	return nil
}

func (s *Store) ListAttendance(ctx context.Context, tenantID id.TenantID, meetingID id.MeetingID) ([]*meetingmodels.Attendance, error) {
	defer s.lock(ctx)()
	rows := sorted(s.t.attendance, func(a *attendanceRow) bool {
		return a.tenantID == tenantID && a.row.MeetingID == meetingID
	})
	out := make([]*meetingmodels.Attendance, len(rows))
	for i := range rows {
		out[i] = &rows[i].row
	}
	return out, nil
}

func (s *Store) CreateMotion(ctx context.Context, m *meetingmodels.Motion) error {
	defer s.lock(ctx)()
	if _, ok := s.t.motions[m.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.t.motions[m.ID] = rec[meetingmodels.Motion]{v: copyMotion(*m), seq: s.next()}
	return nil
}

func (s *Store) UpdateMotion(ctx context.Context, m *meetingmodels.Motion) error {
	defer s.lock(ctx)()
	r, ok := s.t.motions[m.ID]
	if !ok || r.v.TenantID != m.TenantID {
		return sentinel.ErrNotFound
	}
	r.v = copyMotion(*m)
	s.t.motions[m.ID] = r
	return nil
}

func (s *Store) FindMotion(ctx context.Context, tenantID id.TenantID, motionID id.MotionID) (*meetingmodels.Motion, error) {
	defer s.lock(ctx)()
	r, ok := s.t.motions[motionID]
	if !ok || r.v.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	m := copyMotion(r.v)
	return &m, nil
}

func (s *Store) LockMotion(ctx context.Context, tenantID id.TenantID, motionID id.MotionID) (*meetingmodels.Motion, error) {
	return s.FindMotion(ctx, tenantID, motionID)
}

func (s *Store) ListMotions(ctx context.Context, tenantID id.TenantID, meetingID id.MeetingID) ([]*meetingmodels.Motion, error) {
	defer s.lock(ctx)()
	rows := sorted(s.t.motions, func(m *meetingmodels.Motion) bool {
		return m.TenantID == tenantID && m.MeetingID == meetingID
	})
	out := make([]*meetingmodels.Motion, len(rows))
	for i := range rows {
		m := copyMotion(rows[i])
		out[i] = &m
	}
	return out, nil
}

func (s *Store) CountOpenMotions(ctx context.Context, tenantID id.TenantID) (int, error) {
	defer s.lock(ctx)()
	n := 0
	for _, r := range s.t.motions {
		if r.v.TenantID == tenantID && !r.v.IsClosed {
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateVote(ctx context.Context, v *meetingmodels.Vote) error {
	defer s.lock(ctx)()
	if _, ok := s.t.votes[v.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	if m, ok := s.t.motions[v.MotionID]; !ok || m.v.TenantID != v.TenantID {
		return sentinel.ErrNotFound
	}
	s.t.votes[v.ID] = rec[meetingmodels.Vote]{v: copyVote(*v), seq: s.next()}
	return nil
}

// ListVotes returns a motion's votes, oldest first.
func (s *Store) ListVotes(ctx context.Context, tenantID id.TenantID, motionID id.MotionID) ([]*meetingmodels.Vote, error) {
	defer s.lock(ctx)()
	rows := sorted(s.t.votes, func(v *meetingmodels.Vote) bool {
		return v.TenantID == tenantID && v.MotionID == motionID
	})
	out := make([]*meetingmodels.Vote, len(rows))
	for i := range rows {
		v := copyVote(rows[i])
		out[i] = &v
	}
	return out, nil
}
