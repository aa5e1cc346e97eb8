package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// Metrics provides observability for meetings and vote tallies.
type Metrics struct {
	MeetingsCreated      prometheus.Counter
	VotesRecorded        *prometheus.CounterVec
	VoteRejected         *prometheus.CounterVec
	CreateMeetingSeconds prometheus.Histogram
	RecordVoteSeconds    prometheus.Histogram
}

// New registers the meeting metrics with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MeetingsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "sharereg_meetings_created_total",
			Help: "Total number of meetings created with a voting snapshot",
		}),
		VotesRecorded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sharereg_votes_recorded_total",
			Help: "Total number of votes recorded, by motion type and result",
		}, []string{"motion_type", "result"}),
		VoteRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sharereg_votes_rejected_total",
			Help: "Vote recording attempts rejected, by error code",
		}, []string{"code"}),
		CreateMeetingSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sharereg_create_meeting_duration_seconds",
			Help:    "Duration of meeting creation including snapshot evaluation",
			Buckets: durationBuckets,
		}),
		RecordVoteSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sharereg_record_vote_duration_seconds",
			Help:    "Duration of vote tally and motion close",
			Buckets: durationBuckets,
		}),
	}
}

func (m *Metrics) IncrementMeetingsCreated() {
	m.MeetingsCreated.Inc()
}

func (m *Metrics) IncrementVotesRecorded(motionType, result string) {
	m.VotesRecorded.WithLabelValues(motionType, result).Inc()
}

func (m *Metrics) IncrementVoteRejected(code string) {
	m.VoteRejected.WithLabelValues(code).Inc()
}

func (m *Metrics) ObserveCreateMeeting(start time.Time) {
	m.CreateMeetingSeconds.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveRecordVote(start time.Time) {
	m.RecordVoteSeconds.Observe(time.Since(start).Seconds())
}
