package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the compliance module: creation counts,
// code-allocation retries, and critical path durations.
type Metrics struct {
	ActionsCreated      prometheus.Counter
	GroupsCreated       prometheus.Counter
	SubsidyRecorded     prometheus.Counter
	CodeConflictRetries prometheus.Counter

	CreateActionDuration prometheus.Histogram
	SaveGroupDuration    prometheus.Histogram
	RecordEntryDuration  prometheus.Histogram
}

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// New creates a Metrics instance with all compliance metrics registered.
func New() *Metrics {
	return &Metrics{
		ActionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bonifica_training_actions_created_total",
			Help: "Total number of training actions created",
		}),
		GroupsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bonifica_delivery_groups_created_total",
			Help: "Total number of delivery groups created",
		}),
		SubsidyRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bonifica_subsidy_entries_recorded_total",
			Help: "Total number of subsidy entries recorded",
		}),
		CodeConflictRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bonifica_group_code_conflict_retries_total",
			Help: "Times a group code allocation was retried after a storage conflict",
		}),
		CreateActionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bonifica_create_training_action_duration_seconds",
			Help:    "Duration of CreateTrainingAction operations",
			Buckets: durationBuckets,
		}),
		SaveGroupDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bonifica_save_group_duration_seconds",
			Help:    "Duration of group create/update operations",
			Buckets: durationBuckets,
		}),
		RecordEntryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bonifica_record_subsidy_entry_duration_seconds",
			Help:    "Duration of RecordSubsidyEntry operations",
			Buckets: durationBuckets,
		}),
	}
}

// ObserveCreateAction records the duration of a CreateTrainingAction call.
func (m *Metrics) ObserveCreateAction(start time.Time) {
	m.CreateActionDuration.Observe(time.Since(start).Seconds())
}

// ObserveSaveGroup records the duration of a group create/update call.
func (m *Metrics) ObserveSaveGroup(start time.Time) {
	m.SaveGroupDuration.Observe(time.Since(start).Seconds())
}

// ObserveRecordEntry records the duration of a RecordSubsidyEntry call.
func (m *Metrics) ObserveRecordEntry(start time.Time) {
	m.RecordEntryDuration.Observe(time.Since(start).Seconds())
}
