package storage

// RecordKind identifies which record type a change touched.
type RecordKind string

const (
	KindProfile      RecordKind = "profile"
	KindEvent        RecordKind = "event"
	KindNotification RecordKind = "notification"
)

// Change describes one committed write. RecipientID is set for notification
// changes so subscribers can route by inbox owner without a read-back.
type Change struct {
	Kind        RecordKind
	ID          string
	RecipientID string
}

// Watcher delivers committed changes to in-process subscribers. Callbacks
// run after the write is durable and must not block for long; delivery order
// follows commit order.
type Watcher interface {
	Watch(fn func(Change)) (cancel func())
}
