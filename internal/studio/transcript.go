package studio

import (
	"sync"
	"time"
)

// Status of a transcript record.
type Status int

const (
	StatusDone Status = iota
	StatusPending
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFailed:
		return "failed"
	default:
		return "done"
	}
}

// Record is one rendered entry of the conversation. Pending records hold the
// current progress caption in Text until they are resolved or rejected.
type Record struct {
	ID         string
	Text       string
	VideoURL   string
	IsResponse bool
	Status     Status
	At         time.Time
}

// ActionKind enumerates transcript mutations.
type ActionKind int

const (
	ActAddUser ActionKind = iota
	ActAddPending
	ActProgress
	ActResolve
	ActReject
)

// Action is a single transcript mutation. Fields not relevant to Kind are
// ignored.
type Action struct {
	Kind     ActionKind
	ID       string
	Text     string
	VideoURL string
	At       time.Time
}

// Reduce applies a to records and returns the result. Records keep insertion
// order and are addressed by ID. Updates to unknown IDs, or to records that
// are no longer pending, leave records unchanged. The input slice is not
// modified.
func Reduce(records []Record, a Action) []Record {
	switch a.Kind {
	case ActAddUser:
		return append(clone(records), Record{ID: a.ID, Text: a.Text, Status: StatusDone, At: a.At})
	case ActAddPending:
		return append(clone(records), Record{ID: a.ID, Text: a.Text, IsResponse: true, Status: StatusPending, At: a.At})
	}

	i := indexOf(records, a.ID)
	if i < 0 || records[i].Status != StatusPending {
		return records
	}
	out := clone(records)
	r := &out[i]
	switch a.Kind {
	case ActProgress:
		r.Text = a.Text
	case ActResolve:
		r.Text, r.VideoURL, r.Status = a.Text, a.VideoURL, StatusDone
	case ActReject:
		r.Text, r.VideoURL, r.Status = a.Text, "", StatusFailed
	default:
		return records
	}
	if !a.At.IsZero() {
		r.At = a.At
	}
	return out
}

func indexOf(records []Record, id string) int {
	for i := range records {
		if records[i].ID == id {
			return i
		}
	}
	return -1
}

func clone(records []Record) []Record {
	out := make([]Record, len(records), len(records)+1)
	copy(out, records)
	return out
}

// Transcript is a concurrency-safe holder of records driven by Reduce.
type Transcript struct {
	mu      sync.RWMutex
	records []Record
	now     func() time.Time
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript { return &Transcript{now: time.Now} }

func (t *Transcript) dispatch(a Action) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if a.At.IsZero() && t.now != nil {
		a.At = t.now()
	}
	t.records = Reduce(t.records, a)
}

// AddUser appends the user's prompt.
func (t *Transcript) AddUser(id, text string) {
	t.dispatch(Action{Kind: ActAddUser, ID: id, Text: text})
}

// AddPending appends a placeholder reply showing caption.
func (t *Transcript) AddPending(id, caption string) {
	t.dispatch(Action{Kind: ActAddPending, ID: id, Text: caption})
}

// SetCaption updates the caption of a pending reply.
func (t *Transcript) SetCaption(id, caption string) {
	t.dispatch(Action{Kind: ActProgress, ID: id, Text: caption})
}

// Resolve turns the pending reply id into a successful one.
func (t *Transcript) Resolve(id, text, videoURL string) {
	t.dispatch(Action{Kind: ActResolve, ID: id, Text: text, VideoURL: videoURL})
}

// Reject turns the pending reply id into an error entry.
func (t *Transcript) Reject(id, msg string) {
	t.dispatch(Action{Kind: ActReject, ID: id, Text: msg})
}

// Records returns a snapshot of the transcript.
func (t *Transcript) Records() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

// Get returns the record with id.
func (t *Transcript) Get(id string) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i := indexOf(t.records, id); i >= 0 {
		return t.records[i], true
	}
	return Record{}, false
}

// Load replaces the transcript with records, e.g. history fetched from the
// server.
func (t *Transcript) Load(records []Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append([]Record(nil), records...)
}
