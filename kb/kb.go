package kb

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/signalsfoundry/schoolgrid/core"
	"github.com/signalsfoundry/schoolgrid/model"
)

var (
	// ErrTransectNotFound indicates no data was loaded for a transect.
	ErrTransectNotFound = errors.New("transect not found")
	// ErrInvalidSample indicates a sample failed validation on load.
	ErrInvalidSample = errors.New("invalid sample")
	// ErrInvalidTrackPoint indicates a track point failed validation on load.
	ErrInvalidTrackPoint = errors.New("invalid track point")
)

// EventType indicates what kind of change happened in the store.
type EventType int

const (
	// EventTransectAdded fires the first time data for a transect is loaded.
	EventTransectAdded EventType = iota
)

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type       EventType
	TransectID string
}

type subscriber struct {
	id int
	fn func(Event)
}

type transectData struct {
	samples []model.Sample
	track   []model.TrackPoint
}

// SurveyStore is an in-memory, thread-safe store for the samples and track
// points of one survey, grouped by transect. Loaders append to it; the
// pipeline reads immutable copies per transect.
type SurveyStore struct {
	mu sync.RWMutex

	transects map[string]*transectData

	subs      []subscriber
	nextSubID int
}

// NewSurveyStore constructs an empty store.
func NewSurveyStore() *SurveyStore {
	return &SurveyStore{
		transects: make(map[string]*transectData),
	}
}

// AddSample stores s under its transect. Samples with an unusable depth are
// kept; the processor discards them per transect.
func (st *SurveyStore) AddSample(s model.Sample) error {
	if s.TransectID == "" {
		return fmt.Errorf("%w: missing transect id", ErrInvalidSample)
	}
	st.add(s.TransectID, func(d *transectData) {
		d.samples = append(d.samples, s)
	})
	return nil
}

// AddTrackPoint stores tp under its transect.
func (st *SurveyStore) AddTrackPoint(tp model.TrackPoint) error {
	if tp.TransectID == "" {
		return fmt.Errorf("%w: missing transect id", ErrInvalidTrackPoint)
	}
	if math.IsNaN(tp.Position[0]) || math.IsNaN(tp.Position[1]) {
		return fmt.Errorf("%w: transect %q seq %d has no position", ErrInvalidTrackPoint, tp.TransectID, tp.Seq)
	}
	st.add(tp.TransectID, func(d *transectData) {
		d.track = append(d.track, tp)
	})
	return nil
}

func (st *SurveyStore) add(id string, fn func(*transectData)) {
	st.mu.Lock()
	d, ok := st.transects[id]
	if !ok {
		d = &transectData{}
		st.transects[id] = d
	}
	fn(d)
	var subs []subscriber
	if !ok {
		subs = slices.Clone(st.subs)
	}
	st.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, sub := range subs {
		sub.fn(Event{Type: EventTransectAdded, TransectID: id})
	}
}

// TransectIDs returns the loaded transect IDs in sorted order.
func (st *SurveyStore) TransectIDs() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()

	ids := make([]string, 0, len(st.transects))
	for id := range st.transects {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Transect returns a copy of everything loaded for id, with the track
// ordered by sequence index.
func (st *SurveyStore) Transect(id string) (core.TransectInput, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	d, ok := st.transects[id]
	if !ok {
		return core.TransectInput{}, fmt.Errorf("%w: %q", ErrTransectNotFound, id)
	}
	track := slices.Clone(d.track)
	slices.SortStableFunc(track, func(a, b model.TrackPoint) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return core.TransectInput{
		ID:      id,
		Samples: slices.Clone(d.samples),
		Track:   track,
	}, nil
}

// Counts returns the number of transects, samples and track points held.
func (st *SurveyStore) Counts() (transects, samples, trackPoints int) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	for _, d := range st.transects {
		samples += len(d.samples)
		trackPoints += len(d.track)
	}
	return len(st.transects), samples, trackPoints
}

// Subscribe registers a callback for store events. It returns an unsubscribe
// function; calling it more than once is a no-op.
func (st *SurveyStore) Subscribe(fn func(Event)) (unsubscribe func()) {
	st.mu.Lock()
	defer st.mu.Unlock()
	id := st.nextSubID
	st.nextSubID++
	st.subs = append(st.subs, subscriber{id: id, fn: fn})

	return func() {
		st.mu.Lock()
		defer st.mu.Unlock()
		st.subs = slices.DeleteFunc(st.subs, func(s subscriber) bool {
			return s.id == id
		})
	}
}
