package kb

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/signalsfoundry/schoolgrid/model"
)

func TestAddAndGetTransect(t *testing.T) {
	store := NewSurveyStore()
	for _, seq := range []int{2, 0, 1} {
		if err := store.AddTrackPoint(model.TrackPoint{Position: orb.Point{float64(seq), 0}, Seq: seq, TransectID: "T1"}); err != nil {
			t.Fatalf("AddTrackPoint error: %v", err)
		}
	}
	if err := store.AddSample(model.Sample{Position: orb.Point{1, 0}, Depth: 12, TransectID: "T1"}); err != nil {
		t.Fatalf("AddSample error: %v", err)
	}

	in, err := store.Transect("T1")
	if err != nil {
		t.Fatalf("Transect error: %v", err)
	}
	if in.ID != "T1" || len(in.Samples) != 1 || len(in.Track) != 3 {
		t.Fatalf("Transect returned %#v", in)
	}
	for i, tp := range in.Track {
		if tp.Seq != i {
			t.Fatalf("track not ordered by sequence: %v", in.Track)
		}
	}

	// Returned slices are copies.
	in.Samples[0].Depth = 99
	again, _ := store.Transect("T1")
	if again.Samples[0].Depth != 12 {
		t.Fatalf("store data was mutated through a returned copy")
	}
}

func TestTransectNotFound(t *testing.T) {
	store := NewSurveyStore()
	if _, err := store.Transect("missing"); !errors.Is(err, ErrTransectNotFound) {
		t.Fatalf("error = %v, want ErrTransectNotFound", err)
	}
}

func TestAddSampleValidation(t *testing.T) {
	store := NewSurveyStore()
	if err := store.AddSample(model.Sample{Depth: 10}); !errors.Is(err, ErrInvalidSample) {
		t.Fatalf("AddSample without transect error = %v, want ErrInvalidSample", err)
	}
	// Unusable depths are left for the processor to discard.
	for _, depth := range []float64{0, -3, math.NaN(), math.Inf(1)} {
		if err := store.AddSample(model.Sample{Depth: depth, TransectID: "T1"}); err != nil {
			t.Errorf("AddSample(depth %v) error = %v, want nil", depth, err)
		}
	}
	if _, samples, _ := store.Counts(); samples != 4 {
		t.Fatalf("stored samples = %d, want 4", samples)
	}
	if err := store.AddTrackPoint(model.TrackPoint{}); !errors.Is(err, ErrInvalidTrackPoint) {
		t.Fatalf("AddTrackPoint error = %v, want ErrInvalidTrackPoint", err)
	}
}

func TestTransectIDsAndCounts(t *testing.T) {
	store := NewSurveyStore()
	for _, id := range []string{"T3", "T1", "T2"} {
		_ = store.AddSample(model.Sample{Depth: 5, TransectID: id})
		_ = store.AddTrackPoint(model.TrackPoint{TransectID: id})
		_ = store.AddTrackPoint(model.TrackPoint{TransectID: id, Seq: 1})
	}
	if got := store.TransectIDs(); !slices.Equal(got, []string{"T1", "T2", "T3"}) {
		t.Fatalf("TransectIDs = %v", got)
	}
	tr, s, tp := store.Counts()
	if tr != 3 || s != 3 || tp != 6 {
		t.Fatalf("Counts = %d, %d, %d; want 3, 3, 6", tr, s, tp)
	}
}

func TestSubscribeFiresOncePerTransect(t *testing.T) {
	store := NewSurveyStore()
	var seen []string
	unsubscribe := store.Subscribe(func(e Event) {
		if e.Type == EventTransectAdded {
			seen = append(seen, e.TransectID)
		}
	})

	_ = store.AddSample(model.Sample{Depth: 5, TransectID: "T1"})
	_ = store.AddSample(model.Sample{Depth: 6, TransectID: "T1"})
	_ = store.AddTrackPoint(model.TrackPoint{TransectID: "T2"})
	unsubscribe()
	_ = store.AddSample(model.Sample{Depth: 6, TransectID: "T3"})

	if !slices.Equal(seen, []string{"T1", "T2"}) {
		t.Fatalf("events = %v, want [T1 T2]", seen)
	}
}

func TestUnsubscribeRemovesOnlyItsCallback(t *testing.T) {
	store := NewSurveyStore()
	var a, b, c int
	unsubA := store.Subscribe(func(Event) { a++ })
	unsubB := store.Subscribe(func(Event) { b++ })
	store.Subscribe(func(Event) { c++ })

	unsubA()
	unsubA()
	_ = store.AddSample(model.Sample{Depth: 5, TransectID: "T1"})
	if a != 0 || b != 1 || c != 1 {
		t.Fatalf("after removing first: calls = %d, %d, %d; want 0, 1, 1", a, b, c)
	}

	unsubB()
	_ = store.AddSample(model.Sample{Depth: 5, TransectID: "T2"})
	if a != 0 || b != 1 || c != 2 {
		t.Fatalf("after removing second: calls = %d, %d, %d; want 0, 1, 2", a, b, c)
	}
}

func TestConcurrentAccess(t *testing.T) {
	store := NewSurveyStore()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("T%d", i%3)
			_ = store.AddSample(model.Sample{Depth: float64(i + 1), TransectID: id})
			_ = store.AddTrackPoint(model.TrackPoint{Seq: i, TransectID: id})
		}()
		go func() {
			defer wg.Done()
			for _, id := range store.TransectIDs() {
				_, _ = store.Transect(id)
			}
		}()
	}
	wg.Wait()

	_, s, tp := store.Counts()
	if s != 10 || tp != 10 {
		t.Fatalf("Counts samples=%d track=%d, want 10 each", s, tp)
	}
}
