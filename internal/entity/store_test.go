package entity

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"
)

const bedLightJSON = `{
	"entity_id": "light.bed_light",
	"last_changed": "2016-11-26T01:37:24.265390+00:00",
	"last_updated": "2016-11-26T01:37:24.265390+00:00",
	"state": "on",
	"attributes": {
		"rgb_color": [254, 208, 0],
		"color_temp": 380,
		"supported_features": 147,
		"brightness": 180,
		"friendly_name": "Bed Light"
	}
}`

func testState(t *testing.T, value string, at time.Time) State {
	t.Helper()
	return NewState(value, Attributes{"friendly_name": "Bed Light"}, at, at)
}

func TestStore_GetUnknownReturnsNotFound(t *testing.T) {
	store := NewStore(5)
	store.Set(MustParseID("light.bed_light"), StoreEntry{})

	if _, ok := store.Get(MustParseID("light.bathroom_light")); ok {
		t.Error("Get() on unknown id returned ok = true")
	}
}

func TestStore_SetReplacesEntry(t *testing.T) {
	var first, second State
	if err := json.Unmarshal([]byte(bedLightJSON), &first); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	second = NewState("off", first.Attributes(), first.LastChanged.Add(time.Minute), first.LastUpdated.Add(time.Minute))

	id := MustParseID("light.bed_light")
	store := NewStore(5)
	store.Set(id, StoreEntry{Old: first, New: first})
	store.Set(id, StoreEntry{Old: second, New: second})

	got, ok := store.Get(id)
	if !ok {
		t.Fatal("Get() ok = false after Set")
	}
	if !got.New.Equal(second) {
		t.Errorf("New = %+v, want %+v", got.New, second)
	}
	if got.New.FriendlyName() != "Bed Light" {
		t.Errorf("FriendlyName() = %q, want %q", got.New.FriendlyName(), "Bed Light")
	}
	if b, ok := got.New.Float("brightness"); !ok || b != 180 {
		t.Errorf("brightness = %v (ok=%v), want 180", b, ok)
	}
}

func TestStore_ReadFromAnotherGoroutine(t *testing.T) {
	id := MustParseID("light.bed_light")
	now := time.Now().UTC()
	store := NewStore(5)
	store.Set(id, StoreEntry{Old: testState(t, "on", now), New: testState(t, "on", now)})
	updated := testState(t, "off", now.Add(time.Second))
	store.Set(id, StoreEntry{Old: updated, New: updated})

	done := make(chan State)
	go func() {
		entry, _ := store.Get(id)
		done <- entry.New
	}()

	if got := <-done; got.Value != "off" {
		t.Errorf("New.Value from goroutine = %q, want %q", got.Value, "off")
	}
}

func TestStore_ClearRemovesAll(t *testing.T) {
	store := NewStore(5)
	now := time.Now().UTC()
	for i := 0; i < 10; i++ {
		store.Record(NewID("sensor", fmt.Sprintf("s%d", i)), testState(t, "1", now))
	}

	store.Clear()

	if snap := store.Snapshot(); len(snap) != 0 {
		t.Errorf("Snapshot() after Clear() has %d records, want 0", len(snap))
	}
	if store.History(NewID("sensor", "s1")).Len() != 0 {
		t.Error("history survived Clear()")
	}
}

func TestStore_RecordShiftsNewToOld(t *testing.T) {
	id := MustParseID("switch.x")
	now := time.Now().UTC()
	store := NewStore(5)

	first, _ := store.Record(id, testState(t, "on", now))
	if first.Old.Value != "on" || first.New.Value != "on" {
		t.Errorf("first entry = %q -> %q, want on -> on", first.Old.Value, first.New.Value)
	}

	second, view := store.Record(id, testState(t, "off", now.Add(time.Second)))
	if second.Old.Value != "on" || second.New.Value != "off" {
		t.Errorf("second entry = %q -> %q, want on -> off", second.Old.Value, second.New.Value)
	}
	if prev, ok := view.At(1); !ok || prev.Value != "on" {
		t.Errorf("history At(1) = %q (ok=%v), want on", prev.Value, ok)
	}
}

func TestStore_SeedSetsOldEqualNew(t *testing.T) {
	id := MustParseID("cover.garage")
	store := NewStore(5)
	store.Seed(id, testState(t, "open", time.Now().UTC()))

	entry, ok := store.Get(id)
	if !ok {
		t.Fatal("Get() ok = false after Seed")
	}
	if !entry.Old.Equal(entry.New) {
		t.Error("seeded entry Old != New")
	}
	if entry.Changed() {
		t.Error("seeded entry reports Changed() = true")
	}
}

func TestStore_ConcurrentSetLastWriteWins(t *testing.T) {
	id := MustParseID("sensor.counter")
	store := NewStore(5)
	base := time.Now().UTC()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			st := testState(t, fmt.Sprint(n), base.Add(time.Duration(n)*time.Millisecond))
			store.Set(id, StoreEntry{Old: st, New: st})
		}(i)
	}
	wg.Wait()

	final := testState(t, "final", base.Add(time.Hour))
	store.Set(id, StoreEntry{Old: final, New: final})

	got, _ := store.Get(id)
	if !got.New.Equal(final) {
		t.Errorf("Get() after last Set = %q, want %q", got.New.Value, "final")
	}
}

func TestStore_ConcurrentReadersSeeWholeEntries(t *testing.T) {
	id := MustParseID("sensor.pair")
	store := NewStore(5)
	base := time.Now().UTC()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			st := testState(t, fmt.Sprint(i), base)
			// Old and New always carry the same value in this test.
			store.Set(id, StoreEntry{Old: st, New: st})
		}
	}()

	for iter := 0; iter < 1000; iter++ {
		if entry, ok := store.Get(id); ok && entry.Old.Value != entry.New.Value {
			t.Fatalf("torn entry observed: %q / %q", entry.Old.Value, entry.New.Value)
		}
	}
	close(stop)
	wg.Wait()
}

func TestStore_SnapshotOrdered(t *testing.T) {
	store := NewStore(5)
	now := time.Now().UTC()
	store.Record(MustParseID("switch.b"), testState(t, "on", now))
	store.Record(MustParseID("light.a"), testState(t, "on", now))

	snap := store.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Snapshot() len = %d, want 2", len(snap))
	}
	if snap[0].ID.String() != "light.a" {
		t.Errorf("Snapshot()[0] = %s, want light.a", snap[0].ID)
	}
}
