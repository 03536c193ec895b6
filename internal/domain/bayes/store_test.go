package bayes

import "testing"

func TestMemoryStore_ApplyAndRemove(t *testing.T) {
	m := NewMemoryStore()
	m.Apply(NewDelta(true, []string{"buy", "buy", "now"}))
	m.Apply(NewDelta(false, []string{"now"}))

	buy, ok := m.Get("buy")
	if !ok || buy.PositiveOccurrences != 2 || buy.PositiveDocs != 1 {
		t.Errorf("buy = %+v, %v", buy, ok)
	}
	now, _ := m.Get("now")
	if now.Support() != 2 || now.NegativeOccurrences != 1 {
		t.Errorf("now = %+v", now)
	}
	if tot := m.Totals(); tot.Positive != 1 || tot.Negative != 1 {
		t.Errorf("totals = %+v", tot)
	}

	m.Remove()
	m.Remove("buy", "missing")
	if _, ok := m.Get("buy"); ok || m.Len() != 1 {
		t.Errorf("after remove: len=%d, buy present=%v", m.Len(), ok)
	}
	if tot := m.Totals(); tot.Docs() != 2 {
		t.Errorf("Remove must not touch totals, got %+v", tot)
	}
}

func TestMemoryStore_SnapshotIsDeepCopy(t *testing.T) {
	m := NewMemoryStore()
	m.Apply(NewDelta(true, []string{"a"}))

	snap := m.Snapshot()
	m.Apply(NewDelta(true, []string{"a", "b"}))

	if len(snap.Words) != 1 || snap.Words["a"].PositiveDocs != 1 || snap.Totals.Positive != 1 {
		t.Errorf("snapshot changed after Apply: %+v", snap)
	}

	restored := RestoreMemoryStore(snap)
	snap.Words["z"] = WordRecord{PositiveDocs: 9}
	if _, ok := restored.Get("z"); ok {
		t.Error("RestoreMemoryStore must copy the snapshot map")
	}
	if restored.Len() != 1 || restored.Totals() != (Totals{Positive: 1}) {
		t.Errorf("restored len=%d totals=%+v", restored.Len(), restored.Totals())
	}
}

func TestMemoryStore_RangeStops(t *testing.T) {
	m := NewMemoryStore()
	m.Apply(NewDelta(true, []string{"a", "b", "c"}))

	calls := 0
	m.Range(func(string, WordRecord) bool {
		calls++
		return false
	})
	if calls != 1 {
		t.Errorf("Range calls = %d, want 1", calls)
	}
}
