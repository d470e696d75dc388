package compound

import (
	"encoding/json"
	"testing"
)

func snapshotJSON(t *testing.T, tasksCompleted, knowledgeEntries, creditsTotal int) json.RawMessage {
	t.Helper()
	payload := map[string]interface{}{
		"workers": []map[string]string{
			{"handle": "w1", "state": "running", "health": "healthy"},
			{"handle": "w2", "state": "stopped", "health": "unhealthy"},
		},
		"swarms":             []map[string]string{{"id": "s1", "name": "alpha"}},
		"tasksCompleted":     tasksCompleted,
		"knowledgeEntries":   knowledgeEntries,
		"creditsTotal":       creditsTotal,
		"blackboardMessages": 4,
		"pheromoneTrails":    2,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func TestPushSnapshotDerivesActiveAndHealthyWorkers(t *testing.T) {
	tick := int64(0)
	a := NewWithClock(func() int64 { tick++; return tick })

	if err := a.PushSnapshot(snapshotJSON(t, 1, 1, 1)); err != nil {
		t.Fatalf("push: %v", err)
	}
	series := a.GetTimeSeries()
	if len(series) != 1 {
		t.Fatalf("point count = %d, want 1", len(series))
	}
	p := series[0]
	if p.ActiveWorkers != 1 {
		t.Fatalf("active workers = %d, want 1 (w2 is stopped)", p.ActiveWorkers)
	}
	if p.HealthyWorkers != 1 {
		t.Fatalf("healthy workers = %d, want 1", p.HealthyWorkers)
	}
	if p.TotalSwarms != 1 {
		t.Fatalf("total swarms = %d, want 1", p.TotalSwarms)
	}
}

func TestPushSnapshotAcceptsSnakeCaseFieldNames(t *testing.T) {
	a := New()
	payload := map[string]interface{}{
		"workers": []map[string]string{
			{"handle": "w1", "state": "running", "health": "healthy"},
		},
		"swarms":              []map[string]string{{"id": "s1", "name": "alpha"}},
		"tasks_completed":     7,
		"knowledge_entries":   2,
		"credits_total":       3,
		"blackboard_messages": 1,
		"pheromone_trails":    5,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := a.PushSnapshot(raw); err != nil {
		t.Fatalf("push: %v", err)
	}

	p := a.GetTimeSeries()[0]
	if p.TasksCompleted != 7 {
		t.Fatalf("tasksCompleted = %d, want 7", p.TasksCompleted)
	}
	if p.KnowledgeEntries != 2 {
		t.Fatalf("knowledgeEntries = %d, want 2", p.KnowledgeEntries)
	}
	if p.CreditsEarned != 3 {
		t.Fatalf("creditsEarned = %d, want 3", p.CreditsEarned)
	}
	if p.BlackboardMessages != 1 {
		t.Fatalf("blackboardMessages = %d, want 1", p.BlackboardMessages)
	}
	if p.PheromoneTrails != 5 {
		t.Fatalf("pheromoneTrails = %d, want 5", p.PheromoneTrails)
	}
}

func TestPushSnapshotMalformedJSONErrors(t *testing.T) {
	a := New()
	if err := a.PushSnapshot(json.RawMessage(`not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestRingBufferEvictionAtCapacity(t *testing.T) {
	tick := int64(0)
	a := NewWithClock(func() int64 { tick++; return tick })

	for i := 0; i < Capacity+10; i++ {
		if err := a.PushSnapshot(snapshotJSON(t, i, 0, 0)); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	if a.GetPointCount() != Capacity {
		t.Fatalf("point count = %d, want %d", a.GetPointCount(), Capacity)
	}
	series := a.GetTimeSeries()
	if series[0].TasksCompleted != 10 {
		t.Fatalf("oldest surviving point tasksCompleted = %d, want 10", series[0].TasksCompleted)
	}
}

func TestGetCompoundRateInsufficientPointsIsZero(t *testing.T) {
	a := New()
	if err := a.PushSnapshot(snapshotJSON(t, 5, 0, 0)); err != nil {
		t.Fatalf("push: %v", err)
	}
	if rate := a.GetCompoundRate(); rate != 0 {
		t.Fatalf("rate with 1 point = %v, want 0", rate)
	}
}

func TestGetCompoundRateLinearTrend(t *testing.T) {
	tick := int64(0)
	a := NewWithClock(func() int64 { tick++; return tick })

	for i := 0; i < 5; i++ {
		if err := a.PushSnapshot(snapshotJSON(t, i*2, 0, 0)); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	// slope per sample = 2, scaled *12 => 24/min.
	rate := a.GetCompoundRate()
	if rate != 24 {
		t.Fatalf("compound rate = %v, want 24", rate)
	}
}

func TestGetKnowledgeAndCreditsVelocity(t *testing.T) {
	tick := int64(0)
	a := NewWithClock(func() int64 { tick++; return tick })

	for i := 0; i < 3; i++ {
		if err := a.PushSnapshot(snapshotJSON(t, 0, i*3, i)); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	if v := a.GetKnowledgeVelocity(); v != 36 {
		t.Fatalf("knowledge velocity = %v, want 36", v)
	}
	if v := a.GetCreditsVelocity(); v != 12 {
		t.Fatalf("credits velocity = %v, want 12", v)
	}
}

func TestGetCompoundRateOnlyUsesTrailingWindow(t *testing.T) {
	tick := int64(0)
	a := NewWithClock(func() int64 { tick++; return tick })

	// Flat run of velocityWindow points followed by a rising trend; the
	// rate should reflect only the trailing window, not the flat prefix.
	for i := 0; i < velocityWindow; i++ {
		if err := a.PushSnapshot(snapshotJSON(t, 100, 0, 0)); err != nil {
			t.Fatalf("flat push %d: %v", i, err)
		}
	}
	for i := 0; i < velocityWindow; i++ {
		if err := a.PushSnapshot(snapshotJSON(t, 100+i, 0, 0)); err != nil {
			t.Fatalf("trend push %d: %v", i, err)
		}
	}
	if rate := a.GetCompoundRate(); rate <= 0 {
		t.Fatalf("rate = %v, want positive (trailing window shows a rise)", rate)
	}
}
