package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/preetsinghmakkar/workshops/internal/models"
	"github.com/preetsinghmakkar/workshops/internal/notifications"
	"github.com/rs/zerolog"
)

var testNow = time.Date(2026, time.October, 19, 17, 0, 0, 0, time.UTC)

func TestReminderJob_SendsEachKindOnce(t *testing.T) {
	store := newMemStore()
	clock := newFakeClock(testNow)
	sink := notifications.NewMemorySink(zerolog.Nop())
	a, b := uuid.New(), uuid.New()

	inAnHour := store.add(&models.Workshop{Title: "Pottery", ScheduledStart: testNow.Add(time.Hour + 20*time.Second)}, a, b)
	soon := store.add(&models.Workshop{Title: "Sketching", ScheduledStart: testNow.Add(15*time.Minute - 30*time.Second)}, a)
	store.add(&models.Workshop{Title: "Later", ScheduledStart: testNow.Add(3 * time.Hour)}, a, b)
	store.add(&models.Workshop{Title: "Started", ScheduledStart: testNow.Add(time.Hour), Status: models.WorkshopStatusLive}, a)

	job := NewReminderJob(store, sink, clock, time.Minute, zerolog.Nop())
	report, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Sent != 3 || report.Processed != 2 {
		t.Errorf("expected 3 sent over 2 workshops, got %+v", report)
	}

	keys := map[string]int{}
	for _, n := range sink.Sent() {
		if n.Kind != notifications.KindReminder {
			t.Errorf("unexpected kind %s", n.Kind)
		}
		keys[n.DedupKey]++
	}
	if keys[notifications.ReminderKey("1h", inAnHour.ID)] != 2 {
		t.Errorf("expected two 1h reminders for %s, got %v", inAnHour.ID, keys)
	}
	if keys[notifications.ReminderKey("15m", soon.ID)] != 1 {
		t.Errorf("expected one 15m reminder for %s, got %v", soon.ID, keys)
	}

	// A second tick inside the same band must not resend.
	clock.Advance(30 * time.Second)
	report, err = job.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.Sent != 0 {
		t.Errorf("second run resent %d reminders", report.Sent)
	}
	if n := len(sink.Sent()); n != 3 {
		t.Errorf("expected 3 notifications in total, got %d", n)
	}
}

func TestReminderJob_KindsAreIndependent(t *testing.T) {
	store := newMemStore()
	clock := newFakeClock(testNow)
	sink := notifications.NewMemorySink(zerolog.Nop())
	attendee := uuid.New()
	w := store.add(&models.Workshop{Title: "Choir", ScheduledStart: testNow.Add(time.Hour)}, attendee)

	job := NewReminderJob(store, sink, clock, time.Minute, zerolog.Nop())
	job.Run(context.Background())
	clock.Advance(45 * time.Minute)
	job.Run(context.Background())

	sent := sink.Sent()
	if len(sent) != 2 {
		t.Fatalf("expected a 1h and a 15m reminder, got %d", len(sent))
	}
	if sent[0].DedupKey != notifications.ReminderKey("1h", w.ID) || sent[1].DedupKey != notifications.ReminderKey("15m", w.ID) {
		t.Errorf("unexpected keys %q, %q", sent[0].DedupKey, sent[1].DedupKey)
	}
}

func TestReminderJob_IsolatesFailures(t *testing.T) {
	store := newMemStore()
	clock := newFakeClock(testNow)
	sink := notifications.NewMemorySink(zerolog.Nop())

	broken := store.add(&models.Workshop{Title: "Broken", ScheduledStart: testNow.Add(time.Hour)}, uuid.New())
	store.add(&models.Workshop{Title: "Fine", ScheduledStart: testNow.Add(time.Hour + time.Second)}, uuid.New())
	store.rsvpErr[broken.ID] = errors.New("connection reset")

	report, err := NewReminderJob(store, sink, clock, time.Minute, zerolog.Nop()).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Failed != 1 || report.Sent != 1 {
		t.Errorf("expected one failure and one send, got %+v", report)
	}
}

func TestReminderJob_LateTickLeavesNoGap(t *testing.T) {
	store := newMemStore()
	clock := newFakeClock(testNow)
	sink := notifications.NewMemorySink(zerolog.Nop())

	// Starts spread across both ticks' bands, including the instants just
	// past where half-interval bands would have met.
	var workshops []*models.Workshop
	offsets := []time.Duration{30*time.Second + 500*time.Millisecond, 60*time.Second + 500*time.Millisecond}
	for d := time.Duration(0); d < 120*time.Second; d += 2500 * time.Millisecond {
		offsets = append(offsets, d)
	}
	for _, d := range offsets {
		workshops = append(workshops, store.add(&models.Workshop{Title: "Ceramics", ScheduledStart: testNow.Add(time.Hour + d)}, uuid.New()))
	}

	interval := time.Minute
	job := NewReminderJob(store, sink, clock, ReminderTolerance(interval), zerolog.Nop())
	job.Run(context.Background())
	clock.Advance(interval + time.Second)
	job.Run(context.Background())

	keys := map[string]int{}
	for _, n := range sink.Sent() {
		keys[n.DedupKey]++
	}
	for i, w := range workshops {
		if n := keys[notifications.ReminderKey("1h", w.ID)]; n != 1 {
			t.Errorf("workshop starting at now+1h+%s got %d 1h reminders, want 1", offsets[i], n)
		}
	}
}
