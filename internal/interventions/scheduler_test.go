package interventions

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/events"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newScheduler(opts Options) (*Scheduler, *clock) {
	c := &clock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	opts.Now = c.Now
	return New(opts), c
}

func iv(id string, typ events.InterventionType, mod events.Modality) events.Intervention {
	return events.Intervention{ID: id, Type: typ, Modality: mod, Message: "msg " + id}
}

func ids(entries []events.InterventionWithMeta) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func currentID(s *Scheduler) string {
	cur, ok := s.Current()
	if !ok {
		return ""
	}
	return cur.ID
}

func TestSilenceThenEscalation(t *testing.T) {
	s, _ := newScheduler(Options{})

	s.Push(iv("silence-1", events.InterventionSilence, events.ModalityVisual))
	assert.Equal(t, "silence-1", currentID(s))
	assert.True(t, s.OverlayVisible())

	s.Push(iv("esc-1", events.InterventionEscalation, events.ModalityVisual))
	assert.Equal(t, "silence-1", currentID(s), "escalation never interrupts the current entry")
	assert.Equal(t, []string{"esc-1"}, ids(s.Queue()))

	done, ok, _ := s.Acknowledge()
	require.True(t, ok)
	assert.Equal(t, "silence-1", done.ID)
	assert.True(t, done.Acknowledged)
	assert.Equal(t, "esc-1", currentID(s))
	assert.Empty(t, s.Queue())
}

func TestEscalationWinsNextPromotion(t *testing.T) {
	s, _ := newScheduler(Options{})
	s.Push(iv("ice", events.InterventionIcebreaker, events.ModalityVoice))
	s.Push(iv("bal", events.InterventionBalance, events.ModalityVoice))
	s.Push(iv("drift", events.InterventionGoalDrift, events.ModalityVoice))
	s.Push(iv("esc", events.InterventionEscalation, events.ModalityVoice))
	s.Push(iv("time", events.InterventionTimeWarning, events.ModalityVoice))

	assert.Equal(t, "ice", currentID(s))
	assert.Equal(t, []string{"esc", "bal", "time", "drift"}, ids(s.Queue()))

	s.Dismiss()
	assert.Equal(t, "esc", currentID(s))
}

func TestQueueSortedWithArrivalTies(t *testing.T) {
	s, _ := newScheduler(Options{})
	s.Push(iv("cur", events.InterventionSilence, events.ModalityVoice))
	s.Push(iv("low-1", events.InterventionIcebreaker, events.ModalityVoice))
	s.Push(iv("med-1", events.InterventionSilence, events.ModalityVoice))
	s.Push(iv("med-2", events.InterventionGoalDrift, events.ModalityVoice))
	s.Push(iv("high-1", events.InterventionBalance, events.ModalityVoice))
	s.Push(iv("med-3", events.InterventionSilence, events.ModalityVoice))
	s.Push(iv("low-2", events.InterventionIcebreaker, events.ModalityVoice))

	queue := s.Queue()
	assert.Equal(t, []string{"high-1", "med-1", "med-2", "med-3", "low-1", "low-2"}, ids(queue))
	for i := 1; i < len(queue); i++ {
		assert.LessOrEqual(t, queue[i-1].Priority, queue[i].Priority)
	}
}

func TestDuplicateIsNoop(t *testing.T) {
	s, _ := newScheduler(Options{})
	s.Push(iv("a", events.InterventionSilence, events.ModalityVoice))
	s.Push(iv("b", events.InterventionBalance, events.ModalityVoice))

	assert.Nil(t, s.Push(iv("a", events.InterventionSilence, events.ModalityVoice)))
	s.Push(iv("b", events.InterventionBalance, events.ModalityVoice))

	assert.Equal(t, "a", currentID(s))
	assert.Equal(t, []string{"b"}, ids(s.Queue()))
}

func TestQueueTruncatesLowestNewest(t *testing.T) {
	s, _ := newScheduler(Options{MaxQueue: 3})
	s.Push(iv("cur", events.InterventionIcebreaker, events.ModalityVoice))
	s.Push(iv("low-1", events.InterventionIcebreaker, events.ModalityVoice))
	s.Push(iv("med-1", events.InterventionSilence, events.ModalityVoice))
	s.Push(iv("low-2", events.InterventionIcebreaker, events.ModalityVoice))
	s.Push(iv("high-1", events.InterventionBalance, events.ModalityVoice))

	assert.Equal(t, []string{"high-1", "med-1", "low-1"}, ids(s.Queue()))
	assert.Equal(t, "cur", currentID(s), "current is never evicted")
}

func TestAutoDismiss(t *testing.T) {
	s, _ := newScheduler(Options{})
	cmd := s.Push(iv("sil", events.InterventionSilence, events.ModalityVisual))
	require.NotNil(t, cmd, "visual entries start a timer")
	assert.Equal(t, 8*time.Second, s.AutoDismissPending())

	s.Push(iv("bal", events.InterventionBalance, events.ModalityVisual))

	fired, ok := s.autoDismiss.Pending()
	require.True(t, ok)
	next := s.Update(fired)
	assert.NotNil(t, next, "promoted visual entry gets its own timer")
	assert.Equal(t, "bal", currentID(s))
	assert.Equal(t, 10*time.Second, s.AutoDismissPending())

	hist := s.History()
	require.Len(t, hist, 1)
	assert.Equal(t, "sil", hist[0].ID)
	assert.False(t, hist[0].Acknowledged)
}

func TestStaleAutoDismissIgnored(t *testing.T) {
	s, _ := newScheduler(Options{})
	s.Push(iv("sil", events.InterventionSilence, events.ModalityVisual))
	fired, _ := s.autoDismiss.Pending()
	s.Push(iv("bal", events.InterventionBalance, events.ModalityVoice))

	s.Acknowledge()
	assert.Equal(t, "bal", currentID(s))
	assert.Nil(t, s.Update(fired), "timer of a resolved entry must not dismiss its successor")
	assert.Equal(t, "bal", currentID(s))
}

func TestNoTimerForVoiceOrEscalation(t *testing.T) {
	s, _ := newScheduler(Options{})
	assert.Nil(t, s.Push(iv("voice", events.InterventionBalance, events.ModalityVoice)))
	assert.Zero(t, s.AutoDismissPending())
	s.Push(iv("esc", events.InterventionEscalation, events.ModalityVisual))

	_, _, cmd := s.Dismiss()
	assert.Nil(t, cmd)
	assert.Equal(t, "esc", currentID(s))
	assert.Zero(t, s.AutoDismissPending(), "escalation waits for an explicit resolution")
}

func TestResolveWithNothingCurrent(t *testing.T) {
	s, _ := newScheduler(Options{})
	_, ok, cmd := s.Acknowledge()
	assert.False(t, ok)
	assert.Nil(t, cmd)
	_, ok, _ = s.Dismiss()
	assert.False(t, ok)
	assert.False(t, s.OverlayVisible())
}

func TestHistoryBounded(t *testing.T) {
	s, _ := newScheduler(Options{HistorySize: 3})
	for i := 0; i < 5; i++ {
		s.Push(iv(fmt.Sprintf("iv-%d", i), events.InterventionSilence, events.ModalityVoice))
		s.Acknowledge()
	}
	assert.Equal(t, []string{"iv-2", "iv-3", "iv-4"}, ids(s.History()))
}

func TestClear(t *testing.T) {
	s, _ := newScheduler(Options{})
	s.Push(iv("a", events.InterventionSilence, events.ModalityVisual))
	s.Push(iv("b", events.InterventionBalance, events.ModalityVisual))
	fired, _ := s.autoDismiss.Pending()

	s.Clear()
	assert.False(t, s.OverlayVisible())
	assert.Empty(t, s.Queue())
	assert.Empty(t, s.History(), "clear writes no history")
	assert.Nil(t, s.Update(fired))
}

func TestSingleCurrentInvariant(t *testing.T) {
	s, _ := newScheduler(Options{MaxQueue: 4})
	types := []events.InterventionType{
		events.InterventionSilence, events.InterventionEscalation, events.InterventionIcebreaker,
		events.InterventionBalance, events.InterventionGoalDrift, events.InterventionTimeWarning,
	}
	for i := 0; i < 40; i++ {
		s.Push(iv(fmt.Sprintf("iv-%d", i%9), types[i%len(types)], events.ModalityVoice))
		if i%3 == 0 {
			s.Acknowledge()
		}
		if i%5 == 0 {
			s.Dismiss()
		}

		live := map[string]int{}
		if cur, ok := s.Current(); ok {
			live[cur.ID]++
		}
		for _, q := range s.Queue() {
			live[q.ID]++
		}
		for id, n := range live {
			assert.Equal(t, 1, n, "step %d: %s appears %d times", i, id, n)
		}
		assert.LessOrEqual(t, len(s.Queue()), 4)
	}
}

func TestCooldown(t *testing.T) {
	s, c := newScheduler(Options{})
	assert.False(t, s.InCooldown())

	s.Push(iv("a", events.InterventionSilence, events.ModalityVoice))
	assert.True(t, s.InCooldown())

	c.now = c.now.Add(29 * time.Second)
	assert.True(t, s.InCooldown())
	c.now = c.now.Add(time.Second)
	assert.False(t, s.InCooldown())

	s.Push(iv("b", events.InterventionBalance, events.ModalityVoice))
	assert.True(t, s.InCooldown(), "cooldown never blocks ingestion")
	assert.Equal(t, []string{"b"}, ids(s.Queue()))
}

func TestOnIntervention(t *testing.T) {
	s, _ := newScheduler(Options{})
	s.OnIntervention(iv("x", events.InterventionGoalDrift, events.ModalityVoice), time.Now())
	assert.Equal(t, "x", currentID(s))
}
