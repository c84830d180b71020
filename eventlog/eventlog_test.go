package eventlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reedkernel/narrator/domain"
)

func sampleEvent(tick domain.Tick, id domain.CharacterID) domain.Event {
	return domain.Event{
		Tick:        tick,
		CharacterID: id,
		Attempts: []domain.Attempt{
			{
				Intent:  domain.Intent{Action: "move", Author: id, Attempt: 1},
				Verdict: domain.Verdict{Status: domain.Approved},
			},
		},
		Outcome: domain.Outcome{
			Verdict: domain.Verdict{Status: domain.Approved},
			Result:  map[string]any{"moved_to": "clearing"},
		},
		SeedLabels: []string{"tick:1:char:" + string(id) + ":attempt:1"},
		TokenUsage: domain.TokenUsage{Prompt: 10, Completion: 5, Total: 15},
	}
}

func TestFileSink_AppendWritesOneLinePerEvent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")

	sink, err := NewFileSink(path)
	require.NoError(t, err)

	require.NoError(t, sink.Append(sampleEvent(1, "alice")))
	require.NoError(t, sink.Append(sampleEvent(1, "bob")))
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 2)

	var rec record
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	require.Equal(t, domain.CharacterID("alice"), rec.CharacterID)
	require.Equal(t, 15, rec.TokenUsage.Total)
}

func TestFileSink_AppendResumesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")

	sink1, err := NewFileSink(path)
	require.NoError(t, err)
	_ = sink1.Append(sampleEvent(1, "alice"))
	_ = sink1.Close()

	sink2, err := NewFileSink(path)
	require.NoError(t, err, "reopen")
	_ = sink2.Append(sampleEvent(2, "alice"))
	_ = sink2.Close()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	scanner := bufio.NewScanner(f)
	count := 0
	for scanner.Scan() {
		count++
	}
	require.Equal(t, 2, count, "reopen must not truncate")
}

func TestMemorySink_AppendOrder(t *testing.T) {
	sink := NewMemorySink()
	_ = sink.Append(sampleEvent(1, "alice"))
	_ = sink.Append(sampleEvent(1, "bob"))

	events := sink.Events()
	require.Len(t, events, 2)
	require.Equal(t, domain.CharacterID("alice"), events[0].CharacterID)
	require.Equal(t, domain.CharacterID("bob"), events[1].CharacterID)
}

func TestEvent_ValidateAborted(t *testing.T) {
	event := domain.Event{
		Tick:        1,
		CharacterID: "alice",
		Attempts: []domain.Attempt{
			{Intent: domain.Intent{Action: "move"}, Verdict: domain.Verdict{Status: domain.Rejected, Reason: "timeout"}},
		},
		Aborted: true,
	}
	require.NoError(t, event.Validate(), "aborted tick should not require a terminal APPROVED/fallback")
}
