package conflict

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	local := Snapshot{
		"same.ts":        {Fingerprint: "s"},
		"local-edit.ts":  {Fingerprint: "l2"},
		"remote-edit.ts": {Fingerprint: "r1"},
		"both.ts":        {Fingerprint: "b-local"},
		"fresh.ts":       {Fingerprint: "f-local"},
		"new-local.ts":   {Fingerprint: "n"},
		"gone-remote.ts": {Fingerprint: "g"},
	}
	remote := Snapshot{
		"same.ts":        {Fingerprint: "s"},
		"local-edit.ts":  {Fingerprint: "l1"},
		"remote-edit.ts": {Fingerprint: "r2"},
		"both.ts":        {Fingerprint: "b-remote"},
		"fresh.ts":       {Fingerprint: "f-remote"},
		"new-remote.ts":  {Fingerprint: "x"},
		"gone-local.ts":  {Fingerprint: "d"},
	}
	base := map[string]string{
		"same.ts":        "old",
		"local-edit.ts":  "l1",
		"remote-edit.ts": "r1",
		"both.ts":        "b-base",
		"gone-local.ts":  "d",
		"gone-remote.ts": "g",
	}

	plan := Compare(local, remote, base)
	assert.Equal(t, []string{"same.ts"}, plan.Agreed)
	assert.Equal(t, []string{"local-edit.ts", "new-local.ts"}, plan.Push)
	assert.Equal(t, []string{"remote-edit.ts"}, plan.RemoteAhead)
	assert.Equal(t, []string{"new-remote.ts"}, plan.RemoteOnly)
	assert.Equal(t, []string{"gone-local.ts"}, plan.Delete)
	assert.Equal(t, []string{"gone-remote.ts"}, plan.RemoteDeleted)

	require.Len(t, plan.Conflicts, 2)
	assert.Equal(t, "both.ts", plan.Conflicts[0].Path)
	assert.Equal(t, "b-local", plan.Conflicts[0].LocalFingerprint)
	assert.Equal(t, "b-remote", plan.Conflicts[0].RemoteFingerprint)
	assert.Equal(t, "changed on both sides", plan.Conflicts[0].Reason)
	assert.Equal(t, "fresh.ts", plan.Conflicts[1].Path)
	assert.Equal(t, "differs on first sync", plan.Conflicts[1].Reason)
}

func TestCompare_Empty(t *testing.T) {
	plan := Compare(nil, nil, nil)
	assert.Empty(t, plan.Agreed)
	assert.Empty(t, plan.Push)
	assert.Empty(t, plan.Conflicts)
}

func TestDecideUpsert(t *testing.T) {
	tests := []struct {
		name                          string
		local, agreed, base, incoming string
		want                          Decision
	}{
		{"already equal", "a", "", "", "a", Agree},
		{"plain update", "a", "a", "a", "b", Apply},
		{"new file", "", "", "", "a", Apply},
		{"recreate after local delete", "", "a", "a", "b", Apply},
		{"sender missed our change", "b", "b", "a", "c", Diverged},
		{"unsent local edit", "c", "b", "b", "d", Diverged},
		{"both created", "x", "", "", "y", Diverged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecideUpsert(tt.local, tt.agreed, tt.base, tt.incoming))
		})
	}
}

func TestDecideDelete(t *testing.T) {
	assert.True(t, DecideDelete("", "a"))
	assert.True(t, DecideDelete("a", "a"))
	assert.False(t, DecideDelete("b", "a"))
}

func TestStore(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewStore(clock)

	ch := make(chan Summary, 1)
	s.Subscribe(ch)

	got := s.Record(Summary{Path: "b.ts", LocalFingerprint: "l", RemoteFingerprint: "r"})
	assert.Equal(t, clock.Now(), got.DetectedAt)
	assert.Equal(t, "b.ts", (<-ch).Path)

	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s.Record(Summary{Path: "a.ts", DetectedAt: at})
	s.Record(Summary{Path: "a.ts", DetectedAt: at, Reason: "again"})

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a.ts", list[0].Path)
	assert.Equal(t, "again", list[0].Reason)
	assert.Equal(t, at, list[0].DetectedAt)

	assert.True(t, s.Clear("a.ts"))
	assert.False(t, s.Clear("a.ts"))
	_, ok := s.Get("a.ts")
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestPreview(t *testing.T) {
	diff := Preview("x.ts", []byte("a\nb\nc\n"), []byte("a\nB\nc\n"), 0)
	assert.Contains(t, diff, "--- local/x.ts")
	assert.Contains(t, diff, "+++ remote/x.ts")
	assert.Contains(t, diff, "-b")
	assert.Contains(t, diff, "+B")

	big := Preview("x.ts", make([]byte, 10), make([]byte, 10), 15)
	assert.Contains(t, big, "diff omitted")
}

func TestContentCache(t *testing.T) {
	c := NewContentCache(2)
	c.Put("a", []byte("1"))
	c.Put("b", []byte("2"))
	c.Put("c", []byte("3"))

	_, ok := c.Get("a")
	assert.False(t, ok, "oldest entry evicted")
	v, ok := c.Get("c")
	require.True(t, ok)
	assert.Equal(t, []byte("3"), v)

	c.Put("c", make([]byte, DefaultPreviewBytes+1))
	_, ok = c.Get("c")
	assert.False(t, ok, "oversized content is not cached")

	c.Purge()
	_, ok = c.Get("b")
	assert.False(t, ok)
}
