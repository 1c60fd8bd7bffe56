package tracker

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/framer/codelink/internal/ident"
	"github.com/stretchr/testify/assert"
)

func TestTracker_RememberSkipForgetClear(t *testing.T) {
	tr := New()

	tr.Remember("a.tsx", []byte("hello"))
	assert.True(t, tr.ShouldSkip("a.tsx", []byte("hello")))
	assert.False(t, tr.ShouldSkip("a.tsx", []byte("world")))

	tr.Forget("a.tsx")
	assert.False(t, tr.ShouldSkip("a.tsx", []byte("hello")))

	tr.Remember("a.tsx", []byte("hello"))
	tr.Remember("b.tsx", []byte("bye"))
	tr.Clear()
	assert.False(t, tr.ShouldSkip("a.tsx", []byte("hello")))
	assert.False(t, tr.ShouldSkip("b.tsx", []byte("bye")))
	assert.Equal(t, 0, tr.Len())
}

func TestTracker_UnknownPathNotSkipped(t *testing.T) {
	tr := New()
	assert.False(t, tr.ShouldSkip("never.tsx", []byte("")))
	assert.Zero(t, tr.Len())
}

func TestTracker_CanonicalKeys(t *testing.T) {
	tr := New()
	tr.Remember("src\\bad name!.tsx", []byte("x"))

	assert.True(t, tr.ShouldSkip("src/bad_name_.tsx", []byte("x")))
	assert.True(t, tr.ShouldSkip("./src/lib/../bad name!.tsx", []byte("x")))
	assert.Equal(t, 1, tr.Len())

	tr.Forget("src//bad_name_.tsx")
	assert.False(t, tr.ShouldSkip("src/bad_name_.tsx", []byte("x")))
	assert.Zero(t, tr.Len())
}

// A local edit that only changes bytes outside the sampled window is suppressed.
// This is the accepted cost of fingerprint sampling.
func TestTracker_FingerprintCollisionSuppressesEdit(t *testing.T) {
	head := strings.Repeat("/", ident.FingerprintSample)
	tail := strings.Repeat(";", ident.FingerprintSample)
	remote := head + "export const X = 1" + tail
	local := head + "export const X = 2" + tail

	tr := New()
	tr.Remember("x.tsx", []byte(remote))
	assert.True(t, tr.ShouldSkip("x.tsx", []byte(local)))
	assert.NotEqual(t, ident.Digest([]byte(remote)), ident.Digest([]byte(local)))
}

func TestTracker_Concurrent(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := fmt.Sprintf("f%d.ts", i%4)
			for j := 0; j < 200; j++ {
				tr.Remember(p, []byte(fmt.Sprint(j)))
				tr.ShouldSkip(p, []byte(fmt.Sprint(j)))
				if j%50 == 0 {
					tr.Forget(p)
				}
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, tr.Len(), 4)
}
