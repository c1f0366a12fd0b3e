package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustrum/apate/internal/spec"
)

func validSpec(uri string) *spec.Specification {
	return &spec.Specification{
		Deceits: []spec.Deceit{
			{
				URIs:      []string{uri},
				Responses: []spec.Response{{Code: 200, Output: "ok"}},
			},
		},
	}
}

func invalidSpec() *spec.Specification {
	return &spec.Specification{
		Deceits: []spec.Deceit{{URIs: nil, Responses: nil}},
	}
}

func TestNew_DefaultsToEmptyOnNilOrInvalid(t *testing.T) {
	r := New(nil)
	assert.Empty(t, r.Snapshot().Deceits)

	r2 := New(invalidSpec())
	assert.Empty(t, r2.Snapshot().Deceits)
}

func TestReplace_InstallsOnSuccess(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Replace(validSpec("/a")))
	assert.Equal(t, "/a", r.Snapshot().Deceits[0].URIs[0])
}

func TestReplace_FailureLeavesActiveUnchanged(t *testing.T) {
	r := New(validSpec("/a"))
	err := r.Replace(invalidSpec())
	assert.Error(t, err)
	assert.Equal(t, "/a", r.Snapshot().Deceits[0].URIs[0])
}

func TestAppend_KeepsExistingFirst(t *testing.T) {
	r := New(validSpec("/a"))
	require.NoError(t, r.Append(validSpec("/b")))

	snap := r.Snapshot()
	require.Len(t, snap.Deceits, 2)
	assert.Equal(t, "/a", snap.Deceits[0].URIs[0])
	assert.Equal(t, "/b", snap.Deceits[1].URIs[0])
}

func TestPrepend_NewTakesPriority(t *testing.T) {
	r := New(validSpec("/a"))
	require.NoError(t, r.Prepend(validSpec("/b")))

	snap := r.Snapshot()
	require.Len(t, snap.Deceits, 2)
	assert.Equal(t, "/b", snap.Deceits[0].URIs[0])
	assert.Equal(t, "/a", snap.Deceits[1].URIs[0])
}

func TestAppend_FailureLeavesActiveUnchanged(t *testing.T) {
	r := New(validSpec("/a"))
	err := r.Append(invalidSpec())
	assert.Error(t, err)
	snap := r.Snapshot()
	require.Len(t, snap.Deceits, 1)
	assert.Equal(t, "/a", snap.Deceits[0].URIs[0])
}

func TestSnapshot_ConcurrentReadersNeverBlockOnWriter(t *testing.T) {
	r := New(validSpec("/a"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			uri := "/b"
			if i%2 == 0 {
				uri = "/c"
			}
			_ = r.Replace(validSpec(uri))
		}(i)
	}
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap := r.Snapshot()
			assert.Len(t, snap.Deceits, 1)
		}()
	}
	wg.Wait()
}
