package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	graph, err := NewGraph(stubChain("a1", "b2", "c3", "d4"))
	require.NoError(t, err)

	type test struct {
		Target   string
		Current  string
		Expected string
		Err      error
	}

	tests := []test{
		{Target: "head", Current: "", Expected: "d4"},
		{Target: "heads", Current: "b2", Expected: "d4"},
		{Target: "base", Current: "c3", Expected: ""},
		{Target: "b2", Current: "", Expected: "b2"},
		{Target: "c", Current: "", Expected: "c3"},
		{Target: "+1", Current: "", Expected: "a1"},
		{Target: "+2", Current: "b2", Expected: "d4"},
		{Target: "-1", Current: "c3", Expected: "b2"},
		{Target: "-1", Current: "a1", Expected: ""},
		{Target: "-3", Current: "c3", Expected: ""},
		{Target: "a1+2", Current: "", Expected: "c3"},
		{Target: "head-1", Current: "", Expected: "c3"},
		{Target: "-1", Current: "", Err: ErrRelativeOutOfRange},
		{Target: "+1", Current: "d4", Err: ErrRelativeOutOfRange},
		{Target: "zz+1", Current: "", Err: ErrUnknownRevision},
		{Target: "zz", Current: "", Err: ErrUnknownRevision},
	}

	for _, tc := range tests {
		t.Run(tc.Target+"@"+tc.Current, func(t *testing.T) {
			revision, err := graph.Resolve(tc.Target, tc.Current)
			if tc.Err != nil {
				assert.ErrorIs(t, err, tc.Err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.Expected, revision)
		})
	}
}
