package ending

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mensylisir/xmupgrade/common"
)

func TestFromError(t *testing.T) {
	assert.True(t, FromError(nil).IsSuccess())

	o := FromError(errors.Wrap(Skip(ReasonNotInstalled), "cargo"))
	require.True(t, o.IsSkipped())
	assert.Equal(t, ReasonNotInstalled, o.Reason)

	boom := errors.New("boom")
	o = FromError(boom)
	require.True(t, o.IsFailed())
	assert.Equal(t, boom, o.Err)
	assert.Equal(t, boom, o.AsError())
	assert.Equal(t, "FAILED: boom", o.String())
}

func TestFailedNilError(t *testing.T) {
	o := Failed(nil)
	assert.True(t, o.IsFailed())
	assert.Error(t, o.Err)
}

func TestExitCodeLaw(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []Outcome
		want     int
	}{
		{"empty", nil, common.ExitOK},
		{"all success", []Outcome{Success(), Success()}, common.ExitOK},
		{"skips only", []Outcome{Skipped(ReasonDisabled), Skipped(ReasonNotInstalled)}, common.ExitOK},
		{"mixed without failure", []Outcome{Success(), Skipped(ReasonDeclined)}, common.ExitOK},
		{"one failure", []Outcome{Success(), Failed(errors.New("x")), Skipped(ReasonQuit)}, common.ExitFailed},
		{"failure first", []Outcome{Failed(errors.New("x")), Success()}, common.ExitFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.outcomes))

			r := NewReport("run")
			for i, o := range tt.outcomes {
				r.Add(fmt.Sprintf("s%d", i), common.PhaseMain, o, 0)
			}
			assert.Equal(t, tt.want, r.ExitCode())
			assert.Equal(t, tt.want != common.ExitOK, r.HasFailures())
		})
	}
}

func TestReportOrderAndLookup(t *testing.T) {
	r := NewReport("run")
	r.Add("A", common.PhasePost, Success(), time.Second)
	r.Add("B", common.PhasePost, Skipped(ReasonDeclined), 0)
	r.Add("C", common.PhasePost, Failed(errors.New("exit status 2")), time.Second)

	var names []string
	for _, e := range r.Entries() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"A", "B", "C"}, names)

	e, ok := r.Lookup("B")
	require.True(t, ok)
	assert.Equal(t, ReasonDeclined, e.Outcome.Reason)
	_, ok = r.Lookup("Z")
	assert.False(t, ok)

	s, k, f := r.Counts()
	assert.Equal(t, []int{1, 1, 1}, []int{s, k, f})

	r.Finish()
	first := r.Finished
	r.Finish()
	assert.Equal(t, first, r.Finished)
}

func TestRender(t *testing.T) {
	r := NewReport("run")
	r.Add("brew", common.PhaseMain, Success(), 3*time.Second)
	r.Add("snap", common.PhaseMain, Skipped(ReasonNotApplicable), 0)
	r.Add("cargo", common.PhaseMain, Failed(errors.New("exit status 101")), time.Second)
	r.Finish()

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, r, RenderOptions{}))
	out := buf.String()
	assert.Contains(t, out, "Summary")
	assert.Contains(t, out, "brew")
	assert.Contains(t, out, "FAILED: exit status 101")
	assert.NotContains(t, out, "snap")
	assert.Contains(t, out, "1 skipped entry hidden")
	assert.Contains(t, out, "1 succeeded, 1 skipped, 1 failed")
	assert.Less(t, strings.Index(out, "brew"), strings.Index(out, "cargo"))

	buf.Reset()
	require.NoError(t, Render(&buf, r, RenderOptions{ShowSkipped: true}))
	assert.Contains(t, buf.String(), "snap")
	assert.Contains(t, buf.String(), "SKIPPED: "+ReasonNotApplicable)
	assert.NotContains(t, buf.String(), "hidden")
}
