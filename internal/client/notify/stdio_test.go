package notify

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStdio_Streams(t *testing.T) {
	var out, errOut bytes.Buffer
	n := NewWriter(&out, &errOut)

	n.Success("task %q saved", "agenda")
	n.Info("queue has %d operations", 3)
	n.Error("sync failed: %s", "timeout")

	assert.Contains(t, out.String(), `✓ task "agenda" saved`)
	assert.Contains(t, out.String(), "queue has 3 operations")
	assert.Contains(t, errOut.String(), "✗ sync failed: timeout")
	assert.NotContains(t, out.String(), "sync failed")
}
