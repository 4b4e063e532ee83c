package units

import (
	"testing"

	"github.com/dustin/go-humanize"
	"github.com/stretchr/testify/assert"
)

func TestMultipliersMatchHumanize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint64(humanize.KiByte), uint64(KiB))
	assert.Equal(t, uint64(humanize.MiByte), uint64(MiB))
	assert.Equal(t, "8.0 MiB", humanize.IBytes(8*MiB))
}
