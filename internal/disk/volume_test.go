package disk

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeVolumePathNonWindowsPassesThrough(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("exercises the non-windows passthrough branch")
	}
	require.Equal(t, "/dev/sdb1", NormalizeVolumePath("/dev/sdb1"))
	require.Equal(t, "C:", NormalizeVolumePath("C:"))
}
