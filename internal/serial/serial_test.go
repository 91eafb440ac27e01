package serial

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMissingDevice(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "ttyUSB0"))
	assert.Error(t, err)
}

func TestConfigureRejectsOddWordSizes(t *testing.T) {
	// A regular file is enough here: the word-size check runs before any
	// ioctl touches the descriptor.
	path := filepath.Join(t.TempDir(), "not-a-tty")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	line, err := Open(path)
	require.NoError(t, err)
	defer line.Close()

	assert.Error(t, line.Configure(Config{DataBits: 7}))
}
