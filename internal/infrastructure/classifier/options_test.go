package classifier

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSessionConfig(t *testing.T) {
	require.Equal(t, []byte{0x10, 2, 0x28, 3, 0x32, 0x02, 0x20, 0x01}, sessionConfig(2, 3))
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions("/models/cbis.pb")
	require.Equal(t, "/models/cbis.pb", opts.ModelPath)
	require.NotEmpty(t, opts.InputOp)
	require.NotEmpty(t, opts.OutputOp)
	require.NotEmpty(t, opts.FeatureOp)
}

func TestSessionConfig_MultiByteVarint(t *testing.T) {
	require.Equal(t,
		[]byte{0x10, 0xc8, 0x01, 0x28, 0x80, 0x01, 0x32, 0x02, 0x20, 0x01},
		sessionConfig(200, 128))
	require.Equal(t, []byte{0x10, 0, 0x28, 0, 0x32, 0x02, 0x20, 0x01}, sessionConfig(-1, 0))
}
