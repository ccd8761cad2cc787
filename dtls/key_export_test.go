package dtls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportKeyingMaterialDeterministic(t *testing.T) {
	secret := []byte("master-secret-material-32-bytes")
	clientRandom := make([]byte, 32)
	serverRandom := make([]byte, 32)

	a, err := ExportKeyingMaterial(secret, clientRandom, serverRandom, 60)
	require.NoError(t, err)
	b, err := ExportKeyingMaterial(secret, clientRandom, serverRandom, 60)
	require.NoError(t, err)

	assert.Len(t, a, 60)
	assert.Equal(t, a, b, "identical inputs must export identical material")
}

func TestExportKeyingMaterialDiffersPerContext(t *testing.T) {
	secret := []byte("master-secret-material-32-bytes")
	a, err := ExportKeyingMaterial(secret, make([]byte, 32), make([]byte, 32), 60)
	require.NoError(t, err)

	otherRandom := make([]byte, 32)
	otherRandom[0] = 1
	b, err := ExportKeyingMaterial(secret, otherRandom, make([]byte, 32), 60)
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "different randoms must produce different keying material")
}

func TestSplitSRTPKeys(t *testing.T) {
	material := make([]byte, 2*16+2*14)
	for i := range material {
		material[i] = byte(i)
	}
	ck, sk, csalt, ssalt := SplitSRTPKeys(material, 16, 14)
	require.Len(t, ck, 16)
	require.Len(t, sk, 16)
	require.Len(t, csalt, 14)
	require.Len(t, ssalt, 14)
	assert.Equal(t, byte(0), ck[0])
	assert.Equal(t, byte(16), sk[0])
	assert.Equal(t, byte(32), csalt[0])
	assert.Equal(t, byte(46), ssalt[0], "components slice in client/server key/salt order")
}
