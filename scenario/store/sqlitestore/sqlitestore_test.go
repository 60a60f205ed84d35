package sqlitestore

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/spektr-olap/scenario/store/storetest"
)

func TestStore(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	path := filepath.Join(t.TempDir(), "nested", "scenarios.db")

	st, err := Open(path, logger)
	require.NoError(t, err)
	defer func() { assert.NoError(t, st.Close()) }()
	assert.Equal(t, path, st.Path())
	storetest.Run(t, st)
}
