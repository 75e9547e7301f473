package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandFlags(t *testing.T) {
	root := newRootCommand()

	for _, name := range []string{"addr", "log-level", "strategy", "rate-limit", "etcd-endpoints"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), "missing flag %s", name)
	}

	announce, _, err := root.Find([]string{"announce"})
	require.NoError(t, err)
	assert.Equal(t, "announce", announce.Name())
	assert.NotNil(t, announce.Flags().Lookup("country"))
}

func TestAnnounceRequiresEtcd(t *testing.T) {
	t.Chdir(t.TempDir())

	root := newRootCommand()
	root.SetArgs([]string{"announce", "--country=US", "--state=TX", "--city=Austin"})
	root.SilenceErrors = true

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--etcd-endpoints")
}

func TestServeRejectsUnknownStrategy(t *testing.T) {
	t.Chdir(t.TempDir())

	root := newRootCommand()
	root.SetArgs([]string{"serve", "--strategy=least-loaded", "--addr=127.0.0.1:0"})
	root.SilenceErrors = true

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown balancer strategy")
}
