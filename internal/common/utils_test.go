package common

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/mywi/models"
)

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"guerre", "paix", "cessez le feu"}, SplitList(" guerre,paix ,\ncessez le feu,, "))
	assert.Empty(t, SplitList(""))
}

func TestParseID(t *testing.T) {
	id, err := ParseID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "0", "-3", "ukraine"} {
		_, err := ParseID(bad)
		assert.Error(t, err, bad)
	}
}

func TestReadURLs_FlagAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	require.NoError(t, os.WriteFile(path, []byte("https://a.example/\n\nhttps://b.example/\n"), 0o600))

	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.String("urls", "", "")
	set.String("file", "", "")
	require.NoError(t, set.Parse([]string{"--urls", "https://c.example/", "--file", path}))

	urls, err := ReadURLs(cli.NewContext(cli.NewApp(), set, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://c.example/", "https://a.example/", "https://b.example/"}, urls)
}

func TestNewLogger_Levels(t *testing.T) {
	cfg := models.DefaultConfig().Log
	assert.False(t, NewLogger(cfg, false, false).Enabled(t.Context(), slog.LevelDebug))
	assert.False(t, NewLogger(cfg, true, false).Enabled(t.Context(), slog.LevelWarn))
	assert.True(t, NewLogger(cfg, false, true).Enabled(t.Context(), slog.LevelDebug))
}
