package memory_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petasbytes/budgetchat/memory"
)

func TestConversation_RoundTrip(t *testing.T) {
	s := memory.NewStore(afero.NewMemMapFs(), "state/conv.json")

	in := memory.Conversation{
		memory.System("You are a helpful chef."),
		memory.User("hi"),
		memory.Assistant("hello"),
	}
	require.NoError(t, s.Save(in))

	out, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestConversation_RoundTrip_OSFilesystem(t *testing.T) {
	p := filepath.Join(t.TempDir(), "conv.json")

	in := memory.Conversation{memory.System("sys"), memory.User("안녕하세요")}
	s := memory.NewStore(nil, p)
	require.NoError(t, s.Save(in))

	out, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = os.Stat(p + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

func TestConversation_SaveFormat(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := memory.NewStore(fs, "conv.json")
	require.NoError(t, s.Save(memory.Conversation{memory.User("<요리> & more")}))

	b, err := afero.ReadFile(fs, "conv.json")
	require.NoError(t, err)
	got := string(b)

	assert.True(t, strings.HasPrefix(got, "[\n    {\n        \"role\": \"user\","), "unexpected layout:\n%s", got)
	assert.Contains(t, got, "<요리> & more", "non-ASCII and HTML characters must be written verbatim")
}

func TestConversation_LoadMissing_ReturnsNil(t *testing.T) {
	s := memory.NewStore(afero.NewMemMapFs(), "does-not-exist.json")

	msgs, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, msgs)
}

func TestConversation_LoadInvalidJSON_ReturnsError(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "bad.json", []byte("{oops"), 0o644))

	_, err := memory.NewStore(fs, "bad.json").Load()
	require.Error(t, err)
}

func TestConversation_LoadUnknownRole_ReturnsError(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "conv.json", []byte(`[{"role":"tool","content":"x"}]`), 0o644))

	_, err := memory.NewStore(fs, "conv.json").Load()
	require.ErrorIs(t, err, memory.ErrInvalidRole)
}

func TestConversation_SaveNil_WritesEmptyArray(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := memory.NewStore(fs, "conv.json")
	require.NoError(t, s.Save(nil))

	out, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestStore_Remove(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := memory.NewStore(fs, "conv.json")
	require.NoError(t, s.Save(memory.New("sys")))

	require.NoError(t, s.Remove())
	exists, err := afero.Exists(fs, "conv.json")
	require.NoError(t, err)
	assert.False(t, exists)

	// Second removal of a missing file is a no-op.
	require.NoError(t, s.Remove())
}

func TestConversation_HasDirective(t *testing.T) {
	assert.True(t, memory.New("sys").HasDirective())
	assert.False(t, memory.Conversation{memory.User("hi")}.HasDirective())
	assert.False(t, memory.Conversation(nil).HasDirective())
}
