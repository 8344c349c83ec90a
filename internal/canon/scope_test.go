package canon

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopeDomains(t *testing.T) {
	t.Parallel()

	s, err := NewScope([]string{"Example.com", "*.docs.io", ""}, nil, nil)
	require.NoError(t, err)

	cases := []struct {
		host  string
		allow bool
	}{
		{"example.com", true},
		{"www.example.com", true},
		{"deep.sub.example.com", true},
		{"notexample.com", false},
		{"docs.io", true},
		{"api.docs.io", true},
		{"other.org", false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.allow, s.AllowsHost(tc.host), tc.host)
	}
}

func TestScopeWithoutAllowListAllowsAll(t *testing.T) {
	t.Parallel()

	s, err := NewScope(nil, nil, nil)
	require.NoError(t, err)
	require.True(t, s.Allows("https://anything.example/path"))

	var nilScope *Scope
	require.True(t, nilScope.Allows("https://anything.example/path"))
}

func TestScopePatterns(t *testing.T) {
	t.Parallel()

	s, err := NewScope(nil, []string{"https://example.com/blog/*", "*/DOCS/?"}, []string{"*/blog/drafts/*"})
	require.NoError(t, err)

	require.True(t, s.Allows("https://example.com/blog/post"))
	require.True(t, s.Allows("https://example.com/Blog/Post"))
	require.True(t, s.Allows("https://example.com/docs/a"))
	require.False(t, s.Allows("https://example.com/docs/ab"))
	require.False(t, s.Allows("https://example.com/blog/drafts/one"))
	require.False(t, s.Allows("https://example.com/about"))
}

func TestScopeRejectsBadPattern(t *testing.T) {
	t.Parallel()

	_, err := NewScope(nil, []string{"[unclosed"}, nil)
	require.Error(t, err)
}
