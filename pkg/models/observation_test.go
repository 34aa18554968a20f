package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTagListRoundTrip tests that tag lists survive a value/scan cycle.
func TestTagListRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		tags      TagList
		wantValue string
	}{
		{
			name:      "empty list",
			tags:      TagList{},
			wantValue: "[]",
		},
		{
			name:      "nil list",
			tags:      nil,
			wantValue: "[]",
		},
		{
			name:      "two tags",
			tags:      TagList{"a", "b"},
			wantValue: `["a","b"]`,
		},
		{
			name:      "tags with special characters",
			tags:      TagList{`quo"te`, "uni码"},
			wantValue: `["quo\"te","uni码"]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := tt.tags.Value()
			require.NoError(t, err)
			assert.Equal(t, tt.wantValue, v)

			var decoded TagList
			require.NoError(t, decoded.Scan(v))
			if len(tt.tags) == 0 {
				// Empty always decodes to an empty list, never nil-as-absent.
				assert.NotNil(t, decoded)
				assert.Empty(t, decoded)
			} else {
				assert.Equal(t, tt.tags, decoded)
			}
		})
	}
}

// TestTagListScan tests scanning from engine-native representations.
func TestTagListScan(t *testing.T) {
	tests := []struct {
		name    string
		src     interface{}
		want    TagList
		wantErr bool
	}{
		{name: "null column", src: nil, want: TagList{}},
		{name: "empty string", src: "", want: TagList{}},
		{name: "string source", src: `["x"]`, want: TagList{"x"}},
		{name: "byte source", src: []byte(`["x","y"]`), want: TagList{"x", "y"}},
		{name: "json null", src: "null", want: TagList{}},
		{name: "malformed json", src: "{", wantErr: true},
		{name: "unsupported type", src: 42, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tags TagList
			err := tags.Scan(tt.src)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, tags)
		})
	}
}

// TestSessionActive tests the active/closed distinction.
func TestSessionActive(t *testing.T) {
	sess := &Session{ID: "s1", UserName: "alice"}
	assert.True(t, sess.Active())

	ended := sess.StartedAt.Add(1)
	sess.EndedAt = &ended
	assert.False(t, sess.Active())
}
