package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelPrefix(t *testing.T) {
	tests := []struct {
		name      string
		prefix    string
		channelID string
		want      bool
	}{
		{name: "matching prefix", prefix: "sora", channelID: "sora-room-1", want: true},
		{name: "exact prefix", prefix: "sora", channelID: "sora", want: true},
		{name: "wrong prefix", prefix: "sora", channelID: "other-room", want: false},
		{name: "empty channel denied", prefix: "sora", channelID: "", want: false},
		{name: "empty channel denied even with empty prefix", prefix: "", channelID: "", want: false},
		{name: "empty prefix admits any non-empty channel", prefix: "", channelID: "anything", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChannelPrefix(tt.prefix)(tt.channelID))
		})
	}
}

func TestAllowAll(t *testing.T) {
	fn := AllowAll()
	assert.True(t, fn(""))
	assert.True(t, fn("anything"))
}
