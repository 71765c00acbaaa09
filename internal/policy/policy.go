// Package policy decides whether a channel may connect to the SFU.
package policy

import "strings"

// Func is the authorization predicate applied to the channel_id carried by
// the Sora auth webhook. The webhook endpoint responds 200 either way; the
// predicate only controls the allowed flag.
type Func func(channelID string) bool

// ChannelPrefix returns a Func that admits channels whose id starts with
// prefix. An empty channel id is always denied.
func ChannelPrefix(prefix string) Func {
	return func(channelID string) bool {
		return channelID != "" && strings.HasPrefix(channelID, prefix)
	}
}

// AllowAll admits every channel.
func AllowAll() Func {
	return func(string) bool { return true }
}
