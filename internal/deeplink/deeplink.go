// Package deeplink resolves the mapin:// URI scheme into client screens.
package deeplink

import (
	"net/url"
	"strings"
)

// Scheme is the custom URI scheme registered by the mobile client.
const Scheme = "mapin"

// Screen is a navigation target in the mobile app.
type Screen string

const (
	ScreenMap            Screen = "map"
	ScreenFriendRequests Screen = "friend_requests"
	ScreenFriendAccept   Screen = "friend_accept"
	ScreenProfile        Screen = "profile"
	ScreenEvent          Screen = "event"
	ScreenMessages       Screen = "messages"
)

// Route is a resolved deep link: the screen plus its optional subject id.
type Route struct {
	Screen Screen `json:"screen"`
	ID     string `json:"id,omitempty"`
}

// Resolve parses a deep-link URI. Unrecognized schemes, hosts or malformed
// URIs fall back to the map screen.
func Resolve(raw string) Route {
	fallback := Route{Screen: ScreenMap}
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !strings.EqualFold(parsed.Scheme, Scheme) {
		return fallback
	}
	id := strings.Trim(parsed.Path, "/")
	switch strings.ToLower(parsed.Host) {
	case "friend-requests":
		return Route{Screen: ScreenFriendRequests}
	case "friend-accept":
		return Route{Screen: ScreenFriendAccept, ID: id}
	case "profile":
		return Route{Screen: ScreenProfile, ID: id}
	case "events":
		return Route{Screen: ScreenEvent, ID: id}
	case "messages":
		return Route{Screen: ScreenMessages, ID: id}
	case "map", "":
		return fallback
	default:
		return fallback
	}
}
