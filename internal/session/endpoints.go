package session

import (
	"fmt"
	"net/url"
)

// Fixed endpoints on the external service. Everything under /ajax speaks the
// loosely-typed JSON envelope; the entry page is plain HTML.
const (
	baseURL  = "https://weibo.com"
	entryURL = "https://weibo.com/"

	configURL      = baseURL + "/ajax/config"
	profileInfoURL = baseURL + "/ajax/profile/info"

	acceptJSON = "application/json, text/plain, */*"
	acceptHTML = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
)

// InfoURL addresses the profile info endpoint.
func InfoURL(uid string) string {
	return profileInfoURL + "?uid=" + url.QueryEscape(uid)
}

// DetailURL addresses the profile detail endpoint.
func DetailURL(uid string) string {
	return baseURL + "/ajax/profile/detail?uid=" + url.QueryEscape(uid)
}

// FriendsURL addresses one page of the followed-users list.
func FriendsURL(uid string, page int) string {
	return fmt.Sprintf("%s/ajax/friendships/friends?page=%d&uid=%s", baseURL, page, url.QueryEscape(uid))
}

// FansURL addresses one page of the follower list.
func FansURL(uid string, page int) string {
	return fmt.Sprintf("%s/ajax/friendships/friends?relate=fans&page=%d&uid=%s", baseURL, page, url.QueryEscape(uid))
}

// StatusesURL addresses one page of the timeline. sinceID is the opaque
// cursor in the literal form "<digits>kp<digits>"; page is its second half
// (page 1 when no cursor).
func StatusesURL(uid, page, sinceID string) string {
	u := fmt.Sprintf("%s/ajax/statuses/mymblog?uid=%s&page=%s&feature=0", baseURL, url.QueryEscape(uid), url.QueryEscape(page))
	if sinceID != "" {
		u += "&since_id=" + url.QueryEscape(sinceID)
	}
	return u
}

// RefererURL is the per-call referer derived from the uid path.
func RefererURL(uid string) string {
	return baseURL + "/u/" + url.QueryEscape(uid)
}
