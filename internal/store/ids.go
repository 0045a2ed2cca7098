package store

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// Id prefixes per node kind. Shared id namespace, distinguishable at a
// glance.
const (
	PlanPrefix      = "plan-"
	ItemPrefix      = "item-"
	MilestonePrefix = "ms-"
	RefPrefix       = "ref-"
)

const idHexLen = 7

// ContentID derives a stable short id from the node's content. The hash
// covers the given parts (typically title, description and a creation
// timestamp) so retrying a failed add reproduces the same id instead of
// minting a duplicate. On collision the hex suffix is extended one
// character at a time; taken reports ids already in use.
func ContentID(prefix string, taken func(string) bool, parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	full := hex.EncodeToString(sum[:])
	for n := idHexLen; n <= len(full); n++ {
		id := prefix + full[:n]
		if !taken(id) {
			return id
		}
	}
	// 64 hex chars of the same hash colliding means the content is
	// byte-identical; reuse is correct.
	return prefix + full
}

// TakenIn returns a taken predicate over an id set.
func TakenIn(ids map[string]bool) func(string) bool {
	return func(id string) bool { return ids[id] }
}

// Slug lowercases a title into a branch-safe fragment: runs of anything
// but letters and digits collapse to single hyphens, capped at 40 chars.
func Slug(title string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
		if b.Len() >= 40 {
			break
		}
	}
	return strings.Trim(b.String(), "-")
}
