// Package grouping holds the deduplication rules for submitted error logs:
// how a message is normalized and keyed, and how a LogGroup changes when a
// new submission or a resolve action arrives.
package grouping

import (
	"crypto/md5"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kiranshivaraju/logsink/pkg/models"
)

// AddressPlaceholder replaces every hex address in a normalized message.
const AddressPlaceholder = "[MEMORY_ADDRESS]"

// groupedPrefix selects the log types that are grouped at all.
const groupedPrefix = "error"

var reHexAddr = regexp.MustCompile(`0x[0-9a-fA-F]+`)

// IsGrouped reports whether submissions of this log type are deduplicated.
// Other types are accepted by the API and dropped.
func IsGrouped(logType string) bool {
	return strings.HasPrefix(logType, groupedPrefix)
}

// NormalizeMessage strips volatile substrings so identical crashes at
// different addresses share a key.
func NormalizeMessage(msg string) string {
	return reHexAddr.ReplaceAllString(msg, AddressPlaceholder)
}

// Key computes the group hash for a message and log type.
func Key(message, logType string) string {
	sum := md5.Sum([]byte(NormalizeMessage(message) + "-" + logType))
	return fmt.Sprintf("%x", sum)
}

// ShouldRecordReporter reports whether a submission against existing (nil
// for a new group) still gets its own Reporter row.
func ShouldRecordReporter(existing *models.LogGroup) bool {
	if existing == nil {
		return true
	}
	return !Members(existing.Members).Full()
}

// NewGroup builds the first state of a group. reporterID is 0 when no
// reporter row was written.
func NewGroup(hash, logType, message string, reporterID int64, now time.Time) models.LogGroup {
	var members Members
	if reporterID != 0 {
		members = members.Add(reporterID)
	}
	return models.LogGroup{
		Hash:           hash,
		LogType:        logType,
		Message:        message,
		Members:        members,
		TotalCount:     1,
		FirstTime:      now,
		LastTime:       now,
		Status:         models.StatusOpen,
		ResolutionTime: now,
	}
}

// Observe returns g after one more matching submission. The input is not
// modified.
func Observe(g models.LogGroup, reporterID int64, now time.Time) models.LogGroup {
	next := g
	next.TotalCount = g.TotalCount + 1
	next.LastTime = now
	if reporterID != 0 {
		next.Members = Members(g.Members).Add(reporterID)
	} else {
		next.Members = Members(g.Members).Clone()
	}
	if g.Status == models.StatusOpen {
		next.Status = models.StatusOpen
	} else {
		next.Status = models.StatusReopened
	}
	return next
}

// Resolve returns g marked resolved at now.
func Resolve(g models.LogGroup, now time.Time) models.LogGroup {
	next := g
	next.Members = Members(g.Members).Clone()
	next.Status = models.StatusResolved
	next.ResolutionTime = now
	return next
}
