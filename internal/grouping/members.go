package grouping

import (
	"strconv"
	"strings"
)

// MaxMembers caps how many reporters a group links. Later submissions still
// count toward TotalCount.
const MaxMembers = 100

// Members is the ordered set of reporter ids linked to a group.
type Members []int64

// ParseMembers reads the comma-joined storage form. Empty and malformed
// entries are dropped.
func ParseMembers(s string) Members {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	m := make(Members, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		m = m.Add(id)
	}
	return m
}

// String returns the comma-joined storage form.
func (m Members) String() string {
	parts := make([]string, len(m))
	for i, id := range m {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// Full reports whether no more reporters may be linked.
func (m Members) Full() bool {
	return len(m) >= MaxMembers
}

// Contains reports whether id is already a member.
func (m Members) Contains(id int64) bool {
	for _, v := range m {
		if v == id {
			return true
		}
	}
	return false
}

// Add returns a copy of m with id appended. Duplicates and additions past
// MaxMembers are ignored.
func (m Members) Add(id int64) Members {
	out := m.Clone()
	if m.Full() || m.Contains(id) {
		return out
	}
	return append(out, id)
}

// Clone returns an independent copy.
func (m Members) Clone() Members {
	if m == nil {
		return nil
	}
	out := make(Members, len(m), len(m)+1)
	copy(out, m)
	return out
}
