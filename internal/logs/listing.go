package logs

import (
	"context"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/logsink/internal/store"
	"github.com/kiranshivaraju/logsink/pkg/models"
	"github.com/tidwall/gjson"
)

// ListingItem is one line of the per-category HTML menu.
type ListingItem struct {
	Hash   string
	Label  string
	Status int
}

// Listing is the menu for one category. Total counts every group of the
// category, hidden ones included.
type Listing struct {
	Total int
	Items []ListingItem
}

// CategoryListing returns every group of logType as menu items, most
// recent first. Groups whose first message line starts with a hidden prefix
// are left out unless showHidden is set.
func (s *Service) CategoryListing(ctx context.Context, logType string, showHidden bool) (*Listing, error) {
	groups, err := s.store.ListGroups(ctx, store.GroupFilter{LogType: logType})
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}

	firstIDs := make([]int64, 0, len(groups))
	for _, g := range groups {
		if len(g.Members) > 0 {
			firstIDs = append(firstIDs, g.Members[0])
		}
	}
	reporters, err := s.store.GetReporters(ctx, firstIDs)
	if err != nil {
		return nil, fmt.Errorf("loading reporters: %w", err)
	}
	versions := make(map[int64]string, len(reporters))
	for _, r := range reporters {
		versions[r.ID] = r.Version
	}

	items := make([]ListingItem, 0, len(groups))
	for _, g := range groups {
		line := firstLine(g.Message)
		if !showHidden && s.hidden(line) {
			continue
		}

		tag := lobbyTag
		if len(g.Members) > 0 {
			if v, ok := versions[g.Members[0]]; ok {
				tag = VersionTag(v)
			}
		}

		items = append(items, ListingItem{
			Hash:   g.Hash,
			Label:  fmt.Sprintf("(%d)%s<%d>%s", len(items)+1, tag, g.TotalCount, line),
			Status: g.Status,
		})
	}
	return &Listing{Total: len(groups), Items: items}, nil
}

func (s *Service) hidden(line string) bool {
	for _, p := range s.hiddenPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

func firstLine(message string) string {
	line, _, _ := strings.Cut(message, "\n")
	if line == "" {
		return "empty"
	}
	return line
}

const lobbyTag = "[Lobby]"

// VersionTag reads the client version JSON and names where the report came
// from: "[Lobby]", "[Lobby(branch)]" or "[GameN]". Anything unreadable is
// treated as the lobby.
func VersionTag(version string) string {
	if !gjson.Valid(version) {
		return lobbyTag
	}
	gameID := gjson.Get(version, "game_id")
	if gameID.Type != gjson.Number {
		return lobbyTag
	}
	if id := gameID.Int(); id != 0 {
		return fmt.Sprintf("[Game%d]", id)
	}
	if branch := gjson.Get(version, "branch").String(); branch != "" {
		return fmt.Sprintf("[Lobby(%s)]", branch)
	}
	return lobbyTag
}

// StatusClass maps a group status to the menu dot style.
func StatusClass(status int) string {
	switch status {
	case models.StatusReopened:
		return "yellow-dot"
	case models.StatusResolved:
		return "green-dot"
	default:
		return "red-dot"
	}
}
