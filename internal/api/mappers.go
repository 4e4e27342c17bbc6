package api

import "github.com/alertpipe/alertpipe/internal/store"

// AlertToListItem converts a stored alert to its compact list representation.
// It omits the metadata blob to reduce response size.
func AlertToListItem(a store.ProcessedAlert) AlertListItem {
	return AlertListItem{
		AlertID:       a.AlertID,
		GroupID:       a.GroupID,
		Fingerprint:   a.Fingerprint,
		Source:        a.Source,
		Severity:      a.Severity,
		Message:       a.Message,
		Tags:          a.Tags,
		BusinessScore: a.BusinessScore,
		Suppressed:    a.Suppressed,
		Timestamp:     a.Timestamp,
	}
}

// AlertsToListItems converts a slice of stored alerts to list items.
func AlertsToListItems(records []store.ProcessedAlert) []AlertListItem {
	items := make([]AlertListItem, len(records))
	for i, a := range records {
		items[i] = AlertToListItem(a)
	}
	return items
}

// GroupToListItem converts a stored group snapshot to its list representation.
func GroupToListItem(g store.GroupSnapshot) GroupListItem {
	return GroupListItem{
		GroupID:     g.GroupID,
		Fingerprint: g.Fingerprint,
		Source:      g.Source,
		Severity:    g.Severity,
		AlertCount:  g.AlertCount,
		Suppressed:  g.Suppressed,
		FirstSeen:   g.FirstSeen,
		LastSeen:    g.LastSeen,
		ExpiredAt:   g.ExpiredAt,
	}
}

// GroupsToListItems converts a slice of group snapshots to list items.
func GroupsToListItems(records []store.GroupSnapshot) []GroupListItem {
	items := make([]GroupListItem, len(records))
	for i, g := range records {
		items[i] = GroupToListItem(g)
	}
	return items
}
