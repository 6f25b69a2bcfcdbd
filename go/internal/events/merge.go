package events

import "github.com/matchpulse/matchpulse/go/internal/models"

// shouldReplace decides whether an incoming observation supersedes the stored
// canonical event.
//
// A newer source timestamp always wins. On an exact timestamp tie the
// observation is accepted only when the match is live on either side and the
// incoming game clock is strictly ahead of the stored one; a stored event
// without a game clock counts as behind any observation that has one. Note
// that the liveness check deliberately also considers the stored status, so
// a record stuck at inprogress can still accept a same-timestamp update.
func shouldReplace(existing *models.CanonicalEvent, incoming NormalizedEvent) bool {
	if incoming.LastUpdated > existing.LastUpdated {
		return true
	}
	if incoming.LastUpdated < existing.LastUpdated {
		return false
	}

	live := incoming.Status == models.EventStatusInProgress ||
		existing.Status == models.EventStatusInProgress
	if !live || incoming.CurrentGameTime == nil {
		return false
	}
	return existing.CurrentGameTime == nil ||
		*incoming.CurrentGameTime > *existing.CurrentGameTime
}

// applyObservation overwrites the canonical event with the incoming
// observation. The field list is exhaustive on purpose: a new canonical field
// has to be added here explicitly rather than being copied by reflection.
func applyObservation(target *models.CanonicalEvent, incoming NormalizedEvent, ref SourceRef) {
	target.EventName = incoming.EventName
	target.SportName = incoming.SportName
	target.Status = incoming.Status
	target.CurrentGameTime = incoming.CurrentGameTime
	target.HomeTeamName = incoming.HomeTeamName
	target.AwayTeamName = incoming.AwayTeamName
	target.HomeScore = incoming.HomeScore
	target.AwayScore = incoming.AwayScore
	target.LeagueName = incoming.LeagueName
	target.LeagueID = incoming.LeagueID
	target.StartTime = incoming.StartTime
	target.Statistics = incoming.Statistics
	target.LastDataSource = ref.SourceName
	target.LastUpdated = incoming.LastUpdated
}
