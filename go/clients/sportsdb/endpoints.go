package sportsdb

const (
	// Base URL - the API key is a path segment on TheSportsDB
	BaseURL = "https://www.thesportsdb.com/api/v1/json"

	// FreeAPIKey is the shared key for the free tier.
	FreeAPIKey = "3"

	// API Endpoints
	seasonEventsEndpoint = "/%s/eventsseason.php?id=%s&s=%s" // key, league id, season
	eventLookupEndpoint  = "/%s/lookupevent.php?id=%s"       // key, event id
)
