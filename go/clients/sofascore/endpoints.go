package sofascore

const (
	// Base URL - public JSON API the sofascore.com frontend itself uses
	BaseURL = "https://api.sofascore.com/api/v1"

	// Paths
	Sport = "football"

	scheduledEventsEndpoint = "/sport/%s/scheduled-events/%s" // sport, YYYY-MM-DD
	eventDetailEndpoint     = "/event/%s"                     // event id

	// Headers - the API only answers requests that look like the website
	userAgentHeader = "User-Agent"
	userAgentValue  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36"
	refererHeader   = "Referer"
	refererValue    = "https://www.sofascore.com/"
	originHeader    = "Origin"
	originValue     = "https://www.sofascore.com"
	acceptHeader    = "Accept"
	acceptValue     = "*/*"
)
