package normalize

import (
	"encoding/json"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/matchpulse/matchpulse/go/internal/events"
)

// Provider names as they appear in source mappings and configuration.
const (
	SourceSofascore string = "sofascore"
	SourceSportsDB  string = "thesportsdb"
)

// Normalizer translates provider-shaped raw payloads into the canonical
// schema. Malformed or incomplete payloads degrade to "no observation"; the
// normalizer never fails a cycle.
type Normalizer struct {
	clock clockwork.Clock
}

// NewNormalizer creates a normalizer stamping observations with real time.
func NewNormalizer() *Normalizer {
	return &Normalizer{clock: clockwork.NewRealClock()}
}

func newNormalizerWithClock(clock clockwork.Clock) *Normalizer {
	return &Normalizer{clock: clock}
}

// Normalize dispatches a raw payload to the provider-specific translation.
// The bool is false when required fields are missing or the provider is
// unknown; callers skip the observation in that case.
func (n *Normalizer) Normalize(source string, raw json.RawMessage) (events.NormalizedEvent, events.SourceRef, bool) {
	switch source {
	case SourceSofascore:
		return n.NormalizeSofascore(raw)
	case SourceSportsDB:
		return n.NormalizeSportsDB(raw)
	default:
		log.Warn().Str("source", source).Msg("no normalizer for source")
		return events.NormalizedEvent{}, events.SourceRef{}, false
	}
}

// statistics is the canonical shape of the open-ended statistics document:
// provider-specific key/value groups for each side of the match.
type statistics struct {
	Home  map[string]any `json:"home"`
	Away  map[string]any `json:"away"`
	Total map[string]any `json:"total"`
}

func emptyStatistics() statistics {
	return statistics{
		Home:  map[string]any{},
		Away:  map[string]any{},
		Total: map[string]any{},
	}
}

func (s statistics) marshal() json.RawMessage {
	data, err := json.Marshal(s)
	if err != nil {
		// The maps only ever hold JSON-decoded values, so this cannot
		// realistically fail; fall back to an empty document.
		return json.RawMessage(`{}`)
	}
	return data
}
