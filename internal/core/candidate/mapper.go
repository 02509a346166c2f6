package candidate

import (
	"strings"

	"recfetch/internal/core/provider"
)

// recordingBasePath is the fixed path prefix recordings are served from
// when the provider gives only a relative recording path.
const recordingBasePath = "/gravador28/"

const unknown = "N/A"

// Candidate is one recording eligible for download, normalized from a raw
// call record. Immutable once produced.
type Candidate struct {
	SourceURL       string `json:"url_gravacao"`
	Timestamp       string `json:"datahora"`
	Origin          string `json:"origem"`
	Destination     string `json:"destino"`
	DurationSeconds int    `json:"duracao"`
	OwnerExtension  string `json:"ramal,omitempty"`
	OwnerName       string `json:"nomeoperador,omitempty"`
}

// MapToCandidates turns raw provider records into download candidates.
// Records without a recording are dropped. Pure function: same input, same
// output.
func MapToCandidates(records []provider.CallRecord, baseURL string) []Candidate {
	candidates := make([]Candidate, 0, len(records))
	for _, r := range records {
		if r.Gravacao == "" && r.URLGravacao == "" {
			continue
		}
		u := resolveURL(r, baseURL)
		if u == "" {
			continue
		}
		origin, destination := deriveEndpoints(r)
		candidates = append(candidates, Candidate{
			SourceURL:       u,
			Timestamp:       r.Datahora,
			Origin:          origin,
			Destination:     destination,
			DurationSeconds: int(r.Duracao),
			OwnerExtension:  r.Ramal,
			OwnerName:       r.NomeOperador,
		})
	}
	return candidates
}

// resolveURL prefers a provider-supplied absolute URL and otherwise builds
// one from the relative recording path, which arrives with escaped
// separators.
func resolveURL(r provider.CallRecord, baseURL string) string {
	if r.URLGravacao != "" {
		return r.URLGravacao
	}
	path := strings.ReplaceAll(r.Gravacao, `\/`, "/")
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return ""
	}
	return strings.TrimSuffix(baseURL, "/") + recordingBasePath + path + ".gsm"
}

// deriveEndpoints maps call direction onto origin/destination. Inbound
// calls originate at the external number and terminate on the extension,
// outbound the reverse. Unknown directions fall back to whatever
// identifiers the record carries; this is a best-effort recovery, not a
// guaranteed mapping.
func deriveEndpoints(r provider.CallRecord) (string, string) {
	external := firstNonEmpty(r.Numero, r.Src)
	internal := firstNonEmpty(r.Ramal, r.Dst)

	switch strings.ToLower(r.Chamada) {
	case "entrada", "recebida", "in":
		return fallback(external), fallback(internal)
	case "saida", "saída", "realizada", "out":
		return fallback(internal), fallback(external)
	default:
		return fallback(firstNonEmpty(r.Src, r.Numero)), fallback(firstNonEmpty(r.Dst, r.Ramal))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func fallback(v string) string {
	if v == "" {
		return unknown
	}
	return v
}
