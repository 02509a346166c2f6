package provider

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// TimeLayout is the timestamp format the provider speaks on the wire,
// seconds precision, no zone.
const TimeLayout = "2006-01-02 15:04:05"

// CallRecord is one raw row of the provider's status report. Field presence
// is inconsistent across records, so everything optional is validated and
// defaulted at the mapper boundary, not here.
type CallRecord struct {
	Datahora     string  `json:"datahora"`
	Gravacao     string  `json:"gravacao"`
	URLGravacao  string  `json:"url_gravacao"`
	Chamada      string  `json:"chamada"`
	Numero       string  `json:"numero"`
	Ramal        string  `json:"ramal"`
	NomeOperador string  `json:"nomeoperador"`
	Src          string  `json:"src"`
	Dst          string  `json:"dst"`
	Duracao      FlexInt `json:"duracao"`
}

// Timestamp parses the record's datahora. ok is false when the field is
// absent or not in the provider's layout.
func (r CallRecord) Timestamp() (time.Time, bool) {
	if r.Datahora == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(TimeLayout, r.Datahora)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// FlexInt tolerates the provider sending durations as either a JSON number
// or a quoted string. Unparseable values decode as zero.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		*f = 0
		return nil
	}
	*f = FlexInt(n)
	return nil
}

func (f FlexInt) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(f))
}
