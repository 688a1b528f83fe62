package asset

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// wireRecord is the persisted shape. Field names match histories written by
// the browser client so existing slots load unchanged.
type wireRecord struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Prompt      string `json:"prompt"`
	Timestamp   int64  `json:"timestamp"`
	AspectRatio string `json:"aspectRatio"`
	Type        string `json:"type"`
	MimeType    string `json:"mimeType,omitempty"`
}

// MarshalJSON writes the persisted shape.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireRecord{
		ID:          r.ID,
		URL:         r.ImageRef,
		Prompt:      r.Prompt,
		Timestamp:   r.CreatedAt.UnixMilli(),
		AspectRatio: string(r.AspectRatio),
		Type:        string(r.Kind),
		MimeType:    r.MimeType,
	})
}

// EncodeRecords serializes a full history, most recent first.
func EncodeRecords(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("asset: encode records: %w", err)
	}
	return data, nil
}

// DecodeRecords parses a persisted history.
//
// A document that is not a JSON array yields no records and an error.
// Inside a valid array, entries that are malformed, of an unknown kind or
// missing required fields are dropped, as is any entry whose id was already
// seen earlier in the array. The survivors keep their order.
// The second return value counts dropped entries.
func DecodeRecords(data []byte) ([]Record, int, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return []Record{}, 0, fmt.Errorf("asset: decode records: %w", err)
	}

	records := make([]Record, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	dropped := 0
	for _, entry := range raw {
		rec, ok := decodeRecord(entry)
		if !ok {
			dropped++
			continue
		}
		if _, dup := seen[rec.ID]; dup {
			dropped++
			continue
		}
		seen[rec.ID] = struct{}{}
		records = append(records, rec)
	}
	return records, dropped, nil
}

func decodeRecord(entry json.RawMessage) (Record, bool) {
	var w wireRecord
	if err := json.Unmarshal(entry, &w); err != nil {
		return Record{}, false
	}
	if !Kind(w.Type).Known() {
		return Record{}, false
	}
	if strings.TrimSpace(w.ID) == "" || w.URL == "" || strings.TrimSpace(w.Prompt) == "" {
		return Record{}, false
	}
	ratio := AspectRatio(w.AspectRatio)
	if !ratio.Valid() {
		return Record{}, false
	}
	return Record{
		ID:          w.ID,
		ImageRef:    w.URL,
		MimeType:    w.MimeType,
		Prompt:      w.Prompt,
		CreatedAt:   time.UnixMilli(w.Timestamp),
		AspectRatio: ratio,
		Kind:        KindImage,
	}, true
}
