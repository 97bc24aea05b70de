package model

import (
	"encoding/json"
	"time"
)

// ItemID is the remote-assigned identifier of one history record
type ItemID string

// HistoryItem represents one record of the remote generation history.
// The remote system is the sole writer of record content; once fetched,
// an item is immutable and Raw holds the item object exactly as the API
// returned it.
type HistoryItem struct {
	ID        ItemID
	Time      time.Time
	VoiceID   string
	VoiceName string
	Text      string

	// Raw is the untouched item object from the API. This is what gets
	// archived, so local parsing never loses fields it does not know.
	Raw json.RawMessage
}

// ArtifactRef returns the opaque reference used to fetch the item's
// audio artifact, or "" when the record has no audio.
func (x *HistoryItem) ArtifactRef() string {
	if x.VoiceID == "" || x.Text == "" {
		return ""
	}
	return string(x.ID)
}

// Page is one page of the remote history stream. NextCursor is an
// opaque token issued by the remote API; it is never parsed or
// reconstructed locally. An empty NextCursor means no further pages.
type Page struct {
	Items      []*HistoryItem
	NextCursor string
	HasMore    bool
}
