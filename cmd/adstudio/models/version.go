package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Version is an immutable-once-frozen snapshot of one stream's content
type Version struct {
	ID        string        `json:"id"`
	AdID      string        `json:"adId"`
	Stream    StreamType    `json:"stream"`
	Status    VersionStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
	CreatedBy CreatedBy     `json:"createdBy"`

	// Lineage pointer; may dangle after the parent is deleted
	ParentVersionID *string `json:"parentVersionId,omitempty"`

	// Prompt that produced this version, when generated
	RequestText string `json:"requestText,omitempty"`

	Content Content `json:"-"`
}

// IsDraft reports whether the version can still be edited
func (v *Version) IsDraft() bool {
	return v.Status == StatusDraft
}

type versionAlias Version

type versionJSON struct {
	*versionAlias
	Content json.RawMessage `json:"content"`
}

func (v Version) MarshalJSON() ([]byte, error) {
	out := versionJSON{versionAlias: (*versionAlias)(&v)}
	if v.Content != nil {
		raw, err := EncodeContent(v.Content)
		if err != nil {
			return nil, err
		}
		out.Content = raw
	}
	return json.Marshal(out)
}

func (v *Version) UnmarshalJSON(data []byte) error {
	in := versionJSON{versionAlias: (*versionAlias)(v)}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if len(in.Content) == 0 || string(in.Content) == "null" {
		v.Content = nil
		return nil
	}
	content, err := DecodeContent(v.Stream, in.Content)
	if err != nil {
		return fmt.Errorf("version %s: %w", v.ID, err)
	}
	v.Content = content
	return nil
}

// LineageEntry is one hop of a version's ancestry
type LineageEntry struct {
	VersionID   string        `json:"versionId"`
	Status      VersionStatus `json:"status,omitempty"`
	CreatedBy   CreatedBy     `json:"createdBy,omitempty"`
	RequestText string        `json:"requestText,omitempty"`
	CreatedAt   *time.Time    `json:"createdAt,omitempty"`
	// Missing marks a parent id that no longer resolves to a stored version
	Missing bool `json:"missing,omitempty"`
}
