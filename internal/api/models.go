package api

import (
	"dotveil/internal/media"
	"dotveil/internal/segment"
	"dotveil/internal/session"
)

// ResizeRequest is the body of POST /controls/resize.
type ResizeRequest struct {
	Width  *int `json:"width"`
	Height *int `json:"height"`
}

// Canvas is the canvas size in effect.
type Canvas struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// OracleStatus reports segmentation health.
type OracleStatus struct {
	Submitted uint64 `json:"submitted"`
	Skipped   uint64 `json:"skipped"`
	Failures  uint64 `json:"failures"`
	Degraded  bool   `json:"degraded"`
}

// StateResponse is the body of GET /state and POST /controls/mode.
type StateResponse struct {
	Mode       string        `json:"mode"`
	Density    string        `json:"density"`
	Trail      bool          `json:"trail"`
	Mirror     bool          `json:"mirror"`
	Cursor     int           `json:"cursor"`
	Entry      *media.Entry  `json:"entry,omitempty"`
	Loading    bool          `json:"loading"`
	Ready      bool          `json:"ready"`
	Canvas     Canvas        `json:"canvas"`
	ActiveDots int           `json:"active_dots"`
	Ticks      uint64        `json:"ticks"`
	Oracle     *OracleStatus `json:"oracle,omitempty"`
}

// ToggleResponse is the body of the trail and mirror controls.
type ToggleResponse struct {
	Enabled bool `json:"enabled"`
}

// DensityResponse is the body of POST /controls/density.
type DensityResponse struct {
	Density string `json:"density"`
}

func oracleStatus(s segment.Stats) *OracleStatus {
	return &OracleStatus{
		Submitted: s.Submitted,
		Skipped:   s.Skipped,
		Failures:  s.Failures,
		Degraded:  s.Degraded,
	}
}

func sessionFields(st session.State, out *StateResponse) {
	out.Mode = st.Mode.String()
	out.Density = st.Density.String()
	out.Trail = st.Trail
	out.Mirror = st.Mirror
	out.Cursor = st.Cursor
	out.Entry = st.Entry
	out.Loading = st.Loading
	out.Ready = st.Source != nil
}
