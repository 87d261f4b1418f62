package model

// ChannelEntry represents one catalog entry produced by a catalog parser
type ChannelEntry struct {
	Name     string            `json:"name"`
	URL      string            `json:"url"`
	Group    string            `json:"group"`
	Logo     string            `json:"logo,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Default values used when a catalog omits attributes
const (
	DefaultChannelName  = "Unknown"
	DefaultChannelGroup = "General"
)
