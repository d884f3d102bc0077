package realtime

type Channel string

const (
	ChannelCalculations Channel = "calculations"
	ChannelFilters      Channel = "filters"
	ChannelDataSources  Channel = "datasources"
	ChannelData         Channel = "data"
)

// Message is one notification. It is never stored; Target decides which
// live connections receive it.
type Message struct {
	Channel Channel `json:"channel"`
	Target  Target  `json:"target"`
	Data    any     `json:"data,omitempty"`
}
