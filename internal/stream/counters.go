package stream

// Unit weights for reducing per-category counters to one comparable total.
// Byte counts approximate tokens at 4 bytes per token; a shell execution
// carries a flat cost for the tool round trip.
const (
	bytesPerUnit   = 4
	shellCallUnits = 200
)

// Counters holds per-category resource consumption for one iteration.
// Totals are monotonically non-decreasing within an iteration and reset
// when a new Parser is created.
type Counters struct {
	// ReadBytes is the total size of file reads.
	ReadBytes int64
	// WriteBytes is the total size of file writes.
	WriteBytes int64
	// ShellCalls is the number of shell executions.
	ShellCalls int64
	// TextBytes is the total size of assistant text chunks.
	TextBytes int64
	// ToolCalls is the number of tool-call events of any kind.
	ToolCalls int64
	// MalformedLines is the number of undecodable wire lines skipped.
	MalformedLines int64
}

// Units reduces the counters to one weighted total comparable against the
// warn and rotate thresholds.
func (c Counters) Units() int64 {
	return c.ReadBytes/bytesPerUnit +
		c.WriteBytes/bytesPerUnit +
		c.TextBytes/bytesPerUnit +
		c.ShellCalls*shellCallUnits
}

// observe accumulates one event into the counters.
func (c *Counters) observe(e Event) {
	switch e.Kind {
	case EventFileRead:
		c.ReadBytes += e.Size
		c.ToolCalls++
	case EventFileWrite:
		c.WriteBytes += e.Size
		c.ToolCalls++
	case EventShellExec:
		c.ShellCalls++
		c.ToolCalls++
	case EventAssistantText:
		c.TextBytes += int64(len(e.Text))
	}
}
