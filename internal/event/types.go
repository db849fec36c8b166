package event

// ProcessData is the data for process.started and process.exited events.
type ProcessData struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Pid      int    `json:"pid"`
	ExitCode int    `json:"exitCode,omitempty"`
}

// ReloadData is the data for reload.* events.
type ReloadData struct {
	App        string `json:"app"`
	Reason     string `json:"reason"`
	Generation int    `json:"generation"`
	Pid        int    `json:"pid,omitempty"`
	Error      string `json:"error,omitempty"`
}

// FileChangedData is the data for file.changed events.
type FileChangedData struct {
	Path string `json:"path"`
	Op   string `json:"op"`
}
