package main

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
}

// CLIResolution describes how one request was satisfied.
type CLIResolution struct {
	Request string `json:"request"`
	Caller  string `json:"caller,omitempty"`
	Kind    string `json:"kind"`
	ID      string `json:"id"`
	Size    int    `json:"size"`
}

// CLIResource is the outcome of a resource read.
type CLIResource struct {
	Path    string `json:"path"`
	Caller  string `json:"caller,omitempty"`
	Found   bool   `json:"found"`
	Content string `json:"content"`
}

// CLILoadPathEntry is one search root.
type CLILoadPathEntry struct {
	Root       string `json:"root"`
	Virtual    bool   `json:"virtual"`
	Discovered bool   `json:"discovered"`
}

// CLIRun is the outcome of a script run.
type CLIRun struct {
	Script string   `json:"script"`
	Result string   `json:"result"`
	Loaded []string `json:"loaded"`
}
