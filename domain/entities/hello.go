package entities

import "encoding/json"

// HelloService is the service name announced in every hello message.
const HelloService = "embeddedWorkflowAgent"

// CompilerOptions describes how bundles for this agent should be built.
type CompilerOptions struct {
	ExportMemory        bool `json:"exportMemory"`
	DisableDebugMessage bool `json:"disableDebugMessage"`
	TraceLevel          int  `json:"traceLevel"`
	DebugSymbols        bool `json:"debugSymbols"`
	StackSize           int  `json:"stackSize"`
	Gzip                bool `json:"gzip"`
}

// Hello is the status announcement published on connect and after every
// successful reload.
type Hello struct {
	Service         string          `json:"service"`
	Version         string          `json:"version"`
	Bundle          string          `json:"bundle"`
	CompilerOptions CompilerOptions `json:"compilerOptions"`
}

// NewHello builds a hello for the given bundle.
func NewHello(version, bundleID string, opts CompilerOptions) Hello {
	return Hello{
		Service:         HelloService,
		Version:         version,
		Bundle:          bundleID,
		CompilerOptions: opts,
	}
}

// Marshal renders the hello as JSON.
func (h Hello) Marshal() (string, error) {
	b, err := json.Marshal(h)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
