package backend

import "encoding/json"

// LogFrameType classifies a server→client frame on the log stream.
type LogFrameType int

const (
	LogFrameRaw     LogFrameType = iota // not structured; Data is the frame text
	LogFrameLog                         // {"type":"log","data":...}
	LogFrameClosed                      // {"type":"closed"}
	LogFrameError                       // {"error":...}
	LogFrameIgnored                     // structured but not recognized
)

func (t LogFrameType) String() string {
	switch t {
	case LogFrameRaw:
		return "raw"
	case LogFrameLog:
		return "log"
	case LogFrameClosed:
		return "closed"
	case LogFrameError:
		return "error"
	default:
		return "ignored"
	}
}

// LogFrame is a decoded log stream frame.
type LogFrame struct {
	Type LogFrameType
	Data string
}

type wireFrame struct {
	Type  string `json:"type"`
	Data  string `json:"data"`
	Error string `json:"error"`
}

// ParseLogFrame decodes a log stream frame. Frames that are not a JSON
// object fall back to raw text.
func ParseLogFrame(data []byte) LogFrame {
	var f wireFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return LogFrame{Type: LogFrameRaw, Data: string(data)}
	}
	switch {
	case f.Type == "closed":
		return LogFrame{Type: LogFrameClosed, Data: f.Data}
	case f.Error != "":
		return LogFrame{Type: LogFrameError, Data: f.Error}
	case f.Type == "log" && f.Data != "":
		return LogFrame{Type: LogFrameLog, Data: f.Data}
	default:
		return LogFrame{Type: LogFrameIgnored}
	}
}

// ExecFrameType classifies a server→client frame on the exec stream.
type ExecFrameType int

const (
	ExecFrameRaw ExecFrameType = iota
	ExecFrameOutput
	ExecFrameError
	ExecFrameIgnored
)

func (t ExecFrameType) String() string {
	switch t {
	case ExecFrameRaw:
		return "raw"
	case ExecFrameOutput:
		return "output"
	case ExecFrameError:
		return "error"
	default:
		return "ignored"
	}
}

// ExecFrame is a decoded exec stream frame.
type ExecFrame struct {
	Type ExecFrameType
	Data string
}

// ParseExecFrame decodes an exec stream frame. Frames that are not a JSON
// object fall back to raw text.
func ParseExecFrame(data []byte) ExecFrame {
	var f wireFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return ExecFrame{Type: ExecFrameRaw, Data: string(data)}
	}
	switch f.Type {
	case "output":
		return ExecFrame{Type: ExecFrameOutput, Data: f.Data}
	case "error":
		return ExecFrame{Type: ExecFrameError, Data: f.Data}
	default:
		return ExecFrame{Type: ExecFrameIgnored}
	}
}

// InputFrame is the client→server exec frame.
type InputFrame struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// NewInputFrame wraps keystroke data for the exec stream.
func NewInputFrame(data string) InputFrame {
	return InputFrame{Type: "input", Data: data}
}
