package protocol

// Response codes sent back by devices.
const (
	CodeAck                 = 5
	CodeNoAck               = 10
	CodePing                = 15
	CodeGetRestartCount     = 20
	CodeSetRestartCount     = 25
	CodeSanityCheck         = 35
	CodeGetNonResponseCount = 40
	CodeGetSamplingTime     = 45
	CodeSetSamplingTime     = 50
	CodePauseSampling       = 55
	CodeResumeSampling      = 60
	CodeGetSamplingState    = 65
)

// Header holds the addressing fields shared by every response.
// OrderID is nil when the device did not echo one.
type Header struct {
	CoordID int
	NodeID  int
	OrderID *int64
}

// ResponseParams is the single-slot params object of a response frame.
type ResponseParams struct {
	Param1 int `json:"param1"`
}

// ResponseFrame is the normalised wire form of a decoded response.
type ResponseFrame struct {
	Command int            `json:"command"`
	CoordID int            `json:"coord_id"`
	NodeID  int            `json:"node_id"`
	OrderID *int64         `json:"order_id,omitempty"`
	Params  ResponseParams `json:"params"`
}

// Response is a decoded device response. The set of implementations is
// closed; switch on the concrete type to read variant fields.
type Response interface {
	Code() int
	Addr() Header
	Frame() ResponseFrame
	response()
}

func frameOf(code int, h Header, param1 int) ResponseFrame {
	return ResponseFrame{
		Command: code,
		CoordID: h.CoordID,
		NodeID:  h.NodeID,
		OrderID: h.OrderID,
		Params:  ResponseParams{Param1: param1},
	}
}

// Ack acknowledges a command. Value is device specific.
type Ack struct {
	Header
	Value int
}

// NoAck rejects a command. Reason is device specific.
type NoAck struct {
	Header
	Reason int
}

// Ping answers a ping.
type Ping struct{ Header }

// GetRestartCount reports a node's restart counter.
type GetRestartCount struct {
	Header
	Count int
}

// SetRestartCount confirms the restart counter was written.
type SetRestartCount struct{ Header }

// SanityCheck confirms a node self test passed.
type SanityCheck struct{ Header }

// GetNonResponseCount reports how many nodes stopped answering.
type GetNonResponseCount struct {
	Header
	Count int
}

// GetSamplingTime reports the sampling period in seconds.
type GetSamplingTime struct {
	Header
	Seconds int
}

// SetSamplingTime confirms the sampling period was written.
type SetSamplingTime struct{ Header }

// PauseSampling confirms sampling stopped.
type PauseSampling struct{ Header }

// ResumeSampling confirms sampling restarted.
type ResumeSampling struct{ Header }

// GetSamplingState reports whether sampling is running.
type GetSamplingState struct {
	Header
	Sampling bool
}

func (r Ack) Code() int                 { return CodeAck }
func (r NoAck) Code() int               { return CodeNoAck }
func (r Ping) Code() int                { return CodePing }
func (r GetRestartCount) Code() int     { return CodeGetRestartCount }
func (r SetRestartCount) Code() int     { return CodeSetRestartCount }
func (r SanityCheck) Code() int         { return CodeSanityCheck }
func (r GetNonResponseCount) Code() int { return CodeGetNonResponseCount }
func (r GetSamplingTime) Code() int     { return CodeGetSamplingTime }
func (r SetSamplingTime) Code() int     { return CodeSetSamplingTime }
func (r PauseSampling) Code() int       { return CodePauseSampling }
func (r ResumeSampling) Code() int      { return CodeResumeSampling }
func (r GetSamplingState) Code() int    { return CodeGetSamplingState }

func (h Header) Addr() Header { return h }

func (r Ack) Frame() ResponseFrame                 { return frameOf(r.Code(), r.Header, r.Value) }
func (r NoAck) Frame() ResponseFrame               { return frameOf(r.Code(), r.Header, r.Reason) }
func (r Ping) Frame() ResponseFrame                { return frameOf(r.Code(), r.Header, 0) }
func (r GetRestartCount) Frame() ResponseFrame     { return frameOf(r.Code(), r.Header, r.Count) }
func (r SetRestartCount) Frame() ResponseFrame     { return frameOf(r.Code(), r.Header, 0) }
func (r SanityCheck) Frame() ResponseFrame         { return frameOf(r.Code(), r.Header, 0) }
func (r GetNonResponseCount) Frame() ResponseFrame { return frameOf(r.Code(), r.Header, r.Count) }
func (r GetSamplingTime) Frame() ResponseFrame     { return frameOf(r.Code(), r.Header, r.Seconds) }
func (r SetSamplingTime) Frame() ResponseFrame     { return frameOf(r.Code(), r.Header, 0) }
func (r PauseSampling) Frame() ResponseFrame       { return frameOf(r.Code(), r.Header, 0) }
func (r ResumeSampling) Frame() ResponseFrame      { return frameOf(r.Code(), r.Header, 1) }
func (r GetSamplingState) Frame() ResponseFrame {
	v := 0
	if r.Sampling {
		v = 1
	}
	return frameOf(r.Code(), r.Header, v)
}

func (Ack) response()                 {}
func (NoAck) response()               {}
func (Ping) response()                {}
func (GetRestartCount) response()     {}
func (SetRestartCount) response()     {}
func (SanityCheck) response()         {}
func (GetNonResponseCount) response() {}
func (GetSamplingTime) response()     {}
func (SetSamplingTime) response()     {}
func (PauseSampling) response()       {}
func (ResumeSampling) response()      {}
func (GetSamplingState) response()    {}
