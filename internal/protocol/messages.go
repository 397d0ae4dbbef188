// Package protocol defines the bus message shapes and subjects shared by the
// synthesis service and its clients.
package protocol

import "time"

// SynthesizeRequest asks the service to turn text into audio with per-word
// timings. RequestID correlates progress updates and the final result.
type SynthesizeRequest struct {
	RequestID string  `json:"request_id"`
	Text      string  `json:"text"`
	Voice     string  `json:"voice,omitempty"`
	Speed     float64 `json:"speed,omitempty"`
	Volume    float64 `json:"volume,omitempty"`
}

// WordTiming is the wire form of one word's placement in the audio.
type WordTiming struct {
	Word       string  `json:"word"`
	StartMS    float64 `json:"start_ms"`
	EndMS      float64 `json:"end_ms"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// SynthesizeResult carries the finished audio and its timeline.
type SynthesizeResult struct {
	RequestID  string       `json:"request_id"`
	Audio      []byte       `json:"audio,omitempty"`
	Format     string       `json:"format,omitempty"`
	DurationMS float64      `json:"duration_ms,omitempty"`
	Timings    []WordTiming `json:"timings,omitempty"`
	Chunks     int          `json:"chunks,omitempty"`
	Aligned    bool         `json:"aligned"`
	Error      string       `json:"error,omitempty"`
	ErrorKind  string       `json:"error_kind,omitempty"`
}

// ProgressUpdate reports pipeline stage transitions while a request runs.
type ProgressUpdate struct {
	RequestID   string    `json:"request_id"`
	Stage       string    `json:"stage"`
	ChunksDone  int       `json:"chunks_done"`
	ChunksTotal int       `json:"chunks_total"`
	Message     string    `json:"message,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

const (
	SubjectSynthesize     = "tts.synthesize"
	SubjectResultPrefix   = "tts.result"
	SubjectProgressPrefix = "tts.progress"
)

// ResultSubject returns the per-request result subject.
func ResultSubject(requestID string) string {
	return SubjectResultPrefix + "." + requestID
}

// ProgressSubject returns the per-request progress subject.
func ProgressSubject(requestID string) string {
	return SubjectProgressPrefix + "." + requestID
}
