package rag

import (
	"encoding/json"
	"fmt"
)

// Index is a document index as listed by GET /indexes, which encodes each one
// as a [name, restricted] tuple.
type Index struct {
	Name       string `json:"name"`
	Restricted bool   `json:"restricted"`
}

// UnmarshalJSON accepts both the tuple form and an object.
func (i *Index) UnmarshalJSON(b []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(b, &tuple); err == nil {
		if len(tuple) != 2 {
			return fmt.Errorf("rag: index tuple has %d elements, want 2", len(tuple))
		}
		if err := json.Unmarshal(tuple[0], &i.Name); err != nil {
			return fmt.Errorf("rag: index name: %w", err)
		}
		if err := json.Unmarshal(tuple[1], &i.Restricted); err != nil {
			return fmt.Errorf("rag: index restricted flag: %w", err)
		}
		return nil
	}

	type plain Index
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*i = Index(p)
	return nil
}

// IndexList is the body of GET /indexes.
type IndexList struct {
	Indexes []Index `json:"indexes"`
}

// CreateIndexRequest is the body of POST /indexes.
type CreateIndexRequest struct {
	Name         string `json:"name"`
	IsRestricted bool   `json:"is_restricted"`
}

// FileList is the body of GET /indexes/{name}/files.
type FileList struct {
	Files        []string `json:"files"`
	IndexedCount int      `json:"indexed_count"`
}

// Indexing job states reported by GET /indexes/{name}/index/status.
const (
	IndexInProgress = "in_progress"
	IndexCompleted  = "completed"
	IndexFailed     = "failed"
	IndexError      = "error"
)

// IndexStatus is the body of the indexing status endpoint.
type IndexStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Done reports whether the indexing job reached a final state.
func (s IndexStatus) Done() bool {
	switch s.Status {
	case IndexCompleted, IndexFailed, IndexError:
		return true
	default:
		return false
	}
}

// IndexJob is the body returned when an indexing job is started.
type IndexJob struct {
	Status  string `json:"status"`
	JobID   string `json:"job_id"`
	Message string `json:"message,omitempty"`
}

// UploadResult is the body returned by POST /indexes/{name}/upload.
type UploadResult struct {
	Message  string `json:"message"`
	Filename string `json:"filename"`
	NumPages int    `json:"num_pages"`
}

// OperationResult is the generic {"message", "errors"} body of mutating calls.
type OperationResult struct {
	Message    string   `json:"message"`
	Containers []string `json:"containers,omitempty"`
	Errors     []string `json:"errors,omitempty"`
}

// AskRequest is the body of POST /ask.
type AskRequest struct {
	Questions    []string `json:"questions"`
	IndexName    string   `json:"indexName"`
	IsRestricted bool     `json:"isRestricted"`
	FileName     string   `json:"fileName,omitempty"`
	UseGraphRAG  bool     `json:"useGraphRag,omitempty"`
}

// Answer is one answered question.
type Answer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// AskResponse is the body returned by POST /ask.
type AskResponse struct {
	Answers []Answer `json:"answers"`
}

// BackendConfig is the body of GET /config.
type BackendConfig struct {
	OperationsRestricted bool `json:"operationsRestricted"`
	EasyAuthEnabled      bool `json:"easyAuthEnabled"`
}

// DataSource is one index consulted by a research run.
type DataSource struct {
	Index        string `json:"index"`
	Name         string `json:"name"`
	IsRestricted bool   `json:"isRestricted"`
}

// ResearchRequest is the body of POST /research.
type ResearchRequest struct {
	Question    string       `json:"question"`
	MaxRounds   int          `json:"maxRounds"`
	DataSources []DataSource `json:"dataSources"`
}

// Comparison phases.
const (
	PhaseGenerate = "generate"
	PhaseRefine   = "refine"
	PhaseExecute  = "execute"
)

// CompareRequest is the body of POST /compare.
type CompareRequest struct {
	Phase             string        `json:"phase"`
	Indexes           []string      `json:"indexes"`
	IsRestricted      bool          `json:"is_restricted"`
	NumRequirements   int           `json:"num_requirements,omitempty"`
	Role              string        `json:"role,omitempty"`
	ComparisonSubject string        `json:"comparison_subject,omitempty"`
	ComparisonTarget  string        `json:"comparison_target,omitempty"`
	Requirements      []Requirement `json:"requirements,omitempty"`
	Feedback          string        `json:"feedback,omitempty"`
}

// Validate checks the request against the backend's phase rules.
func (r CompareRequest) Validate() error {
	switch r.Phase {
	case PhaseGenerate:
	case PhaseRefine:
		if len(r.Requirements) == 0 || r.Feedback == "" {
			return fmt.Errorf("rag: refine phase requires requirements and feedback")
		}
	case PhaseExecute:
		if len(r.Requirements) == 0 {
			return fmt.Errorf("rag: execute phase requires requirements")
		}
	default:
		return fmt.Errorf("rag: invalid comparison phase %q", r.Phase)
	}

	if len(r.Indexes) != 2 {
		return fmt.Errorf("rag: comparison needs exactly 2 indexes, got %d", len(r.Indexes))
	}
	return nil
}

// VoiceRequest is the multipart form of POST /voice_chat.
type VoiceRequest struct {
	Audio     []byte
	Filename  string
	IndexName string
	// Restricted is sent as the string form of the flag.
	Restricted bool
	History    []ChatTurn
}

// VoiceReply is the single JSON object returned by POST /voice_chat and
// POST /intro.
type VoiceReply struct {
	UserText string `json:"user_text,omitempty"`
	Response string `json:"response"`
	// Audio is the base64 encoded spoken reply.
	Audio string `json:"audio,omitempty"`
	Error string `json:"error,omitempty"`
}

// DecodeVoiceReply decodes a voice chat body.
func DecodeVoiceReply(payload []byte) (VoiceReply, error) {
	var r VoiceReply
	if err := json.Unmarshal(payload, &r); err != nil {
		return VoiceReply{}, err
	}
	return r, nil
}
