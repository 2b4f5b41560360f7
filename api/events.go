package api

// Event payloads carried over the in-process bus. These shapes are the wire
// contract between producers, the orchestrator and the approval surface.

type StoryMeta struct {
	Name           string `json:"name"`
	Slug           string `json:"slug"`
	ComponentCount int    `json:"component_count"`
	FieldCount     int    `json:"field_count,omitempty"`
}

// FigmaReadyEvent announces a freshly transformed design: a candidate
// storyblok document plus the raw source it was derived from.
type FigmaReadyEvent struct {
	Story  map[string]interface{} `json:"story"`
	Design map[string]interface{} `json:"design,omitempty"`
	Meta   StoryMeta              `json:"meta"`
}

// EditorCompletedEvent announces an edit of an existing storyblok document.
type EditorCompletedEvent struct {
	Original map[string]interface{} `json:"original"`
	Edited   map[string]interface{} `json:"edited"`
	Meta     StoryMeta              `json:"meta"`
}

type ReleaseReadyEvent struct {
	RepoOwner string `json:"repo_owner"`
	RepoName  string `json:"repo_name"`
	PRNumber  int    `json:"pr_number"`
	Title     string `json:"title,omitempty"`
	Summary   string `json:"summary,omitempty"`
	CreatedBy string `json:"created_by,omitempty"`
}

type ApprovalGrantedEvent struct {
	PipelineID     string `json:"pipeline_id"`
	ApprovalStepID string `json:"approval_step_id"`
	ApprovedBy     string `json:"approved_by,omitempty"`
}
