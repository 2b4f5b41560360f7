package orchestrator

import (
	"context"

	"github.com/pkg/errors"

	"github.com/redgrape/thegrid/api"
	"github.com/redgrape/thegrid/internal/models"
)

// ErrUnhandledPipelineType marks an approval for a (type, source) pair no
// continuation was registered for. The pipeline is left resumable so a later
// deployment that knows the pair can still pick it up.
var ErrUnhandledPipelineType = errors.New("no continuation registered for pipeline type/source")

// Continuation is the type-specific half of resumption: what actually
// happens once a human has approved the pipeline.
type Continuation interface {
	Resume(ctx context.Context, pipeline *models.Pipeline, ev api.ApprovalGrantedEvent) error
}

type registryKey struct {
	Type   string
	Source string
}

type Registry struct {
	continuations map[registryKey]Continuation
}

func NewRegistry() *Registry {
	return &Registry{continuations: make(map[registryKey]Continuation)}
}

func (r *Registry) Register(typ, source string, continuation Continuation) {
	r.continuations[registryKey{typ, source}] = continuation
}

func (r *Registry) Lookup(typ, source string) (Continuation, bool) {
	continuation, ok := r.continuations[registryKey{typ, source}]
	return continuation, ok
}
