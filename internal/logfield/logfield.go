package lf

import "go.uber.org/zap"

const (
	FieldModule         = "module"
	FieldToken          = "token"
	FieldEvent          = "event"
	FieldPipelineID     = "pipeline_id"
	FieldPipelineType   = "pipeline_type"
	FieldPipelineSource = "pipeline_source"
	FieldStepID         = "step_id"
	FieldStepName       = "step_name"
	FieldApprovalID     = "approval_id"
	FieldStoryID        = "story_id"
	FieldStorySlug      = "story_slug"
)

func Module(module string) zap.Field {
	return zap.String(FieldModule, module)
}

func Token(token string) zap.Field {
	return zap.String(FieldToken, token)
}

func Event(name string) zap.Field {
	return zap.String(FieldEvent, name)
}

func PipelineID(id string) zap.Field {
	return zap.String(FieldPipelineID, id)
}

func PipelineType(typ string) zap.Field {
	return zap.String(FieldPipelineType, typ)
}

func PipelineSource(source string) zap.Field {
	return zap.String(FieldPipelineSource, source)
}

func StepID(id string) zap.Field {
	return zap.String(FieldStepID, id)
}

func StepName(name string) zap.Field {
	return zap.String(FieldStepName, name)
}

func ApprovalID(id string) zap.Field {
	return zap.String(FieldApprovalID, id)
}

func StoryID(id int64) zap.Field {
	return zap.Int64(FieldStoryID, id)
}

func StorySlug(slug string) zap.Field {
	return zap.String(FieldStorySlug, slug)
}
