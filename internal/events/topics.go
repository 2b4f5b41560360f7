package events

// Well-known sources and topics. Producers emit "<source>.ready" or
// "<source>.completed"; the approval surface emits approval.granted.
const (
	SourceFigma   = "figma-to-storyblok"
	SourceEditor  = "storyblok-editor"
	SourceRelease = "release"

	TopicApprovalGranted = "approval.granted"
)

func ReadyTopic(source string) string {
	return source + ".ready"
}

func CompletedTopic(source string) string {
	return source + ".completed"
}
