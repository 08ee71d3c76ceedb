package event

// Type identifies the type of domain event
type Type string

const (
	TypeWorkflowCreated      Type = "workflow.created"
	TypeTransitionsDefined   Type = "transitions.defined"
	TypeWorkflowTransitioned Type = "workflow.transitioned"
	TypeTemplateCreated      Type = "template.created"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}
