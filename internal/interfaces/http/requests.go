package http

// Bounds are enforced here through gin's validator tags:
// names 1-64, states 1-32, identities 1-128 printable ASCII,
// at most 10 destinations or approvers and 20 template states.

// CreateWorkflowRequest is the body of POST /api/workflows
type CreateWorkflowRequest struct {
	Name         string `json:"name" binding:"required,max=64,printascii"`
	InitialState string `json:"initial_state" binding:"required,max=32,printascii"`
}

// DefineTransitionsRequest is the body of PUT /api/workflows/:id/transitions/:state
type DefineTransitionsRequest struct {
	Destinations []string `json:"destinations" binding:"max=10,dive,required,max=32,printascii"`
	Approvers    []string `json:"approvers" binding:"max=10,dive,required,max=128,printascii"`
}

// TransitionRequest is the body of POST /api/workflows/:id/transition
type TransitionRequest struct {
	State string `json:"state" binding:"required,max=32,printascii"`
}

// StateDefinitionRequest is one template state definition
type StateDefinitionRequest struct {
	State        string   `json:"state" binding:"required,max=32,printascii"`
	Destinations []string `json:"destinations" binding:"max=10,dive,required,max=32,printascii"`
	Approvers    []string `json:"approvers" binding:"max=10,dive,required,max=128,printascii"`
}

// CreateTemplateRequest is the body of POST /api/templates
type CreateTemplateRequest struct {
	Name         string                   `json:"name" binding:"required,max=64,printascii"`
	InitialState string                   `json:"initial_state" binding:"required,max=32,printascii"`
	States       []StateDefinitionRequest `json:"states" binding:"max=20,dive"`
}

// InstantiateRequest is the body of POST /api/templates/:id/workflows
type InstantiateRequest struct {
	Name string `json:"name" binding:"required,max=64,printascii"`
}
