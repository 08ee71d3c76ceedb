package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/flow-forge/internal/application/service"
	"github.com/garyjia/flow-forge/internal/domain/workflow"
	"github.com/garyjia/flow-forge/pkg/utils"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	workflowService service.WorkflowService
	templateService service.TemplateService
	logger          Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	workflowService service.WorkflowService,
	templateService service.TemplateService,
	logger Logger,
) *Handlers {
	return &Handlers{
		workflowService: workflowService,
		templateService: templateService,
		logger:          logger,
	}
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	ok(c, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	})
}

// CreateWorkflow handles POST /api/workflows
func (h *Handlers) CreateWorkflow(c *gin.Context) {
	var req CreateWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	id, err := h.workflowService.CreateWorkflow(c.Request.Context(), caller(c), req.Name, workflow.State(req.InitialState))
	if err != nil {
		h.fail(c, "create workflow", err)
		return
	}
	ok(c, http.StatusCreated, IDResponse{ID: id})
}

// GetWorkflow handles GET /api/workflows/:id
func (h *Handlers) GetWorkflow(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	wf, err := h.workflowService.GetWorkflow(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get workflow", err)
		return
	}
	ok(c, http.StatusOK, wf)
}

// GetWorkflowState handles GET /api/workflows/:id/state
func (h *Handlers) GetWorkflowState(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	state, err := h.workflowService.GetWorkflowState(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get workflow state", err)
		return
	}
	ok(c, http.StatusOK, StateResponse{ID: id, State: state})
}

// ListTransitionRules handles GET /api/workflows/:id/transitions
func (h *Handlers) ListTransitionRules(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	rules, err := h.workflowService.ListTransitionRules(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "list transition rules", err)
		return
	}
	ok(c, http.StatusOK, rules)
}

// GetTransitionRule handles GET /api/workflows/:id/transitions/:state.
// A dead-end state is reported as not found.
func (h *Handlers) GetTransitionRule(c *gin.Context) {
	id, source, err := parseIDAndState(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	rule, err := h.workflowService.GetTransitionRule(c.Request.Context(), id, source)
	if err != nil {
		h.fail(c, "get transition rule", err)
		return
	}
	if rule == nil {
		h.fail(c, "get transition rule",
			fmt.Errorf("%w: no transitions defined from state %s", workflow.ErrNotFound, source))
		return
	}
	ok(c, http.StatusOK, rule)
}

// DefineTransitions handles PUT /api/workflows/:id/transitions/:state
func (h *Handlers) DefineTransitions(c *gin.Context) {
	id, source, err := parseIDAndState(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	var req DefineTransitionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	err = h.workflowService.DefineTransitions(c.Request.Context(), caller(c), id, source,
		workflow.ParseStates(req.Destinations), workflow.ParseIdentities(req.Approvers))
	if err != nil {
		h.fail(c, "define transitions", err)
		return
	}

	rule, err := h.workflowService.GetTransitionRule(c.Request.Context(), id, source)
	if err != nil {
		h.fail(c, "define transitions", err)
		return
	}
	ok(c, http.StatusOK, rule)
}

// TransitionWorkflow handles POST /api/workflows/:id/transition
func (h *Handlers) TransitionWorkflow(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	to := workflow.State(req.State)
	if err := h.workflowService.TransitionWorkflow(c.Request.Context(), caller(c), id, to); err != nil {
		h.fail(c, "transition workflow", err)
		return
	}
	ok(c, http.StatusOK, StateResponse{ID: id, State: to})
}

// CreateTemplate handles POST /api/templates
func (h *Handlers) CreateTemplate(c *gin.Context) {
	var req CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	defs := make([]workflow.Definition, 0, len(req.States))
	for _, s := range req.States {
		defs = append(defs, workflow.Definition{
			State: workflow.State(s.State),
			Rule: workflow.Rule{
				Destinations: workflow.ParseStates(s.Destinations),
				Approvers:    workflow.ParseIdentities(s.Approvers),
			},
		})
	}

	id, err := h.templateService.CreateTemplate(c.Request.Context(), req.Name, workflow.State(req.InitialState), defs)
	if err != nil {
		h.fail(c, "create template", err)
		return
	}
	ok(c, http.StatusCreated, IDResponse{ID: id})
}

// GetTemplate handles GET /api/templates/:id
func (h *Handlers) GetTemplate(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	tpl, err := h.templateService.GetTemplate(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get template", err)
		return
	}
	ok(c, http.StatusOK, tpl)
}

// CreateWorkflowFromTemplate handles POST /api/templates/:id/workflows
func (h *Handlers) CreateWorkflowFromTemplate(c *gin.Context) {
	templateID, err := parseID(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	var req InstantiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	id, err := h.templateService.CreateWorkflowFromTemplate(c.Request.Context(), caller(c), req.Name, templateID)
	if err != nil {
		h.fail(c, "create workflow from template", err)
		return
	}
	ok(c, http.StatusCreated, IDResponse{ID: id})
}

func parseIDAndState(c *gin.Context) (int64, workflow.State, error) {
	id, err := parseID(c)
	if err != nil {
		return 0, "", err
	}
	state := c.Param("state")
	if err := utils.ValidateToken("state", state, workflow.MaxStateLength); err != nil {
		return 0, "", err
	}
	return id, workflow.State(state), nil
}
