package lark

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/flow-forge/internal/application/dispatcher"
	"github.com/garyjia/flow-forge/internal/application/port"
	"github.com/garyjia/flow-forge/internal/domain/event"
	"github.com/garyjia/flow-forge/internal/domain/workflow"
)

// HandlerName is the dispatcher subscription name of the approver notifier
const HandlerName = "lark-approver-notifier"

// ApproverNotifier tells the approvers of a workflow's new state that a
// transition is waiting on them. Approver identities are used as open_ids.
type ApproverNotifier struct {
	workflows port.WorkflowRepository
	rules     port.TransitionRuleRepository
	sender    port.MessageSender
	logger    *zap.Logger
}

// NewApproverNotifier creates a new notifier
func NewApproverNotifier(
	workflows port.WorkflowRepository,
	rules port.TransitionRuleRepository,
	sender port.MessageSender,
	logger *zap.Logger,
) *ApproverNotifier {
	return &ApproverNotifier{
		workflows: workflows,
		rules:     rules,
		sender:    sender,
		logger:    logger,
	}
}

// Register subscribes the notifier to workflow transitions
func (n *ApproverNotifier) Register(d dispatcher.Dispatcher) {
	d.Subscribe(event.TypeWorkflowTransitioned, HandlerName, n.Handle)
}

// Handle messages every approver of the rule out of the state just entered.
// Send failures are collected and returned for the dispatcher to log.
func (n *ApproverNotifier) Handle(ctx context.Context, evt *event.Event) error {
	to := workflow.State(evt.GetPayloadString(event.KeyToState))
	from := evt.GetPayloadString(event.KeyFromState)
	caller := evt.GetPayloadString(event.KeyCaller)

	rule, err := n.rules.Get(ctx, evt.WorkflowID, to)
	if err != nil {
		return fmt.Errorf("failed to load rule for notification: %w", err)
	}
	if rule == nil || len(rule.Approvers) == 0 {
		n.logger.Debug("No approvers to notify",
			zap.Int64("workflow_id", evt.WorkflowID),
			zap.String("state", to.String()))
		return nil
	}

	name := ""
	if wf, err := n.workflows.GetByID(ctx, evt.WorkflowID); err == nil && wf != nil {
		name = wf.Name
	}

	content := formatNotification(evt.WorkflowID, name, from, to, caller, rule.Destinations)

	var errs []error
	for _, approver := range rule.Approvers {
		if err := n.sender.SendMessage(ctx, approver.String(), content); err != nil {
			n.logger.Error("Failed to notify approver",
				zap.Int64("workflow_id", evt.WorkflowID),
				zap.String("approver", approver.String()),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("notify %s: %w", approver, err))
			continue
		}
	}

	n.logger.Info("Approvers notified",
		zap.Int64("workflow_id", evt.WorkflowID),
		zap.String("state", to.String()),
		zap.Int("approvers", len(rule.Approvers)),
		zap.Int("failed", len(errs)))
	return errors.Join(errs...)
}

func formatNotification(id int64, name, from string, to workflow.State, caller string, next []workflow.State) string {
	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "Workflow #%d (%s)", id, name)
	} else {
		fmt.Fprintf(&b, "Workflow #%d", id)
	}
	fmt.Fprintf(&b, " moved from %s to %s by %s.", from, to, caller)

	if len(next) > 0 {
		names := make([]string, len(next))
		for i, s := range next {
			names[i] = s.String()
		}
		fmt.Fprintf(&b, " You can move it to: %s.", strings.Join(names, ", "))
	}
	return b.String()
}
