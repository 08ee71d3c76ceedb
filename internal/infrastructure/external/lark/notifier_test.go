package lark

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/flow-forge/internal/application/dispatcher"
	"github.com/garyjia/flow-forge/internal/domain/entity"
	"github.com/garyjia/flow-forge/internal/domain/event"
	"github.com/garyjia/flow-forge/internal/domain/workflow"
)

type mockWorkflowRepo struct {
	workflows map[int64]*entity.Workflow
}

func (m *mockWorkflowRepo) Create(ctx context.Context, wf *entity.Workflow) error { return nil }
func (m *mockWorkflowRepo) GetByID(ctx context.Context, id int64) (*entity.Workflow, error) {
	return m.workflows[id], nil
}
func (m *mockWorkflowRepo) GetForUpdate(ctx context.Context, id int64) (*entity.Workflow, error) {
	return m.workflows[id], nil
}
func (m *mockWorkflowRepo) UpdateState(ctx context.Context, id int64, state workflow.State) error {
	return nil
}

type mockRuleRepo struct {
	rules map[workflow.State]*entity.TransitionRule
	err   error
}

func (m *mockRuleRepo) Upsert(ctx context.Context, rule *entity.TransitionRule) error { return nil }
func (m *mockRuleRepo) Get(ctx context.Context, workflowID int64, source workflow.State) (*entity.TransitionRule, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.rules[source], nil
}
func (m *mockRuleRepo) ListByWorkflow(ctx context.Context, workflowID int64) ([]*entity.TransitionRule, error) {
	return nil, nil
}

type sentMessage struct {
	openID  string
	content string
}

type mockSender struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor map[string]bool
}

func (m *mockSender) SendMessage(ctx context.Context, openID string, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[openID] {
		return errors.New("receiver not found")
	}
	m.sent = append(m.sent, sentMessage{openID: openID, content: content})
	return nil
}

func transitionedEvent() *event.Event {
	return event.NewEvent(event.TypeWorkflowTransitioned, 7, map[string]interface{}{
		event.KeyFromState: workflow.State("DRAFT"),
		event.KeyToState:   workflow.State("PENDING"),
		event.KeyCaller:    workflow.Identity("alice"),
	})
}

func newNotifier(rules *mockRuleRepo, sender *mockSender) *ApproverNotifier {
	workflows := &mockWorkflowRepo{workflows: map[int64]*entity.Workflow{
		7: {ID: 7, Name: "expense", CurrentState: "PENDING", Creator: "alice"},
	}}
	return NewApproverNotifier(workflows, rules, sender, zap.NewNop())
}

func TestApproverNotifier_MessagesEachApprover(t *testing.T) {
	rules := &mockRuleRepo{rules: map[workflow.State]*entity.TransitionRule{
		"PENDING": {
			WorkflowID:  7,
			SourceState: "PENDING",
			Rule:        workflow.NewRule([]workflow.State{"APPROVED", "REJECTED"}, []workflow.Identity{"ou_bob", "ou_carol"}),
		},
	}}
	sender := &mockSender{}

	err := newNotifier(rules, sender).Handle(context.Background(), transitionedEvent())
	require.NoError(t, err)

	require.Len(t, sender.sent, 2)
	assert.Equal(t, "ou_bob", sender.sent[0].openID)
	assert.Equal(t, "ou_carol", sender.sent[1].openID)
	assert.Equal(t,
		"Workflow #7 (expense) moved from DRAFT to PENDING by alice. You can move it to: APPROVED, REJECTED.",
		sender.sent[0].content)
}

func TestApproverNotifier_DeadEndSendsNothing(t *testing.T) {
	sender := &mockSender{}

	err := newNotifier(&mockRuleRepo{}, sender).Handle(context.Background(), transitionedEvent())
	require.NoError(t, err)
	assert.Empty(t, sender.sent)
}

func TestApproverNotifier_PartialFailureReported(t *testing.T) {
	rules := &mockRuleRepo{rules: map[workflow.State]*entity.TransitionRule{
		"PENDING": {Rule: workflow.NewRule([]workflow.State{"APPROVED"}, []workflow.Identity{"ou_bob", "ou_carol"})},
	}}
	sender := &mockSender{failFor: map[string]bool{"ou_bob": true}}

	err := newNotifier(rules, sender).Handle(context.Background(), transitionedEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ou_bob")

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "ou_carol", sender.sent[0].openID)
}

func TestApproverNotifier_RuleLookupError(t *testing.T) {
	sender := &mockSender{}
	rules := &mockRuleRepo{err: errors.New("database is locked")}

	err := newNotifier(rules, sender).Handle(context.Background(), transitionedEvent())
	require.Error(t, err)
	assert.Empty(t, sender.sent)
}

func TestApproverNotifier_Register(t *testing.T) {
	d := dispatcher.NewDispatcher()
	newNotifier(&mockRuleRepo{}, &mockSender{}).Register(d)

	assert.Equal(t, []string{HandlerName}, d.Handlers(event.TypeWorkflowTransitioned))
	assert.Empty(t, d.Handlers(event.TypeWorkflowCreated))
}

func TestFormatNotification_WithoutNameOrNext(t *testing.T) {
	got := formatNotification(3, "", "A", "B", "carol", nil)
	assert.Equal(t, "Workflow #3 moved from A to B by carol.", got)
}

func TestMessenger_SendMessage(t *testing.T) {
	var mu sync.Mutex
	var received map[string]interface{}
	var receiveIDType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Path, "access_token") {
			_, _ = io.WriteString(w, `{"code":0,"msg":"ok","app_access_token":"a-test","tenant_access_token":"t-test","expire":7200}`)
			return
		}

		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		receiveIDType = r.URL.Query().Get("receive_id_type")
		_ = json.Unmarshal(body, &received)
		mu.Unlock()
		_, _ = io.WriteString(w, `{"code":0,"msg":"success","data":{"message_id":"om_1"}}`)
	}))
	defer srv.Close()

	client := NewSDKClient(Config{AppID: "cli_test", AppSecret: "secret", BaseURL: srv.URL}, zap.NewNop())
	messenger := NewMessenger(client, zap.NewNop())

	err := messenger.SendMessage(context.Background(), "ou_bob", `say "hi"`)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "open_id", receiveIDType)
	assert.Equal(t, "ou_bob", received["receive_id"])
	assert.Equal(t, "text", received["msg_type"])
	assert.JSONEq(t, `{"text":"say \"hi\""}`, received["content"].(string))
}

func TestMessenger_RejectsEmptyInput(t *testing.T) {
	messenger := NewMessenger(NewSDKClient(Config{AppID: "a", AppSecret: "b"}, zap.NewNop()), zap.NewNop())

	assert.Error(t, messenger.SendMessage(context.Background(), "", "hello"))
	assert.Error(t, messenger.SendMessage(context.Background(), "ou_bob", ""))
}
