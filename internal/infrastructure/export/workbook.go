package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/flow-forge/internal/domain/entity"
	"github.com/garyjia/flow-forge/internal/domain/workflow"
)

// Sheet names used by the exported workbooks
const (
	SheetSummary = "Summary"
	SheetRules   = "Rules"
)

var ruleHeader = []string{"Source State", "Destinations", "Approvers"}

// WorkbookWriter writes workflows and templates to .xlsx workbooks
type WorkbookWriter struct {
	logger *zap.Logger
}

// NewWorkbookWriter creates a new workbook writer
func NewWorkbookWriter(logger *zap.Logger) *WorkbookWriter {
	return &WorkbookWriter{logger: logger}
}

// WriteWorkflow saves a workflow summary and its rule table to outputPath
func (w *WorkbookWriter) WriteWorkflow(wf *entity.Workflow, rules []*entity.TransitionRule, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	summary := [][2]interface{}{
		{"Workflow ID", wf.ID},
		{"Name", wf.Name},
		{"Current State", wf.CurrentState.String()},
		{"Creator", wf.Creator.String()},
		{"Created At", wf.CreatedAt.Format(time.RFC3339)},
		{"Updated At", wf.UpdatedAt.Format(time.RFC3339)},
	}
	if err := w.writeSummary(f, summary); err != nil {
		return err
	}

	rows := make([][]string, 0, len(rules))
	for _, r := range rules {
		rows = append(rows, ruleRow(r.SourceState, r.Rule))
	}
	if err := w.writeRules(f, rows); err != nil {
		return err
	}

	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	w.logger.Info("Workflow exported",
		zap.Int64("workflow_id", wf.ID),
		zap.Int("rules", len(rules)),
		zap.String("output_path", outputPath))
	return nil
}

// WriteTemplate saves a template summary and its state definitions to outputPath
func (w *WorkbookWriter) WriteTemplate(tpl *entity.Template, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	summary := [][2]interface{}{
		{"Template ID", tpl.ID},
		{"Name", tpl.Name},
		{"Initial State", tpl.InitialState.String()},
		{"Created At", tpl.CreatedAt.Format(time.RFC3339)},
	}
	if err := w.writeSummary(f, summary); err != nil {
		return err
	}

	rows := make([][]string, 0, len(tpl.States))
	for _, def := range tpl.States {
		rows = append(rows, ruleRow(def.State, def.Rule))
	}
	if err := w.writeRules(f, rows); err != nil {
		return err
	}

	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	w.logger.Info("Template exported",
		zap.Int64("template_id", tpl.ID),
		zap.Int("states", len(tpl.States)),
		zap.String("output_path", outputPath))
	return nil
}

func (w *WorkbookWriter) writeSummary(f *excelize.File, pairs [][2]interface{}) error {
	// NewFile starts with a single "Sheet1"
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	for i, pair := range pairs {
		row := i + 1
		w.setCell(f, SheetSummary, cellName(1, row), pair[0])
		w.setCell(f, SheetSummary, cellName(2, row), pair[1])
	}
	if len(pairs) > 0 {
		if err := f.SetCellStyle(SheetSummary, "A1", cellName(1, len(pairs)), bold); err != nil {
			return fmt.Errorf("failed to style summary: %w", err)
		}
	}
	return f.SetColWidth(SheetSummary, "A", "B", 24)
}

func (w *WorkbookWriter) writeRules(f *excelize.File, rows [][]string) error {
	if _, err := f.NewSheet(SheetRules); err != nil {
		return fmt.Errorf("failed to create rules sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	for col, title := range ruleHeader {
		w.setCell(f, SheetRules, cellName(col+1, 1), title)
	}
	if err := f.SetCellStyle(SheetRules, "A1", cellName(len(ruleHeader), 1), bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, row := range rows {
		for col, value := range row {
			w.setCell(f, SheetRules, cellName(col+1, i+2), value)
		}
	}
	return f.SetColWidth(SheetRules, "A", "C", 32)
}

// setCell sets a cell value, logging instead of failing the export
func (w *WorkbookWriter) setCell(f *excelize.File, sheet, cell string, value interface{}) {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		w.logger.Warn("Failed to set cell value",
			zap.String("sheet", sheet),
			zap.String("cell", cell),
			zap.Error(err))
	}
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func ruleRow(source workflow.State, rule workflow.Rule) []string {
	return []string{
		source.String(),
		strings.Join(workflow.Strings(rule.Destinations), ", "),
		strings.Join(workflow.Strings(rule.Approvers), ", "),
	}
}
