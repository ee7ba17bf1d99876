package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/garyjia/grc-approval/internal/application/port"
	"github.com/garyjia/grc-approval/internal/application/workflow"
	"github.com/garyjia/grc-approval/internal/domain/entity"
)

// Sheet names of the audit trail workbook
const (
	SheetSummary   = "Summary"
	SheetApprovals = "Approvals"
	SheetHistory   = "History"
)

// ExportService renders an instance's audit trail as an xlsx workbook
type ExportService interface {
	// Export returns the workbook bytes and a suggested file name
	Export(ctx context.Context, instanceID string) ([]byte, string, error)

	// Archive writes the workbook to file storage and returns its relative path
	Archive(ctx context.Context, instanceID string) (string, error)
}

type exportServiceImpl struct {
	engine  workflow.Engine
	storage port.FileStorage
	logger  Logger
}

// NewExportService creates a new ExportService. storage may be nil when archiving is disabled.
func NewExportService(engine workflow.Engine, storage port.FileStorage, logger Logger) ExportService {
	return &exportServiceImpl{engine: engine, storage: storage, logger: logger}
}

func (s *exportServiceImpl) Export(ctx context.Context, instanceID string) ([]byte, string, error) {
	detail, err := s.engine.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, "", fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetApprovals, SheetHistory} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, "", fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	s.fillSummary(f, detail)
	s.fillApprovals(f, detail)
	s.fillHistory(f, detail)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, "", fmt.Errorf("write workbook: %w", err)
	}

	return buf.Bytes(), fmt.Sprintf("workflow-%s.xlsx", instanceID), nil
}

func (s *exportServiceImpl) Archive(ctx context.Context, instanceID string) (string, error) {
	if s.storage == nil {
		return "", fmt.Errorf("archive storage is not configured")
	}

	content, name, err := s.Export(ctx, instanceID)
	if err != nil {
		return "", err
	}

	path := fmt.Sprintf("%s/%s", time.Now().Format("2006-01"), name)
	if err := s.storage.Save(ctx, path, content); err != nil {
		s.logger.Error("Failed to archive audit trail", "instance_id", instanceID, "error", err)
		return "", fmt.Errorf("save archive: %w", err)
	}

	s.logger.Info("Audit trail archived", "instance_id", instanceID, "path", path)
	return path, nil
}

func (s *exportServiceImpl) fillSummary(f *excelize.File, d *entity.InstanceDetail) {
	rows := [][2]interface{}{
		{"Workflow", d.Definition.Name},
		{"Instance", d.Instance.ID},
		{"Entity type", d.Instance.EntityType},
		{"Entity ID", d.Instance.EntityID},
		{"Entity title", d.Instance.EntityTitle},
		{"Status", d.Instance.Status},
		{"Current step", d.Instance.CurrentStep},
		{"Steps", len(d.Definition.Steps)},
		{"Created", d.Instance.CreatedAt.Format(time.RFC3339)},
	}
	if d.Instance.CompletedAt != nil {
		rows = append(rows, [2]interface{}{"Finished", d.Instance.CompletedAt.Format(time.RFC3339)})
	}

	for i, r := range rows {
		s.setRow(f, SheetSummary, i+1, r[0], r[1])
	}
}

func (s *exportServiceImpl) fillApprovals(f *excelize.File, d *entity.InstanceDetail) {
	s.setRow(f, SheetApprovals, 1, "Step", "Step name", "Approver", "Status", "Comment", "Decided at")
	for i, a := range d.Approvals {
		stepName := ""
		if step, ok := d.Definition.StepAt(a.Step); ok {
			stepName = step.Name
		}
		decidedAt := ""
		if a.DecidedAt != nil {
			decidedAt = a.DecidedAt.Format(time.RFC3339)
		}
		s.setRow(f, SheetApprovals, i+2, a.Step, stepName, a.ApproverID, a.Status, a.Comment, decidedAt)
	}
}

func (s *exportServiceImpl) fillHistory(f *excelize.File, d *entity.InstanceDetail) {
	s.setRow(f, SheetHistory, 1, "At", "Action", "From status", "To status", "From step", "To step", "Actor", "Comment")
	for i, h := range d.History {
		s.setRow(f, SheetHistory, i+2, h.CreatedAt.Format(time.RFC3339), h.Action,
			h.FromStatus, h.ToStatus, h.FromStep, h.ToStep, h.ActorID, h.Comment)
	}
}

// setRow writes values left to right starting at column A
func (s *exportServiceImpl) setRow(f *excelize.File, sheet string, row int, values ...interface{}) {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		s.logger.Error("Invalid cell coordinates", "sheet", sheet, "row", row, "error", err)
		return
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		s.logger.Error("Failed to set row", "sheet", sheet, "row", row, "error", err)
	}
}
