package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-bot/internal/config"
	"github.com/spec-kit/helpdesk-bot/internal/domain"
	"github.com/spec-kit/helpdesk-bot/internal/platform"
	"github.com/spec-kit/helpdesk-bot/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-bot/pkg/util"
)

// ExportService writes a ticket's full history to a structured file tree.
// Each export is guarded by the ticket's exported flag, so a repeated run
// skips tickets already written out.
type ExportService struct {
	tickets     repository.TicketRepository
	memberships repository.MembershipRepository
	platform    platform.Client
	cfg         config.ExportConfig
	logger      *zap.Logger
}

// ExportDependencies bundles collaborators.
type ExportDependencies struct {
	TicketRepo     repository.TicketRepository
	MembershipRepo repository.MembershipRepository
	Platform       platform.Client
	Config         config.ExportConfig
	Logger         *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(deps ExportDependencies) *ExportService {
	return &ExportService{
		tickets:     deps.TicketRepo,
		memberships: deps.MembershipRepo,
		platform:    deps.Platform,
		cfg:         deps.Config,
		logger:      deps.Logger,
	}
}

// RunReport summarizes a bulk export run.
type RunReport struct {
	RunID    string
	Exported int
	Skipped  int
	Failed   int
}

type exportManifest struct {
	Number      int64               `json:"number"`
	Type        string              `json:"type"`
	State       string              `json:"state"`
	ExportedAt  time.Time           `json:"exported_at"`
	Messages    int                 `json:"messages"`
	Attachments []attachmentRecord  `json:"attachments"`
	Memberships []domain.Membership `json:"memberships"`
}

type attachmentRecord struct {
	MessageID string `json:"message_id"`
	FileName  string `json:"file_name"`
	SizeBytes int64  `json:"size_bytes"`
	Skipped   bool   `json:"skipped,omitempty"`
}

// ExportTicket writes one ticket's history. Returns the export directory and
// whether the ticket was skipped because it was already exported.
func (s *ExportService) ExportTicket(ctx context.Context, containerID string, force bool) (string, bool, error) {
	ticket, err := s.tickets.GetByContainer(ctx, containerID)
	if err != nil {
		return "", false, apperrors.NewNotFound("ticket", map[string]any{"container_id": containerID})
	}
	if ticket.Exported && !force {
		return "", true, nil
	}

	dir := filepath.Join(s.cfg.Dir, fmt.Sprintf("%04d-%s", ticket.Number, ticket.Type))
	if err := os.MkdirAll(filepath.Join(dir, "attachments"), 0o755); err != nil {
		return "", false, err
	}

	// The container may already be gone; export whatever the store and
	// platform still hold.
	messages, err := s.platform.ContainerMessages(ctx, containerID, 1000)
	if err != nil && !errors.Is(err, platform.ErrNotFound) {
		return "", false, mapPlatformError(err, "ticket messages")
	}

	memberships, err := s.memberships.ListByTicket(ctx, containerID)
	if err != nil {
		return "", false, err
	}

	manifest := exportManifest{
		Number:      ticket.Number,
		Type:        ticket.Type,
		State:       ticket.State(),
		ExportedAt:  time.Now(),
		Messages:    len(messages),
		Memberships: memberships,
	}

	for _, msg := range messages {
		for _, att := range msg.Attachments {
			record := attachmentRecord{
				MessageID: msg.ID,
				FileName:  att.FileName,
				SizeBytes: att.SizeBytes,
			}
			if att.SizeBytes > s.cfg.MaxAttachmentBytes {
				record.Skipped = true
			} else if err := s.downloadAttachment(ctx, dir, msg.ID, att); err != nil {
				s.logger.Warn("attachment download failed",
					zap.String("attachment", att.ID),
					zap.Error(err))
				record.Skipped = true
			}
			manifest.Attachments = append(manifest.Attachments, record)
		}
	}

	if err := writeJSON(filepath.Join(dir, "ticket.json"), ticket); err != nil {
		return "", false, err
	}
	if err := writeJSON(filepath.Join(dir, "messages.json"), messages); err != nil {
		return "", false, err
	}
	if err := writeJSON(filepath.Join(dir, "manifest.json"), manifest); err != nil {
		return "", false, err
	}

	if err := s.tickets.MarkExported(ctx, containerID); err != nil {
		return "", false, err
	}
	s.logger.Info("ticket exported",
		zap.Int64("number", ticket.Number),
		zap.String("dir", dir))
	return dir, false, nil
}

// ExportClosed exports every closed ticket not yet flagged, skipping the
// rest. Failures are per ticket; the run continues.
func (s *ExportService) ExportClosed(ctx context.Context) (*RunReport, error) {
	tickets, err := s.tickets.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	report := &RunReport{RunID: uuid.NewString()}
	for i := range tickets {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		ticket := &tickets[i]
		if !ticket.Closed {
			continue
		}
		if ticket.Exported {
			report.Skipped++
			continue
		}
		if _, _, err := s.ExportTicket(ctx, ticket.ContainerID, false); err != nil {
			s.logger.Warn("ticket export failed",
				zap.Int64("number", ticket.Number),
				zap.Error(err))
			report.Failed++
			continue
		}
		report.Exported++
	}
	return report, nil
}

func (s *ExportService) downloadAttachment(ctx context.Context, dir, messageID string, att platform.Attachment) error {
	body, err := s.platform.DownloadAttachment(ctx, att)
	if err != nil {
		return err
	}
	defer body.Close()

	name := fmt.Sprintf("%s-%s", messageID, filepath.Base(att.FileName))
	file, err := os.Create(filepath.Join(dir, "attachments", name))
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(file, io.LimitReader(body, s.cfg.MaxAttachmentBytes))
	return err
}

func writeJSON(path string, value any) error {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, encoded, 0o644)
}
