package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	lf "github.com/redgrape/thegrid/internal/logfield"
)

// Run polls telegram for chat commands so approvers can check pipeline
// state without opening the dashboard. Approving itself stays on the HTTP
// surface.
func (n *Notifier) Run(ctx context.Context) {
	if n.bot == nil {
		return
	}
	n.logger.Info("Authorized on account", zap.String("username", n.bot.Self.UserName))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := n.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if err := n.handleUpdate(update); err != nil {
				n.logger.Error("Failed to handle update", zap.Error(err), zap.Int("update_id", update.UpdateID))
			}
		case <-ctx.Done():
			n.logger.Info("Stopping telegram poller")
			return
		}
	}
}

func (n *Notifier) handleUpdate(update tgbotapi.Update) error {
	if update.Message == nil {
		return nil
	}
	n.logger.Info("Got message",
		zap.String("user", update.Message.From.UserName),
		zap.String("text", update.Message.Text),
	)

	fields := strings.Fields(update.Message.Text)
	if len(fields) == 0 {
		return nil
	}

	var text string
	switch fields[0] {
	case "/status":
		if len(fields) < 2 {
			text = "Usage: /status <pipeline id>"
		} else {
			text = n.pipelineStatusText(fields[1])
		}
	case "/pending":
		text = n.pendingApprovalsText()
	case "/inbox":
		text = n.inboxText()
	default:
		return nil
	}

	msg := tgbotapi.NewMessage(update.Message.Chat.ID, text)
	msg.ReplyToMessageID = update.Message.MessageID

	_, err := n.bot.Send(msg)
	return err
}

func (n *Notifier) pipelineStatusText(id string) string {
	pipeline, err := n.db.GetPipeline(id)
	if err != nil {
		n.logger.Error("Failed to load pipeline", zap.Error(err), lf.PipelineID(id))
		return "Failed to load pipeline, try again later"
	}
	if pipeline == nil {
		return "Unknown pipeline " + id
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", pipeline.Name, pipeline.Status)
	steps, err := n.db.ListPipelineSteps(pipeline.ID)
	if err != nil {
		n.logger.Error("Failed to list steps", zap.Error(err), lf.PipelineID(id))
		return b.String()
	}
	for _, step := range steps {
		fmt.Fprintf(&b, "- %s: %s\n", step.Name, step.Status)
	}
	return b.String()
}

func (n *Notifier) inboxText() string {
	notifications, err := n.db.ListUserNotifications(n.userID)
	if err != nil {
		n.logger.Error("Failed to list notifications", zap.Error(err))
		return "Failed to list notifications, try again later"
	}
	if len(notifications) == 0 {
		return "Inbox is empty"
	}

	var b strings.Builder
	for _, notification := range notifications {
		fmt.Fprintf(&b, "[%s] %s\n", notification.Type, notification.Message)
	}
	return b.String()
}

func (n *Notifier) pendingApprovalsText() string {
	approvals, err := n.db.ListPendingApprovals()
	if err != nil {
		n.logger.Error("Failed to list pending approvals", zap.Error(err))
		return "Failed to list pending approvals, try again later"
	}
	if len(approvals) == 0 {
		return "No pending approvals"
	}

	var b strings.Builder
	for _, approval := range approvals {
		fmt.Fprintf(&b, "%s (%s risk, via %s)\n", approval.ID, approval.Risk, approval.Origin)
	}
	return b.String()
}
