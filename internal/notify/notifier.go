package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/redgrape/thegrid/internal/config"
	"github.com/redgrape/thegrid/internal/database"
	lf "github.com/redgrape/thegrid/internal/logfield"
	"github.com/redgrape/thegrid/internal/models"
)

// Notifier fans every checkpoint out to two channels: an in-app
// notification row and a telegram message. Both are best-effort; a failing
// channel is logged and never stops the other one or the pipeline.
type Notifier struct {
	db     *database.DataBase
	bot    *tgbotapi.BotAPI
	chatID int64
	userID string
	logger *zap.Logger
}

func NewNotifier(conf *config.Config, logger *zap.Logger, db *database.DataBase) (*Notifier, error) {
	n := &Notifier{
		db:     db,
		chatID: conf.Telegram.ChatID,
		userID: conf.Notify.UserID,
		logger: logger.Named("notify"),
	}

	if conf.Telegram.BotToken != "" {
		bot, err := tgbotapi.NewBotAPI(conf.Telegram.BotToken)
		if err != nil {
			return nil, err
		}
		n.bot = bot
	}
	return n, nil
}

func (n *Notifier) AwaitingApproval(pipeline *models.Pipeline, approval *models.Approval) {
	message := fmt.Sprintf("Pipeline %q needs approval (risk: %s): %s", pipeline.Name, approval.Risk, pipeline.Description)
	n.record(models.NotificationApprovalRequired, message, pipeline)
	n.send(message, pipeline)
}

func (n *Notifier) Finished(pipeline *models.Pipeline, detail string) {
	message := fmt.Sprintf("Pipeline %q is %s", pipeline.Name, pipeline.Status)
	if detail != "" {
		message += ": " + detail
	}
	typ := models.NotificationPipelineFinished
	if pipeline.Status == models.PipelineStatusFailed {
		typ = models.NotificationPipelineError
	}
	n.record(typ, message, pipeline)
	n.send(message, pipeline)
}

func (n *Notifier) InitiationFailed(source string, err error) {
	message := fmt.Sprintf("Failed to start a pipeline for %s: %v", source, err)
	if dberr := n.db.CreateNotification(n.userID, models.NotificationPipelineError, message); dberr != nil {
		n.logger.Error("Failed to record notification", zap.Error(dberr), lf.PipelineSource(source))
	}
	if err := n.sendText(message); err != nil {
		n.logger.Error("Failed to send chat message", zap.Error(err), lf.PipelineSource(source))
	}
}

func (n *Notifier) record(typ, message string, pipeline *models.Pipeline) {
	if err := n.db.CreateNotification(n.userID, typ, message); err != nil {
		n.logger.Error("Failed to record notification", zap.Error(err), lf.PipelineID(pipeline.ID))
	}
}

func (n *Notifier) send(message string, pipeline *models.Pipeline) {
	if err := n.sendText(message); err != nil {
		n.logger.Error("Failed to send chat message", zap.Error(err), lf.PipelineID(pipeline.ID))
	}
}

func (n *Notifier) sendText(message string) error {
	if n.bot == nil {
		return nil
	}
	_, err := n.bot.Send(tgbotapi.NewMessage(n.chatID, message))
	return err
}
