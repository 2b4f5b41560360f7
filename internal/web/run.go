package web

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/redgrape/thegrid/internal/changelog"
	"github.com/redgrape/thegrid/internal/config"
	"github.com/redgrape/thegrid/internal/database"
	"github.com/redgrape/thegrid/internal/events"
	"github.com/redgrape/thegrid/internal/gitlab"
	"github.com/redgrape/thegrid/internal/notify"
	"github.com/redgrape/thegrid/internal/orchestrator"
	"github.com/redgrape/thegrid/internal/policy"
	"github.com/redgrape/thegrid/internal/storyblok"
)

func Run(logger *zap.Logger) error {
	conf, err := config.ParseConfig()
	if err != nil {
		return err
	}

	db, err := database.OpenDataBase(logger, database.MakeDSN(
		conf.DataBase.Host,
		conf.DataBase.Port,
		conf.DataBase.User,
		conf.DataBase.Pass,
		conf.DataBase.Name,
	))
	if err != nil {
		return errors.Wrap(err, "Failed to open database")
	}

	approvalPolicy, err := policy.Load(conf.Approvals.PolicyPath)
	if err != nil {
		return err
	}

	var repo *gitlab.Client
	if conf.GitLab.Token != "" {
		repo, err = gitlab.NewClient(conf, logger)
		if err != nil {
			return err
		}
	}

	notifier, err := notify.NewNotifier(conf, logger, db)
	if err != nil {
		return errors.Wrap(err, "Failed to create notifier")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := events.NewBus(logger)
	cms := storyblok.NewClient(conf, logger)
	changes := changelog.NewService(db, repo, logger)

	o := orchestrator.NewOrchestrator(bus, db, cms, changes, notifier, approvalPolicy, logger)
	o.Bind(ctx)

	go notifier.Run(ctx)

	s := newServer(conf, logger, db, bus, cms, o)
	return errors.Wrap(s.run(), "Server failed")
}
