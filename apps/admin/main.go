package main

import (
	"context"
	"log"
	"os"

	"github.com/trezcool/universidad/core"
	"github.com/trezcool/universidad/core/account"
	"github.com/trezcool/universidad/core/campus"
	appfs "github.com/trezcool/universidad/fs"
	emailsvc "github.com/trezcool/universidad/services/email"
	logsvc "github.com/trezcool/universidad/services/logger"
	"github.com/trezcool/universidad/storage/database"
	sqlxrepos "github.com/trezcool/universidad/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	ctx := context.Background()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		logger.Fatal("setting up database", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	if err = database.Ping(ctx, db); err != nil {
		_ = db.Close()
		logger.Fatal("pinging database", err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	core.ParseEmailTemplates(appfs.FS, false, logger)
	accounts := account.NewService(sqlxrepos.NewUserRepository(db), mailSvc, conf)

	// start CLI
	cli := commandLine{
		db:       db,
		accounts: accounts,
		campus:   campus.NewService(sqlxrepos.NewStore(db), accounts, mailSvc, conf, logger),
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error("command failed", err)
		}
		os.Exit(1)
	}
}
