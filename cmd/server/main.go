package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"tgaccess/impl/admission"
	"tgaccess/impl/auth"
	"tgaccess/impl/core"
	"tgaccess/impl/membership"
	"tgaccess/internal/config"
	"tgaccess/internal/database"
	"tgaccess/internal/http-server/api"
	"tgaccess/internal/telegram"
	"tgaccess/lib/logger"
	"tgaccess/lib/sl"
)

const logFileName = "tgaccess.log"

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	log := logger.SetupLogger(conf.Env, filepath.Join(*logPath, logFileName))
	log.Info("starting tgaccess", slog.String("config", *configPath), slog.String("env", conf.Env))

	db := database.NewMongoClient(conf)
	if db == nil {
		log.Error("mongo database must be enabled")
		os.Exit(1)
	}

	var tg *telegram.Client
	if conf.Telegram.BotToken != "" {
		var err error
		tg, err = telegram.NewClient(telegram.Config{
			BotToken:       conf.Telegram.BotToken,
			RequestTimeout: time.Duration(conf.Telegram.RequestTimeoutSec) * time.Second,
			AdminChatId:    conf.Telegram.AdminChatId,
		}, log)
		if err != nil {
			log.Error("telegram client", sl.Err(err))
			os.Exit(1)
		}
	} else {
		log.Warn("telegram bot token not set; membership checks disabled")
	}

	if conf.Telegram.Alerts && tg != nil {
		log = slog.New(logger.NewTelegramHandler(log.Handler(), tg, slog.LevelWarn))
	}

	handler := core.New(
		db,
		admission.New(db, conf.Gate.MaxActiveCodes),
		conf.Gate.MaxActiveCodes,
		time.Duration(conf.Gate.CodeTtlMin)*time.Minute,
		log,
	)
	handler.SetAuthService(auth.New(conf.Auth.JwtSecret))
	if tg != nil {
		handler.SetMembershipService(membership.New(tg, log))
	}

	if err := api.New(conf, log, handler); err != nil {
		log.Error("api server stopped", sl.Err(err))
		os.Exit(1)
	}
}
