package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"FacilityBot/ai/gpt"
	"FacilityBot/bot"
	"FacilityBot/bot/chat"
	"FacilityBot/bot/chat/actions"
	chatwa "FacilityBot/bot/chat/whatsapp"
	"FacilityBot/bot/whatsapp"
	"FacilityBot/entity"
	"FacilityBot/impl/core"
	"FacilityBot/internal/config"
	"FacilityBot/internal/database"
	"FacilityBot/internal/database/sqlite"
	"FacilityBot/internal/http-server/api"
	"FacilityBot/internal/lib/logger"
	"FacilityBot/internal/lib/sl"
	"FacilityBot/internal/lib/tracing"
	"FacilityBot/internal/metrics"
	"FacilityBot/internal/service/priority"
	"FacilityBot/internal/service/sheets"
	"FacilityBot/internal/ws"
)

// store is the persistence surface shared by the Mongo and SQLite backends.
type store interface {
	chat.ScriptRepository
	chat.SessionStore
	actions.Records
	core.Repository
	LookupByPhone(ctx context.Context, phone string) (entity.CustomerInfo, error)
}

func main() {

	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	// local development keeps secrets in .env
	_ = godotenv.Load()

	conf := config.MustLoad(*configPath)
	lg := logger.SetupLogger(conf.Env, *logPath)

	var tgBot *bot.TgBot
	if conf.Telegram.Enabled {
		var err error
		tgBot, err = bot.NewTgBot(conf.Telegram.BotName, conf.Telegram.ApiKey, conf.Telegram.AdminId, lg)
		if err != nil {
			lg.Error("failed to initialize telegram bot", sl.Err(err))
		} else {
			lg = logger.SetupTelegramHandler(lg, tgBot, slog.LevelError)
			lg.With(
				slog.String("bot_name", conf.Telegram.BotName),
			).Info("telegram bot initialized")
		}
	}

	lg.Info("starting facilitybot", slog.String("config", *configPath), slog.String("env", conf.Env))
	lg.Debug("debug messages enabled")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracing.InitTracer(conf.Tracing.Endpoint, conf.Tracing.ServiceName)
	if err != nil {
		lg.Error("tracing", sl.Err(err))
	} else {
		defer func() { _ = shutdownTracer(context.Background()) }()
	}

	var db store
	var keyStore core.KeyStore
	mongo, err := repository.NewMongoClient(conf, lg)
	if err != nil {
		lg.Error("mongo client", sl.Err(err))
	}
	switch {
	case mongo != nil:
		if err = mongo.EnsureIndexes(ctx); err != nil {
			lg.Error("mongo indexes", sl.Err(err))
		}
		db = mongo
		keyStore = mongo
		lg.With(
			slog.String("host", conf.Mongo.Host),
			slog.String("port", conf.Mongo.Port),
			slog.String("user", conf.Mongo.User),
			slog.String("database", conf.Mongo.Database),
		).Info("mongo client initialized")
	default:
		path := conf.SQLite.Path
		if !conf.SQLite.Enabled {
			lg.Warn("no storage enabled, falling back to sqlite", slog.String("path", path))
		}
		local, err := sqlite.Open(path, lg)
		if err != nil {
			lg.Error("sqlite store", sl.Err(err))
			return
		}
		defer local.Close()
		db = local
		lg.Info("sqlite store initialized", slog.String("path", path))
	}

	scripts := chat.NewCachedScriptStore(db, conf.Bot.ScriptCacheTTL, lg)
	seedScript(ctx, conf, db, lg)

	m := metrics.New()
	hub := ws.NewHub(lg)

	engine := chat.NewEngine(scripts, db, chat.Options{
		ScriptID:     conf.Bot.ScriptID,
		SessionTTL:   conf.Bot.SessionTTL,
		MaxAutoSteps: conf.Bot.MaxAutoSteps,
	}, lg)
	engine.SetMetrics(m)
	engine.SetEventListener(hub)

	erp := priority.NewPriorityService(conf, lg)
	actionConf := actions.Config{PushOnComplete: conf.Priority.PushOnComplete}
	if erp != nil {
		actionConf.Technician = erp.Technician()
	}
	completion := actions.New(db, actionConf, lg)

	if erp != nil {
		engine.SetEquipmentLookup(erp)
		engine.SetCustomerLookup(core.NewCustomerLookup(lg, db, erp))
		completion.SetERP(erp)
		lg.With(
			slog.String("url", conf.Priority.BaseURL),
			slog.String("technician", erp.Technician()),
			slog.Bool("demo", erp.IsDemo()),
		).Info("priority service initialized")
	} else {
		engine.SetCustomerLookup(core.NewCustomerLookup(lg, db))
	}

	mirror, err := sheets.NewSheetsMirror(ctx, conf, lg)
	if err != nil {
		lg.Error("sheets mirror", sl.Err(err))
	}
	if mirror != nil {
		completion.SetMirror(mirror)
		lg.Info("sheets mirror initialized", slog.String("spreadsheet", conf.Sheets.SpreadsheetID))
	}
	if tgBot != nil {
		completion.SetNotifier(tgBot)
	}
	completion.Register(engine)

	handler := core.New(lg)
	handler.SetAuthKey(conf.Listen.ApiKey)
	handler.SetEngine(engine)
	handler.SetRepository(db)
	handler.SetScripts(scripts)
	handler.SetMetrics(m)
	if keyStore != nil {
		handler.SetKeyStore(keyStore)
	}
	hub.SetHandler(handler)

	opts := api.Options{Hub: hub, Metrics: m.Handler()}

	if conf.WhatsApp.Enabled {
		waBot := whatsapp.NewWhatsAppBot(
			conf.WhatsApp.AccessToken,
			conf.WhatsApp.VerifyToken,
			conf.WhatsApp.AppSecret,
			conf.WhatsApp.PhoneNumberID,
			lg,
		)
		waBot.SetHandler(handler)
		handler.SetMessenger(chatwa.NewMessenger(waBot))
		opts.Webhook = waBot
		lg.With(
			slog.String("phone_number_id", conf.WhatsApp.PhoneNumberID),
		).Info("whatsapp bot initialized")

		if conf.OpenAI.ApiKey != "" {
			classifier := gpt.NewClassifier(conf.OpenAI.ApiKey, conf.OpenAI.Model, lg)
			classifier.SetMediaSource(waBot)
			handler.SetClassifier(classifier)
			lg.With(
				sl.Secret("openai_key", conf.OpenAI.ApiKey),
				slog.String("model", conf.OpenAI.Model),
			).Info("classifier initialized")
		}
	}

	go hub.Run(ctx)

	// *** blocking start with http server ***
	err = api.New(ctx, conf, lg, handler, opts)
	if err != nil {
		lg.Error("server start", sl.Err(err))
		return
	}
	lg.Info("service stopped")
}

// seedScript stores the configured seed file, or the built-in maintenance
// script, when no script with that id exists yet.
func seedScript(ctx context.Context, conf *config.Config, repo chat.ScriptRepository, lg *slog.Logger) {
	var script *chat.Script
	var err error
	if conf.Bot.SeedPath != "" {
		script, err = chat.LoadScriptFile(conf.Bot.SeedPath)
	} else {
		script, err = chat.DefaultScript()
	}
	if err != nil {
		lg.Error("load seed script", slog.String("path", conf.Bot.SeedPath), sl.Err(err))
		return
	}

	seeded, err := chat.SeedScript(ctx, repo, script)
	if err != nil {
		lg.Error("seed script", sl.Err(err))
		return
	}
	if seeded {
		lg.Info("script seeded", slog.String("script_id", script.ScriptID))
	}
}
