package core

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"FacilityBot/bot/chat"
	"FacilityBot/entity"
	"FacilityBot/internal/lib/sl"
)

// Engine runs scripted conversations.
type Engine interface {
	GetActiveSession(ctx context.Context, phone string) (*chat.Session, error)
	StartSession(ctx context.Context, phone, name string, h chat.Handoff) chat.Reply
	ProcessMessage(ctx context.Context, phone string, in chat.Input) *chat.Reply
	CancelSession(ctx context.Context, phone string) (bool, error)
}

type Classifier interface {
	Classify(ctx context.Context, msg *entity.InboundMessage) *entity.Classification
}

type Repository interface {
	SaveInboundMessage(ctx context.Context, message *entity.InboundMessage) error
	ListMessages(ctx context.Context, phone string, limit int64) ([]*entity.InboundMessage, error)
	ListServiceCalls(ctx context.Context, filter entity.ServiceCallFilter) ([]*entity.ServiceCall, error)
	ListSessions(ctx context.Context, limit int64) ([]*chat.Session, error)
}

// ScriptAdmin manages stored script definitions.
type ScriptAdmin interface {
	GetScript(ctx context.Context, scriptID string) (*chat.Script, error)
	SaveScript(ctx context.Context, script *chat.Script) error
	DeleteScript(ctx context.Context, scriptID string) error
	ListScripts(ctx context.Context) ([]*chat.Script, error)
	Invalidate(scriptID string)
}

// KeyStore holds operator API keys.
type KeyStore interface {
	CheckApiKey(key string) (string, error)
	GenerateApiKey(username string) (string, error)
}

type Metrics interface {
	InboundMessage(messageType, route string)
	ObserveClassify(d time.Duration)
}

type Core struct {
	engine     Engine
	messenger  chat.Messenger
	classifier Classifier
	repo       Repository
	scripts    ScriptAdmin
	keyStore   KeyStore
	metrics    Metrics
	authKey    string
	keys       map[string]string
	mu         sync.RWMutex
	locks      *chat.PhoneLocks
	log        *slog.Logger
}

func New(log *slog.Logger) *Core {
	return &Core{
		log:  log.With(sl.Module("core")),
		keys:  make(map[string]string),
		locks: chat.NewPhoneLocks(),
	}
}

func (c *Core) SetEngine(engine Engine) {
	c.engine = engine
}

func (c *Core) SetMessenger(m chat.Messenger) {
	c.messenger = m
}

func (c *Core) SetClassifier(cl Classifier) {
	c.classifier = cl
}

func (c *Core) SetRepository(repo Repository) {
	c.repo = repo
}

func (c *Core) SetScripts(scripts ScriptAdmin) {
	c.scripts = scripts
}

func (c *Core) SetKeyStore(ks KeyStore) {
	c.keyStore = ks
}

func (c *Core) SetMetrics(m Metrics) {
	c.metrics = m
}

func (c *Core) SetAuthKey(key string) {
	c.authKey = key
}
