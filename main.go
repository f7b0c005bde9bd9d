package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"
	"github.com/gofiber/websocket/v2"

	"tourmail/compose"
	"tourmail/config"
	"tourmail/handlers/api"
	"tourmail/middleware"
	"tourmail/provider"
	"tourmail/storage"
	"tourmail/utils"
)

func isAPIRequest(c *fiber.Ctx) bool {
	if c == nil {
		return false
	}
	if c.Get("HX-Request") != "" {
		return true
	}
	path := c.Path()
	return len(path) >= 4 && path[:4] == "/api"
}

func main() {
	cfg, err := config.LoadConfig("config.toml")
	if err != nil {
		utils.Log.Error("Failed to load config: %v", err)
		os.Exit(1)
	}

	utils.Log = utils.NewLogger(utils.ParseLevel(cfg.Server.LogLevel))
	utils.Log.Info("Initializing TourMail...")

	if err := utils.InitI18n("./locales"); err != nil {
		utils.Log.Error("Failed to initialize i18n: %v", err)
	}

	if err := os.MkdirAll(cfg.Server.DataDir, 0700); err != nil {
		utils.Log.Error("Failed to create data directory: %v", err)
		os.Exit(1)
	}
	db, err := storage.InitDB(cfg.Server.DataDir)
	if err != nil {
		utils.Log.Error("Failed to open database: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	drafts := storage.NewDraftStorage(db)
	operators := storage.NewOperatorStorage(db)

	// Seed the configured operator account so a fresh deployment can log in.
	if _, err := operators.EnsureOperator(cfg.Operator.Email, cfg.Operator.Password, cfg.Operator.DisplayName); err != nil {
		utils.Log.Error("Failed to seed operator account: %v", err)
		os.Exit(1)
	}

	creds := provider.Credentials{
		Email:    cfg.Provider.Email,
		Password: cfg.Provider.Password,
	}
	mailbox := provider.NewIMAPMailbox(cfg.IMAP.Server, cfg.IMAP.Port, creds, utils.Log)
	sender := provider.NewSMTPSender(cfg.SMTP.Server, cfg.SMTP.Port, creds, utils.Log)

	// Inline cid references resolve to the attachment preview endpoint.
	buildAttachmentURL := func(messageID, attachmentID string) string {
		return fmt.Sprintf("/api/attachment/%s/%s?preview=1",
			url.PathEscape(messageID), url.PathEscape(attachmentID))
	}

	statusFeed := api.NewStatusHandler()

	controller := compose.NewController(
		mailbox,
		drafts,
		sender,
		utils.NewDefaultSanitizer(),
		buildAttachmentURL,
		utils.NewMemoryCache(),
		compose.ControllerConfig{
			Session: compose.SessionConfig{
				DebounceDelay:        cfg.Compose.DebounceDelay(),
				OpenGrace:            cfg.Compose.OpenGrace(),
				SignaturePlaceholder: cfg.Compose.SignaturePlaceholder,
			},
			CacheTTL:        cfg.Compose.ThreadCacheTTL(),
			OnSurfaceStatus: statusFeed.Broadcast,
		},
	)

	tokenTTL, err := cfg.JWT.SessionTTL()
	if err != nil {
		utils.Log.Error("Invalid jwt.token_ttl: %v", err)
		os.Exit(1)
	}

	authHandler := api.NewAuthHandler(operators, cfg.JWT.Secret, tokenTTL)
	composeHandler := api.NewComposeHandler(controller, drafts, mailbox)
	threadHandler := api.NewThreadHandler(mailbox, controller, nil)
	attachmentHandler := api.NewAttachmentHandler(mailbox)
	i18nHandler := &api.I18nHandler{}

	engine := html.New("./templates", ".html")
	engine.AddFunc("t", func(messageID string) string {
		return utils.T(utils.GetLocalizer("en"), messageID)
	})
	engine.AddFunc("formatDate", func(t time.Time) string {
		return t.Format("Jan 02, 2006 15:04")
	})
	engine.AddFunc("join", strings.Join)

	app := fiber.New(fiber.Config{
		Views:       engine,
		ViewsLayout: "layouts/main",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError

			var appErr *utils.AppError
			var vErr *utils.ValidationError
			var fiberErr *fiber.Error
			switch {
			case errors.As(err, &appErr):
				code = appErr.Code
				if code >= 500 {
					utils.Log.Error("Application error: %v", appErr)
				}
			case errors.As(err, &vErr):
				code = fiber.StatusUnprocessableEntity
			case errors.As(err, &fiberErr):
				code = fiberErr.Code
			default:
				utils.Log.Error("Unhandled error: %v", err)
			}

			if isAPIRequest(c) {
				return c.Status(code).JSON(fiber.Map{"error": err.Error()})
			}
			return c.Status(code).Render("error", fiber.Map{
				"Error": err.Error(),
				"Code":  code,
			})
		},
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(compress.New())
	app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		ReferrerPolicy:     "no-referrer",
	}))
	app.Use(middleware.LocaleMiddleware())
	app.Use("/api", middleware.RateLimiter(120, time.Minute))

	// Public routes
	app.Post("/api/login", authHandler.HandleLogin)
	app.Post("/api/logout", authHandler.HandleLogout)
	app.Get("/api/i18n/:lang", i18nHandler.GetTranslations)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.Render("index", fiber.Map{
			"CSRFToken": middleware.GenerateCSRFToken(c),
			"Lang":      c.Locals("lang"),
		})
	})

	// Authenticated API
	authed := app.Group("/api", api.SessionMiddleware(cfg.JWT.Secret))
	authed.Use(middleware.CSRFProtection(middleware.CSRFConfig{
		CookieName:   "csrf_token",
		HeaderName:   "X-CSRF-Token",
		CookieMaxAge: 3600,
		Skipper: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/status/stream")
		},
	}))

	authed.Get("/threads", threadHandler.HandleListThreads)
	authed.Get("/thread/:id", threadHandler.HandleThread)
	authed.Post("/thread/:id/message/:message_id/expand", threadHandler.HandleToggleExpanded)
	authed.Post("/thread/:id/message/:message_id/quote", threadHandler.HandleToggleQuote)
	authed.Get("/scheduled", threadHandler.HandleScheduled)

	authed.Post("/compose", composeHandler.HandleNewCompose)
	authed.Post("/compose/reply/:thread_id/:message_id", composeHandler.HandleReply)
	authed.Post("/compose/draft/:draft_id", composeHandler.HandleOpenDraft)
	authed.Get("/compose/drafts", composeHandler.HandleListDrafts)
	authed.Patch("/compose/:surface_id", composeHandler.HandleMutate)
	authed.Post("/compose/:surface_id/send", composeHandler.HandleSend)
	authed.Delete("/compose/:surface_id", composeHandler.HandleDiscard)
	authed.Get("/compose/:surface_id/status", composeHandler.HandleStatus)

	authed.Get("/attachment/:message_id/:attachment_id", attachmentHandler.HandleAttachment)

	authed.Get("/status/stream", statusFeed.HandleSSE)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(statusFeed.HandleWebSocket))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	utils.Log.Info("TourMail listening on %s", addr)
	if err := app.Listen(addr); err != nil {
		utils.Log.Error("Server stopped: %v", err)
		os.Exit(1)
	}
}
