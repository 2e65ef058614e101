package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"p7s/pkg/broker"
	"p7s/pkg/cache"
	"p7s/pkg/database"
	"p7s/pkg/handlers"
	"p7s/pkg/hub"
	"p7s/pkg/middleware"
	"p7s/pkg/repository"
	"p7s/pkg/server"
	"p7s/pkg/services"
	"p7s/pkg/storage"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

func main() {
	db := database.Connect()
	defer db.Close()

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetConnMaxIdleTime(30 * time.Second)

	database.Migrate(db)

	log.Println("[P7S] Conectando ao Redis...")
	redis := cache.New()
	defer redis.Close()
	log.Println("[P7S] Redis conectado")

	bus := broker.New()
	defer bus.Close()

	blobs, err := storage.NewMinioStore()
	if err != nil {
		log.Fatalf("[P7S] Blob store indisponível: %v", err)
	}
	promoter := storage.NewPromoter(blobs)

	runner := repository.NewRunner(db)
	authRepo := repository.NewAuthRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	routeRepo := repository.NewRouteRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	chatRepo := repository.NewChatRepository(db)
	pricingRepo := repository.NewPricingRepository(db)

	authSvc := services.NewAuthService(authRepo)
	pricingSvc := services.NewPricingService(pricingRepo, redis)
	orderSvc := services.NewOrderService(runner, orderRepo, pricingSvc, bus)
	routeSvc := services.NewRouteService(runner, routeRepo, bus)
	walletSvc := services.NewWalletService(runner, walletRepo, bus)
	chatSvc := services.NewChatService(runner, chatRepo, authRepo, promoter, nil, bus)
	userSvc := services.NewUserService(runner, authRepo, orderRepo, promoter, bus)

	wsHub := hub.New(bus)
	registerQueries(wsHub, struct {
		Orders  repository.OrderRepository
		Routes  repository.RouteRepository
		Users   repository.AuthRepository
		Wallet  repository.WalletRepository
		Chat    repository.ChatRepository
		Pricing repository.PricingRepository
	}{orderRepo, routeRepo, authRepo, walletRepo, chatRepo, pricingRepo})
	bus.SubscribeChanges()

	auth := handlers.NewAuth(authSvc)
	orders := handlers.NewOrders(orderSvc, pricingSvc)
	routes := handlers.NewRoutes(routeSvc)
	wallet := handlers.NewWallet(walletSvc)
	chat := handlers.NewChat(chatSvc)
	users := handlers.NewUsers(userSvc)
	pricing := handlers.NewPricing(pricingSvc)

	app := server.NewApp("p7s")

	// ── Autenticação ──
	authGroup := app.Group("/auth")
	authGroup.Post("/register", limiter.New(limiter.Config{
		Max:        5,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
	}), auth.Register)
	authGroup.Post("/login", limiter.New(limiter.Config{
		Max:        10,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
	}), auth.Login)
	authGroup.Post("/refresh", auth.Refresh)

	authPriv := authGroup.Group("", middleware.AuthMiddleware)
	authPriv.Get("/me", auth.Me)
	authPriv.Post("/logout", auth.Logout)
	authPriv.Post("/logout-all", auth.LogoutAll)
	authPriv.Get("/sessions", auth.Sessions)

	// ── Pedidos ──
	// Cotação e vitrine de pedidos pendentes ficam abertas: o app mostra
	// preço e demanda antes do cadastro.
	app.Post("/orders/quote", orders.Quote)
	app.Get("/orders/open", orders.ListOpen)

	orderGroup := app.Group("/orders", middleware.AuthMiddleware)
	orderGroup.Post("/", orders.Create)
	orderGroup.Get("/mine", orders.ListMine)
	orderGroup.Get("/:id", orders.Get)
	orderGroup.Post("/:id/accept", orders.Accept)
	orderGroup.Post("/:id/start", orders.Start)
	orderGroup.Post("/:id/complete", orders.Complete)
	orderGroup.Post("/:id/cancel", orders.Cancel)

	// ── Fretados ──
	app.Get("/routes", routes.ListOpen)
	app.Get("/routes/:id", routes.Get)

	routeGroup := app.Group("/routes", middleware.AuthMiddleware)
	routeGroup.Post("/:id/join", routes.Join)
	routeGroup.Post("/orders/:orderId/leave", routes.Leave)
	routeAdmin := routeGroup.Group("", middleware.AdminMiddleware)
	routeAdmin.Get("/all/list", routes.List)
	routeAdmin.Post("/", routes.Create)
	routeAdmin.Post("/:id/status", routes.AdvanceStatus)

	// ── Carteira ──
	walletGroup := app.Group("/wallet", middleware.AuthMiddleware)
	walletGroup.Post("/transfer", wallet.Transfer)
	walletGroup.Post("/purchase", wallet.Purchase)
	walletGroup.Get("/logs", wallet.MyLogs)
	walletGroup.Get("/vouchers", wallet.MyVouchers)
	walletAdmin := walletGroup.Group("", middleware.AdminMiddleware)
	walletAdmin.Post("/mint", wallet.Mint)
	walletAdmin.Post("/grant/:userId", wallet.Grant)
	walletAdmin.Post("/vouchers/issue", wallet.IssueVoucher)
	walletAdmin.Get("/treasury", wallet.Treasury)
	walletAdmin.Get("/logs/all", wallet.Logs)

	// ── Chat e suporte ──
	chatGroup := app.Group("/chat", middleware.AuthMiddleware)
	chatGroup.Post("/send", chat.Send)
	chatGroup.Post("/read", chat.MarkRead)
	chatGroup.Get("/mine", chat.ListMine)
	chatGroup.Get("/conversations", chat.Conversations)
	chatGroup.Get("/unread", chat.Unread)
	chatGroup.Get("/conversations/:key", chat.ListConversation)
	chatGroup.Post("/broadcast", middleware.AdminMiddleware, chat.Broadcast)

	ticketGroup := app.Group("/tickets", middleware.AuthMiddleware)
	ticketGroup.Post("/", chat.CreateTicket)
	ticketGroup.Get("/", chat.ListTickets)
	ticketGroup.Post("/:id/claim", middleware.AdminMiddleware, chat.ClaimTicket)
	ticketGroup.Post("/:id/resolve", chat.ResolveTicket)

	// ── Usuários e onboarding de motorista ──
	userGroup := app.Group("/users", middleware.AuthMiddleware)
	userGroup.Post("/docs", users.SubmitDoc)
	userAdmin := userGroup.Group("", middleware.AdminMiddleware)
	userAdmin.Get("/", users.List)
	userAdmin.Get("/drivers", users.ListDrivers)
	userAdmin.Get("/:id", users.Get)
	userAdmin.Post("/:id/status", users.SetAccountStatus)
	userAdmin.Delete("/:id", users.Delete)
	userAdmin.Post("/:id/docs/review", users.ReviewDoc)
	userAdmin.Post("/:id/approve-driver", users.ApproveDriver)
	userAdmin.Post("/:id/reject-driver", users.RejectDriver)
	userAdmin.Post("/:id/merge/:dupId", users.Merge)

	// ── Manutenção (as mesmas rotinas do ticker, sob demanda) ──
	maint := app.Group("/admin/maintenance", middleware.AuthMiddleware, middleware.AdminMiddleware)
	maint.Post("/cleanup-ghosts", users.CleanupGhosts)
	maint.Post("/cleanup-duplicates", users.CleanupDuplicates)
	maint.Post("/archive", users.Archive)

	// ── Administração de preços ──
	pricingGroup := app.Group("/pricing", middleware.AuthMiddleware, middleware.AdminMiddleware)
	pricingGroup.Get("/config", pricing.GetConfig)
	pricingGroup.Put("/config", pricing.UpdateConfig)
	pricingGroup.Get("/rules", pricing.ListRules)
	pricingGroup.Post("/rules", pricing.UpsertRule)
	pricingGroup.Delete("/rules/:id", pricing.DeleteRule)
	pricingGroup.Get("/keywords", pricing.ListKeywords)
	pricingGroup.Post("/keywords", pricing.UpsertKeyword)
	pricingGroup.Delete("/keywords/:id", pricing.DeleteKeyword)

	app.Get("/hub/status", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"clients": wsHub.ClientCount()})
	})

	// ── WebSocket ──
	app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		tokenStr := c.Query("token")
		if tokenStr == "" {
			auth := c.Get("Authorization")
			if len(auth) > 7 && auth[:7] == "Bearer " {
				tokenStr = auth[7:]
			}
		}
		userID := ""
		role := ""
		if tokenStr != "" {
			if id, r, err := authSvc.ParseAccessToken(tokenStr); err == nil {
				userID = id
				role = string(r)
			}
		}
		c.Locals("ws_user_id", userID)
		c.Locals("ws_role", role)
		return c.Next()
	})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		userID, _ := c.Locals("ws_user_id").(string)
		role, _ := c.Locals("ws_role").(string)
		wsHub.HandleClientConn(c, userID, role)
	}))

	go runMaintenance(authSvc, userSvc, walletSvc)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	addr := "0.0.0.0:" + port

	go func() {
		log.Printf("[P7S] Servidor em %s", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("[P7S] Falha ao subir: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("[P7S] Encerrando: drenando uploads pendentes...")
	chatSvc.WaitUploads()
	userSvc.WaitUploads()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)
	log.Println("[P7S] Encerrado")
}

// runMaintenance roda as varreduras periódicas: sessões expiradas,
// vouchers vencidos, contas fantasma e arquivamento de pedidos velhos.
func runMaintenance(auth services.AuthService, users services.UserService, wallet services.WalletService) {
	sessions := time.NewTicker(30 * time.Minute)
	vouchers := time.NewTicker(1 * time.Hour)
	housekeeping := time.NewTicker(24 * time.Hour)
	defer sessions.Stop()
	defer vouchers.Stop()
	defer housekeeping.Stop()

	ctx := context.Background()
	for {
		select {
		case <-sessions.C:
			if n, err := auth.CleanupExpiredSessions(); err == nil && n > 0 {
				log.Printf("[P7S] Sessões expiradas removidas: %d", n)
			}
		case <-vouchers.C:
			if n, err := wallet.ExpireVouchers(); err == nil && n > 0 {
				log.Printf("[P7S] Vouchers vencidos: %d", n)
			}
		case <-housekeeping.C:
			if n, err := users.CleanupGhosts(ctx, 30*24*time.Hour); err == nil && n > 0 {
				log.Printf("[P7S] Contas fantasma removidas: %d", n)
			}
			if n, err := users.CleanupDuplicatePhones(ctx); err == nil && n > 0 {
				log.Printf("[P7S] Contas duplicadas fundidas: %d", n)
			}
			if n, err := users.ArchiveTerminal(ctx, 90*24*time.Hour); err == nil && n > 0 {
				log.Printf("[P7S] Pedidos arquivados: %d", n)
			}
		}
	}
}
