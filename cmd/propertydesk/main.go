package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/PropertyDesk/app/controllers"
	"github.com/ManuelReschke/PropertyDesk/app/models"
	apiv1 "github.com/ManuelReschke/PropertyDesk/internal/api/v1"
	"github.com/ManuelReschke/PropertyDesk/internal/pkg/billing"
	"github.com/ManuelReschke/PropertyDesk/internal/pkg/cache"
	"github.com/ManuelReschke/PropertyDesk/internal/pkg/constants"
	"github.com/ManuelReschke/PropertyDesk/internal/pkg/database"
	"github.com/ManuelReschke/PropertyDesk/internal/pkg/entitlements"
	"github.com/ManuelReschke/PropertyDesk/internal/pkg/env"
	"github.com/ManuelReschke/PropertyDesk/internal/pkg/plans"
	"github.com/ManuelReschke/PropertyDesk/internal/pkg/router"
)

// limiterRedisDB keeps rate limit counters apart from the checkout cache.
const limiterRedisDB = 2

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/propertydesk to project root
		"../../../", // Fallback
	}

	// Find the correct base path
	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public/docs/v1/openapi.yml"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}

	if basePath == "" {
		panic("Could not find project root directory")
	}

	signingSecret := strings.TrimSpace(env.GetEnv("CALLBACK_SIGNING_SECRET", ""))
	if signingSecret == "" && !env.IsDev() {
		log.Fatal("CALLBACK_SIGNING_SECRET is required outside APP_ENV=dev")
	}
	trialPolicy, err := entitlements.ParseTrialPolicy(env.GetEnv("ENTITLEMENT_TRIAL_POLICY", ""))
	if err != nil {
		log.Fatalf("Invalid ENTITLEMENT_TRIAL_POLICY: %v", err)
	}

	redisUp := cacheReachable()
	catalog := plans.NewCatalog(env.GetEnv("PAYMENT_CURRENCY", "USD"))
	store, callbacks := setupPersistence()

	opts := []entitlements.Option{
		entitlements.WithTrialPolicy(trialPolicy),
		entitlements.WithTrialDuration(env.GetDuration("ENTITLEMENT_TRIAL_DURATION", entitlements.DefaultTrialDuration)),
		entitlements.WithPeriodDuration(env.GetDuration("ENTITLEMENT_PERIOD_DURATION", entitlements.DefaultPeriodDuration)),
		entitlements.WithCallbackBaseURL(strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", "http://localhost:4000"), "/") + constants.APIV1Route + constants.EntitlementCallbackRoute),
		entitlements.WithSigner(billing.NewCallbackSigner(signingSecret)),
	}
	if redisUp {
		opts = append(opts, entitlements.WithCheckoutCache(billing.NewRedisCheckoutCache(cache.GetClient())))
	}
	gateway := setupGateway()
	svc := entitlements.NewService(store, catalog, gateway, opts...)

	devBypass := env.DevTrialBypassEnabled()
	if env.GetBool("ENTITLEMENT_DEV_TRIAL_BYPASS", false) && !devBypass {
		log.Printf("Ignoring ENTITLEMENT_DEV_TRIAL_BYPASS outside APP_ENV=dev")
	}

	ctrl := controllers.NewEntitlementController(controllers.EntitlementControllerConfig{
		Service:           svc,
		Catalog:           catalog,
		Callbacks:         callbacks,
		Provider:          gateway.Name(),
		ReturnURL:         env.GetEnv("APP_RETURN_URL", "/"),
		DevTrialBypass:    devBypass,
		CountdownInterval: env.GetDuration("COUNTDOWN_INTERVAL", time.Second),
	})

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName:   "PropertyDesk",
		BodyLimit: 64 * 1024,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: constants.DocsRoute,
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	api := router.NewApiRouter(apiv1.NewAPIServer(ctrl))
	api.APIKeys = env.GetList("API_KEYS")
	api.MaxPerIP, _ = strconv.Atoi(env.GetEnv("API_RATE_LIMIT", "120"))
	api.Window = env.GetDuration("API_RATE_LIMIT_WINDOW", time.Minute)
	if redisUp {
		api.Storage = cache.NewFiberStorage(limiterRedisDB)
	}
	router.InstallRouter(app, api)

	return app
}

// setupPersistence picks MySQL or process memory for entitlements and the
// callback log.
func setupPersistence() (entitlements.Store, *billing.CallbackLog) {
	switch strings.ToLower(env.GetEnv("ENTITLEMENT_STORE", "mysql")) {
	case "memory":
		if !env.IsDev() {
			log.Printf("Warning: ENTITLEMENT_STORE=memory loses all entitlements on restart")
		}
		return entitlements.NewMemoryStore(), billing.NewCallbackLog(billing.NewMemoryRepository())
	default:
		database.SetupDatabase()
		db := database.GetDB()
		return entitlements.NewGormStore(db), billing.NewCallbackLogFromDB(db)
	}
}

func setupGateway() billing.Gateway {
	switch strings.ToLower(env.GetEnv("PAYMENT_PROVIDER", models.PaymentProviderHosted)) {
	case models.PaymentProviderStripe:
		return billing.NewStripeGatewayFromEnv()
	default:
		return billing.NewHostedGatewayFromEnv()
	}
}

// cacheReachable connects the shared Redis client and reports whether it
// answered. Without Redis the limiter and checkout cache stay in memory.
func cacheReachable() bool {
	client := cache.GetClient()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: cache unavailable, rate limits and checkout cache are per instance: %v", err)
		return false
	}
	return true
}
