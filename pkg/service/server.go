package service

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/complygraph/complygraph/pkg/agent"
	"github.com/complygraph/complygraph/pkg/errors"
	"github.com/complygraph/complygraph/pkg/memory"
	"github.com/complygraph/complygraph/pkg/retrieval"
)

// Server exposes the engine over HTTP. It is safe for concurrent use
// because the engine is.
type Server struct {
	app    *fiber.App
	engine *Engine
}

func NewServer(engine *Engine) *Server {
	srv := &Server{
		app: fiber.New(fiber.Config{
			AppName:      "complygraph",
			ServerHeader: "ComplyGraph-Server",
		}),
		engine: engine,
	}

	srv.app.Use(logger.New(), healthcheck.New())

	srv.app.Post("/query", srv.handleQuery)
	srv.app.Post("/retrieve", srv.handleRetrieve)
	srv.app.Post("/memory", srv.handleStoreMemory)
	srv.app.Get("/memory/search", srv.handleSearchMemory)
	srv.app.Get("/analytics/:category", srv.handleAnalytics)
	srv.app.Post("/consolidate", srv.handleConsolidate)
	srv.app.Post("/prune", srv.handlePrune)
	srv.app.Get("/health", srv.handleHealth)
	srv.app.Get("/metrics", srv.handleMetrics)

	return srv
}

func (srv *Server) Start(addr string) error {
	return srv.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

func (srv *Server) Shutdown() error {
	return srv.app.Shutdown()
}

func (srv *Server) handleQuery(ctx fiber.Ctx) error {
	var request agent.Request

	if err := ctx.Bind().Body(&request); err != nil {
		return badRequest(ctx, err)
	}

	response, err := srv.engine.ProcessQuery(ctx.Context(), request)

	if err != nil {
		return sendError(ctx, err)
	}

	return ctx.JSON(response)
}

func (srv *Server) handleRetrieve(ctx fiber.Ctx) error {
	var params retrieval.Params

	if err := ctx.Bind().Body(&params); err != nil {
		return badRequest(ctx, err)
	}

	pack, err := srv.engine.Retrieve(ctx.Context(), params)

	if err != nil {
		return sendError(ctx, err)
	}

	return ctx.JSON(pack)
}

func (srv *Server) handleStoreMemory(ctx fiber.Ctx) error {
	var request StoreMemoryRequest

	if err := ctx.Bind().Body(&request); err != nil {
		return badRequest(ctx, err)
	}

	id, err := srv.engine.StoreMemory(ctx.Context(), request)

	if err != nil {
		return sendError(ctx, err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

func (srv *Server) handleSearchMemory(ctx fiber.Ctx) error {
	query := ctx.Query("q")

	maxMemories, _ := strconv.Atoi(ctx.Query("max", "5"))
	threshold, _ := strconv.ParseFloat(ctx.Query("threshold", "0.3"), 64)

	qc := memory.QueryContext{
		Regulations:   splitParam(ctx.Query("regulations")),
		Domains:       splitParam(ctx.Query("domains")),
		Jurisdictions: splitParam(ctx.Query("jurisdictions")),
		RiskLevel:     ctx.Query("risk_level"),
	}

	result, err := srv.engine.RetrieveMemories(ctx.Context(), query, qc, maxMemories, threshold)

	if err != nil {
		return sendError(ctx, err)
	}

	return ctx.JSON(result)
}

func (srv *Server) handleAnalytics(ctx fiber.Ctx) error {
	lookback, _ := strconv.Atoi(ctx.Query("lookback", "365"))

	result, err := srv.engine.Analytics(
		ctx.Context(),
		ctx.Params("category"),
		splitParam(ctx.Query("codes")),
		lookback,
	)

	if err != nil {
		return sendError(ctx, err)
	}

	return ctx.JSON(result)
}

func (srv *Server) handleConsolidate(ctx fiber.Ctx) error {
	var request struct {
		WindowDays int `json:"window_days"`
	}

	if err := ctx.Bind().Body(&request); err != nil {
		return badRequest(ctx, err)
	}

	report, err := srv.engine.Consolidate(ctx.Context(), request.WindowDays)

	if err != nil {
		return sendError(ctx, err)
	}

	return ctx.JSON(report)
}

func (srv *Server) handlePrune(ctx fiber.Ctx) error {
	var request struct {
		MaxAgeDays    int     `json:"max_age_days"`
		MinImportance float64 `json:"min_importance"`
	}

	if err := ctx.Bind().Body(&request); err != nil {
		return badRequest(ctx, err)
	}

	report, err := srv.engine.Prune(ctx.Context(), request.MaxAgeDays, request.MinImportance)

	if err != nil {
		return sendError(ctx, err)
	}

	return ctx.JSON(report)
}

func (srv *Server) handleHealth(ctx fiber.Ctx) error {
	health := srv.engine.Health(ctx.Context())

	status := fiber.StatusOK
	if !health.GraphConnected {
		status = fiber.StatusServiceUnavailable
	}

	return ctx.Status(status).JSON(health)
}

func (srv *Server) handleMetrics(ctx fiber.Ctx) error {
	return ctx.JSON(srv.engine.Metrics())
}

func badRequest(ctx fiber.Ctx, err error) error {
	return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}

// sendError maps the error taxonomy onto HTTP statuses.
func sendError(ctx fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError

	switch errors.KindOf(err) {
	case errors.KindValidation:
		status = fiber.StatusBadRequest
	case errors.KindNotFound:
		status = fiber.StatusNotFound
	case errors.KindGraphQuery, errors.KindGeneration:
		status = fiber.StatusBadGateway
	case errors.KindInitialization:
		status = fiber.StatusServiceUnavailable
	}

	return ctx.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func splitParam(value string) []string {
	if value == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	out := parts[:0]

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}

	return out
}
