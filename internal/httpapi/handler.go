// Package httpapi exposes the trading engine over HTTP with gin.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"emabot-go/internal/config"
	"emabot-go/internal/execution"
	"emabot-go/internal/metrics"
	"emabot-go/internal/record"
	"emabot-go/internal/series"
	"emabot-go/internal/store"
)

const welcome = "Welcome to the trading bot!"

// Deps are the collaborators behind the routes. Cache and Stream are optional.
type Deps struct {
	Engine *execution.Engine
	Store  store.Store
	Cache  TradeCache
	Stream http.Handler
	Log    zerolog.Logger
}

type Handler struct {
	router *gin.Engine
	engine *execution.Engine
	store  store.Store
	cache  TradeCache
	log    zerolog.Logger
}

// NewHandler builds the router with its middleware chain.
func NewHandler(cfg config.HTTP, deps Deps) *Handler {
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), accessLog(deps.Log), cors(cfg.AllowOrigins), bodyLimit(cfg.MaxBodyBytes))

	h := &Handler{
		router: router,
		engine: deps.Engine,
		store:  deps.Store,
		cache:  deps.Cache,
		log:    deps.Log,
	}
	h.registerRoutes(deps.Stream)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes(stream http.Handler) {
	h.router.GET("/", h.index)
	h.router.POST("/process-data", h.processData)
	h.router.POST("/data", h.legacyData)
	h.router.GET("/get-trades", h.getTrades)
	h.router.GET("/portfolio", h.portfolio)
	h.router.GET("/metrics", gin.WrapH(metrics.Handler()))
	if stream != nil {
		h.router.GET("/ws", gin.WrapH(stream))
	}
}

func (h *Handler) index(c *gin.Context) {
	c.String(http.StatusOK, welcome)
}

type processResponse struct {
	record.TradeRecord
	LastTrade string `json:"last_trade"`
}

func (h *Handler) processData(c *gin.Context) {
	res, ok := h.process(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, processResponse{TradeRecord: res.Record, LastTrade: res.LastTrade})
}

// legacyData answers with the portfolio-only shape older clients expect.
func (h *Handler) legacyData(c *gin.Context) {
	res, ok := h.process(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, portfolioResponse{
		Cash:      res.After.Cash,
		Holdings:  res.After.Holdings,
		LastTrade: res.LastTrade,
	})
}

func (h *Handler) process(c *gin.Context) (execution.Result, bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, http.StatusRequestEntityTooLarge, "body_too_large", err)
			return execution.Result{}, false
		}
		writeError(c, http.StatusBadRequest, "invalid_body", err)
		return execution.Result{}, false
	}
	payload, err := series.Extract(body)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_json", err)
		return execution.Result{}, false
	}

	res, err := h.engine.Process(c.Request.Context(), payload)
	if err != nil {
		code := execution.ErrorCode(err)
		switch code {
		case "empty_series", "malformed_observation":
			writeError(c, http.StatusBadRequest, code, err)
		default:
			writeError(c, http.StatusInternalServerError, code, err)
		}
		return execution.Result{}, false
	}
	return res, true
}

func (h *Handler) getTrades(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(c, http.StatusBadRequest, "invalid_limit", errors.New("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	ctx := c.Request.Context()
	key := strconv.Itoa(limit)
	var gen int64
	if h.cache != nil {
		cached, g, ok := h.cache.Get(ctx, key)
		if ok {
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "application/json; charset=utf-8", cached)
			return
		}
		gen = g
	}

	recs, err := h.store.List(ctx, limit)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "store_unavailable", err)
		return
	}
	if recs == nil {
		recs = []record.TradeRecord{}
	}
	body, err := json.Marshal(recs)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	if h.cache != nil {
		h.cache.Set(ctx, gen, key, body)
		c.Header("X-Cache", "MISS")
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

type portfolioResponse struct {
	Cash      decimal.Decimal `json:"cash"`
	Holdings  int64           `json:"holdings"`
	LastTrade string          `json:"last_trade"`
}

func (h *Handler) portfolio(c *gin.Context) {
	ledger := h.engine.Ledger()
	snap := ledger.Snapshot()
	c.JSON(http.StatusOK, portfolioResponse{
		Cash:      snap.Cash,
		Holdings:  snap.Holdings,
		LastTrade: ledger.LastTrade(),
	})
}

func writeError(c *gin.Context, status int, code string, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "code": code})
}
