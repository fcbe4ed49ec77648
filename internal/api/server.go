package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"vision-relay/internal/domain/entity"
)

// ResultsDeliverer отправляет в чат итог готового задания
type ResultsDeliverer interface {
	Deliver(ctx context.Context, jobID string) error
}

// RouterConfig: всё, что нужно HTTP-шлюзу бота
type RouterConfig struct {
	Token   string
	Bot     *Bot
	Results ResultsDeliverer
	Metrics http.Handler
	Logger  logrus.FieldLogger
}

type gateway struct {
	bot     *Bot
	results ResultsDeliverer
	log     logrus.FieldLogger
}

// NewRouter собирает маршруты шлюза:
// вебхук Telegram, уведомление о готовом итоге, нагрузочный вход и проверку здоровья
func NewRouter(cfg RouterConfig) *mux.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	g := &gateway{bot: cfg.Bot, results: cfg.Results, log: logger}

	r := mux.NewRouter()
	r.Use(g.logRequests)

	r.HandleFunc("/", g.index).Methods(http.MethodGet)
	r.HandleFunc("/health", g.health).Methods(http.MethodGet)
	r.HandleFunc("/results", g.deliverResults).Methods(http.MethodGet)
	r.HandleFunc("/results/", g.deliverResults).Methods(http.MethodGet)
	r.HandleFunc("/loadTest/", g.webhook).Methods(http.MethodPost)
	if cfg.Token != "" {
		r.HandleFunc("/"+cfg.Token+"/", g.webhook).Methods(http.MethodPost)
	}
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics).Methods(http.MethodGet)
	}
	return r
}

func (g *gateway) index(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "Ok")
}

func (g *gateway) health(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "OK")
}

// webhook принимает Update в формате Bot API
func (g *gateway) webhook(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		g.log.WithError(err).Warn("invalid update body")
		writeText(w, http.StatusBadRequest, "invalid update")
		return
	}

	g.bot.Dispatch(r.Context(), update)
	writeText(w, http.StatusOK, "Ok")
}

// deliverResults вызывается воркером после сохранения итога
func (g *gateway) deliverResults(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("predictionId")
	if jobID == "" {
		writeText(w, http.StatusBadRequest, "predictionId is required")
		return
	}

	if g.results == nil {
		writeText(w, http.StatusServiceUnavailable, "results are not configured")
		return
	}

	log := g.log.WithField("job_id", jobID)
	if err := g.results.Deliver(r.Context(), jobID); err != nil {
		if errors.Is(err, entity.ErrSummaryNotFound) {
			log.Warn("summary not found")
			writeText(w, http.StatusNotFound, "not found")
			return
		}
		log.WithError(err).Error("failed to deliver results")
		writeText(w, http.StatusInternalServerError, "failed")
		return
	}
	writeText(w, http.StatusOK, "Ok")
}

func (g *gateway) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		g.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Debug("http request")
	})
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(text))
}

// Serve слушает addr до отмены контекста и затем плавно останавливается
func Serve(ctx context.Context, addr string, handler http.Handler, logger logrus.FieldLogger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", addr).Info("http server started")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.WithField("addr", addr).Info("http server stopped")
	return nil
}
