package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Gabi10k2/gabibrx/libs/config"
	"github.com/Gabi10k2/gabibrx/libs/db"
	"github.com/Gabi10k2/gabibrx/libs/httpx"
	"github.com/Gabi10k2/gabibrx/libs/kafkax"
	"github.com/Gabi10k2/gabibrx/libs/otelx"
	"github.com/Gabi10k2/gabibrx/libs/runtime"
	"github.com/Gabi10k2/gabibrx/services/notifier-service/internal/consumer"
	"github.com/Gabi10k2/gabibrx/services/notifier-service/internal/inbox"
	"github.com/Gabi10k2/gabibrx/services/notifier-service/internal/storage"
	"github.com/Gabi10k2/gabibrx/services/notifier-service/internal/telegram"
)

type bookingCreatedPayload struct {
	AppointmentID int64  `json:"appointment_id"`
	OwnerID       int64  `json:"owner_id"`
	ClientName    string `json:"client_name"`
	ClientPhone   string `json:"client_phone"`
	Service       string `json:"service"`
	Price         int    `json:"price"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}

func formatOperatorMessage(p bookingCreatedPayload) string {
	start, err := time.Parse(time.RFC3339, p.StartTime)
	if err != nil {
		return fmt.Sprintf("New booking #%d: %s (%s), %s, %d lei", p.AppointmentID, p.ClientName, p.ClientPhone, p.Service, p.Price)
	}
	end, err := time.Parse(time.RFC3339, p.EndTime)
	if err != nil {
		end = start
	}
	// RFC3339 carries the business-local offset, so formatting keeps local time.
	return fmt.Sprintf("New booking #%d: %s (%s), %s, %d lei, %s %s-%s",
		p.AppointmentID, p.ClientName, p.ClientPhone, p.Service, p.Price,
		start.Format("2006-01-02"), start.Format("15:04"), end.Format("15:04"))
}

func main() {
	_ = godotenv.Load()

	service := config.String("SERVICE_NAME", "notifier-service")
	port, err := config.Port("PORT", "8081")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	adminChatID, err := strconv.ParseInt(config.String("TELEGRAM_ADMIN_CHAT_ID", "0"), 10, 64)
	if err != nil || adminChatID == 0 {
		logger.Error("TELEGRAM_ADMIN_CHAT_ID missing or invalid; notifications disabled")
	}

	var sender telegram.Sender
	if strings.ToLower(config.String("TELEGRAM_PROVIDER", "bot")) == "noop" {
		sender = telegram.NewNoopSender()
	} else {
		sender = telegram.NewBotSender(config.String("TELEGRAM_BOT_TOKEN", ""))
	}

	inboxRepo := inbox.NewRepository(pool)
	notificationsRepo := storage.NewRepository(pool)

	consumerCfg := consumer.Config{
		Brokers: config.String("KAFKA_BROKERS", ""),
		GroupID: config.String("KAFKA_GROUP_ID", "notifier-service"),
		Topic:   config.String("KAFKA_CONSUME_TOPIC", "booking.created.v1"),
	}
	eventConsumer := consumer.New(logger, inboxRepo, consumerCfg, func(ctx context.Context, msg kafka.Message) error {
		var payload bookingCreatedPayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid booking event payload", "err", err)
			return nil
		}
		if payload.AppointmentID == 0 || payload.ClientName == "" || payload.StartTime == "" {
			logger.Error("missing booking event fields")
			return nil
		}

		meta := kafkax.ExtractEventMeta(msg)
		text := formatOperatorMessage(payload)

		status := "sent"
		sendErr := ""
		if adminChatID == 0 {
			status = "skipped"
			sendErr = "admin chat id not configured"
		} else if err := sender.Send(ctx, adminChatID, text); err != nil {
			status = "failed"
			sendErr = err.Error()
			logger.Error("telegram send failed", "err", err, "appointment_id", payload.AppointmentID)
		}

		if err := notificationsRepo.Insert(ctx, storage.Notification{
			EventID: meta.EventID,
			ChatID:  adminChatID,
			Message: text,
			Status:  status,
			Error:   sendErr,
		}); err != nil {
			logger.Error("failed to persist notification", "err", err)
			return err
		}

		logger.Info("booking event processed", "appointment_id", payload.AppointmentID, "status", status)
		return nil
	})
	go eventConsumer.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notifier")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
