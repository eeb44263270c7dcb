package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"hipster-exchange/hipster"
)

var (
	port       = flag.String("port", "", "Порт для запуска сервера (перекрывает конфиг)")
	configPath = flag.String("config", "config.yaml", "Путь к YAML-конфигу")
)

func main() {
	flag.Parse()

	// Настраиваем логирование
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		DisableColors: false,
	})
	logger.SetOutput(os.Stderr)

	config, err := LoadConfig(*configPath)
	if err != nil {
		logger.Fatalf("Ошибка загрузки конфига %s: %v", *configPath, err)
	}
	if *port != "" {
		config.Port = *port
	}
	if err := setup(config); err != nil {
		logger.Fatalf("Некорректный конфиг: %v", err)
	}

	srv := &http.Server{
		Addr:    ":" + config.Port,
		Handler: newRouter(),
	}

	// Канал для получения сигналов операционной системы
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	// Запускаем сервер в отдельной горутине
	go func() {
		logger.Infof("Сервис %s запущен на порту :%s", Version, config.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Ошибка запуска сервера: %v", err)
		}
	}()

	// Ожидаем сигнал завершения
	<-done
	logger.Info("Получен сигнал завершения, начинаем graceful shutdown...")

	// Создаем контекст с таймаутом для graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Ошибка при graceful shutdown: %v", err)
		os.Exit(1)
	}

	logger.Info("Сервер успешно остановлен")
}

func newRouter() *mux.Router {
	router := mux.NewRouter()
	// Подключаем middleware
	router.Use(loggingMiddleware)
	router.Use(corsMiddleware)

	// Регистрируем маршруты
	router.HandleFunc("/hipster", hipsterHandler).Methods("GET")
	router.HandleFunc("/stackexchange/{site}/questions", questionsHandler).Methods("GET")
	router.HandleFunc("/stackexchange/{site}/users", usersHandler).Methods("GET")
	router.HandleFunc("/telegram-webhook", telegramWebhookHandler).Methods("POST")
	router.PathPrefix("/").HandlerFunc(spaHandler)
	return router
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start),
		}).Info("request")
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		for _, allowed := range appConfig.AllowedOrigins {
			if origin == allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				w.Header().Add("Vary", "Origin")
				break
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// spaHandler отдаёт index.html для GET-запросов к несуществующим файлам (SPA-режим)
func spaHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		// Для не-GET запросов возвращаем 404
		http.NotFound(w, r)
		return
	}
	path := filepath.Join(appConfig.StaticDir, filepath.Clean("/"+r.URL.Path))
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		http.ServeFile(w, r, path)
		return
	}
	// Если файла нет, отдаём index.html
	http.ServeFile(w, r, filepath.Join(appConfig.StaticDir, "index.html"))
}

// telegramBot: часть tgbotapi.BotAPI, нужная обработчику команд
type telegramBot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// telegramWebhookHandler обрабатывает входящие webhook-запросы Telegram
func telegramWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if appConfig.TelegramBotToken == "" {
		logger.Warn("Получен webhook Telegram, но telegram_bot_token не задан")
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	update := tgbotapi.Update{}
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		logger.Errorf("Ошибка декодирования webhook: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	bot, err := tgbotapi.NewBotAPIWithClient(appConfig.TelegramBotToken, tgbotapi.APIEndpoint, upstreamClient)
	if err != nil {
		logger.Errorf("Ошибка запуска Telegram-бота: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	processTelegramUpdate(r.Context(), bot, update)
	w.WriteHeader(http.StatusOK)
}

// processTelegramUpdate обрабатывает update (логика Telegram-бота)
func processTelegramUpdate(ctx context.Context, bot telegramBot, update tgbotapi.Update) {
	if update.Message == nil || !update.Message.IsCommand() {
		return
	}
	chatID := update.Message.Chat.ID

	ctx, cancel := context.WithTimeout(ctx, appConfig.UpstreamTimeout)
	defer cancel()

	var reply string
	switch update.Message.Command() {
	case "start":
		reply = "Привет! /hipster пришлёт абзац хипстерского lorem ipsum, /questions [сайт] покажет свежие вопросы со Stack Exchange."
	case "hipster":
		text, err := hipster.New(textSource).Text(ctx)
		if err != nil {
			logger.Errorf("Telegram /hipster: %v", err)
			reply = "Хипстерский текст временно недоступен"
			break
		}
		reply = stripTags(text)
	case "questions":
		site := strings.TrimSpace(update.Message.CommandArguments())
		if site == "" {
			site = appConfig.StackExchange.DefaultSite
		}
		titles, err := questionTitles(ctx, site, 5)
		if err != nil {
			logger.Errorf("Telegram /questions %s: %v", site, err)
			reply = "Вопросы временно недоступны"
			break
		}
		reply = strings.Join(titles, "\n")
	default:
		reply = "Используйте /hipster или /questions."
	}

	if _, err := bot.Send(tgbotapi.NewMessage(chatID, reply)); err != nil {
		logger.Errorf("Ошибка отправки сообщения в Telegram: %v", err)
	}
}

// questionTitles возвращает до limit заголовков с первой страницы вопросов.
// Stack Exchange отдаёт заголовки с HTML-сущностями.
func questionTitles(ctx context.Context, site string, limit int) ([]string, error) {
	client, err := newStackExchangeClient(site, 1)
	if err != nil {
		return nil, err
	}
	resp, err := client.Questions(ctx)
	if err != nil {
		return nil, err
	}
	items, err := resp.Array("items")
	if err != nil {
		return nil, err
	}

	var titles []string
	for i, item := range items {
		if i == limit {
			break
		}
		if !item.ExistsP("title") {
			continue
		}
		title, ok := item.Path("title").Data().(string)
		if !ok {
			continue
		}
		titles = append(titles, fmt.Sprintf("%d. %s", i+1, html.UnescapeString(title)))
	}
	if len(titles) == 0 {
		return nil, fmt.Errorf("no questions on %s", site)
	}
	return titles, nil
}

// stripTags убирает HTML-разметку из абзацев hipsterjesus
func stripTags(s string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.TextToken:
			b.Write(tokenizer.Text())
		case html.EndTagToken:
			if name, _ := tokenizer.TagName(); string(name) == "p" {
				b.WriteString("\n")
			}
		}
	}
}
