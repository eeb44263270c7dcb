package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"hipster-exchange/hipster"
	"hipster-exchange/httpjson"
	"hipster-exchange/stackexchange"
)

// hipsterHandler отдаёт текст и его тип. Новый hipster.Text на каждый
// запрос: один запрос к источнику на один ответ.
func hipsterHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), appConfig.UpstreamTimeout)
	defer cancel()

	h := hipster.New(textSource)
	text, err := h.Text(ctx)
	if err != nil {
		logger.Errorf("Ошибка получения hipster-текста: %v", err)
		writeError(w, http.StatusBadGateway, "hipster text is temporarily unavailable")
		return
	}
	typ, err := h.Type(ctx)
	if err != nil {
		logger.Errorf("Ошибка получения типа hipster-текста: %v", err)
		writeError(w, http.StatusBadGateway, "hipster text is temporarily unavailable")
		return
	}

	logger.Debugf("Получен hipster-текст (%s), %d символов", typ, len(text))
	writeJSON(w, http.StatusOK, HipsterReply{Text: text, Type: typ})
}

func questionsHandler(w http.ResponseWriter, r *http.Request) {
	stackExchangeHandler(w, r, (*stackexchange.Client).Questions)
}

func usersHandler(w http.ResponseWriter, r *http.Request) {
	stackExchangeHandler(w, r, (*stackexchange.Client).Users)
}

// stackExchangeHandler передаёт ответ Stack Exchange клиенту как есть,
// вместе с кодом ответа.
func stackExchangeHandler(w http.ResponseWriter, r *http.Request, fetch func(*stackexchange.Client, context.Context) (*httpjson.Response, error)) {
	site := mux.Vars(r)["site"]
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "page must be an integer")
			return
		}
		page = p
	}

	client, err := newStackExchangeClient(site, page)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), appConfig.UpstreamTimeout)
	defer cancel()

	resp, err := fetch(client, ctx)
	var statusErr *httpjson.StatusError
	switch {
	case errors.As(err, &statusErr):
		logger.Warnf("Stack Exchange вернул %d для %s (страница %d)", statusErr.StatusCode, site, page)
	case err != nil:
		logger.Errorf("Ошибка запроса к Stack Exchange: %v", err)
		writeError(w, http.StatusBadGateway, "stack exchange is temporarily unavailable")
		return
	}

	// тело уже перекодировано в UTF-8
	contentType := "application/json; charset=utf-8"
	if resp.Data == nil && resp.Header.Get("Content-Type") != "" {
		contentType = resp.Header.Get("Content-Type")
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)
}

func newStackExchangeClient(site string, page int) (*stackexchange.Client, error) {
	cfg := appConfig.StackExchange
	opts := []stackexchange.Option{
		stackexchange.WithHTTPClient(upstreamClient),
		stackexchange.WithLogger(logger),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, stackexchange.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Version != "" {
		opts = append(opts, stackexchange.WithVersion(cfg.Version))
	}
	if cfg.Key != "" {
		opts = append(opts, stackexchange.WithKey(cfg.Key))
	}
	return stackexchange.New(site, page, opts...)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("Ошибка сериализации ответа в JSON: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorReply{Error: msg})
}
