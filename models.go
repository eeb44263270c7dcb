package main

// HipsterReply - ответ эндпоинта /hipster
type HipsterReply struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// ErrorReply описывает ошибку, отдаваемую клиенту
type ErrorReply struct {
	Error string `json:"error"`
}
