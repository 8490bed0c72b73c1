// Package media предоставляет компоненты для приема и отправки голоса
// поверх RTP: джиттер-буфер, статистику приема и генератор NACK, набор
// DTMF (RFC 4733), реестр аудио кодеков и оркестратор сессии, который
// связывает все это с транспортом UDP.
//
// Session is the single entry point applications use: it owns the RTP
// and RTCP sockets, runs the periodic RTCP timer, and guards its send
// and receive state with a mutex. There is no single event-loop
// goroutine: receive handlers run on the per-socket reader goroutines
// and sends run on the caller's goroutine.
package media
