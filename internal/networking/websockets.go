package networking

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WebsocketMessageHandler usage:
// * Read from GetReader chan until closed (which means the other party closed it)
// * Write into GetWriter chan until you want - if you close it than the websocket will be closed gracefully.
//
// Messages are exchanged as websocket.BinaryMessage, as they carry raw PCM.
type WebsocketMessageHandler interface {
	// GetReader is where websocket.ReadMessage will produce messages into UNTIL the websocket is closed,
	// then the Reader chan will be CLOSED, i.e. do NOT close this channel yourself as panic is a guaranteed.
	GetReader() chan<- []byte
	// GetWriter is where you can write response - upon channel close, or invalid message produced,
	// the websocket will attempt to close gracefully.
	GetWriter() <-chan []byte
}

// HandlerFactory creates the handler of one connection. An error rejects the
// connection before the upgrade with the returned HTTP status.
type HandlerFactory func(r *http.Request) (handler WebsocketMessageHandler, status int, err error)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Adjust the origin check as needed
	},
}

func getClientIpAddress(r *http.Request) (clientIP string) {
	clientIP = r.RemoteAddr

	// Check for real IP in headers (useful if behind proxy)
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		clientIP = realIP
	} else if forwardedFor := r.Header.Get("X-Forwarded-For"); forwardedFor != "" {
		clientIP = forwardedFor
	}
	return
}

// NewWebsocketHandlerFunc takes the raw http reader / writer,
// and abstracts it into WebsocketMessageHandler which works at the chan []byte message level.
func NewWebsocketHandlerFunc(createHandler HandlerFactory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientIP := getClientIpAddress(r)
		log.Info().Str("client_ip", clientIP).Str("method", r.Method).Str("request_url", r.URL.String()).Msg("NewWebsocketHandlerFunc attempting to establish a websocket connection")

		handler, status, err := createHandler(r)
		if err != nil {
			log.Warn().Err(err).Str("client_ip", clientIP).Int("status", status).Msg("websocket connection rejected")
			http.Error(w, err.Error(), status)
			return
		}
		defer func() { close(handler.GetReader()) }()

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			errLog(err, "websocket upgrader.Upgrade")
			return
		}
		defer func() { errLog(ws.Close(), "websocket.Close()") }()

		go func() {
			for {
				msg, ok := <-handler.GetWriter()
				// Channel closed by the handler, attempt to close connection gracefully.
				// That will also end up the reader routine.
				if !ok {
					log.Info().Msg("websocket writer channel closed, attempting to close connection gracefully")
					msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
					errLog(ws.WriteMessage(websocket.CloseMessage, msg), "websocket.CloseMessage gracefully")
					return
				}

				if err := ws.WriteMessage(websocket.BinaryMessage, msg); err != nil {
					if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
						log.Info().Msg("websocket too late to write message, as already closed")
					} else {
						errLog(err, "ws.WriteMessage")
					}
					return
				}
			}
		}()

		log.Info().Str("client_ip", clientIP).Msg("NewWebsocketHandlerFunc starting to read from the websocket")
		for {
			msgType, msg, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived, websocket.CloseGoingAway) {
					log.Info().Msg("websocket connection closed normally from the other party")
				} else {
					log.Error().Err(err).Msg("couldn't read message from websocket")
				}
				// Usually, nothing good will happen ever after a bad websocket message
				return
			}
			if msgType != websocket.BinaryMessage {
				log.Debug().Int("message_type", msgType).Msg("ignoring non-binary websocket message")
				continue
			}
			handler.GetReader() <- msg
		}
	}
}

func errLog(err error, what string) {
	if err != nil && err != websocket.ErrCloseSent {
		log.Error().Err(err).Msg(what)
	}
}
