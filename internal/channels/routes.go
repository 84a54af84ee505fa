package channels

import "github.com/go-chi/chi/v5"

// RegisterRoutes mounts the channel endpoints on the given router. Nil
// handlers are skipped.
func RegisterRoutes(r chi.Router, web *WebHub, whatsapp *WhatsAppWebhook, waca *WACAWebhook) {
	if web != nil {
		r.Get("/api/channels/web/ws", web.HandleWebSocket)
	}
	if whatsapp != nil {
		r.Post("/api/channels/whatsapp/reply", whatsapp.HandleReply)
	}
	if waca != nil {
		r.Get("/api/channels/waca/{phone_number_id}/webhook", waca.HandleVerify)
		r.Post("/api/channels/waca/{phone_number_id}/webhook", waca.HandleEvent)
	}
}
