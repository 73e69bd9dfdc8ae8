package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func SetupRoutes(api *API, ws http.HandlerFunc) http.Handler {
	r := chi.NewRouter()

	r.Route("/battles", func(r chi.Router) {
		r.Post("/", api.CreateBattle)
		r.Get("/campaign/{campaignID}/active", api.ActiveBattle)

		r.Put("/participants/{participantID}/position", api.UpdatePosition)
		r.Put("/participants/{participantID}/troops", api.UpdateTroops)

		r.Put("/goals/{goalID}/lock", api.LockGoal)
		r.Put("/goals/{goalID}/roll", api.RollGoal)
		r.Put("/goals/{goalID}/resolve", api.ResolveGoal)

		r.Get("/invitations/player/{playerID}/campaign/{campaignID}", api.PlayerInvitations)
		r.Post("/invitations/{invitationID}/accept", api.AcceptInvitation)
		r.Post("/invitations/{invitationID}/decline", api.DeclineInvitation)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", api.GetBattle)
			r.Delete("/", api.DeleteBattle)
			r.Put("/status", api.UpdateStatus)
			r.Post("/advance-round", api.AdvanceRound)
			r.Post("/participants", api.AddParticipant)
			r.Post("/calculate-base-scores", api.CalculateBaseScores)
			r.Post("/goals", api.SetGoal)
			r.Post("/apply-modifiers", api.ApplyModifiers)
			r.Post("/complete", api.CompleteBattle)
			r.Post("/invite", api.InvitePlayers)
			r.Get("/invitations", api.BattleInvitations)
		})
	})

	// Public routes
	r.Get("/goals", ListGoals)
	r.Get("/healthz", Healthz)
	if ws != nil {
		r.Get("/ws", ws)
	}
	return r
}
